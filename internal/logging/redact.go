// internal/logging/redact.go
package logging

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"github.com/Gabriell-Belmont/sam--product-management/internal/config"
	"github.com/Gabriell-Belmont/sam--product-management/internal/secrets"
)

const redactedValue = "[REDACTED]"

type secretMarshaler struct {
	key string
	val config.Secret
}

func (s *secretMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString(s.key, fmt.Sprintf("[REDACTED:%d]", len(s.val.Value())))
	return nil
}

// Secret creates a field for a config.Secret that records only its length.
func Secret(key string, val config.Secret) zap.Field {
	return zap.Object(key, &secretMarshaler{key: key, val: val})
}

// RedactedString creates a field with the value replaced by its length.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// RedactingEncoder wraps an encoder. Fields with a sensitive name are
// replaced whole; string values and messages go through the scrubber.
type RedactingEncoder struct {
	zapcore.Encoder
	fields   map[string]bool
	scrubber secrets.Scrubber
}

// NewRedactingEncoder wraps base with the rules of cfg. Patterns extend the
// scrubber's default rules.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	if !cfg.Enabled {
		return &RedactingEncoder{Encoder: base, scrubber: secrets.NoopScrubber{}}, nil
	}

	fields := make(map[string]bool, len(cfg.Fields))
	for _, f := range cfg.Fields {
		fields[strings.ToLower(f)] = true
	}

	sc := secrets.DefaultConfig()
	for i, p := range cfg.Patterns {
		sc.Rules = append(sc.Rules, secrets.Rule{
			ID:       fmt.Sprintf("log-pattern-%d", i+1),
			Pattern:  p,
			Severity: "medium",
		})
	}
	scrubber, err := secrets.New(sc)
	if err != nil {
		return nil, fmt.Errorf("invalid redaction rules: %w", err)
	}
	return &RedactingEncoder{Encoder: base, fields: fields, scrubber: scrubber}, nil
}

func (e *RedactingEncoder) sensitive(key string) bool {
	return e.fields[strings.ToLower(key)]
}

func (e *RedactingEncoder) scrub(s string) string {
	return e.scrubber.Scrub(s).Scrubbed
}

// redactField returns f with its value redacted where needed.
func (e *RedactingEncoder) redactField(f zapcore.Field) zapcore.Field {
	if e.sensitive(f.Key) {
		switch f.Type {
		case zapcore.SkipType, zapcore.ObjectMarshalerType:
			// Objects such as Secret fields marshal their own redaction.
			return f
		}
		return zap.String(f.Key, redactedValue)
	}
	switch f.Type {
	case zapcore.StringType:
		f.String = e.scrub(f.String)
	case zapcore.ByteStringType:
		if b, ok := f.Interface.([]byte); ok {
			f.Interface = []byte(e.scrub(string(b)))
		}
	case zapcore.ErrorType:
		if err, ok := f.Interface.(error); ok {
			return zap.String(f.Key, e.scrub(err.Error()))
		}
	}
	return f
}

// EncodeEntry redacts the message and every entry field.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	ent.Message = e.scrub(ent.Message)
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		out[i] = e.redactField(f)
	}
	return e.Encoder.EncodeEntry(ent, out)
}

// AddString covers fields attached with Logger.With, which reach the
// encoder before any entry.
func (e *RedactingEncoder) AddString(key, val string) {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redactedValue)
		return
	}
	e.Encoder.AddString(key, e.scrub(val))
}

func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.sensitive(key) {
		e.Encoder.AddByteString(key, []byte(redactedValue))
		return
	}
	e.Encoder.AddByteString(key, []byte(e.scrub(string(val))))
}

func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redactedValue)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

// Clone implements zapcore.Encoder.
func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{
		Encoder:  e.Encoder.Clone(),
		fields:   e.fields,
		scrubber: e.scrubber,
	}
}
