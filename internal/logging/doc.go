// Package logging provides structured logging for pm and pmd.
//
// # Overview
//
// The package wraps Zap with:
//   - a Trace level (-2, below Debug)
//   - stdout or stderr output, optionally teed to OpenTelemetry
//   - context fields: trace_id, run_id, project, user and request_id
//   - secret redaction in the encoder, using the prompt scrubber rules
//   - level-aware sampling (errors are never sampled)
//
// # Usage
//
//	cfg, err := logging.NewConfig(appCfg.Logging, "pmd")
//	logger, err := logging.NewLogger(cfg, nil)
//	defer logger.Sync()
//
//	ctx = logging.WithProject(ctx, "PROJ")
//	logger.Info(ctx, "prompt processed", zap.String("key", "PROJ-1"))
//
// Components that take a *zap.Logger receive logger.Underlying().
//
// # Secret Redaction
//
// Secrets are redacted at three layers: the config.Secret type, field names
// such as api_token or authorization, and the scrubber rules applied to
// every string value and message. Only the matched span is replaced, so a
// prompt that mentions a token keeps the rest of its text.
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//	tl.AssertField(t, "test message", "key", "value")
package logging
