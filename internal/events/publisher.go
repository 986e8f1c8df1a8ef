// Package events publishes pipeline outcomes to NATS.
//
// Events are published to subjects:
//   - pm.items.{project}.created, once per created tracker item
//   - pm.runs.{project}.completed, once per successful run
//   - pm.runs.{project}.failed, once per failed or partial run
//
// Publishing is best effort: the pipeline logs failures and moves on.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
	"github.com/Gabriell-Belmont/sam--product-management/internal/sanitize"
)

// SubjectRoot prefixes every subject.
const SubjectRoot = "pm"

// ItemCreated is published for each item the tracker accepted.
type ItemCreated struct {
	RunID     string    `json:"run_id"`
	Project   string    `json:"project"`
	Type      item.Type `json:"item_type"`
	Key       string    `json:"key"`
	URL       string    `json:"url,omitempty"`
	ParentKey string    `json:"parent_key,omitempty"`
	Summary   string    `json:"summary"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// RunFinished closes a pipeline run.
type RunFinished struct {
	RunID     string    `json:"run_id"`
	Project   string    `json:"project"`
	Type      item.Type `json:"item_type"`
	Success   bool      `json:"success"`
	Keys      []string  `json:"keys,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher sends events over a NATS connection. A nil *Publisher drops
// every event, so callers without NATS need no special casing.
type Publisher struct {
	nc *nats.Conn
}

// NewPublisher creates a Publisher on nc.
func NewPublisher(nc *nats.Conn) (*Publisher, error) {
	if nc == nil {
		return nil, errors.New("nats connection is required for publisher")
	}
	return &Publisher{nc: nc}, nil
}

// ItemSubject returns the subject for items created in project.
func ItemSubject(project string) string {
	return fmt.Sprintf("%s.items.%s.created", SubjectRoot, token(project))
}

// RunSubject returns the subject for a finished run in project.
func RunSubject(project string, success bool) string {
	outcome := "failed"
	if success {
		outcome = "completed"
	}
	return fmt.Sprintf("%s.runs.%s.%s", SubjectRoot, token(project), outcome)
}

// token makes project safe as a single subject token.
func token(project string) string {
	return sanitize.Segment(project)
}

// ItemCreated publishes ev.
func (p *Publisher) ItemCreated(ev ItemCreated) error {
	if p == nil {
		return nil
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return p.publish(ItemSubject(ev.Project), ev)
}

// RunFinished publishes ev.
func (p *Publisher) RunFinished(ev RunFinished) error {
	if p == nil {
		return nil
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return p.publish(RunSubject(ev.Project, ev.Success), ev)
}

func (p *Publisher) publish(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}
