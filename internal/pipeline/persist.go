package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Gabriell-Belmont/sam--product-management/internal/blobstore"
	"github.com/Gabriell-Belmont/sam--product-management/internal/events"
	"github.com/Gabriell-Belmont/sam--product-management/internal/extraction"
	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
)

const (
	historyPerType  = 5
	historyContexts = 3
)

// ErrNoStore is returned by history queries when no repository is configured.
var ErrNoStore = errors.New("no store configured")

// contextRecord is the persisted form of one interaction.
type contextRecord struct {
	Timestamp time.Time          `json:"timestamp"`
	Prompt    *item.PromptRecord `json:"prompt"`
	Result    contextResult      `json:"result"`
}

type contextResult struct {
	RunID       string    `json:"run_id"`
	Success     bool      `json:"success"`
	ItemType    item.Type `json:"item_type"`
	JiraKey     string    `json:"jira_key,omitempty"`
	Keys        []string  `json:"keys,omitempty"`
	StorageKeys []string  `json:"storage_keys,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// persist saves every created item and the interaction. Failures are logged
// and counted, never reported to the caller.
func (o *Orchestrator) persist(ctx context.Context, rec *item.PromptRecord, pc ProjectContext, runRoute string, res *Result, logger *zap.Logger) {
	if o.repo == nil {
		return
	}
	start := time.Now()
	defer o.metrics.observe(stepPersist, start)

	source := SourcePrompt
	if runRoute == routeHierarchy {
		source = SourceHierarchy
	}

	for _, c := range res.Created() {
		key, err := o.repo.SaveItem(ctx, pc.Project, c.Type, o.itemPayload(c), map[string]string{
			blobstore.MetaJiraKey: c.Key,
			blobstore.MetaSource:  source,
		})
		if err != nil {
			o.metrics.PersistErrors.Inc()
			logger.Error("failed to persist item", zap.String("key", c.Key), zap.Error(err))
			continue
		}
		res.StorageKeys = append(res.StorageKeys, key)
	}

	key, err := o.repo.SaveContext(ctx, pc.User, o.contextPayload(rec, res))
	if err != nil {
		o.metrics.PersistErrors.Inc()
		logger.Error("failed to persist context", zap.Error(err))
		return
	}
	res.ContextKey = key
}

func (o *Orchestrator) itemPayload(c *CreatedItem) map[string]any {
	payload := make(map[string]any, len(c.Fields)+3)
	for k, v := range c.Fields {
		switch val := v.(type) {
		case string:
			payload[k] = o.scrubber.Scrub(val).Scrubbed
		case []string:
			list := make([]string, len(val))
			for i, s := range val {
				list[i] = o.scrubber.Scrub(s).Scrubbed
			}
			payload[k] = list
		default:
			payload[k] = v
		}
	}
	payload["key"] = c.Key
	payload["url"] = c.URL
	payload["item_type"] = c.Type.String()
	return payload
}

func (o *Orchestrator) contextPayload(rec *item.PromptRecord, res *Result) contextRecord {
	prompt := *rec
	prompt.Raw = o.scrubber.Scrub(rec.Raw).Scrubbed
	prompt.Normalized = o.scrubber.Scrub(rec.Normalized).Scrubbed

	out := contextRecord{
		Timestamp: rec.Timestamp,
		Prompt:    &prompt,
		Result: contextResult{
			RunID:       res.RunID,
			Success:     res.Success,
			ItemType:    res.ItemType,
			Keys:        res.Keys(),
			StorageKeys: res.StorageKeys,
			Error:       res.ErrorMessage,
		},
	}
	if res.Item != nil {
		out.Result.JiraKey = res.Item.Key
	}
	return out
}

func (o *Orchestrator) publish(pc ProjectContext, res *Result, logger *zap.Logger) {
	if o.events == nil {
		return
	}
	source := SourcePrompt
	if res.ItemType == item.TypeAuto {
		source = SourceHierarchy
	}
	for _, c := range res.Created() {
		err := o.events.ItemCreated(events.ItemCreated{
			RunID:     res.RunID,
			Project:   pc.Project,
			Type:      c.Type,
			Key:       c.Key,
			URL:       c.URL,
			ParentKey: c.ParentKey,
			Summary:   c.Summary,
			Source:    source,
		})
		if err != nil {
			logger.Warn("failed to publish item event", zap.String("key", c.Key), zap.Error(err))
		}
	}
	err := o.events.RunFinished(events.RunFinished{
		RunID:   res.RunID,
		Project: pc.Project,
		Type:    res.ItemType,
		Success: res.Success,
		Keys:    res.Keys(),
		Error:   res.ErrorMessage,
	})
	if err != nil {
		logger.Warn("failed to publish run event", zap.Error(err))
	}
}

// loadHistory reads the recent items of the project and contexts of the user.
func (o *Orchestrator) loadHistory(ctx context.Context, pc ProjectContext) (extraction.History, error) {
	h := extraction.History{Items: make(map[item.Type][]extraction.HistoryItem)}

	byType, err := o.repo.History(ctx, pc.Project, historyPerType)
	if err != nil {
		return h, err
	}
	for t, recs := range byType {
		for _, r := range recs {
			h.Items[t] = append(h.Items[t], extraction.HistoryItem{
				Key:       r.Metadata[blobstore.MetaJiraKey],
				Type:      t,
				CreatedAt: r.SavedAt,
				Fields:    item.FromJSON(r.Data),
			})
		}
	}

	contexts, err := o.repo.RecentContexts(ctx, pc.User, historyContexts)
	if err != nil {
		return h, err
	}
	for _, r := range contexts {
		c, err := decodeContext(r)
		if err != nil {
			continue
		}
		h.Contexts = append(h.Contexts, extraction.HistoryContext{
			Timestamp: c.Timestamp,
			Prompt:    c.Prompt.Raw,
			Type:      c.Result.ItemType,
			Success:   c.Result.Success,
			Key:       c.Result.JiraKey,
		})
	}
	return h, nil
}

func decodeContext(r blobstore.Record) (*contextRecord, error) {
	data, err := json.Marshal(r.Data)
	if err != nil {
		return nil, err
	}
	var c contextRecord
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.Prompt == nil {
		return nil, errors.New("context has no prompt")
	}
	return &c, nil
}

// History returns up to limit persisted items of type t in project, newest
// first.
func (o *Orchestrator) History(ctx context.Context, project string, t item.Type, limit int) ([]blobstore.Record, error) {
	if o.repo == nil {
		return nil, ErrNoStore
	}
	project = o.scope(ProjectContext{Project: project}).Project
	return o.repo.ListItems(ctx, project, t, limit)
}
