package pipeline

import (
	"github.com/Gabriell-Belmont/sam--product-management/internal/hierarchy"
	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
)

// Sources recorded with every persisted item.
const (
	SourcePrompt    = "prompt"
	SourceHierarchy = "hierarchy_prompt"
)

// ProjectContext scopes a run.
type ProjectContext struct {
	// Project is the tracker project key. Empty means the tracker's default.
	Project string `json:"project,omitempty"`
	// User partitions the persisted interaction contexts.
	User string `json:"user,omitempty"`
	// Type, when set, replaces the classifier's routing.
	Type string `json:"type,omitempty"`
	// Hierarchy forces a generated hierarchy.
	Hierarchy bool `json:"hierarchy,omitempty"`
}

// CreatedItem is one item the run produced in the tracker.
type CreatedItem struct {
	Type      item.Type     `json:"item_type"`
	Key       string        `json:"key,omitempty"`
	URL       string        `json:"url,omitempty"`
	Summary   string        `json:"summary"`
	ParentKey string        `json:"parent_key,omitempty"`
	Status    string        `json:"status"`
	Fields    item.FieldSet `json:"-"`
}

// Result is the outcome of Process. Failures are reported in Error, never
// returned.
type Result struct {
	RunID    string             `json:"run_id"`
	Success  bool               `json:"success"`
	ItemType item.Type          `json:"item_type"`
	Record   *item.PromptRecord `json:"prompt"`

	// Item is set on the single-item path.
	Item *CreatedItem `json:"single_item,omitempty"`
	// Items is set on the hierarchy path, in creation order, including
	// nodes that failed or were skipped.
	Items []*CreatedItem `json:"created_items,omitempty"`

	StorageKeys []string `json:"storage_keys,omitempty"`
	ContextKey  string   `json:"context_key,omitempty"`

	// LegacyDescription holds the unstructured rendering produced when the
	// type has no template.
	LegacyDescription string `json:"legacy_description,omitempty"`
	// Warnings are non-fatal problems, such as a created item that could
	// not be linked.
	Warnings []string `json:"warnings,omitempty"`

	Error        error  `json:"-"`
	ErrorMessage string `json:"error,omitempty"`
}

// Keys returns the tracker keys the run created.
func (r *Result) Keys() []string {
	var keys []string
	if r.Item != nil && r.Item.Key != "" {
		keys = append(keys, r.Item.Key)
	}
	for _, it := range r.Items {
		if it.Key != "" {
			keys = append(keys, it.Key)
		}
	}
	return keys
}

// Created returns the items that exist in the tracker.
func (r *Result) Created() []*CreatedItem {
	var out []*CreatedItem
	if r.Item != nil && r.Item.Key != "" {
		out = append(out, r.Item)
	}
	for _, it := range r.Items {
		if it.Key != "" {
			out = append(out, it)
		}
	}
	return out
}

func (r *Result) fail(err error) *Result {
	r.Success = false
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
	return r
}

func fromNode(n *hierarchy.Node) *CreatedItem {
	fields := n.Rendered
	if fields == nil {
		fields = n.Fields
	}
	return &CreatedItem{
		Type:      n.Type,
		Key:       n.Key,
		URL:       n.URL,
		Summary:   n.Summary(),
		ParentKey: n.ParentKey,
		Status:    string(n.Status),
		Fields:    fields,
	}
}
