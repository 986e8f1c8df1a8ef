package extraction

import (
	"sort"
	"time"

	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
)

const (
	historyItemsPerType = 5
	historyContexts     = 3
)

// HistoryItem is a previously created item as persisted by the pipeline.
type HistoryItem struct {
	Key       string
	Type      item.Type
	CreatedAt time.Time
	Fields    item.FieldSet
}

// HistoryContext is a previously persisted interaction.
type HistoryContext struct {
	Timestamp time.Time
	Prompt    string
	Type      item.Type
	Success   bool
	Key       string
}

// History is the recent project activity offered to context analysis.
type History struct {
	Items    map[item.Type][]HistoryItem
	Contexts []HistoryContext
}

// Empty reports whether there is nothing to analyze.
func (h History) Empty() bool {
	for _, items := range h.Items {
		if len(items) > 0 {
			return false
		}
	}
	return len(h.Contexts) == 0
}

type simpleItem struct {
	Summary   string `json:"summary"`
	Key       string `json:"key"`
	CreatedAt string `json:"created_at"`
	EpicName  string `json:"epic_name,omitempty"`
	EpicLink  string `json:"epic_link,omitempty"`
	ParentKey string `json:"parent_key,omitempty"`
}

type simpleContext struct {
	Timestamp string `json:"timestamp"`
	Prompt    string `json:"prompt"`
	Type      string `json:"type"`
	Result    struct {
		Success  bool   `json:"success"`
		ItemType string `json:"item_type"`
		JiraKey  string `json:"jira_key"`
	} `json:"result"`
}

type simpleHistory struct {
	ItemHistory map[string][]simpleItem `json:"item_history"`
	Contexts    []simpleContext         `json:"contexts"`
}

// simplify keeps the newest items per type with one type-specific field and
// the newest contexts, to bound the analysis prompt.
func simplify(h History) simpleHistory {
	out := simpleHistory{ItemHistory: map[string][]simpleItem{}}
	for t, items := range h.Items {
		sorted := append([]HistoryItem(nil), items...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })
		if len(sorted) > historyItemsPerType {
			sorted = sorted[:historyItemsPerType]
		}
		list := make([]simpleItem, 0, len(sorted))
		for _, it := range sorted {
			si := simpleItem{
				Summary:   it.Fields.Get(item.FieldSummary),
				Key:       it.Key,
				CreatedAt: it.CreatedAt.UTC().Format(time.RFC3339),
			}
			switch t {
			case item.TypeEpic:
				si.EpicName = it.Fields.Get(item.FieldEpicName)
			case item.TypeStory:
				si.EpicLink = it.Fields.Get(item.FieldEpicLink)
			case item.TypeTask, item.TypeSubtask:
				si.ParentKey = it.Fields.Get(item.FieldParentKey)
			}
			list = append(list, si)
		}
		out.ItemHistory[t.String()] = list
	}

	contexts := append([]HistoryContext(nil), h.Contexts...)
	sort.SliceStable(contexts, func(i, j int) bool { return contexts[i].Timestamp.After(contexts[j].Timestamp) })
	if len(contexts) > historyContexts {
		contexts = contexts[:historyContexts]
	}
	for _, c := range contexts {
		sc := simpleContext{
			Timestamp: c.Timestamp.UTC().Format(time.RFC3339),
			Prompt:    c.Prompt,
			Type:      string(c.Type),
		}
		sc.Result.Success = c.Success
		sc.Result.ItemType = string(c.Type)
		sc.Result.JiraKey = c.Key
		out.Contexts = append(out.Contexts, sc)
	}
	return out
}

// Analysis is the model's reading of the prompt against recent history.
type Analysis struct {
	RelatedItems   any `json:"related_items,omitempty"`
	Suggestions    any `json:"suggestions,omitempty"`
	Dependencies   any `json:"dependencies,omitempty"`
	NamingPatterns any `json:"naming_patterns,omitempty"`
}
