package hierarchy

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
	"github.com/Gabriell-Belmont/sam--product-management/internal/template"
	"github.com/Gabriell-Belmont/sam--product-management/internal/tracker"
)

// Tracker creates items and links them after the fact.
type Tracker interface {
	Create(ctx context.Context, it item.Item) (tracker.Created, error)
	LinkToParent(ctx context.Context, childKey, parentKey string) error
}

// ErrParentUnavailable marks a node skipped because its parent was not created.
var ErrParentUnavailable = errors.New("parent was not created")

// HierarchyError names the node a generation or linking failure belongs to.
type HierarchyError struct {
	Node  *Node
	Index int
	Err   error
}

func (e *HierarchyError) Error() string {
	summary := ""
	if e.Node != nil {
		summary = fmt.Sprintf(" [%s] %q", e.Node.Type, e.Node.Summary())
	}
	return fmt.Sprintf("hierarchy node %d%s: %v", e.Index, summary, e.Err)
}

func (e *HierarchyError) Unwrap() error { return e.Err }

// Outcome summarizes a linking run. Nodes created before a failure stay
// created; nothing is rolled back.
type Outcome struct {
	Nodes   []*Node
	Created int
	Failed  int
	Skipped int
	Errors  []error
}

// Complete reports whether every node was created and linked.
func (o *Outcome) Complete() bool { return len(o.Errors) == 0 }

// Keys returns the keys of the created nodes in order.
func (o *Outcome) Keys() []string {
	var keys []string
	for _, n := range o.Nodes {
		if n.Key != "" {
			keys = append(keys, n.Key)
		}
	}
	return keys
}

// Linker creates hierarchy nodes in order, resolving each node's parent from
// the keys assigned earlier in the run.
type Linker struct {
	tracker Tracker
	logger  *zap.Logger
}

// NewLinker creates a Linker.
func NewLinker(t Tracker, logger *zap.Logger) (*Linker, error) {
	if t == nil {
		return nil, errors.New("tracker is required for linker")
	}
	if logger == nil {
		return nil, errors.New("logger is required for linker")
	}
	return &Linker{tracker: t, logger: logger.Named("linker")}, nil
}

// Link creates nodes sequentially. A story hangs under the first created
// epic, a task under the first created story and a subtask under the
// nearest preceding task.
//
// A node whose parent failed or was skipped is skipped too, so a failure
// aborts its own branch only. A story or task whose parent type appears
// only later in the list is created unlinked and linked in a second pass.
func (l *Linker) Link(ctx context.Context, nodes []*Node) *Outcome {
	out := &Outcome{Nodes: nodes}
	firstKey := make(map[item.Type]string)
	var deferred []int

	for i, n := range nodes {
		parentKey, linkLater, err := l.resolveParent(nodes, i, firstKey)
		if err != nil {
			n.Status = StatusSkipped
			out.Skipped++
			out.Errors = append(out.Errors, &HierarchyError{Node: n, Index: i, Err: err})
			l.logger.Warn("hierarchy node skipped",
				zap.Int("index", i),
				zap.String("type", n.Type.String()),
				zap.Error(err))
			continue
		}

		if err := l.create(ctx, n, parentKey); err != nil {
			out.Errors = append(out.Errors, &HierarchyError{Node: n, Index: i, Err: err})
			l.logger.Error("hierarchy node failed",
				zap.Int("index", i),
				zap.String("type", n.Type.String()),
				zap.String("summary", n.Summary()),
				zap.Error(err))
			if n.Key == "" {
				n.Status = StatusFailed
				out.Failed++
				continue
			}
		}
		out.Created++
		if _, ok := firstKey[n.Type]; !ok {
			firstKey[n.Type] = n.Key
		}
		if linkLater {
			deferred = append(deferred, i)
		}
	}

	for _, i := range deferred {
		n := nodes[i]
		parentType, _ := n.Type.ParentType()
		parentKey := firstKey[parentType]
		if parentKey == "" {
			out.Errors = append(out.Errors, &HierarchyError{Node: n, Index: i, Err: ErrParentUnavailable})
			continue
		}
		if err := l.tracker.LinkToParent(ctx, n.Key, parentKey); err != nil {
			out.Errors = append(out.Errors, &HierarchyError{Node: n, Index: i, Err: fmt.Errorf("link to %s: %w", parentKey, err)})
			continue
		}
		n.ParentKey = parentKey
		l.logger.Info("hierarchy node linked", zap.String("key", n.Key), zap.String("parent", parentKey))
	}

	l.logger.Info("hierarchy linked",
		zap.Int("nodes", len(nodes)),
		zap.Int("created", out.Created),
		zap.Int("failed", out.Failed),
		zap.Int("skipped", out.Skipped))
	return out
}

// resolveParent returns the parent key for node i, or reports that the node
// must be linked after the full pass.
func (l *Linker) resolveParent(nodes []*Node, i int, firstKey map[item.Type]string) (string, bool, error) {
	n := nodes[i]
	parentType, ok := n.Type.ParentType()
	if !ok {
		return "", false, nil
	}

	if n.Type == item.TypeSubtask || n.Type == item.TypeSubBug {
		for j := i - 1; j >= 0; j-- {
			if nodes[j].Type != parentType {
				continue
			}
			if nodes[j].Key == "" {
				return "", false, fmt.Errorf("%s at %d: %w", parentType, j, ErrParentUnavailable)
			}
			return nodes[j].Key, false, nil
		}
		return "", false, fmt.Errorf("no %s precedes it", parentType)
	}

	if key := firstKey[parentType]; key != "" {
		return key, false, nil
	}
	for j := 0; j < i; j++ {
		if nodes[j].Type == parentType {
			return "", false, fmt.Errorf("%s at %d: %w", parentType, j, ErrParentUnavailable)
		}
	}
	for j := i + 1; j < len(nodes); j++ {
		if nodes[j].Type == parentType {
			return "", true, nil
		}
	}
	return "", false, nil
}

func (l *Linker) create(ctx context.Context, n *Node, parentKey string) error {
	fs := n.Fields.Clone()
	if parentKey != "" {
		switch n.Type {
		case item.TypeStory:
			fs.Set(item.FieldEpicLink, parentKey)
		case item.TypeTask:
			fs.Set(item.FieldStoryLink, parentKey)
		default:
			fs.Set(item.FieldParentKey, parentKey)
		}
	}

	rendered, err := template.Render(n.Type, fs)
	if err != nil {
		return err
	}
	it, err := item.New(n.Type, rendered)
	if err != nil {
		return err
	}
	n.Rendered = rendered

	created, err := l.tracker.Create(ctx, it)
	if created.Key != "" {
		n.Key = created.Key
		n.URL = created.URL
		n.Status = StatusCreated
		if parentKey != "" && err == nil {
			n.ParentKey = parentKey
		}
	}
	return err
}
