package pipeline

import (
	"context"
	"errors"

	"github.com/Gabriell-Belmont/sam--product-management/internal/hierarchy"
)

// ErrDeclined is reported when the reviewer rejects a generated hierarchy.
var ErrDeclined = errors.New("operation cancelled by user")

// Reviewer confirms a generated hierarchy before anything is created.
type Reviewer interface {
	Confirm(ctx context.Context, nodes []*hierarchy.Node) (bool, error)
}

// ReviewerFunc adapts a function to Reviewer.
type ReviewerFunc func(ctx context.Context, nodes []*hierarchy.Node) (bool, error)

func (f ReviewerFunc) Confirm(ctx context.Context, nodes []*hierarchy.Node) (bool, error) {
	return f(ctx, nodes)
}

// ApproveAll accepts every hierarchy. Non-interactive surfaces use it.
var ApproveAll Reviewer = ReviewerFunc(func(context.Context, []*hierarchy.Node) (bool, error) {
	return true, nil
})
