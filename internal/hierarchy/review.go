package hierarchy

import (
	"fmt"
	"strings"
)

// ReviewHeader and ReviewQuestion frame the confirmation shown before a
// hierarchy is created.
const (
	ReviewHeader   = "=== Revisão da Hierarquia ===\nOs seguintes itens serão criados no Jira:"
	ReviewQuestion = "Deseja criar estes itens no Jira? (s/n)"
)

// Tree renders one line per node, indented two spaces per level.
func Tree(nodes []*Node) string {
	var b strings.Builder
	for _, n := range nodes {
		fmt.Fprintf(&b, "%s[%s] %s\n", strings.Repeat("  ", n.Type.Depth()), n.Type, n.Summary())
	}
	return b.String()
}

// Review renders the header followed by the tree.
func Review(nodes []*Node) string {
	return ReviewHeader + "\n\n" + Tree(nodes)
}
