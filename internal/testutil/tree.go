package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/statetree/internal/ir"
	"github.com/roach88/statetree/internal/tree"
)

// Node is a fixture transform. An empty Parent means the root.
func Node(ref, parent ir.Ref, transformer string) ir.Transform {
	if parent == "" {
		parent = ir.RootRef
	}
	return ir.Transform{Ref: ref, Parent: parent, Transformer: transformer}
}

// BuildTree returns a tree holding the default root plus nodes, added in
// order. Parents must precede their children.
func BuildTree(t testing.TB, nodes ...ir.Transform) *tree.Tree {
	t.Helper()
	w := tree.New().AsTransient()
	for _, n := range nodes {
		if n.Parent == "" {
			n.Parent = ir.RootRef
		}
		require.NoError(t, w.Add(n), "fixture node %s", n.Ref)
	}
	out := w.AsImmutable()
	require.NoError(t, out.Validate())
	return out
}

// Outline renders a tree as "ref(child,child)" nested text, children in
// order, for compact structural assertions.
func Outline(r tree.Reader) string {
	return tree.Outline(r)
}
