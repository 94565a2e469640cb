package depgraph_test

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/cachecore/internal/depgraph"
)

func TestRegister_SelfDependencyRejected(t *testing.T) {
	g := depgraph.New()

	err := g.Register("x", []string{"x"})
	require.Error(t, err)
	require.True(t, errors.Is(err, depgraph.ErrCycle))
	require.False(t, g.Has("x"))
}

func TestRegister_TransitiveCycleRejected(t *testing.T) {
	g := depgraph.New()

	require.NoError(t, g.Register("a", nil))
	require.NoError(t, g.Register("b", []string{"a"}))
	require.NoError(t, g.Register("c", []string{"b"}))

	// a depends_on c would close the loop a -> b -> c -> a.
	err := g.Register("a", []string{"c"})
	require.Error(t, err)
	require.True(t, errors.Is(err, depgraph.ErrCycle))

	// The rejected edge must not have been partially applied.
	require.ElementsMatch(t, []string{"b", "c"}, g.Cascade("a"))
}

func TestCascade_TransitiveClosureExcludesRoot(t *testing.T) {
	g := depgraph.New()

	require.NoError(t, g.Register("a", nil))
	require.NoError(t, g.Register("b", []string{"a"}))
	require.NoError(t, g.Register("c", []string{"b"}))
	require.NoError(t, g.Register("d", []string{"b"}))

	got := g.Cascade("a")
	sort.Strings(got)
	require.Equal(t, []string{"b", "c", "d"}, got)
}

func TestCascade_UnknownKeyIsEmpty(t *testing.T) {
	g := depgraph.New()
	require.Empty(t, g.Cascade("missing"))
}

func TestCascade_DiamondVisitsNodeOnce(t *testing.T) {
	g := depgraph.New()

	require.NoError(t, g.Register("a", nil))
	require.NoError(t, g.Register("b", []string{"a"}))
	require.NoError(t, g.Register("c", []string{"a"}))
	require.NoError(t, g.Register("d", []string{"b", "c"}))

	got := g.Cascade("a")
	sort.Strings(got)
	require.Equal(t, []string{"b", "c", "d"}, got)
}

func TestRemoveCascade_DeletesEveryNode(t *testing.T) {
	g := depgraph.New()

	require.NoError(t, g.Register("a", nil))
	require.NoError(t, g.Register("b", []string{"a"}))
	require.NoError(t, g.Register("c", []string{"b"}))

	removed := g.RemoveCascade("a")
	sort.Strings(removed)
	require.Equal(t, []string{"b", "c"}, removed)

	require.False(t, g.Has("a"))
	require.False(t, g.Has("b"))
	require.False(t, g.Has("c"))
}

func TestRemove_DetachesEdgesFromNeighbours(t *testing.T) {
	g := depgraph.New()

	require.NoError(t, g.Register("a", nil))
	require.NoError(t, g.Register("b", []string{"a"}))

	g.Remove("b")
	require.Empty(t, g.Cascade("a"))

	// a no longer has b as a child, so re-registering b under a must
	// succeed cleanly (no stale edge lingering).
	require.NoError(t, g.Register("b", []string{"a"}))
	require.Equal(t, []string{"b"}, g.Cascade("a"))
}

func TestRegister_Idempotent(t *testing.T) {
	g := depgraph.New()

	require.NoError(t, g.Register("a", nil))
	require.NoError(t, g.Register("b", []string{"a"}))
	require.NoError(t, g.Register("b", []string{"a"})) // re-register, same parent

	require.Equal(t, []string{"b"}, g.Cascade("a"))
}
