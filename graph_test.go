package singreg

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRegisterDependency_TransitiveIsDependent(t *testing.T) {
	r := New()
	// n3 depends on n2, n2 depends on n1.
	r.RegisterDependency("n1", "n2")
	r.RegisterDependency("n2", "n3")

	assert.True(t, r.IsDependent("n1", "n2"))
	assert.True(t, r.IsDependent("n1", "n3"))
	assert.True(t, r.IsDependent("n2", "n3"))
	assert.False(t, r.IsDependent("n3", "n1"))
	assert.False(t, r.IsDependent("n2", "n1"))
	assert.False(t, r.IsDependent("n1", "unknown"))
}

func TestIsDependent_CycleTerminates(t *testing.T) {
	r := New()
	r.RegisterDependency("n1", "n2")
	r.RegisterDependency("n2", "n1")

	assert.True(t, r.IsDependent("n1", "n2"))
	assert.True(t, r.IsDependent("n2", "n1"))
	assert.False(t, r.IsDependent("n1", "n3"))
}

func TestRegisterDependency_Idempotent(t *testing.T) {
	r := New()
	r.RegisterDependency("n1", "n2")
	r.RegisterDependency("n1", "n2")

	assert.Equal(t, []string{"n2"}, r.Dependents("n1"))
	assert.Equal(t, []string{"n1"}, r.Dependencies("n2"))
}

func TestDependents_SnapshotNotLiveView(t *testing.T) {
	r := New()
	r.RegisterDependency("n1", "n2")

	snapshot := r.Dependents("n1")
	r.RegisterDependency("n1", "n3")

	assert.Len(t, snapshot, 1)
	assert.Len(t, r.Dependents("n1"), 2)
}

func TestDependents_EmptyWhenAbsent(t *testing.T) {
	r := New()
	assert.Empty(t, r.Dependents("unknown"))
	assert.Empty(t, r.Dependencies("unknown"))
	assert.False(t, r.HasDependents("unknown"))
}

func TestRegisterContainment_ImpliesDependency(t *testing.T) {
	r := New()
	r.RegisterContainment("outer", "inner")

	// The container is dependent on its content in destruction-order terms.
	assert.True(t, r.IsDependent("inner", "outer"))
	assert.Equal(t, []string{"outer"}, r.Dependents("inner"))
	assert.True(t, r.HasDependents("inner"))

	// Re-registering does not duplicate the edge.
	r.RegisterContainment("outer", "inner")
	assert.Len(t, r.Dependents("inner"), 1)
}

func TestRegisterDependency_Canonicalization(t *testing.T) {
	aliases := map[string]string{"alias": "canonical"}
	r := New(WithCanonicalizer(func(name string) string {
		if canonical, ok := aliases[name]; ok {
			return canonical
		}
		return name
	}))

	r.RegisterDependency("alias", "dependent")

	assert.Equal(t, []string{"dependent"}, r.Dependents("canonical"))
	assert.Equal(t, []string{"dependent"}, r.Dependents("alias"))
	assert.True(t, r.IsDependent("alias", "dependent"))
}

// TestProperty_IsDependentMatchesReachability checks isDependent against a
// straightforward reachability walk over arbitrary edge sets, cycles included.
func TestProperty_IsDependentMatchesReachability(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		nodeCount := rapid.IntRange(2, 8).Draw(rt, "nodeCount")
		edgeCount := rapid.IntRange(0, 20).Draw(rt, "edgeCount")

		nodes := make([]string, nodeCount)
		for i := range nodes {
			nodes[i] = fmt.Sprintf("n%d", i)
		}

		r := New()
		reference := make(map[string]map[string]bool)
		for i := 0; i < edgeCount; i++ {
			from := nodes[rapid.IntRange(0, nodeCount-1).Draw(rt, fmt.Sprintf("from%d", i))]
			to := nodes[rapid.IntRange(0, nodeCount-1).Draw(rt, fmt.Sprintf("to%d", i))]
			r.RegisterDependency(from, to)
			if reference[from] == nil {
				reference[from] = make(map[string]bool)
			}
			reference[from][to] = true
		}

		// reachable reports whether candidate is reachable from name over
		// the dependent edges, computed independently of the graph under
		// test.
		reachable := func(name, candidate string) bool {
			seen := map[string]bool{}
			frontier := []string{name}
			for len(frontier) > 0 {
				current := frontier[len(frontier)-1]
				frontier = frontier[:len(frontier)-1]
				if seen[current] {
					continue
				}
				seen[current] = true
				for next := range reference[current] {
					if next == candidate {
						return true
					}
					frontier = append(frontier, next)
				}
			}
			return false
		}

		for _, from := range nodes {
			for _, to := range nodes {
				require.Equal(rt, reachable(from, to), r.IsDependent(from, to),
					"isDependent(%s, %s)", from, to)
			}
		}
	})
}

func TestGraph_ScrubRemovesNameEverywhere(t *testing.T) {
	r := New()
	r.RegisterDependency("n1", "n2")
	r.RegisterDependency("n1", "n3")
	r.RegisterDependency("n4", "n2")

	r.DestroyOne("n2")

	assert.NotContains(t, r.Dependents("n1"), "n2")
	assert.Empty(t, r.Dependents("n4"))
	assert.Empty(t, r.Dependencies("n2"))
}

func TestIsDependent_LongChain(t *testing.T) {
	r := New()
	var names []string
	for i := 0; i < 50; i++ {
		names = append(names, fmt.Sprintf("link%02d", i))
	}
	for i := 1; i < len(names); i++ {
		r.RegisterDependency(names[i-1], names[i])
	}

	assert.True(t, r.IsDependent(names[0], names[len(names)-1]))
	assert.False(t, r.IsDependent(names[len(names)-1], names[0]))

	deps := r.Dependencies(names[len(names)-1])
	assert.True(t, strings.HasPrefix(deps[0], "link"))
}
