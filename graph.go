package singreg

import (
	"sync"
)

// dependencyGraph keeps the dependency relation between names indexed in both
// directions: dependents maps a name to the names that depend on it, and
// dependencies maps a name to the names it depends on. The two indexes are
// only ever updated together under the graph's own lock, independent of the
// creation mutex, so graph updates never queue up behind a slow factory.
type dependencyGraph struct {
	mu           sync.Mutex
	dependents   map[string]map[string]struct{}
	dependencies map[string]map[string]struct{}
}

// addEdge records that dependent depends on name. Both directions are updated
// atomically; re-adding an existing edge is a no-op.
func (g *dependencyGraph) addEdge(name, dependent string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	deps := g.dependents[name]
	if deps == nil {
		deps = make(map[string]struct{})
		g.dependents[name] = deps
	}
	if _, ok := deps[dependent]; ok {
		return
	}
	deps[dependent] = struct{}{}

	back := g.dependencies[dependent]
	if back == nil {
		back = make(map[string]struct{})
		g.dependencies[dependent] = back
	}
	back[name] = struct{}{}
}

// isDependent reports whether candidate depends on name, directly or through
// any chain of transitive dependencies. The traversal is iterative with a
// locally-owned visited set, so cyclic graphs terminate instead of recursing
// forever.
func (g *dependencyGraph) isDependent(name, candidate string, canonicalize func(string) string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	visited := make(map[string]struct{})
	stack := []string{name}
	for len(stack) > 0 {
		current := canonicalize(stack[len(stack)-1])
		stack = stack[:len(stack)-1]
		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}
		deps, ok := g.dependents[current]
		if !ok {
			continue
		}
		if _, ok := deps[candidate]; ok {
			return true
		}
		for transitive := range deps {
			stack = append(stack, transitive)
		}
	}
	return false
}

// dependentsOf returns a snapshot of the names directly depending on name.
func (g *dependencyGraph) dependentsOf(name string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return setToSlice(g.dependents[name])
}

// dependenciesOf returns a snapshot of the names that name directly depends on.
func (g *dependencyGraph) dependenciesOf(name string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return setToSlice(g.dependencies[name])
}

func (g *dependencyGraph) hasDependents(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.dependents[name]) > 0
}

// detachDependents atomically removes and returns the set of names depending
// on name. The returned snapshot is disconnected from the graph, so the caller
// can destroy the dependents without re-observing edges it already consumed.
func (g *dependencyGraph) detachDependents(name string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	deps := g.dependents[name]
	delete(g.dependents, name)
	return setToSlice(deps)
}

// scrub removes name from every other entry's dependency set, dropping
// entries that become empty, and deletes name's own dependency record.
func (g *dependencyGraph) scrub(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for other, deps := range g.dependents {
		delete(deps, name)
		if len(deps) == 0 {
			delete(g.dependents, other)
		}
	}
	delete(g.dependencies, name)
}

func (g *dependencyGraph) clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dependents = make(map[string]map[string]struct{})
	g.dependencies = make(map[string]map[string]struct{})
}

func setToSlice(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	return out
}

// RegisterDependency records that dependentName depends on name, so that
// dependentName is destroyed before name is destroyed. The name is
// canonicalized first; adding an edge twice has no effect.
func (r *Registry) RegisterDependency(name, dependentName string) {
	r.graph.addEdge(r.canonicalize(name), dependentName)
}

// RegisterContainment records that containedName is logically nested inside
// containerName, e.g. an inner object and its containing outer object. The
// container is also registered as dependent on the contained name in terms of
// destruction order: the container goes first, the content afterwards.
func (r *Registry) RegisterContainment(containerName, containedName string) {
	r.containedMu.Lock()
	set := r.contained[containerName]
	if set == nil {
		set = make(map[string]struct{})
		r.contained[containerName] = set
	}
	if _, ok := set[containedName]; ok {
		r.containedMu.Unlock()
		return
	}
	set[containedName] = struct{}{}
	r.containedMu.Unlock()

	r.RegisterDependency(containedName, containerName)
}

// IsDependent reports whether candidateName has been registered as dependent
// on name, directly or through transitive dependencies. Cycles in the graph
// yield a plain boolean answer, never a fault.
func (r *Registry) IsDependent(name, candidateName string) bool {
	return r.graph.isDependent(r.canonicalize(name), candidateName, r.canonicalize)
}

// HasDependents reports whether any name has been registered as depending on
// the given name.
func (r *Registry) HasDependents(name string) bool {
	return r.graph.hasDependents(r.canonicalize(name))
}

// Dependents returns the names that depend on the given name, if any. The
// result is a snapshot in no particular order; it is empty when the name has
// no dependents.
func (r *Registry) Dependents(name string) []string {
	return r.graph.dependentsOf(r.canonicalize(name))
}

// Dependencies returns the names that the given name depends on, if any, as
// an order-independent snapshot.
func (r *Registry) Dependencies(name string) []string {
	return r.graph.dependenciesOf(name)
}
