package singreg

// RegisterDisposable binds a release handle to a name, to be invoked when the
// name or the whole registry is destroyed. The handle usually corresponds to a
// registered singleton but may be a different object, such as an adapter for
// an instance with no natural release method. Re-registering a handle for a
// name replaces the handle without changing the name's position in the
// teardown order.
func (r *Registry) RegisterDisposable(name string, d Disposable) {
	r.disposableMu.Lock()
	defer r.disposableMu.Unlock()
	if _, ok := r.disposables[name]; !ok {
		r.disposableOrder = append(r.disposableOrder, name)
	}
	r.disposables[name] = d
}

// DestroyAll destroys every singleton in the registry, dependents before their
// dependencies, in reverse registration order of the disposable handles. While
// it runs, GetOrCreate fails with CreationDisallowedError. Afterwards the
// instance cache, the dependency graph, and the containment index are empty
// and the registry is ready for use again; calling DestroyAll on an empty
// registry destroys nothing.
func (r *Registry) DestroyAll() {
	r.logger.Debug().Msg("destroying singletons")
	r.inDestruction.Store(true)

	r.disposableMu.Lock()
	names := make([]string, len(r.disposableOrder))
	copy(names, r.disposableOrder)
	r.disposableMu.Unlock()

	for i := len(names) - 1; i >= 0; i-- {
		r.DestroyOne(names[i])
	}

	r.containedMu.Lock()
	r.contained = make(map[string]map[string]struct{})
	r.containedMu.Unlock()
	r.graph.clear()

	r.mu.Lock()
	r.singletons.Range(func(key, _ any) bool {
		r.singletons.Delete(key)
		return true
	})
	r.early.Range(func(key, _ any) bool {
		r.early.Delete(key)
		return true
	})
	r.factories = make(map[string]Factory)
	r.order = nil
	r.present = make(map[string]struct{})
	r.mu.Unlock()

	r.inDestruction.Store(false)
}

// DestroyOne destroys the given named singleton: it is evicted from the
// instance cache, its dependents and contained names are destroyed, and its
// release handle — if one was registered — is invoked. Unknown names are
// ignored, so destroying a name twice is harmless.
func (r *Registry) DestroyOne(name string) {
	// Remove a registered singleton of the given name, if any.
	r.Remove(name)

	r.disposableMu.Lock()
	d := r.disposables[name]
	delete(r.disposables, name)
	for i, n := range r.disposableOrder {
		if n == name {
			r.disposableOrder = append(r.disposableOrder[:i], r.disposableOrder[i+1:]...)
			break
		}
	}
	r.disposableMu.Unlock()

	r.destroyDependencyClosure(name, d)
}

// destroyDependencyClosure destroys everything that must not outlive the
// name: dependents strictly before the name's own release, contained names
// after it. A release fault is logged and never propagated — aborting halfway
// through a teardown would leave the graph corrupt. Edges are detached before
// recursing, which is what terminates the walk on cyclic graphs.
func (r *Registry) destroyDependencyClosure(name string, d Disposable) {
	canonical := r.canonicalize(name)

	// Trigger destruction of dependent names first, so a dependent never
	// observes an already-destroyed dependency.
	for _, dependent := range r.graph.detachDependents(canonical) {
		r.DestroyOne(dependent)
	}

	if d != nil {
		if err := d.Destroy(); err != nil {
			r.logger.Warn().Err(err).Str("name", name).Msg("destruction of singleton failed")
		}
	}

	// Trigger destruction of contained names.
	r.containedMu.Lock()
	contained := setToSlice(r.contained[name])
	delete(r.contained, name)
	r.containedMu.Unlock()
	for _, containedName := range contained {
		r.DestroyOne(containedName)
	}

	// Drop the destroyed name from every other name's dependency set and
	// remove its own dependency record.
	r.graph.scrub(canonical)
}
