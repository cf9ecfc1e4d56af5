package singreg

import (
	"fmt"
	"reflect"
)

// RegisterInstance binds an already-built instance to the given name. The
// instance is shared by all callers of the registry from this point on.
//
// If the name is already bound to a different instance, a ConflictError is
// returned and the existing binding stays in place. Re-registering the same
// instance is a no-op. A nil instance is rejected.
func (r *Registry) RegisterInstance(name string, instance any) error {
	if instance == nil {
		return fmt.Errorf("could not register nil instance under name '%s'", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.singletons.Load(name); ok {
		if sameInstance(existing, instance) {
			return nil
		}
		return &ConflictError{Name: name, Existing: existing, Incoming: instance}
	}
	r.addSingleton(name, instance)
	return nil
}

// addSingleton places an instance in the fully-created tier, clearing any
// staged factory or early instance for the name and recording the name in the
// registration-order index. Callers must hold the creation mutex.
func (r *Registry) addSingleton(name string, instance any) {
	r.singletons.Store(name, instance)
	delete(r.factories, name)
	r.early.Delete(name)
	r.registerName(name)
}

// RegisterFactory stages a factory for building the named instance on demand.
// Staging a factory before recursively resolving other names is what
// advertises a name for early exposure: while the name is in creation, a
// Lookup can promote the staged factory into an early, partially-constructed
// instance, which is how circular references get resolved.
//
// The factory is ignored if a fully created instance already exists for the
// name.
func (r *Registry) RegisterFactory(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.singletons.Load(name); ok {
		return
	}
	r.factories[name] = factory
	r.early.Delete(name)
	r.registerName(name)
}

// Lookup returns the instance registered under the given name, if any. It
// checks fully created instances and also allows an early reference to an
// instance that is currently in creation, resolving a circular reference.
func (r *Registry) Lookup(name string) (any, bool) {
	instance := r.lookup(name, true)
	return instance, instance != nil
}

// lookup returns the (raw) instance bound to the name, or nil. The
// fully-created tier is checked with a single lock-free read. Early instances
// are only visible while the name is in creation, and only when allowEarly is
// set; a staged factory is promoted to an early instance at most once, inside
// the creation critical section.
func (r *Registry) lookup(name string, allowEarly bool) any {
	// Quick check for an existing instance without the creation mutex.
	if instance, ok := r.singletons.Load(name); ok {
		return instance
	}
	if !r.IsCurrentlyInCreation(name) {
		return nil
	}
	if instance, ok := r.early.Load(name); ok {
		return instance
	}
	if !allowEarly {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Time has passed since the lock-free reads above, so every tier gets
	// re-checked now that the creation mutex is held.
	if instance, ok := r.singletons.Load(name); ok {
		return instance
	}
	if instance, ok := r.early.Load(name); ok {
		return instance
	}
	factory, ok := r.factories[name]
	if !ok {
		return nil
	}
	instance, err := factory()
	if err != nil || instance == nil {
		// An early reference that cannot be produced is treated the same as
		// no reference at all; the outer creation will surface its own fault.
		r.logger.Debug().Err(err).Str("name", name).Msg("early reference factory failed")
		return nil
	}
	// The early instance replaces the factory; the two tiers never hold the
	// same name at once.
	r.early.Store(name, instance)
	delete(r.factories, name)
	return instance
}

// Remove evicts the name from every cache tier and from the
// registration-order index. It is safe to call for names that were never
// registered, which makes cleanup after a failed creation idempotent.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeSingleton(name)
}

// removeSingleton does the tier and index eviction. Callers must hold the
// creation mutex.
func (r *Registry) removeSingleton(name string) {
	r.singletons.Delete(name)
	delete(r.factories, name)
	r.early.Delete(name)
	r.unregisterName(name)
}

// registerName appends the name to the registration-order index if it isn't
// already there. Callers must hold the creation mutex.
func (r *Registry) registerName(name string) {
	if _, ok := r.present[name]; ok {
		return
	}
	r.present[name] = struct{}{}
	r.order = append(r.order, name)
}

func (r *Registry) unregisterName(name string) {
	if _, ok := r.present[name]; !ok {
		return
	}
	delete(r.present, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// sameInstance reports whether two registered values are the same instance.
// Values of uncomparable dynamic types can never be the "same" binding for
// conflict purposes.
func sameInstance(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta != nil && !ta.Comparable() {
		return false
	}
	return a == b
}
