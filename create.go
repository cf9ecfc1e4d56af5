package singreg

import (
	"errors"

	"github.com/gburgyan/go-timing"
)

// suppressedFaultLimit is the maximum number of suppressed faults retained
// for attachment to an eventual CreationError.
const suppressedFaultLimit = 100

// GetOrCreate returns the instance registered under the given name, creating
// and registering it with the factory if none is registered yet.
//
// The whole operation runs under the creation mutex. The mutex is re-entrant,
// so the factory may call back into the registry — GetOrCreate for other
// names, Lookup, RegisterFactory — while its own creation is in flight. A
// recursive GetOrCreate for the *same* name fails with ReentrantCreationError
// unless the name was put on the exclusion list with SetCurrentlyInCreation;
// that fault means a circular reference the early-exposure mechanism was not
// set up to resolve.
//
// While the registry is destroying its singletons, GetOrCreate fails with
// CreationDisallowedError.
//
// A factory fault is wrapped in a CreationError together with any faults
// suppressed during nested creations of the same outer call, and the next
// GetOrCreate for the name starts over; the registry never retries a factory
// itself. If the instance surfaced through a concurrent side channel despite
// the factory fault, the cached instance is returned and the fault dropped.
func (r *Registry) GetOrCreate(name string, factory Factory) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if instance, ok := r.singletons.Load(name); ok {
		return instance, nil
	}
	if r.inDestruction.Load() {
		return nil, &CreationDisallowedError{Name: name}
	}
	if err := r.beforeCreation(name); err != nil {
		return nil, err
	}
	defer r.afterCreation(name)

	r.logger.Debug().Str("name", name).Msg("creating shared instance")

	// The suppressed-fault accumulator belongs to the outermost creation in
	// this call chain; nested creations feed the same accumulator.
	outermost := !r.suppressedActive
	if outermost {
		r.suppressedActive = true
		r.suppressed = nil
		defer func() {
			r.suppressedActive = false
			r.suppressed = nil
		}()
	}

	instance, err := r.invokeFactory(name, factory)
	if err == nil && instance == nil {
		// A nil instance can never be looked up again; treat it as a fault.
		err = errors.New("factory returned a nil instance")
	}
	if err != nil {
		// The instance may have implicitly appeared in the meantime through a
		// side channel such as RegisterInstance from within the factory. If
		// so, proceed with it — the cache state, not the fault kind, decides.
		if appeared, ok := r.singletons.Load(name); ok {
			r.logger.Debug().Err(err).Str("name", name).Msg("instance appeared during failed creation, using it")
			return appeared, nil
		}
		ce, ok := err.(*CreationError)
		if !ok {
			ce = &CreationError{Name: name, Cause: err}
		}
		if outermost && len(r.suppressed) > 0 {
			ce.Related = append(ce.Related, r.suppressed...)
		}
		return nil, ce
	}

	r.addSingleton(name, instance)
	return instance, nil
}

// invokeFactory calls the factory exactly once, reporting the run to the
// timing context when timing is enabled.
func (r *Registry) invokeFactory(name string, factory Factory) (any, error) {
	if EnableTiming >= TimingCreations && r.timingCtx != nil {
		_, complete := timing.Start(r.timingCtx, "create:"+name)
		defer complete()
	}
	return factory()
}

// Suppress records a fault that was swallowed while resolving a dependency
// during an outer creation, for example a temporary circular-reference
// resolution problem. Up to 100 faults are retained, oldest first, and
// attached as related causes to the CreationError of the outer creation if it
// ultimately fails. Outside a running creation this is a no-op.
func (r *Registry) Suppress(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.suppressedActive && len(r.suppressed) < suppressedFaultLimit {
		r.suppressed = append(r.suppressed, err)
	}
}

// beforeCreation marks the name as in creation. A name that is already marked
// and not on the exclusion list fails the re-entrancy check.
func (r *Registry) beforeCreation(name string) error {
	if _, excluded := r.exclusions.Load(name); excluded {
		return nil
	}
	if _, loaded := r.inCreation.LoadOrStore(name, struct{}{}); loaded {
		return &ReentrantCreationError{Name: name}
	}
	return nil
}

// afterCreation clears the in-creation mark. It runs regardless of how the
// creation ended.
func (r *Registry) afterCreation(name string) {
	if _, excluded := r.exclusions.Load(name); excluded {
		return
	}
	r.inCreation.Delete(name)
}

// IsCurrentlyInCreation reports whether the named singleton is currently being
// created, unless the name has been excluded from in-creation checks.
func (r *Registry) IsCurrentlyInCreation(name string) bool {
	if _, excluded := r.exclusions.Load(name); excluded {
		return false
	}
	_, ok := r.inCreation.Load(name)
	return ok
}

// SetCurrentlyInCreation controls the in-creation check exclusion list.
// Passing inCreation == false excludes the name from re-entrancy checking,
// which permits a factory to recursively create its own name; passing true
// restores the normal check.
func (r *Registry) SetCurrentlyInCreation(name string, inCreation bool) {
	if inCreation {
		r.exclusions.Delete(name)
	} else {
		r.exclusions.Store(name, struct{}{})
	}
}
