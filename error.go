package singreg

import (
	"fmt"
)

// ConflictError is returned by RegisterInstance when the name is already bound
// to a different instance. The existing binding is left untouched.
type ConflictError struct {
	Name     string
	Existing any
	Incoming any
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("could not register instance [%v] under name '%s': there is already instance [%v] bound",
		e.Incoming, e.Name, e.Existing)
}

// ReentrantCreationError is returned when GetOrCreate is called for a name
// that is already in creation and not on the in-creation exclusion list. This
// signals an unresolved circular dependency: the factory re-entered the
// registry for its own name before a factory was staged for early exposure.
type ReentrantCreationError struct {
	Name string
}

func (e *ReentrantCreationError) Error() string {
	return fmt.Sprintf("instance '%s' is currently in creation: unresolvable circular reference", e.Name)
}

// CreationDisallowedError is returned when GetOrCreate is called while the
// registry is destroying all of its singletons. Don't request an instance from
// the registry inside a disposable's release callback.
type CreationDisallowedError struct {
	Name string
}

func (e *CreationDisallowedError) Error() string {
	return fmt.Sprintf("creation of instance '%s' not allowed while the singletons of this registry are in destruction", e.Name)
}

// CreationError wraps a fault returned by a factory during GetOrCreate. If any
// faults were suppressed during nested creations inside the same outer call,
// up to 100 of them are attached as related causes.
type CreationError struct {
	Name    string
	Cause   error
	Related []error
}

func (e *CreationError) Error() string {
	if len(e.Related) == 0 {
		return fmt.Sprintf("error creating instance '%s': %v", e.Name, e.Cause)
	}
	return fmt.Sprintf("error creating instance '%s': %v (%d related causes)", e.Name, e.Cause, len(e.Related))
}

func (e *CreationError) Unwrap() error {
	return e.Cause
}
