package singreg

import (
	"fmt"
	"sort"
	"strings"
)

// Status is a diagnostic tool that returns a string describing the state of
// the registry: every known name, which cache tier it occupies, whether it is
// currently in creation, and whether a disposable handle is bound to it.
//
// Note that everything returned is true at the time each line is gathered, but
// the registry may move on while the string is being assembled; use it for
// debugging, not for decisions.
func (r *Registry) Status() string {
	lines := map[string]string{}
	var keys []string

	record := func(name, state string) {
		if _, ok := lines[name]; ok {
			return
		}
		lines[name] = state
		keys = append(keys, name)
	}

	r.singletons.Range(func(key, _ any) bool {
		record(key.(string), "created")
		return true
	})
	r.early.Range(func(key, _ any) bool {
		record(key.(string), "early reference")
		return true
	})
	r.mu.Lock()
	for name := range r.factories {
		record(name, "factory staged")
	}
	r.mu.Unlock()

	sort.Strings(keys)

	result := strings.Builder{}
	for _, name := range keys {
		if result.Len() > 0 {
			result.WriteString("\n")
		}
		result.WriteString(fmt.Sprintf("%s - %s", name, lines[name]))
		if r.IsCurrentlyInCreation(name) {
			result.WriteString(" - in creation")
		}
		r.disposableMu.Lock()
		_, disposable := r.disposables[name]
		r.disposableMu.Unlock()
		if disposable {
			result.WriteString(" - disposable")
		}
	}
	return result.String()
}
