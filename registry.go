package singreg

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Factory lazily produces the instance for a name. A factory is invoked at
// most once per successful creation. Returning an error aborts the creation;
// the registry never retries on its own, so the next GetOrCreate for the name
// starts fresh. A nil instance is never cached: returning (nil, nil) counts
// as a fault.
type Factory func() (any, error)

// Disposable is the release capability bound to a name. It is invoked during
// teardown and may be a different object than the registered instance, for
// example an adapter around an instance that has no natural close method.
type Disposable interface {
	Destroy() error
}

// DisposableFunc adapts a plain function to the Disposable interface.
type DisposableFunc func() error

func (f DisposableFunc) Destroy() error {
	return f()
}

// Option is a functional option for configuring a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for creation and teardown events. Release
// faults during teardown are only ever reported through this logger. The
// default is a no-op logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithCanonicalizer installs the alias resolution function used to
// canonicalize names before they enter the dependency graph. Alias bookkeeping
// itself lives outside this registry; the default is the identity function.
func WithCanonicalizer(canonicalize func(name string) string) Option {
	return func(r *Registry) {
		r.canonicalize = canonicalize
	}
}

// WithTimingContext provides the timing context that factory invocations are
// reported under when EnableTiming is set to TimingCreations. Pass a context
// created with timing.Root.
func WithTimingContext(ctx context.Context) Option {
	return func(r *Registry) {
		r.timingCtx = ctx
	}
}

// Registry is a registry of shared singleton instances, obtained by name. An
// instance can be registered fully built, or created lazily by a Factory with
// at-most-one-concurrent-creator semantics. Disposable handles and dependency
// relationships between names can be registered to enforce an appropriate
// teardown order.
//
// The instance cache has three tiers. Fully created instances live in
// `singletons` and are read lock-free. While a name is in creation, a staged
// factory (`factories`) can be promoted into a partially-constructed early
// instance (`early`); this is how circular construction dependencies get
// resolved. A name never has an early instance and a pending factory at the
// same time.
//
// All creation coordination runs under a single re-entrant mutex so that a
// factory may call back into the registry for other names while its own
// creation is in flight. The dependency and containment indexes have their own
// finer-grained locks so graph updates don't serialize behind a long-running
// factory.
type Registry struct {
	logger       zerolog.Logger
	canonicalize func(string) string
	timingCtx    context.Context

	// mu is the creation mutex. It guards the early and factory tiers, the
	// registration-order index, and the suppressed-fault accumulator.
	mu reentrantMutex

	// singletons is the fully-created tier: name -> instance.
	singletons sync.Map
	// early is the early tier: name -> partially-constructed instance.
	early sync.Map
	// factories is the pending tier: name -> staged factory. Guarded by mu.
	factories map[string]Factory

	// order holds names in registration order; present is its membership set.
	// Guarded by mu.
	order   []string
	present map[string]struct{}

	// inCreation tracks names currently being created; exclusions holds names
	// exempted from the re-entrancy check.
	inCreation sync.Map
	exclusions sync.Map

	// suppressed accumulates faults from nested creations for the duration of
	// the outermost creation in a call chain. Guarded by mu.
	suppressed       []error
	suppressedActive bool

	inDestruction atomic.Bool

	// disposables maps names to their release handles; disposableOrder keeps
	// registration order for reverse teardown.
	disposableMu    sync.Mutex
	disposables     map[string]Disposable
	disposableOrder []string

	graph dependencyGraph

	// contained maps a container name to the set of names nested inside it.
	containedMu sync.Mutex
	contained   map[string]map[string]struct{}
}

// New creates an empty Registry ready for use.
func New(opts ...Option) *Registry {
	r := &Registry{
		logger:       zerolog.Nop(),
		canonicalize: func(name string) string { return name },
		factories:    make(map[string]Factory),
		present:      make(map[string]struct{}),
		disposables:  make(map[string]Disposable),
		contained:    make(map[string]map[string]struct{}),
		graph: dependencyGraph{
			dependents:   make(map[string]map[string]struct{}),
			dependencies: make(map[string]map[string]struct{}),
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Contains reports whether a fully created instance is bound to the name.
// Early instances and pending factories don't count.
func (r *Registry) Contains(name string) bool {
	_, ok := r.singletons.Load(name)
	return ok
}

// Count returns the number of registered names.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Names returns a snapshot of the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// CreationMutex exposes the creation mutex to collaborators that need to
// extend the creation critical section atomically, such as a surrounding
// container doing an extended creation phase. Collaborators should lock this
// mutex rather than involve one of their own, to avoid lock-ordering deadlocks
// in lazy-initialization situations. The mutex is re-entrant for the holding
// goroutine.
func (r *Registry) CreationMutex() sync.Locker {
	return &r.mu
}
