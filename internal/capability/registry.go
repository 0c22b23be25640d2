// Package capability probes which backend tiers are available for each
// accelerated operation and keeps the answer for the life of the process.
package capability

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/harrison/dupescan/internal/models"
)

// Prober is implemented by every backend that can serve an operation.
type Prober interface {
	Name() string
	Kind() models.BackendKind
	Priority() int
	// Probe returns nil when the backend can be used on this host.
	Probe(ctx context.Context) error
}

// disabledReason is the probe error reported for backends switched off by configuration.
const disabledReason = "disabled by configuration"

// Registry memoizes probe results per operation.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	probers   map[string][]Prober
	cache     map[string][]models.BackendDescriptor
	disabled  map[string]bool
	overrides map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		probers:   make(map[string][]Prober),
		cache:     make(map[string][]models.BackendDescriptor),
		disabled:  make(map[string]bool),
		overrides: make(map[string]int),
	}
}

// Register declares backends for an operation. Registering a backend name
// that already exists for the operation replaces it.
func (r *Registry) Register(operation string, probers ...Prober) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing := r.probers[operation]
	for _, p := range probers {
		replaced := false
		for i, e := range existing {
			if e.Name() == p.Name() {
				existing[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, p)
		}
	}
	r.probers[operation] = existing
	delete(r.cache, operation)
}

// Operations returns the registered operation names in sorted order.
func (r *Registry) Operations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ops := make([]string, 0, len(r.probers))
	for op := range r.probers {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Disable forces a backend to probe as unavailable for every operation.
func (r *Registry) Disable(backend string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disabled[backend] = true
	r.cache = make(map[string][]models.BackendDescriptor)
}

// SetPriority overrides the priority a backend reports.
func (r *Registry) SetPriority(backend string, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[backend] = priority
	r.cache = make(map[string][]models.BackendDescriptor)
}

// Reset drops every memoized probe result and override. Registered
// backends are kept.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string][]models.BackendDescriptor)
	r.disabled = make(map[string]bool)
	r.overrides = make(map[string]int)
}

// Probe returns the descriptors for an operation, highest priority first.
// The first call per operation runs every prober; later calls return the
// cached result. Probe never fails: a failing prober is recorded as
// unavailable with its error message.
func (r *Registry) Probe(ctx context.Context, operation string) []models.BackendDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.cache[operation]; ok {
		return cloneDescriptors(cached)
	}

	probers := r.probers[operation]
	descriptors := make([]models.BackendDescriptor, 0, len(probers))
	for _, p := range probers {
		desc := models.BackendDescriptor{
			Name:     p.Name(),
			Kind:     p.Kind(),
			Priority: p.Priority(),
		}
		if prio, ok := r.overrides[desc.Name]; ok {
			desc.Priority = prio
		}

		if r.disabled[desc.Name] {
			desc.ProbeError = disabledReason
		} else if err := safeProbe(ctx, p); err != nil {
			desc.ProbeError = err.Error()
		} else {
			desc.Available = true
		}
		descriptors = append(descriptors, desc)
	}

	sortDescriptors(descriptors)
	r.cache[operation] = descriptors
	return cloneDescriptors(descriptors)
}

// safeProbe runs a prober and turns a panic into an error. The result is
// memoized, so the caller's cancellation must not leak into it.
func safeProbe(ctx context.Context, p Prober) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("probe panicked: %v", rec)
		}
	}()
	return p.Probe(context.WithoutCancel(ctx))
}

// sortDescriptors orders by priority descending, then kind, then name.
func sortDescriptors(d []models.BackendDescriptor) {
	sort.SliceStable(d, func(i, j int) bool {
		if d[i].Priority != d[j].Priority {
			return d[i].Priority > d[j].Priority
		}
		if d[i].Kind != d[j].Kind {
			return d[i].Kind < d[j].Kind
		}
		return d[i].Name < d[j].Name
	})
}

func cloneDescriptors(d []models.BackendDescriptor) []models.BackendDescriptor {
	out := make([]models.BackendDescriptor, len(d))
	copy(out, d)
	return out
}

var (
	defaultMu       sync.Mutex
	defaultRegistry *Registry
)

// Default returns the process-wide registry, creating it on first use.
func Default() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultRegistry == nil {
		defaultRegistry = NewRegistry()
	}
	return defaultRegistry
}

// ResetDefault discards the process-wide registry. Tests call this to start
// from a clean probe cache.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultRegistry = nil
}
