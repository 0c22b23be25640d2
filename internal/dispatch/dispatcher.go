// Package dispatch runs an operation on the highest-priority available backend
// and falls through to lower tiers when a backend fails.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/harrison/dupescan/internal/capability"
	"github.com/harrison/dupescan/internal/models"
)

// Backend is one tier able to serve an operation.
type Backend[Req, Resp any] interface {
	capability.Prober
	Invoke(ctx context.Context, req Req) (Resp, error)
}

// Normalizer converts a backend's response into the canonical shape for the
// operation. An error means the backend produced malformed output.
type Normalizer[Req, Resp any] func(req Req, resp Resp) (Resp, error)

// Observer is notified about tier failures. Failures that a lower tier
// recovers from are never surfaced to the caller, only reported here.
type Observer interface {
	LogTierFailure(operation, backend string, err error)
}

// Dispatcher selects and invokes backends for a single operation.
// It is safe for concurrent use.
type Dispatcher[Req, Resp any] struct {
	operation string
	registry  *capability.Registry
	backends  map[string]Backend[Req, Resp]
	normalize Normalizer[Req, Resp]

	mu       sync.Mutex
	observer Observer
	last     string
	served   map[string]int
	priority map[string]int
}

// New creates a dispatcher for operation and registers its backends with the
// registry. A nil normalize leaves responses untouched.
func New[Req, Resp any](operation string, registry *capability.Registry, normalize Normalizer[Req, Resp], backends ...Backend[Req, Resp]) *Dispatcher[Req, Resp] {
	d := &Dispatcher[Req, Resp]{
		operation: operation,
		registry:  registry,
		backends:  make(map[string]Backend[Req, Resp], len(backends)),
		normalize: normalize,
		served:    make(map[string]int),
		priority:  make(map[string]int),
	}

	probers := make([]capability.Prober, 0, len(backends))
	for _, b := range backends {
		d.backends[b.Name()] = b
		probers = append(probers, b)
	}
	registry.Register(operation, probers...)
	return d
}

// Operation returns the operation name this dispatcher serves.
func (d *Dispatcher[Req, Resp]) Operation() string {
	return d.operation
}

// SetObserver installs an observer for tier failures. Nil disables reporting.
func (d *Dispatcher[Req, Resp]) SetObserver(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observer = o
}

// Backends returns the probed descriptors for this operation.
func (d *Dispatcher[Req, Resp]) Backends(ctx context.Context) []models.BackendDescriptor {
	return d.registry.Probe(ctx, d.operation)
}

// Ready returns nil when at least one tier probed available, and an
// *AllTiersFailedError listing every skipped tier otherwise.
func (d *Dispatcher[Req, Resp]) Ready(ctx context.Context) error {
	descriptors := d.registry.Probe(ctx, d.operation)
	tiers := make([]TierError, 0, len(descriptors))
	for _, desc := range descriptors {
		if _, ok := d.backends[desc.Name]; !ok {
			continue
		}
		if desc.Available {
			return nil
		}
		tiers = append(tiers, TierError{
			Backend: desc.Name,
			Kind:    desc.Kind,
			Skipped: true,
			Err:     fmt.Errorf("%w: %s", errUnavailable, desc.ProbeError),
		})
	}
	return &AllTiersFailedError{Operation: d.operation, Tiers: tiers}
}

// Execute serves req from the first available tier that succeeds.
// Item-level errors wrapped with Permanent are returned directly and do not
// count as served. Cancellation stops the cascade with an error wrapping
// ctx.Err(). When every tier fails the error is an *AllTiersFailedError.
func (d *Dispatcher[Req, Resp]) Execute(ctx context.Context, req Req) (Resp, error) {
	var zero Resp
	descriptors := d.registry.Probe(ctx, d.operation)
	tiers := make([]TierError, 0, len(descriptors))

	for _, desc := range descriptors {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%s dispatch cancelled: %w", d.operation, err)
		}

		backend, ok := d.backends[desc.Name]
		if !ok {
			continue
		}

		if !desc.Available {
			tiers = append(tiers, TierError{
				Backend: desc.Name,
				Kind:    desc.Kind,
				Skipped: true,
				Err:     fmt.Errorf("%w: %s", errUnavailable, desc.ProbeError),
			})
			continue
		}

		resp, err := invoke(ctx, backend, req)
		if err != nil {
			var perm *PermanentError
			if errors.As(err, &perm) {
				return zero, perm.Err
			}
			// A tier interrupted by cancellation has not failed.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, fmt.Errorf("%s dispatch cancelled: %w", d.operation, ctxErr)
			}
			tiers = append(tiers, TierError{Backend: desc.Name, Kind: desc.Kind, Err: err})
			d.notify(desc.Name, err)
			continue
		}

		if d.normalize != nil {
			resp, err = d.normalize(req, resp)
			if err != nil {
				err = fmt.Errorf("malformed output: %w", err)
				tiers = append(tiers, TierError{Backend: desc.Name, Kind: desc.Kind, Err: err})
				d.notify(desc.Name, err)
				continue
			}
		}

		d.record(desc)
		return resp, nil
	}

	return zero, &AllTiersFailedError{Operation: d.operation, Tiers: tiers}
}

// invoke calls the backend and converts a panic into a tier error.
func invoke[Req, Resp any](ctx context.Context, b Backend[Req, Resp], req Req) (resp Resp, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("backend panicked: %v", rec)
		}
	}()
	return b.Invoke(ctx, req)
}

func (d *Dispatcher[Req, Resp]) record(desc models.BackendDescriptor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = desc.Name
	d.served[desc.Name]++
	d.priority[desc.Name] = desc.Priority
}

func (d *Dispatcher[Req, Resp]) notify(backend string, err error) {
	d.mu.Lock()
	o := d.observer
	d.mu.Unlock()
	if o != nil {
		o.LogTierFailure(d.operation, backend, err)
	}
}

// LastBackend returns the backend that served the most recent call, or ""
// before the first successful call.
func (d *Dispatcher[Req, Resp]) LastBackend() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Served returns how many calls each backend has served.
func (d *Dispatcher[Req, Resp]) Served() map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]int, len(d.served))
	for k, v := range d.served {
		out[k] = v
	}
	return out
}

// Primary returns the backend that served the most calls. Ties go to the
// higher priority tier, then to the lexically smaller name.
func (d *Dispatcher[Req, Resp]) Primary() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]string, 0, len(d.served))
	for name := range d.served {
		names = append(names, name)
	}
	if len(names) == 0 {
		return ""
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := names[i], names[j]
		if d.served[a] != d.served[b] {
			return d.served[a] > d.served[b]
		}
		if d.priority[a] != d.priority[b] {
			return d.priority[a] > d.priority[b]
		}
		return a < b
	})
	return names[0]
}

// ResetStats clears the served counters and the last backend.
func (d *Dispatcher[Req, Resp]) ResetStats() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = ""
	d.served = make(map[string]int)
	d.priority = make(map[string]int)
}
