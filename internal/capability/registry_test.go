package capability

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/dupescan/internal/models"
)

type fakeProber struct {
	name     string
	kind     models.BackendKind
	priority int
	err      error
	panicMsg string
	calls    atomic.Int32
}

func (f *fakeProber) Name() string             { return f.name }
func (f *fakeProber) Kind() models.BackendKind { return f.kind }
func (f *fakeProber) Priority() int            { return f.priority }

func (f *fakeProber) Probe(ctx context.Context) error {
	f.calls.Add(1)
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.err
}

func TestProbeOrdersByPriority(t *testing.T) {
	r := NewRegistry()
	r.Register("op",
		&fakeProber{name: "fallback", kind: models.KindFallback, priority: 100},
		&fakeProber{name: "native", kind: models.KindNative, priority: 300},
		&fakeProber{name: "external", kind: models.KindExternal, priority: 200},
	)

	got := r.Probe(context.Background(), "op")
	require.Len(t, got, 3)
	assert.Equal(t, "native", got[0].Name)
	assert.Equal(t, "external", got[1].Name)
	assert.Equal(t, "fallback", got[2].Name)
	for _, d := range got {
		assert.True(t, d.Available, d.Name)
		assert.Empty(t, d.ProbeError)
	}
}

func TestProbeTieBreaksByKindThenName(t *testing.T) {
	r := NewRegistry()
	r.Register("op",
		&fakeProber{name: "b", kind: models.KindFallback, priority: 10},
		&fakeProber{name: "z", kind: models.KindNative, priority: 10},
		&fakeProber{name: "a", kind: models.KindFallback, priority: 10},
	)

	got := r.Probe(context.Background(), "op")
	names := []string{got[0].Name, got[1].Name, got[2].Name}
	assert.Equal(t, []string{"z", "a", "b"}, names)
}

func TestProbeFailureIsRecordedNotRaised(t *testing.T) {
	r := NewRegistry()
	r.Register("op",
		&fakeProber{name: "broken", kind: models.KindExternal, priority: 200, err: errors.New("binary not found")},
		&fakeProber{name: "panicky", kind: models.KindNative, priority: 300, panicMsg: "boom"},
		&fakeProber{name: "ok", kind: models.KindFallback, priority: 100},
	)

	got := r.Probe(context.Background(), "op")
	require.Len(t, got, 3)

	assert.Equal(t, "panicky", got[0].Name)
	assert.False(t, got[0].Available)
	assert.Contains(t, got[0].ProbeError, "boom")

	assert.Equal(t, "broken", got[1].Name)
	assert.False(t, got[1].Available)
	assert.Equal(t, "binary not found", got[1].ProbeError)

	assert.True(t, got[2].Available)
}

func TestProbeIsMemoized(t *testing.T) {
	p := &fakeProber{name: "native", kind: models.KindNative, priority: 300}
	r := NewRegistry()
	r.Register("op", p)

	for i := 0; i < 5; i++ {
		r.Probe(context.Background(), "op")
	}
	assert.Equal(t, int32(1), p.calls.Load())

	r.Reset()
	r.Probe(context.Background(), "op")
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestProbeConcurrentFirstCall(t *testing.T) {
	p := &fakeProber{name: "native", kind: models.KindNative, priority: 300}
	r := NewRegistry()
	r.Register("op", p)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := r.Probe(context.Background(), "op")
			assert.Len(t, got, 1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestProbeReturnsCopies(t *testing.T) {
	r := NewRegistry()
	r.Register("op", &fakeProber{name: "native", kind: models.KindNative, priority: 300})

	first := r.Probe(context.Background(), "op")
	first[0].Available = false
	first[0].Name = "mutated"

	second := r.Probe(context.Background(), "op")
	assert.Equal(t, "native", second[0].Name)
	assert.True(t, second[0].Available)
}

func TestDisableAndPriorityOverride(t *testing.T) {
	r := NewRegistry()
	r.Register("op",
		&fakeProber{name: "native", kind: models.KindNative, priority: 300},
		&fakeProber{name: "fallback", kind: models.KindFallback, priority: 100},
	)
	r.Probe(context.Background(), "op")

	r.Disable("native")
	got := r.Probe(context.Background(), "op")
	assert.False(t, got[0].Available)
	assert.Equal(t, disabledReason, got[0].ProbeError)

	r.SetPriority("fallback", 900)
	got = r.Probe(context.Background(), "op")
	assert.Equal(t, "fallback", got[0].Name)
	assert.Equal(t, 900, got[0].Priority)
}

func TestRegisterReplacesByName(t *testing.T) {
	r := NewRegistry()
	r.Register("op", &fakeProber{name: "x", kind: models.KindNative, priority: 1})
	r.Register("op", &fakeProber{name: "x", kind: models.KindNative, priority: 2})

	got := r.Probe(context.Background(), "op")
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Priority)
	assert.Equal(t, []string{"op"}, r.Operations())
}

func TestUnknownOperationProbesEmpty(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.Probe(context.Background(), "missing"))
}

func TestDefaultRegistryReset(t *testing.T) {
	ResetDefault()
	t.Cleanup(ResetDefault)

	a := Default()
	assert.Same(t, a, Default())

	ResetDefault()
	assert.NotSame(t, a, Default())
}
