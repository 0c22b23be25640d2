//go:build !unix

package hashing

import (
	"context"
	"errors"

	"github.com/harrison/dupescan/internal/models"
)

var errNoMmap = errors.New("memory-mapped hashing requires a unix host")

// MmapBackend is unavailable on this platform.
type MmapBackend struct{}

// NewMmapBackend creates the native hashing backend.
func NewMmapBackend() *MmapBackend {
	return &MmapBackend{}
}

func (b *MmapBackend) Name() string             { return "mmap" }
func (b *MmapBackend) Kind() models.BackendKind { return models.KindNative }
func (b *MmapBackend) Priority() int            { return 300 }

// Probe always fails off unix.
func (b *MmapBackend) Probe(ctx context.Context) error {
	return errNoMmap
}

// Invoke is never reached because Probe fails.
func (b *MmapBackend) Invoke(ctx context.Context, req Request) (Digest, error) {
	return Digest{}, errNoMmap
}
