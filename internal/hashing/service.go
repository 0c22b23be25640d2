package hashing

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/harrison/dupescan/internal/capability"
	"github.com/harrison/dupescan/internal/dispatch"
	"github.com/harrison/dupescan/internal/models"
)

// Request asks a backend to digest one file.
type Request struct {
	Path      string
	Algorithm Algorithm
}

// Digest is the canonical hash response: a lowercase hex string.
type Digest struct {
	Hex string
}

// Service hashes files through the hash dispatcher.
type Service struct {
	dispatcher *dispatch.Dispatcher[Request, Digest]
}

// DefaultBackends returns the standard hashing tiers.
func DefaultBackends() []dispatch.Backend[Request, Digest] {
	return []dispatch.Backend[Request, Digest]{
		NewMmapBackend(),
		NewCoreutilsBackend(""),
		NewStreamBackend(0),
	}
}

// NewService creates a Service whose backends are registered in registry.
// With no backends, DefaultBackends is used.
func NewService(registry *capability.Registry, backends ...dispatch.Backend[Request, Digest]) *Service {
	if len(backends) == 0 {
		backends = DefaultBackends()
	}
	return &Service{
		dispatcher: dispatch.New(models.OperationHash, registry, Normalize, backends...),
	}
}

// Dispatcher exposes the underlying dispatcher for observability.
func (s *Service) Dispatcher() *dispatch.Dispatcher[Request, Digest] {
	return s.dispatcher
}

// Ready reports whether any hashing tier is available.
func (s *Service) Ready(ctx context.Context) error {
	return s.dispatcher.Ready(ctx)
}

// Digest hashes the file at path and returns its lowercase hex digest.
func (s *Service) Digest(ctx context.Context, path string, algorithm Algorithm) (string, error) {
	if !algorithm.Valid() {
		return "", fmt.Errorf("unsupported hash algorithm: %s", algorithm)
	}
	d, err := s.dispatcher.Execute(ctx, Request{Path: path, Algorithm: algorithm})
	if err != nil {
		return "", err
	}
	return d.Hex, nil
}

// Normalize lowercases the digest and checks it is well-formed hex of the
// algorithm's length.
func Normalize(req Request, d Digest) (Digest, error) {
	h := strings.ToLower(strings.TrimSpace(d.Hex))
	if len(h) != req.Algorithm.HexLen() {
		return Digest{}, fmt.Errorf("%s digest has length %d, want %d", req.Algorithm, len(h), req.Algorithm.HexLen())
	}
	if _, err := hex.DecodeString(h); err != nil {
		return Digest{}, fmt.Errorf("digest %q is not hex: %w", h, err)
	}
	return Digest{Hex: h}, nil
}

// openChecked opens path for reading. Failures are item-level: every tier
// would fail the same way, so they stop the cascade.
func openChecked(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, dispatch.Permanent(fmt.Errorf("failed to open file %s: %w", path, err))
	}
	return f, nil
}
