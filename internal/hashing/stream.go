package hashing

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/harrison/dupescan/internal/dispatch"
	"github.com/harrison/dupescan/internal/models"
)

// defaultBufferSize is the read buffer used by the stream backend.
const defaultBufferSize = 1 << 20

// StreamBackend is the portable fallback: a buffered copy into crypto/*.
type StreamBackend struct {
	bufferSize int
}

// NewStreamBackend creates the fallback hashing backend. A non-positive
// bufferSize selects 1 MiB.
func NewStreamBackend(bufferSize int) *StreamBackend {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &StreamBackend{bufferSize: bufferSize}
}

func (b *StreamBackend) Name() string             { return "stream" }
func (b *StreamBackend) Kind() models.BackendKind { return models.KindFallback }
func (b *StreamBackend) Priority() int            { return 100 }

// Probe always succeeds.
func (b *StreamBackend) Probe(ctx context.Context) error {
	return nil
}

// Invoke streams the file through the digest. Read errors are item-level.
func (b *StreamBackend) Invoke(ctx context.Context, req Request) (Digest, error) {
	f, err := openChecked(req.Path)
	if err != nil {
		return Digest{}, err
	}
	defer f.Close()

	h := req.Algorithm.New()
	buf := make([]byte, b.bufferSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return Digest{}, dispatch.Permanent(fmt.Errorf("failed to hash file %s: %w", req.Path, err))
	}
	return Digest{Hex: hex.EncodeToString(h.Sum(nil))}, nil
}
