//go:build unix

package hashing

import (
	"context"
	"encoding/hex"
	"fmt"
	"hash"
	"math"
	"runtime"
	"runtime/debug"

	"golang.org/x/sys/unix"

	"github.com/harrison/dupescan/internal/dispatch"
	"github.com/harrison/dupescan/internal/models"
)

// MmapBackend is the native tier: it maps the file read-only and hashes the
// mapping in one call.
type MmapBackend struct{}

// NewMmapBackend creates the native hashing backend.
func NewMmapBackend() *MmapBackend {
	return &MmapBackend{}
}

func (b *MmapBackend) Name() string             { return "mmap" }
func (b *MmapBackend) Kind() models.BackendKind { return models.KindNative }
func (b *MmapBackend) Priority() int            { return 300 }

// Probe checks that anonymous read-only mappings work on this host.
func (b *MmapBackend) Probe(ctx context.Context) error {
	data, err := unix.Mmap(-1, 0, unix.Getpagesize(), unix.PROT_READ, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return fmt.Errorf("mmap unsupported: %w", err)
	}
	return unix.Munmap(data)
}

// Invoke hashes the file through a private read-only mapping.
func (b *MmapBackend) Invoke(ctx context.Context, req Request) (Digest, error) {
	f, err := openChecked(req.Path)
	if err != nil {
		return Digest{}, err
	}
	defer f.Close()

	var stat unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &stat); err != nil {
		return Digest{}, dispatch.Permanent(fmt.Errorf("failed to stat %s: %w", req.Path, err))
	}
	if stat.Mode&unix.S_IFMT != unix.S_IFREG {
		return Digest{}, dispatch.Permanent(fmt.Errorf("%s is not a regular file", req.Path))
	}

	h := req.Algorithm.New()
	// Zero-length mappings are rejected by the kernel.
	if stat.Size == 0 {
		return Digest{Hex: hex.EncodeToString(h.Sum(nil))}, nil
	}
	if stat.Size > math.MaxInt {
		return Digest{}, fmt.Errorf("%s is too large to map (%d bytes)", req.Path, stat.Size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(stat.Size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return Digest{}, fmt.Errorf("failed to map %s: %w", req.Path, err)
	}
	defer unix.Munmap(data)

	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)
	if err := hashMapping(h, data); err != nil {
		return Digest{}, fmt.Errorf("failed to read mapping of %s: %w", req.Path, err)
	}
	return Digest{Hex: hex.EncodeToString(h.Sum(nil))}, nil
}

// hashMapping feeds a mapping into h. Pages past the end of a file truncated
// after mapping raise SIGBUS on access; that fault is returned as an error so
// the next tier can rehash the file.
func hashMapping(h hash.Hash, data []byte) (err error) {
	old := debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(old)
	defer func() {
		if rec := recover(); rec != nil {
			if re, ok := rec.(runtime.Error); ok {
				err = fmt.Errorf("file changed while hashing: %w", re)
				return
			}
			panic(rec)
		}
	}()
	h.Write(data)
	return nil
}
