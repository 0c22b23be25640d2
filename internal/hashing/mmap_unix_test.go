//go:build unix

package hashing

import (
	"bytes"
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/harrison/dupescan/internal/capability"
)

func TestHashMappingOfTruncatedFile(t *testing.T) {
	size := 4 * unix.Getpagesize()
	path := filepath.Join(t.TempDir(), "shrinking.bin")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("m"), size), 0644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_PRIVATE)
	require.NoError(t, err)
	defer unix.Munmap(data)

	require.NoError(t, os.Truncate(path, 0))

	err = hashMapping(sha256.New(), data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file changed while hashing")
}

func TestHashMappingIntactFile(t *testing.T) {
	size := 2 * unix.Getpagesize()
	content := bytes.Repeat([]byte("k"), size)
	path := filepath.Join(t.TempDir(), "steady.bin")
	require.NoError(t, os.WriteFile(path, content, 0644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_PRIVATE)
	require.NoError(t, err)
	defer unix.Munmap(data)

	h := sha256.New()
	require.NoError(t, hashMapping(h, data))
	want := sha256.Sum256(content)
	assert.Equal(t, want[:], h.Sum(nil))
}

func TestFileShrinkingDuringScanFallsBack(t *testing.T) {
	content := bytes.Repeat([]byte("s"), 8<<20)
	path := filepath.Join(t.TempDir(), "churn.bin")
	require.NoError(t, os.WriteFile(path, content, 0644))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			_ = os.Truncate(path, 0)
			_ = os.WriteFile(path, content, 0644)
		}
	}()

	s := NewService(capability.NewRegistry(), NewMmapBackend(), NewStreamBackend(0))
	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		sum, err := s.Digest(context.Background(), path, SHA256)
		require.NoError(t, err)
		assert.Len(t, sum, SHA256.HexLen())
	}
	close(stop)
	wg.Wait()
}
