// Package hashcache implements the Hash Cache component (spec.md
// §4.1): content-addressed SHA-256 hashing of on-disk model artifacts
// with a persistent truncated-display sidecar, grounded on the
// teacher's deterministic-hash pattern in pkg/licensing/fingerprint.go
// (sort, concatenate, crypto/sha256, hex.EncodeToString) and its
// atomic temp-then-rename write idiom from pkg/storage/persistence.go.
package hashcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/graphforge/nodemeta/pkg/capterr"
	"github.com/graphforge/nodemeta/pkg/logging"
	"github.com/graphforge/nodemeta/pkg/metrics"
)

const (
	truncatedLen   = 10
	sidecarSuffix  = ".sha256"
	filePermission = 0o644
)

var hexDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Record is the result of a hash computation, mirroring HashRecord in
// spec.md §3 minus AbsolutePath (the caller already has it).
type Record struct {
	Truncated string
	Full      string
	ComputedAt time.Time
}

// Cache is the Hash Cache. A given path is serialized by a per-path
// mutex so only one goroutine computes a digest for it at a time,
// while distinct paths proceed in parallel (spec.md §5).
type Cache struct {
	mu          sync.Mutex
	pathLocks   map[string]*sync.Mutex
	invalidated bool
	logger      logging.Logger
	metrics     *metrics.Registry
}

// New creates a Hash Cache. A nil logger or metrics registry disables
// the corresponding instrumentation.
func New(logger logging.Logger, reg *metrics.Registry) *Cache {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Cache{
		pathLocks: make(map[string]*sync.Mutex),
		logger:    logger,
		metrics:   reg,
	}
}

// InvalidateAll causes subsequent LoadOrCompute calls to ignore
// existing sidecars and overwrite them (spec.md §4.1, force-rehash).
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = true
}

func (c *Cache) lockFor(path string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.pathLocks[path]
	if !ok {
		l = &sync.Mutex{}
		c.pathLocks[path] = l
	}
	return l
}

// LoadOrCompute returns the truncated and full SHA-256 digest for the
// artifact at path. If a valid sidecar exists and the cache has not
// been invalidated, it is trusted without re-reading the artifact.
// Otherwise the artifact is streamed through SHA-256 and the sidecar
// is (re)written atomically; a failed sidecar write is logged but does
// not fail the call (spec.md §4.1).
func (c *Cache) LoadOrCompute(path string) (Record, error) {
	lock := c.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	c.mu.Lock()
	skipSidecar := c.invalidated
	c.mu.Unlock()

	sidecarPath := path + sidecarSuffix

	if !skipSidecar {
		if full, ok := readSidecar(sidecarPath); ok {
			c.observe(true)
			return Record{Truncated: full[:truncatedLen], Full: full, ComputedAt: time.Now()}, nil
		}
	}

	full, size, err := hashFile(path)
	if err != nil {
		c.observe(false)
		return Record{}, fmt.Errorf("%w: %s: %v", capterr.ErrArtifactIO, path, err)
	}

	c.logger.Debug("computed artifact hash",
		logging.Path(path), logging.HashDigest(full[:truncatedLen]), logging.ArtifactBytes(size))

	if err := writeSidecarAtomic(sidecarPath, full); err != nil {
		c.logger.Warn("failed to write hash sidecar", logging.Path(sidecarPath), logging.Error(err))
	}

	c.observe(false)
	return Record{Truncated: full[:truncatedLen], Full: full, ComputedAt: time.Now()}, nil
}

func (c *Cache) observe(hit bool) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.RecordHashCacheHit()
	} else {
		c.metrics.RecordHashCacheMiss()
	}
}

// readSidecar reads and validates an existing sidecar, returning the
// full 64-hex digest on success.
func readSidecar(sidecarPath string) (string, bool) {
	data, err := os.ReadFile(sidecarPath)
	if err != nil {
		return "", false
	}
	full := strings.ToLower(strings.TrimSpace(string(data)))
	if !hexDigest.MatchString(full) {
		return "", false
	}
	return full, true
}

// hashFile streams the file through SHA-256 and returns the lowercase
// hex digest and the number of bytes read.
func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// writeSidecarAtomic writes the full digest to a temp sibling file
// then renames it into place, matching the teacher's
// write-to-temp-then-rename idiom (pkg/storage/persistence.go).
func writeSidecarAtomic(sidecarPath, full string) error {
	dir := filepath.Dir(sidecarPath)
	tmp, err := os.CreateTemp(dir, ".hashcache-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(full); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, filePermission); err != nil {
		return err
	}
	return os.Rename(tmpPath, sidecarPath)
}
