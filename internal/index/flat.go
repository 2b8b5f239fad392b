package index

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"github.com/pomoc-ai/pomoc/internal/log"
)

// snapshot is an immutable, fully-built view of the index. Readers obtain
// the current snapshot with one atomic load and never observe a partially
// built index.
type snapshot struct {
	dim     int
	entries []Entry
}

// Flat is the in-memory exhaustive-search index backend.
//
// Safe for concurrent use: searches read an immutable snapshot; Build and
// Load construct a replacement aside and install it with a single atomic
// pointer swap.
type Flat struct {
	snap   atomic.Pointer[snapshot]
	path   string
	logger log.Logger
}

// NewFlat creates an empty flat index. path is the durable location used by
// Persist and Load; it may be empty for purely in-memory use (Persist then
// fails). The index is unavailable until Build or Load succeeds.
func NewFlat(path string, logger log.Logger) *Flat {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Flat{path: path, logger: logger}
}

// Build installs a new snapshot from the given entries. All vectors must
// share one dimension. Entries are re-sequenced in input order, so building
// twice from the same chunk set yields identical search behavior.
func (f *Flat) Build(entries []Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("index: build requires at least one entry")
	}

	dim := len(entries[0].Vector)
	copied := make([]Entry, len(entries))
	for i, e := range entries {
		if len(e.Vector) != dim {
			return fmt.Errorf("index: entry %q has dimension %d, want %d", e.ChunkID, len(e.Vector), dim)
		}
		e.Seq = i
		copied[i] = e
	}

	f.snap.Store(&snapshot{dim: dim, entries: copied})
	f.logger.Debug("index built", "entries", len(copied), "dimension", dim)
	return nil
}

// Len reports the number of indexed entries, 0 when unavailable.
func (f *Flat) Len() int {
	if s := f.snap.Load(); s != nil {
		return len(s.entries)
	}
	return 0
}

// Dimension reports the vector dimension of the current snapshot, 0 when
// unavailable.
func (f *Flat) Dimension() int {
	if s := f.snap.Load(); s != nil {
		return s.dim
	}
	return 0
}

// Search returns up to topK entries ranked by ascending L2 distance to the
// query vector. When category is non-empty, candidates are restricted to
// entries whose category contains it (case-insensitive) before ranking.
// Equal distances preserve insertion order.
//
// Returns ErrUnavailable when no snapshot has been installed.
func (f *Flat) Search(ctx context.Context, vector []float32, topK int, category string) ([]Result, error) {
	s := f.snap.Load()
	if s == nil {
		return nil, ErrUnavailable
	}
	if len(vector) != s.dim {
		return nil, fmt.Errorf("index: query dimension %d, index dimension %d", len(vector), s.dim)
	}
	if topK <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wantCategory := strings.ToLower(category)

	results := make([]Result, 0, len(s.entries))
	for _, e := range s.entries {
		if wantCategory != "" && !strings.Contains(strings.ToLower(e.Category), wantCategory) {
			continue
		}
		results = append(results, Result{Entry: e, Distance: l2Distance(vector, e.Vector)})
	}

	// Stable sort keeps insertion order for equal distances.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// persisted is the on-disk representation. Gob keeps the format internal
// while staying stable across restarts of the same build.
type persisted struct {
	Dim     int
	Entries []Entry
}

// Persist writes the current snapshot to the configured path. The write goes
// to a temporary file first and is installed with an atomic rename, under an
// exclusive file lock, so a crash mid-write never corrupts a previously
// persisted index.
func (f *Flat) Persist() error {
	s := f.snap.Load()
	if s == nil {
		return ErrUnavailable
	}
	if f.path == "" {
		return fmt.Errorf("index: no persist path configured")
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o750); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	lock := flock.New(f.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking index file: %w", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			f.logger.Warn("unlocking index file", "error", err)
		}
	}()

	tmp := f.path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("creating temporary index file: %w", err)
	}

	if err := gob.NewEncoder(file).Encode(persisted{Dim: s.dim, Entries: s.entries}); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encoding index: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("closing temporary index file: %w", err)
	}

	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("installing index file: %w", err)
	}

	f.logger.Info("index persisted", "path", f.path, "entries", len(s.entries))
	return nil
}

// Load reads a previously persisted snapshot from the configured path and
// installs it. A missing file surfaces as ErrUnavailable so callers can
// treat "not built yet" uniformly.
func (f *Flat) Load() error {
	if f.path == "" {
		return fmt.Errorf("index: no persist path configured")
	}

	lock := flock.New(f.path + ".lock")
	if err := lock.RLock(); err != nil {
		return fmt.Errorf("locking index file: %w", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			f.logger.Warn("unlocking index file", "error", err)
		}
	}()

	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrUnavailable, f.path)
		}
		return fmt.Errorf("opening index file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			f.logger.Warn("closing index file", "error", err)
		}
	}()

	var p persisted
	if err := gob.NewDecoder(file).Decode(&p); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrUnavailable, f.path, err)
	}
	if p.Dim <= 0 || len(p.Entries) == 0 {
		return fmt.Errorf("%w: %s holds no entries", ErrUnavailable, f.path)
	}
	for _, e := range p.Entries {
		if len(e.Vector) != p.Dim {
			return fmt.Errorf("%w: %s entry %q dimension mismatch", ErrUnavailable, f.path, e.ChunkID)
		}
	}

	f.snap.Store(&snapshot{dim: p.Dim, entries: p.Entries})
	f.logger.Info("index loaded", "path", f.path, "entries", len(p.Entries), "dimension", p.Dim)
	return nil
}
