// Package corrstore persists correction files, one JSON file per
// (law, version), under a single root directory.
//
// Layout: <dir>/<law_id>/<law_id>-<version>.json
//
// Writes go through a temp-file-then-rename sequence so a crash mid-write
// never corrupts the previous valid file. All mutations of one key are
// serialized behind a per-key mutex; two concurrent read-modify-write
// cycles on the same file would otherwise lose updates.
package corrstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/quadratecode/zhlaw-sub000/correction"
	"github.com/quadratecode/zhlaw-sub000/pathguard"
	"github.com/quadratecode/zhlaw-sub000/tableextract"
)

// ErrNotFound is returned when no correction file exists for a key.
var ErrNotFound = errors.New("corrstore: correction file not found")

// ErrCorrupt is returned when an existing correction file cannot be
// parsed. Operations on other keys are unaffected; regenerate is the
// recovery path for the broken one.
var ErrCorrupt = errors.New("corrstore: correction file corrupt")

// ErrPersist is returned for disk failures during the atomic write. The
// file on disk is left in its last good state.
var ErrPersist = errors.New("corrstore: persist failed")

// Key identifies one correction file.
type Key struct {
	LawID   string
	Version string
}

func (k Key) String() string { return k.LawID + "/" + k.Version }

// Options configures a Store.
type Options struct {
	// Reviewer is stamped on every save. Default: "unknown".
	Reviewer string
	// Logger overrides the default slog logger.
	Logger *slog.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

func (o *Options) defaults() {
	if o.Reviewer == "" {
		o.Reviewer = "unknown"
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Store is a file-backed correction store.
type Store struct {
	dir  string
	opts Options

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Store rooted at dir.
func New(dir string, opts Options) *Store {
	opts.defaults()
	return &Store{dir: dir, opts: opts, locks: make(map[string]*sync.Mutex)}
}

// lock returns the mutex serializing mutations of one key.
func (s *Store) lock(k Key) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[k.String()]
	if !ok {
		m = &sync.Mutex{}
		s.locks[k.String()] = m
	}
	return m
}

func (s *Store) path(k Key) (string, error) {
	return pathguard.SafeJoin(s.dir, k.LawID, k.LawID+"-"+k.Version+".json")
}

// Load reads and migrates the correction file for a key. Legacy status
// values are rewritten in memory; the file on disk is untouched until the
// next save.
func (s *Store) Load(k Key) (*correction.File, error) {
	path, err := s.path(k)
	if err != nil {
		return nil, err
	}
	return s.read(k, path)
}

func (s *Store) read(k Key, path string) (*correction.File, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, k)
	}
	if err != nil {
		return nil, fmt.Errorf("corrstore: read %s: %w", k, err)
	}
	var f correction.File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, k, err)
	}
	if correction.Migrate(&f) {
		s.opts.Logger.Info("migrated legacy statuses", "key", k.String())
	}
	return &f, nil
}

// Save validates a correction file and writes it atomically, stamping
// reviewed_at and reviewer. A validation failure rejects the save
// wholesale: the prior on-disk state remains authoritative.
func (s *Store) Save(k Key, f *correction.File) error {
	m := s.lock(k)
	m.Lock()
	defer m.Unlock()
	return s.saveLocked(k, f, true)
}

func (s *Store) saveLocked(k Key, f *correction.File, stamp bool) error {
	if err := correction.Validate(f); err != nil {
		return err
	}
	if stamp {
		f.ReviewedAt = s.opts.Now().UTC().Format(time.RFC3339)
		f.Reviewer = s.opts.Reviewer
	}
	f.Status = correction.FileInProgress
	if correction.Complete(f) {
		f.Status = correction.FileCompleted
	}
	return s.write(k, f)
}

func (s *Store) write(k Key, f *correction.File) error {
	path, err := s.path(k)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("corrstore: marshal %s: %w", k, err)
	}
	data = append(data, '\n')
	if err := pathguard.WriteAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPersist, k, err)
	}
	return nil
}

// CreateOrMerge folds freshly extracted drafts into the correction file
// for a key, creating it if absent. Existing records keep their review
// decisions untouched (human decisions win over fresh extraction); new
// hashes enter as undefined; records no longer found by extraction are
// retained unchanged. Re-running on unchanged input is a byte-identical
// no-op.
func (s *Store) CreateOrMerge(k Key, drafts []tableextract.Draft) (*correction.File, error) {
	m := s.lock(k)
	m.Lock()
	defer m.Unlock()

	path, err := s.path(k)
	if err != nil {
		return nil, err
	}
	return s.mergeLocked(k, path, drafts)
}

func (s *Store) mergeLocked(k Key, path string, drafts []tableextract.Draft) (*correction.File, error) {
	var before []byte
	f, err := s.read(k, path)
	switch {
	case errors.Is(err, ErrNotFound):
		f = correction.NewFile(k.LawID, k.Version)
	case err != nil:
		return nil, err
	default:
		before, _ = os.ReadFile(path)
	}

	for _, d := range drafts {
		rec, ok := f.Tables[d.Hash]
		if !ok {
			rec = &correction.Record{
				Hash:              d.Hash,
				Status:            correction.StatusUndefined,
				OriginalStructure: d.Cells,
			}
			f.Tables[d.Hash] = rec
		}
		rec.AddVersion(k.Version)
		if len(d.Pages) > 0 {
			if rec.Pages == nil {
				rec.Pages = make(map[string][]int)
			}
			rec.Pages[k.Version] = d.Pages
		}
	}

	f.Status = correction.FileInProgress
	if correction.Complete(f) {
		f.Status = correction.FileCompleted
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("corrstore: marshal %s: %w", k, err)
	}
	data = append(data, '\n')
	if bytes.Equal(before, data) {
		return f, nil // no-op merge, keep file bytes identical
	}
	if err := pathguard.WriteAtomic(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPersist, k, err)
	}
	return f, nil
}

// Reset returns every record of a key to undefined, preserving original
// structures and version metadata; hash entries are never deleted.
func (s *Store) Reset(k Key) error {
	m := s.lock(k)
	m.Lock()
	defer m.Unlock()

	path, err := s.path(k)
	if err != nil {
		return err
	}
	f, err := s.read(k, path)
	if err != nil {
		return err
	}
	for _, r := range f.Tables {
		r.Status = correction.StatusUndefined
		r.CorrectedStructure = nil
		r.MergedInto = ""
		r.Reason = ""
	}
	s.opts.Logger.Info("reset correction file", "key", k.String(), "tables", len(f.Tables))
	return s.saveLocked(k, f, true)
}

// ResetLaw resets every stored version of one law. Returns the number of
// files reset before the first failure.
func (s *Store) ResetLaw(lawID string) (int, error) {
	keys, err := s.ListLaw(lawID)
	if err != nil {
		return 0, err
	}
	return s.resetKeys(keys)
}

// ResetAll resets every correction file in the store.
func (s *Store) ResetAll() (int, error) {
	keys, err := s.List()
	if err != nil {
		return 0, err
	}
	return s.resetKeys(keys)
}

// resetKeys resets each key in turn, taking its per-key lock via Reset.
func (s *Store) resetKeys(keys []Key) (int, error) {
	for i, k := range keys {
		if err := s.Reset(k); err != nil {
			return i, err
		}
	}
	return len(keys), nil
}

// Regenerate discards the stored file and rebuilds it from drafts alone,
// holding the key lock across the delete and the rebuild so no concurrent
// writer can interleave. Unlike Reset this is destructive: prior
// decisions, retained hashes and unknown fields are all gone.
func (s *Store) Regenerate(k Key, drafts []tableextract.Draft) (*correction.File, error) {
	m := s.lock(k)
	m.Lock()
	defer m.Unlock()

	path, err := s.path(k)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s: %v", ErrPersist, k, err)
	}
	s.opts.Logger.Warn("regenerating correction file", "key", k.String())
	return s.mergeLocked(k, path, drafts)
}

// List enumerates all correction file keys under the store root, sorted.
func (s *Store) List() ([]Key, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("corrstore: list: %w", err)
	}

	var keys []Key
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		lawID := e.Name()
		files, err := os.ReadDir(filepath.Join(s.dir, lawID))
		if err != nil {
			return nil, fmt.Errorf("corrstore: list %s: %w", lawID, err)
		}
		for _, fe := range files {
			name := fe.Name()
			if fe.IsDir() || !strings.HasSuffix(name, ".json") {
				continue
			}
			stem := strings.TrimSuffix(name, ".json")
			version := strings.TrimPrefix(stem, lawID+"-")
			if version == stem || version == "" {
				continue // not a correction file for this law
			}
			keys = append(keys, Key{LawID: lawID, Version: version})
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].LawID != keys[j].LawID {
			return keys[i].LawID < keys[j].LawID
		}
		return keys[i].Version < keys[j].Version
	})
	return keys, nil
}

// ListLaw enumerates the stored versions of one law, sorted.
func (s *Store) ListLaw(lawID string) ([]Key, error) {
	if err := pathguard.ValidateID(lawID); err != nil {
		return nil, err
	}
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	var keys []Key
	for _, k := range all {
		if k.LawID == lawID {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
