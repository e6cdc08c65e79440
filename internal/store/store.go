/*
PURPOSE:
  Persists one JSON record per benchmark run so partial runs survive a
  crash and can be re-aggregated later. Decouples result collection
  from reporting.

REQUIREMENTS:
  User-specified:
  - Exactly one physical record per (backend, size, task) key.
  - Last-write-wins: rerunning a key supersedes the old record, it
    never merges with it.
  - Listing must skip malformed records with a warning, never abort.

  Implementation-discovered:
  - Writes must be atomic (temp file + rename in the same directory) so
    an interrupted run either leaves the previous record or the new
    complete one, never a torn file.
  - A per-key mutex map serializes same-key writes if callers ever
    persist concurrently; distinct keys do not contend.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (persist), internal/report via engine
    (list), internal/cli report subcommand.
  - Consumes: internal/model.Result

ERROR HANDLING:
  - Persist returns an error on marshal/write failure.
  - List returns an error only when the directory itself is unreadable;
    individual bad records are logged and skipped.

IMPLEMENTATION RULES:
  - Use encoding/json with indentation; records are meant to be read by
    humans poking at a failed run.
  - Record filenames are derived from Descriptor.Key() only. Never trust
    file contents for identity.

USAGE:
  st, err := store.New(dir)
  st.Persist(result)
  results, err := st.List()

RELATED FILES:
  - internal/model/types.go

MAINTENANCE:
  - Update if the record schema changes (bump recordSuffix if a
    migration is ever needed).
*/

package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kornia/smolvlm-bench/internal/model"
	"github.com/kornia/smolvlm-bench/internal/output"
)

const recordSuffix = ".json"

// Store is a directory of per-key run records.
type Store struct {
	dir string

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
}

// New opens (creating if needed) a result store rooted at dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create result store directory %s: %w", dir, err)
	}
	return &Store{
		dir:      dir,
		keyLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the record file for a key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, key+recordSuffix)
}

func (s *Store) lockKey(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[key] = l
	}
	return l
}

// Persist writes res as the record for its descriptor key, replacing
// any previous record for that key. The write is atomic: the record is
// staged to a temp file in the same directory and renamed into place.
func (s *Store) Persist(res model.Result) error {
	key := res.Descriptor.Key()
	l := s.lockKey(key)
	l.Lock()
	defer l.Unlock()

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", key, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, ".tmp-"+key+"-")
	if err != nil {
		return fmt.Errorf("failed to stage record %s: %w", key, err)
	}
	// Clean up the temp file on any failure path.
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write record %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close record %s: %w", key, err)
	}
	// CreateTemp stages owner-only; records are for humans to read, the
	// same as the summary and logs.
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to chmod record %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), s.Path(key)); err != nil {
		return fmt.Errorf("failed to commit record %s: %w", key, err)
	}
	return nil
}

// List reads back every record in the store, sorted by key for a
// deterministic order. Records that fail to parse are skipped with a
// warning; a reporting pass must never die on one corrupt file.
func (s *Store) List() ([]model.Result, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read result store %s: %w", s.dir, err)
	}

	var results []model.Result
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, recordSuffix) || strings.HasPrefix(name, ".tmp-") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			output.Logger.Warn("Skipping unreadable record", "file", name, "error", err)
			continue
		}

		var res model.Result
		if err := json.Unmarshal(data, &res); err != nil {
			output.Logger.Warn("Skipping malformed record", "file", name, "error", err)
			continue
		}
		results = append(results, res)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Descriptor.Key() < results[j].Descriptor.Key()
	})
	return results, nil
}
