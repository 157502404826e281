package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/launchfeed/launchfeed/internal/models"
)

const (
	launchesFile  = "launches.json"
	enrichmentDir = "enrichment"
)

// DiskStore keeps an in-memory mirror in front of JSON files on disk: one
// file for the most recent launch list, one file per launch id for
// enrichment. The store exclusively owns its directory; the mirror is always
// at least as fresh as the last disk read or write performed by this process.
// Cross-process consistency is not provided (single active writer per
// device).
type DiskStore struct {
	dir           string
	launchTTL     time.Duration
	enrichmentTTL time.Duration
	logger        *slog.Logger
	now           func() time.Time

	mu         sync.Mutex
	launches   *Cached[[]models.Launch]
	enrichment map[string]Cached[models.Enrichment]
}

// NewDiskStore creates a store rooted at dir, creating it if needed.
func NewDiskStore(dir string, launchTTL, enrichmentTTL time.Duration, logger *slog.Logger) (*DiskStore, error) {
	if launchTTL <= 0 {
		launchTTL = DefaultLaunchTTL
	}
	if enrichmentTTL <= 0 {
		enrichmentTTL = DefaultEnrichmentTTL
	}
	if err := os.MkdirAll(filepath.Join(dir, enrichmentDir), 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{
		dir:           dir,
		launchTTL:     launchTTL,
		enrichmentTTL: enrichmentTTL,
		logger:        logger,
		now:           time.Now,
		enrichment:    make(map[string]Cached[models.Enrichment]),
	}, nil
}

// GetLaunches returns the cached launch list if present and unexpired,
// preferring the in-memory mirror over a disk read.
func (s *DiskStore) GetLaunches(_ context.Context) ([]models.Launch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.launches
	if entry == nil {
		loaded, ok := readEntry[[]models.Launch](filepath.Join(s.dir, launchesFile))
		if !ok {
			return nil, false
		}
		entry = &loaded
		s.launches = entry
	}
	if entry.Expired(s.launchTTL, s.now()) {
		return nil, false
	}
	return append([]models.Launch(nil), entry.Value...), true
}

// PutLaunches writes the full list to disk and memory with the current time
// as freshness marker. Disk failures are logged and swallowed; the memory
// mirror is updated regardless.
func (s *DiskStore) PutLaunches(_ context.Context, launches []models.Launch) {
	entry := NewCached(append([]models.Launch(nil), launches...), s.now())

	s.mu.Lock()
	s.launches = &entry
	s.mu.Unlock()

	if err := writeEntry(filepath.Join(s.dir, launchesFile), entry); err != nil {
		s.logger.Warn("failed to persist launch list cache", "error", err)
	}
}

// GetEnrichment returns the cached enrichment for a launch id if present and
// unexpired.
func (s *DiskStore) GetEnrichment(_ context.Context, id string) (models.Enrichment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.enrichment[id]
	if !ok {
		entry, ok = readEntry[models.Enrichment](s.enrichmentPath(id))
		if !ok {
			return models.Enrichment{}, false
		}
		s.enrichment[id] = entry
	}
	if entry.Expired(s.enrichmentTTL, s.now()) {
		return models.Enrichment{}, false
	}
	return entry.Value, true
}

// PutEnrichment stores the enrichment for a launch id, overwriting any
// previous entry.
func (s *DiskStore) PutEnrichment(_ context.Context, id string, e models.Enrichment) {
	entry := NewCached(e, s.now())

	s.mu.Lock()
	s.enrichment[id] = entry
	s.mu.Unlock()

	if err := writeEntry(s.enrichmentPath(id), entry); err != nil {
		s.logger.Warn("failed to persist enrichment cache", "launch_id", id, "error", err)
	}
}

func (s *DiskStore) enrichmentPath(id string) string {
	// Provider ids are UUIDs, but never trust them as path components.
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
	return filepath.Join(s.dir, enrichmentDir, safe+".json")
}

// readEntry decodes a cached entry from disk. Any failure, including a
// decode mismatch from an older schema, is a plain miss.
func readEntry[T any](path string) (Cached[T], bool) {
	var entry Cached[T]
	data, err := os.ReadFile(path)
	if err != nil {
		return entry, false
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		return entry, false
	}
	return entry, true
}

// writeEntry writes the entry to a temp file in the target directory and
// renames it into place so readers never observe a partial file.
func writeEntry[T any](path string, entry Cached[T]) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cache-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
