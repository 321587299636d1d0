// Package state persists the bot's aggregate state as a single JSON
// document with atomic writes.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"newsbot/internal/model"
)

// ErrCorruptState reports that the on-disk document could not be parsed.
// Load recovers from it internally; it is exposed for tests and callers
// that want to distinguish corruption from I/O failure.
var ErrCorruptState = errors.New("corrupt state file")

// Store reads and writes BotState at a fixed path. All methods are meant
// to be called from the single controller goroutine.
type Store struct {
	path       string
	maxEntries int
	log        *slog.Logger
}

// NewStore creates a Store for the given file path. maxEntries bounds the
// number of seen records kept on save; 0 or less disables pruning.
func NewStore(path string, maxEntries int, log *slog.Logger) *Store {
	return &Store{path: path, maxEntries: maxEntries, log: log}
}

// Load reads the persisted state. A missing file yields empty state. A
// file that cannot be parsed is logged loudly and also yields empty
// state: losing dedup history is recoverable, crashing the process on
// startup is not.
func (s *Store) Load() (*model.BotState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.NewBotState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var st model.BotState
	if err := json.Unmarshal(data, &st); err != nil {
		s.log.Error("state file is corrupt, starting with empty state",
			"path", s.path, "error", fmt.Errorf("%w: %w", ErrCorruptState, err))
		return model.NewBotState(), nil
	}
	st.Normalize()
	return &st, nil
}

// Save writes the state atomically: marshal to a temp file in the same
// directory, sync, then rename over the target. A crash mid-write never
// leaves a half-written document. Seen records beyond the retention
// horizon are pruned before writing.
func (s *Store) Save(st *model.BotState) error {
	s.prune(st)

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}

// prune drops the oldest seen records once the retention bound is
// exceeded, so storage stays bounded over long uptimes.
func (s *Store) prune(st *model.BotState) {
	if s.maxEntries <= 0 || len(st.SeenRecords) <= s.maxEntries {
		return
	}

	records := make([]model.SeenRecord, 0, len(st.SeenRecords))
	for _, r := range st.SeenRecords {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].PublishedAt.Equal(records[j].PublishedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].PublishedAt.Before(records[j].PublishedAt)
	})

	drop := len(records) - s.maxEntries
	for _, r := range records[:drop] {
		delete(st.SeenRecords, r.ID)
	}
	s.log.Debug("pruned seen history", "dropped", drop, "kept", s.maxEntries)
}
