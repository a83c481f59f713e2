// Package playlist persists named queue snapshots, one JSON file per
// playlist.
package playlist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"grajek/internal/track"
)

// Record is the stored form of a playlist.
type Record struct {
	Name      string         `json:"name"`
	Creator   string         `json:"creator"`
	CreatedAt time.Time      `json:"created_at"`
	Tracks    []track.Record `json:"tracks"`
}

// Summary is the listing view of a playlist.
type Summary struct {
	Name       string
	TrackCount int
	Creator    string
	CreatedAt  time.Time
}

// Store reads and writes playlist files under a single directory.
type Store struct {
	dir string
	now func() time.Time
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir, now: time.Now}, nil
}

func (s *Store) path(name string) string {
	// Playlist names are user input; keep them from escaping the directory.
	return filepath.Join(s.dir, filepath.Base(name)+".json")
}

// Save writes the playlist, overwriting any existing file of the same name.
func (s *Store) Save(name string, tracks []track.Track, creator string) error {
	records := make([]track.Record, len(tracks))
	for i, t := range tracks {
		records[i] = t.ToRecord()
	}

	rec := Record{
		Name:      name,
		Creator:   creator,
		CreatedAt: s.now(),
		Tracks:    records,
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal playlist %q: %w", name, err)
	}
	if err := os.WriteFile(s.path(name), data, 0o644); err != nil {
		return fmt.Errorf("write playlist %q: %w", name, err)
	}

	log.Info().Str("playlist", name).Int("tracks", len(tracks)).Msg("playlist saved")
	return nil
}

// Load returns the stored playlist, or (nil, nil) when it does not exist.
// Track attribution is returned as stored; reattributing tracks to the
// loading user is the caller's job.
func (s *Store) Load(name string) (*Record, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read playlist %q: %w", name, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode playlist %q: %w", name, err)
	}
	return &rec, nil
}

// List enumerates all stored playlists. Unreadable or corrupt files are
// logged and skipped, never failing the whole listing.
func (s *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}

	summaries := make([]Summary, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			log.Warn().Err(err).Str("file", e.Name()).Msg("skipping unreadable playlist")
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			log.Warn().Err(err).Str("file", e.Name()).Msg("skipping corrupt playlist")
			continue
		}

		name := rec.Name
		if name == "" {
			name = strings.TrimSuffix(e.Name(), ".json")
		}
		summaries = append(summaries, Summary{
			Name:       name,
			TrackCount: len(rec.Tracks),
			Creator:    rec.Creator,
			CreatedAt:  rec.CreatedAt,
		})
	}
	return summaries, nil
}

// Exists reports whether a playlist file with the name is stored.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.path(name))
	return err == nil
}

// Delete removes the playlist file. Deleting a missing playlist returns
// false without error.
func (s *Store) Delete(name string) (bool, error) {
	err := os.Remove(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete playlist %q: %w", name, err)
	}
	return true, nil
}
