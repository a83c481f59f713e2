// Package filestore manages the on-disk lifecycle of downloaded audio
// payloads. The directory is shared by every guild, so garbage collection
// must always be driven by the global set of referenced track IDs.
package filestore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// audioExtensions lists payload extensions the extraction backend produces.
var audioExtensions = []string{".webm", ".mp3", ".mp4", ".m4a", ".opus"}

// Store maps track IDs to audio files under a single directory.
type Store struct {
	mu  sync.Mutex
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

// PathFor returns the deterministic download target for a track ID.
func (s *Store) PathFor(trackID string) string {
	return filepath.Join(s.dir, trackID+".webm")
}

// Find returns the stored payload path for the track ID, probing every known
// audio extension. ok is false when nothing is stored.
func (s *Store) Find(trackID string) (string, bool) {
	for _, ext := range audioExtensions {
		p := filepath.Join(s.dir, trackID+ext)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// RemoveSingle deletes the payload for one track. Missing files are not an
// error.
func (s *Store) RemoveSingle(trackID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ext := range audioExtensions {
		p := filepath.Join(s.dir, trackID+ext)
		err := os.Remove(p)
		if err == nil {
			log.Debug().Str("path", p).Msg("removed audio file")
			return
		}
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", p).Msg("failed to remove audio file")
		}
	}
}

// GarbageCollect deletes every stored audio file whose ID is absent from
// activeIDs and returns how many were removed. activeIDs must be the union
// of current and queued track IDs across ALL guilds, never a single guild's
// view, or files still referenced elsewhere get deleted.
func (s *Store) GarbageCollect(activeIDs map[string]struct{}) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", s.dir).Msg("garbage collect: read dir")
		return 0
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if !isAudioExt(ext) {
			continue
		}
		id := strings.TrimSuffix(name, ext)
		if _, active := activeIDs[id]; active {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("garbage collect: remove")
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Info().Int("removed", removed).Msg("garbage collected unused audio files")
	}
	return removed
}

func isAudioExt(ext string) bool {
	for _, known := range audioExtensions {
		if ext == known {
			return true
		}
	}
	return false
}
