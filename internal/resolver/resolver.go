// Package resolver turns search queries and URLs into track metadata and
// downloaded audio payloads. Extraction runs through a fallback ladder:
// yt-dlp with the default client first, then yt-dlp with alternate player
// clients at capped quality, then a last-resort worst-quality library
// extraction. Bot-detection responses push extraction down the ladder;
// private or removed videos abort it.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"grajek/internal/cache"
	"grajek/internal/filestore"
	"grajek/internal/track"
	"grajek/pkg/retry"
)

var (
	// ErrResolveFailed means every rung of the ladder failed.
	ErrResolveFailed = errors.New("resolve failed on all extraction strategies")
	// ErrUnavailable marks a private or removed video. Never retried.
	ErrUnavailable = errors.New("video unavailable")
	// errBotDetected is internal: the backend answered with a bot check and
	// the next rung should be tried.
	errBotDetected = errors.New("bot detection triggered")
)

// DownloadError wraps payload-fetch failures that happen after metadata
// already resolved, so advance can skip the item instead of dropping state.
type DownloadError struct {
	TrackID string
	Err     error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.TrackID, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// rung is one strategy of the fallback ladder.
type rung interface {
	name() string
	extract(ctx context.Context, url string, download bool, dest string) (track.Metadata, error)
}

// searcher handles free-text and playlist lookups. Only the primary strategy
// searches; the ladder applies to per-video extraction.
type searcher interface {
	search(ctx context.Context, query string, n int) ([]track.Metadata, error)
	playlistEntries(ctx context.Context, url string) ([]track.Metadata, error)
}

// Resolver is the media resolution front: search, metadata extraction and
// payload download, with caching and adaptive rate limiting toward the
// backend.
type Resolver struct {
	store    *filestore.Store
	searches *cache.Cache[[]track.Metadata]
	lim      *retry.Limiter

	rungs  []rung
	search searcher
}

func New(store *filestore.Store, searches *cache.Cache[[]track.Metadata]) *Resolver {
	primary := newYTDLP(ytdlpPrimary)
	return &Resolver{
		store:    store,
		searches: searches,
		lim:      retry.NewLimiter(2, 1, 5),
		rungs: []rung{
			primary,
			newYTDLP(ytdlpDegraded),
			&kkdaiRung{},
		},
		search: primary,
	}
}

// Resolve turns a query or video URL into metadata for a single track.
// Playlist URLs belong in ResolvePlaylist.
func (r *Resolver) Resolve(ctx context.Context, input string) (track.Metadata, error) {
	if Classify(input) == KindVideoURL {
		return r.extract(ctx, CleanVideoURL(input), false, "")
	}

	results, err := r.SearchTop(ctx, input, 1)
	if err != nil {
		return track.Metadata{}, err
	}
	if len(results) == 0 {
		return track.Metadata{}, fmt.Errorf("%w: no results for %q", ErrResolveFailed, input)
	}
	return results[0], nil
}

// Download fetches the audio payload for resolved metadata and returns the
// local file path. Already-downloaded tracks are reused.
func (r *Resolver) Download(ctx context.Context, meta track.Metadata) (string, error) {
	if path, ok := r.store.Find(meta.ID); ok {
		return path, nil
	}

	dest := r.store.PathFor(meta.ID)
	url := meta.URL
	if url == "" {
		url = "https://www.youtube.com/watch?v=" + meta.ID
	}

	if _, err := r.extract(ctx, url, true, dest); err != nil {
		return "", &DownloadError{TrackID: meta.ID, Err: err}
	}

	path, ok := r.store.Find(meta.ID)
	if !ok {
		return "", &DownloadError{TrackID: meta.ID, Err: errors.New("no payload after extraction")}
	}
	return path, nil
}

// SearchTop returns up to n search results for the query, served from the
// cache when the same normalized query was seen within the TTL.
func (r *Resolver) SearchTop(ctx context.Context, query string, n int) ([]track.Metadata, error) {
	key := normalizeQuery(query, n)
	if hit, ok := r.searches.Get(key); ok {
		return hit, nil
	}

	var results []track.Metadata
	err := retry.Do(ctx, 3, r.lim, func() error {
		var serr error
		results, serr = r.search.search(ctx, query, n)
		return serr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search %q: %v", ErrResolveFailed, query, err)
	}

	r.searches.Put(key, results)
	return results, nil
}

// ResolvePlaylist fetches the entry list of a playlist URL. Entry lists are
// cached like searches.
func (r *Resolver) ResolvePlaylist(ctx context.Context, url string) ([]track.Metadata, error) {
	key := normalizeQuery(url, 0)
	if hit, ok := r.searches.Get(key); ok {
		return hit, nil
	}

	var entries []track.Metadata
	err := retry.Do(ctx, 3, r.lim, func() error {
		var perr error
		entries, perr = r.search.playlistEntries(ctx, url)
		return perr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: playlist %q: %v", ErrResolveFailed, url, err)
	}

	r.searches.Put(key, entries)
	return entries, nil
}

// SimilarTo suggests up to n tracks resembling t. The query is the simple
// title+uploader heuristic; there is no real recommendation signal behind it.
func (r *Resolver) SimilarTo(ctx context.Context, t track.Track, n int) ([]track.Metadata, error) {
	query := strings.TrimSpace(t.Title + " " + t.Uploader + " podobne")
	results, err := r.SearchTop(ctx, query, n+1)
	if err != nil {
		return nil, err
	}

	similar := make([]track.Metadata, 0, n)
	for _, m := range results {
		if m.ID == t.ID {
			continue
		}
		similar = append(similar, m)
		if len(similar) == n {
			break
		}
	}
	return similar, nil
}

// extract walks the ladder until a rung succeeds. ErrUnavailable aborts the
// walk; every other failure falls through to the next rung.
func (r *Resolver) extract(ctx context.Context, url string, download bool, dest string) (track.Metadata, error) {
	var failures []string
	for _, rg := range r.rungs {
		var meta track.Metadata
		err := retry.Do(ctx, 2, r.lim, func() error {
			var eerr error
			meta, eerr = rg.extract(ctx, url, download, dest)
			if errors.Is(eerr, ErrUnavailable) {
				return &retry.Fatal{Err: eerr}
			}
			return eerr
		})
		if err == nil {
			return meta, nil
		}
		if errors.Is(err, ErrUnavailable) {
			return track.Metadata{}, fmt.Errorf("%w: %s", ErrUnavailable, url)
		}

		if errors.Is(err, errBotDetected) {
			log.Warn().Str("strategy", rg.name()).Str("url", url).Msg("bot detection, falling back")
		} else {
			log.Warn().Err(err).Str("strategy", rg.name()).Str("url", url).Msg("extraction failed, falling back")
		}
		failures = append(failures, rg.name()+": "+err.Error())

		if ctx.Err() != nil {
			return track.Metadata{}, ctx.Err()
		}
	}
	return track.Metadata{}, fmt.Errorf("%w: %s: %s", ErrResolveFailed, url, strings.Join(failures, "; "))
}

// classifyExtractionError maps backend error text onto the ladder semantics.
func classifyExtractionError(output string, err error) error {
	text := strings.ToLower(output + " " + err.Error())
	switch {
	case strings.Contains(text, "sign in to confirm") || strings.Contains(text, "not a bot"):
		return fmt.Errorf("%w: %v", errBotDetected, err)
	case strings.Contains(text, "private video") || strings.Contains(text, "unavailable"):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return err
	}
}
