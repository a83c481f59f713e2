package resolver

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Kind describes what a user handed to the play command.
type Kind int

const (
	KindQuery Kind = iota
	KindVideoURL
	KindPlaylistURL
)

var (
	videoURLPattern    = regexp.MustCompile(`^(https?://)?(www\.|music\.)?(youtube\.com|youtu\.be)/.+$`)
	playlistURLPattern = regexp.MustCompile(`^(https?://)?(www\.|music\.)?youtube\.com/playlist\?list=.+$`)
)

// Classify decides how an input should be routed: playlist URLs to the batch
// entries fetch, video URLs to direct extraction, everything else to search.
func Classify(input string) Kind {
	input = strings.TrimSpace(input)
	switch {
	case playlistURLPattern.MatchString(input):
		return KindPlaylistURL
	case videoURLPattern.MatchString(input):
		return KindVideoURL
	default:
		return KindQuery
	}
}

// CleanVideoURL strips playlist, timestamp and tracking parameters so the
// same video always maps to the same extraction input.
func CleanVideoURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	switch u.Hostname() {
	case "youtu.be":
		vid := strings.Trim(u.Path, "/")
		if vid == "" {
			return raw
		}
		return "https://youtu.be/" + vid
	case "www.youtube.com", "youtube.com", "music.youtube.com":
		if u.Path == "/watch" {
			if vid := u.Query().Get("v"); vid != "" {
				return "https://" + u.Hostname() + "/watch?v=" + vid
			}
		}
		return raw
	default:
		return raw
	}
}

// normalizeQuery builds the cache key for a search: case and spacing must not
// cause separate backend hits.
func normalizeQuery(query string, n int) string {
	fields := strings.Fields(strings.ToLower(query))
	return strings.Join(fields, " ") + ":" + strconv.Itoa(n)
}
