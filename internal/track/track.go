package track

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidMetadata is returned when extraction output is missing a field a
// Track cannot be built without. Such items are dropped, never enqueued.
var ErrInvalidMetadata = errors.New("invalid track metadata")

// Metadata is the raw extraction output a Track is built from. Duration is
// kept as the extractor reported it; coercion happens in FromMetadata.
type Metadata struct {
	ID       string
	Title    string
	Uploader string
	Duration string
	URL      string
}

// Track is an immutable description of a playable item. Two tracks are the
// same item iff their IDs match. AddedByID is the stable user ID quota
// accounting is keyed by; AddedBy is only a display name.
type Track struct {
	ID        string
	Title     string
	Uploader  string
	Duration  int // seconds
	URL       string
	AddedBy   string
	AddedByID string
}

// FromMetadata validates raw extraction output and builds a Track attributed
// to username and userID. ID, title, uploader and duration must all be
// present; a duration that is present but unparseable coerces to 0.
func FromMetadata(meta Metadata, username, userID string) (Track, error) {
	switch {
	case meta.ID == "":
		return Track{}, fmt.Errorf("%w: missing id", ErrInvalidMetadata)
	case meta.Title == "":
		return Track{}, fmt.Errorf("%w: missing title", ErrInvalidMetadata)
	case meta.Uploader == "":
		return Track{}, fmt.Errorf("%w: missing uploader", ErrInvalidMetadata)
	case meta.Duration == "":
		return Track{}, fmt.Errorf("%w: missing duration", ErrInvalidMetadata)
	}

	duration := 0
	if f, err := strconv.ParseFloat(meta.Duration, 64); err == nil && f > 0 {
		duration = int(f)
	}

	url := meta.URL
	if url == "" {
		url = "https://www.youtube.com/watch?v=" + meta.ID
	}

	return Track{
		ID:        meta.ID,
		Title:     meta.Title,
		Uploader:  meta.Uploader,
		Duration:  duration,
		URL:       url,
		AddedBy:   username,
		AddedByID: userID,
	}, nil
}

// Metadata converts the track back to extraction metadata, e.g. to download
// a payload for a track restored from a playlist.
func (t Track) Metadata() Metadata {
	return Metadata{
		ID:       t.ID,
		Title:    t.Title,
		Uploader: t.Uploader,
		Duration: strconv.Itoa(t.Duration),
		URL:      t.URL,
	}
}

// FormatDuration renders a length in seconds as H:MM:SS.
func FormatDuration(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// DurationString formats the track duration as H:MM:SS.
func (t Track) DurationString() string {
	return FormatDuration(t.Duration)
}

// Equal reports whether both tracks describe the same item.
func (t Track) Equal(other Track) bool {
	return t.ID == other.ID
}

func (t Track) String() string {
	var b strings.Builder
	b.WriteString(t.Title)
	b.WriteString(" (")
	b.WriteString(t.DurationString())
	b.WriteString(")")
	return b.String()
}

// Record is the persisted form of a Track. The field names match the
// playlist files written by earlier versions of the bot.
type Record struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Uploader string `json:"uploader"`
	Duration int    `json:"duration"`
	ID       string `json:"id"`
	User     string `json:"user"`
	UserID   string `json:"user_id,omitempty"`
}

// ToRecord converts the track for persistence.
func (t Track) ToRecord() Record {
	return Record{
		URL:      t.URL,
		Title:    t.Title,
		Uploader: t.Uploader,
		Duration: t.Duration,
		ID:       t.ID,
		User:     t.AddedBy,
		UserID:   t.AddedByID,
	}
}

// FromRecord restores a Track from its persisted form. Round-tripping through
// ToRecord is lossless.
func FromRecord(r Record) Track {
	return Track{
		ID:        r.ID,
		Title:     r.Title,
		Uploader:  r.Uploader,
		Duration:  r.Duration,
		URL:       r.URL,
		AddedBy:   r.User,
		AddedByID: r.UserID,
	}
}
