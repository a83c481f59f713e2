package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"grajek/internal/track"
)

type ytdlpMode int

const (
	// ytdlpPrimary extracts bestaudio with the default web client.
	ytdlpPrimary ytdlpMode = iota
	// ytdlpDegraded retries with alternate player clients at capped quality,
	// the configuration that keeps working when the web client is flagged.
	ytdlpDegraded
)

// ytdlpRung shells out to yt-dlp. It doubles as the searcher because search
// and playlist listing only ever use the primary configuration.
type ytdlpRung struct {
	mode ytdlpMode
	// run is swapped in tests to avoid spawning processes.
	run func(ctx context.Context, args ...string) ([]byte, error)
}

func newYTDLP(mode ytdlpMode) *ytdlpRung {
	return &ytdlpRung{mode: mode, run: runYTDLP}
}

func runYTDLP(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "yt-dlp", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, classifyExtractionError(stderr.String(), fmt.Errorf("yt-dlp: %w", err))
	}
	return stdout.Bytes(), nil
}

func (y *ytdlpRung) name() string {
	if y.mode == ytdlpDegraded {
		return "ytdlp-degraded"
	}
	return "ytdlp"
}

func (y *ytdlpRung) baseArgs() []string {
	args := []string{
		"--no-playlist",
		"--no-warnings",
		"--quiet",
		"--restrict-filenames",
		"--no-check-certificates",
	}
	switch y.mode {
	case ytdlpDegraded:
		args = append(args,
			"-f", "worst[height<=360]/worstaudio/worst",
			"--extractor-args", "youtube:player_client=android,web_creator,tv_embedded",
			"--sleep-interval", "1",
		)
	default:
		args = append(args, "-f", "bestaudio/best")
	}
	return args
}

// ytdlpInfo is the subset of yt-dlp's JSON output the bot cares about.
type ytdlpInfo struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Uploader string      `json:"uploader"`
	Duration json.Number `json:"duration"`
	URL      string      `json:"webpage_url"`
	Entries  []ytdlpInfo `json:"entries"`
}

func (i ytdlpInfo) metadata() track.Metadata {
	return track.Metadata{
		ID:       i.ID,
		Title:    i.Title,
		Uploader: i.Uploader,
		Duration: i.Duration.String(),
		URL:      i.URL,
	}
}

func (y *ytdlpRung) extract(ctx context.Context, url string, download bool, dest string) (track.Metadata, error) {
	args := append(y.baseArgs(), "-J")
	if download {
		args = append(args, "--no-simulate", "-o", outputTemplate(dest))
	}
	args = append(args, url)

	out, err := y.run(ctx, args...)
	if err != nil {
		return track.Metadata{}, err
	}

	var info ytdlpInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return track.Metadata{}, fmt.Errorf("yt-dlp output: %w", err)
	}
	return info.metadata(), nil
}

func (y *ytdlpRung) search(ctx context.Context, query string, n int) ([]track.Metadata, error) {
	if n < 1 {
		n = 1
	}
	target := "ytsearch" + strconv.Itoa(n) + ":" + query

	args := append(y.baseArgs(), "-J", target)
	out, err := y.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	var info ytdlpInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("yt-dlp search output: %w", err)
	}

	results := make([]track.Metadata, 0, len(info.Entries))
	for _, e := range info.Entries {
		results = append(results, e.metadata())
	}
	return results, nil
}

func (y *ytdlpRung) playlistEntries(ctx context.Context, url string) ([]track.Metadata, error) {
	args := []string{"--flat-playlist", "--no-warnings", "--quiet", "-J", url}
	out, err := y.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	var info ytdlpInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("yt-dlp playlist output: %w", err)
	}

	entries := make([]track.Metadata, 0, len(info.Entries))
	for _, e := range info.Entries {
		m := e.metadata()
		// Flat playlist entries sometimes omit the uploader; fall back to
		// the playlist uploader so validation does not drop them all.
		if m.Uploader == "" {
			m.Uploader = info.Uploader
		}
		entries = append(entries, m)
	}
	return entries, nil
}

// outputTemplate turns a deterministic store path like files/<id>.webm into
// the yt-dlp template files/<id>.<actual-ext>.
func outputTemplate(dest string) string {
	if i := strings.LastIndex(dest, "."); i > 0 {
		return dest[:i] + ".%(ext)s"
	}
	return dest
}
