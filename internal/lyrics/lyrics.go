// Package lyrics looks up song lyrics on Genius. The bot works fine without
// a token; the command just reports the feature as unavailable.
package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrNotFound means no lyrics exist for the requested title.
	ErrNotFound = errors.New("lyrics not found")
	// ErrUnconfigured means no Genius API token was provided.
	ErrUnconfigured = errors.New("lyrics lookup is not configured")
)

// Client finds lyrics by track title.
type Client interface {
	Search(ctx context.Context, title string) (string, error)
}

// Genius talks to the Genius search API and scrapes the lyrics off the song
// page, since the API itself does not serve lyrics text.
type Genius struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewGenius returns a Genius client, or nil when token is empty.
func NewGenius(token string) *Genius {
	if token == "" {
		return nil
	}
	return &Genius{
		token:   token,
		baseURL: "https://api.genius.com",
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type searchResponse struct {
	Response struct {
		Hits []struct {
			Result struct {
				Title string `json:"title"`
				URL   string `json:"url"`
			} `json:"result"`
		} `json:"hits"`
	} `json:"response"`
}

// Search returns the lyrics text for the closest matching song.
func (g *Genius) Search(ctx context.Context, title string) (string, error) {
	if g == nil {
		return "", ErrUnconfigured
	}

	songURL, err := g.findSong(ctx, cleanTitle(title))
	if err != nil {
		return "", err
	}
	return g.fetchLyrics(ctx, songURL)
}

func (g *Genius) findSong(ctx context.Context, title string) (string, error) {
	u := g.baseURL + "/search?q=" + url.QueryEscape(title)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.token)

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("genius search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("genius search: status %d", resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("genius search: %w", err)
	}
	if len(sr.Response.Hits) == 0 {
		return "", ErrNotFound
	}
	return sr.Response.Hits[0].Result.URL, nil
}

var (
	lyricsContainer = regexp.MustCompile(`(?s)<div[^>]+data-lyrics-container="true"[^>]*>(.*?)</div>`)
	lineBreak       = regexp.MustCompile(`<br\s*/?>`)
	anyTag          = regexp.MustCompile(`<[^>]+>`)
)

func (g *Genius) fetchLyrics(ctx context.Context, songURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, songURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("genius page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("genius page: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}

	text := extractLyrics(string(body))
	if text == "" {
		return "", ErrNotFound
	}
	return text, nil
}

// extractLyrics pulls the text out of Genius' lyrics container divs.
func extractLyrics(page string) string {
	var parts []string
	for _, m := range lyricsContainer.FindAllStringSubmatch(page, -1) {
		chunk := lineBreak.ReplaceAllString(m[1], "\n")
		chunk = anyTag.ReplaceAllString(chunk, "")
		chunk = html.UnescapeString(chunk)
		chunk = strings.TrimSpace(chunk)
		if chunk != "" {
			parts = append(parts, chunk)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// cleanTitle strips noise that hurts Genius matching, like "(Official Video)".
var noisePattern = regexp.MustCompile(`(?i)[([][^)\]]*(official|video|audio|lyric|remix|hd|4k)[^)\]]*[)\]]`)

func cleanTitle(title string) string {
	title = noisePattern.ReplaceAllString(title, "")
	return strings.Join(strings.Fields(title), " ")
}

// Split breaks lyrics into chunks that fit a Discord embed description.
func Split(text string, size int) []string {
	if size <= 0 || len(text) <= size {
		return []string{text}
	}
	var chunks []string
	for len(text) > size {
		cut := strings.LastIndex(text[:size], "\n")
		if cut <= 0 {
			cut = size
		}
		chunks = append(chunks, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
