package resolver

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/kkdai/youtube/v2"

	"grajek/internal/track"
)

// kkdaiRung is the worst-quality last resort: a library extraction that
// bypasses yt-dlp entirely and grabs the smallest audio format it can find.
type kkdaiRung struct {
	client youtube.Client
}

func (k *kkdaiRung) name() string { return "kkdai-worst" }

func (k *kkdaiRung) extract(ctx context.Context, url string, download bool, dest string) (track.Metadata, error) {
	video, err := k.client.GetVideoContext(ctx, url)
	if err != nil {
		return track.Metadata{}, classifyExtractionError("", fmt.Errorf("kkdai get video: %w", err))
	}

	meta := track.Metadata{
		ID:       video.ID,
		Title:    video.Title,
		Uploader: video.Author,
		Duration: strconv.Itoa(int(video.Duration.Seconds())),
		URL:      "https://www.youtube.com/watch?v=" + video.ID,
	}

	if !download {
		return meta, nil
	}

	format := smallestAudioFormat(video)
	if format == nil {
		return track.Metadata{}, fmt.Errorf("kkdai: no audio format for %s", video.ID)
	}

	stream, _, err := k.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return track.Metadata{}, classifyExtractionError("", fmt.Errorf("kkdai get stream: %w", err))
	}
	defer stream.Close()

	f, err := os.Create(dest)
	if err != nil {
		return track.Metadata{}, err
	}
	defer f.Close()

	if _, err := io.Copy(f, stream); err != nil {
		os.Remove(dest)
		return track.Metadata{}, fmt.Errorf("kkdai save payload: %w", err)
	}
	return meta, nil
}

func smallestAudioFormat(video *youtube.Video) *youtube.Format {
	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return nil
	}
	best := &formats[0]
	for i := range formats {
		if formats[i].Bitrate > 0 && formats[i].Bitrate < best.Bitrate {
			best = &formats[i]
		}
	}
	return best
}
