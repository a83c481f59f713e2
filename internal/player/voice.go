package player

import (
	"context"

	"grajek/internal/track"
)

// VoiceSession is one guild's live voice connection. Implementations are
// exclusively owned by that guild's session; no other guild's code touches
// them.
type VoiceSession interface {
	// Play starts streaming the local audio file, replacing any stream in
	// progress.
	Play(localPath string) error
	Pause() error
	Resume() error
	// Stop ends the current stream but keeps the connection open.
	Stop() error
	IsPlaying() bool
	IsPaused() bool
	// SetVolume accepts 0.0 through 2.0.
	SetVolume(v float64) error
	Disconnect() error
}

// Connector acquires a voice session for a guild's voice channel.
type Connector interface {
	Connect(guildID, voiceChannelID string) (VoiceSession, error)
}

// VoiceLocator reports which voice channel a user currently occupies.
type VoiceLocator interface {
	UserVoiceChannel(guildID, userID string) (channelID string, ok bool)
}

// Notifier delivers playback events to the guild's text channel. The bot
// front-end renders them; failures there must never affect playback.
type Notifier interface {
	NowPlaying(textChannelID string, t track.Track)
	PlaybackError(textChannelID string, t track.Track, err error)
	AutoDJAdded(textChannelID string, tracks []track.Track)
}

// MediaResolver is the subset of the resolver the orchestrator drives.
type MediaResolver interface {
	Download(ctx context.Context, meta track.Metadata) (string, error)
	SimilarTo(ctx context.Context, t track.Track, n int) ([]track.Metadata, error)
}
