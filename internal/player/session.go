// Package player is the per-guild playback orchestrator: a state machine
// per guild that owns the voice session, drives queue advancement through a
// polling loop, tops the queue up via AutoDJ and cleans up downloaded files
// when a guild goes idle.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"grajek/internal/filestore"
	"grajek/internal/limiter"
	"grajek/internal/queue"
	"grajek/internal/track"
)

var (
	// ErrNoVoiceChannel means the requesting user is not in a voice channel.
	ErrNoVoiceChannel = errors.New("join a voice channel first")
	// ErrPositionOutOfRange means a skip or delete addressed a queue slot
	// that does not exist.
	ErrPositionOutOfRange = errors.New("queue position out of range")
	// ErrNothingToToggle means pause/resume was issued with no active stream.
	ErrNothingToToggle = errors.New("nothing is playing or paused")
	// ErrNotConnected means a command needs an active voice session.
	ErrNotConnected = errors.New("not connected to a voice channel")
)

// State is the per-guild playback state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "idle"
	}
}

// Options are the orchestrator knobs. Zero values fall back to the bot's
// stock defaults.
type Options struct {
	PollInterval     time.Duration
	AutoDJEnabled    bool
	AutoDJThreshold  int
	AutoDJFetchCount int
}

// AutoDJName attributes automatically added tracks.
const (
	AutoDJName = "AutoDJ 🤖"
	AutoDJID   = "autodj"
)

// Session is one guild's playback actor. All commands for the guild
// serialize on its mutex; blocking work (downloads, connects) happens while
// holding it, which keeps the per-guild sequential model. Other guilds
// run their own sessions untouched.
type Session struct {
	guildID string

	queues   *queue.Manager
	limits   *limiter.Limiter
	files    *filestore.Store
	resolver MediaResolver
	connect  Connector
	locate   VoiceLocator
	notify   Notifier
	opts     Options

	mu           sync.Mutex
	state        State
	voice        VoiceSession
	textCh       string
	autoDJ       bool
	autoDJBusy   bool
	autoDJCancel context.CancelFunc
	polling      bool
	pollCancel   context.CancelFunc
}

func newSession(guildID string, deps Deps, opts Options) *Session {
	return &Session{
		guildID:  guildID,
		queues:   deps.Queues,
		limits:   deps.Limits,
		files:    deps.Files,
		resolver: deps.Resolver,
		connect:  deps.Connector,
		locate:   deps.Locator,
		notify:   deps.Notifier,
		opts:     opts,
		autoDJ:   opts.AutoDJEnabled,
	}
}

// State returns the session's current playback state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EnsurePlaying makes sure the guild is connected and streaming. Called
// after tracks were enqueued. The requesting user must be in a voice
// channel when no session exists yet; textChannelID receives playback
// notifications from now on.
func (s *Session) EnsurePlaying(ctx context.Context, userID, textChannelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.textCh = textChannelID

	if s.voice != nil {
		if s.state == StatePlaying || s.state == StatePaused {
			return nil
		}
		// Stop kept the connection but killed the polling loop; a replay on
		// the same connection has to bring it back or nothing ever advances.
		if err := s.advanceLocked(ctx, 0); err != nil {
			return err
		}
		if s.voice != nil && !s.polling {
			s.startPollingLocked()
		}
		return nil
	}

	channelID, ok := s.locate.UserVoiceChannel(s.guildID, userID)
	if !ok {
		return ErrNoVoiceChannel
	}

	s.state = StateConnecting
	vs, err := s.connect.Connect(s.guildID, channelID)
	if err != nil {
		s.state = StateIdle
		return fmt.Errorf("connect voice: %w", err)
	}
	s.voice = vs

	if err := s.advanceLocked(ctx, 0); err != nil {
		return err
	}
	s.startPollingLocked()
	return nil
}

// SkipTo stops the current stream and advances to the 0-based queue
// position.
func (s *Session) SkipTo(ctx context.Context, position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.voice == nil {
		return ErrNotConnected
	}
	if position < 0 || position >= s.queues.Len(s.guildID) {
		return fmt.Errorf("%w: %d (queue length %d)", ErrPositionOutOfRange, position, s.queues.Len(s.guildID))
	}

	if s.voice.IsPlaying() || s.voice.IsPaused() {
		_ = s.voice.Stop()
	}
	return s.advanceLocked(ctx, position)
}

// TogglePause pauses a playing stream or resumes a paused one.
func (s *Session) TogglePause() (paused bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.voice == nil {
		return false, ErrNothingToToggle
	}
	switch {
	case s.voice.IsPlaying():
		if err := s.voice.Pause(); err != nil {
			return false, err
		}
		s.state = StatePaused
		return true, nil
	case s.voice.IsPaused():
		if err := s.voice.Resume(); err != nil {
			return false, err
		}
		s.state = StatePlaying
		return false, nil
	default:
		return false, ErrNothingToToggle
	}
}

// SetVolume adjusts the voice session volume; v is 0.0–2.0.
func (s *Session) SetVolume(v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.voice == nil {
		return ErrNotConnected
	}
	if v < 0 || v > 2 {
		return fmt.Errorf("volume %.2f out of range 0.0-2.0", v)
	}
	return s.voice.SetVolume(v)
}

// ToggleAutoDJ flips automatic queue augmentation and returns the new state.
func (s *Session) ToggleAutoDJ() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoDJ = !s.autoDJ
	return s.autoDJ
}

// SetAutoDJ sets augmentation to an explicit state.
func (s *Session) SetAutoDJ(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoDJ = enabled
}

// AutoDJEnabled reports whether augmentation is on for this guild.
func (s *Session) AutoDJEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoDJ
}

// Stop halts playback and clears the guild's queue but keeps the voice
// connection for a follow-up play.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.voice != nil && (s.voice.IsPlaying() || s.voice.IsPaused()) {
		_ = s.voice.Stop()
	}
	s.clearLocked()
	return nil
}

// Disconnect tears the session down to Idle: stop streaming, leave the
// voice channel, drop queue, quota counters, the polling loop and any
// in-flight AutoDJ fetch, then garbage-collect files.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.voice == nil {
		return ErrNotConnected
	}
	_ = s.voice.Stop()
	err := s.voice.Disconnect()
	s.voice = nil
	s.clearLocked()
	return err
}

// VoiceChannelEmpty handles the "everyone left the voice channel" event by
// auto-disconnecting.
func (s *Session) VoiceChannelEmpty() {
	if err := s.Disconnect(); err != nil && !errors.Is(err, ErrNotConnected) {
		log.Warn().Err(err).Str("guild", s.guildID).Msg("auto-disconnect failed")
	}
}

// clearLocked resets queue-derived state. Caller holds s.mu.
func (s *Session) clearLocked() {
	s.stopPollingLocked()
	if s.autoDJCancel != nil {
		s.autoDJCancel()
		s.autoDJCancel = nil
	}
	s.queues.Clear(s.guildID)
	s.queues.SetCurrent(s.guildID, nil)
	s.limits.ClearGuild(s.guildID)
	s.state = StateIdle
	s.files.GarbageCollect(s.queues.ActiveTrackIDs())
}

// advanceLocked is the advance transition: dequeue the track at position,
// download its payload if needed, hand it to the voice session and clean up
// the finished track's file. Resolver and download failures skip to the
// next item instead of killing the guild's session. Caller holds s.mu.
func (s *Session) advanceLocked(ctx context.Context, position int) error {
	old, hadOld := s.queues.Current(s.guildID)

	for {
		next, ok := s.queues.DequeueAt(s.guildID, position)
		if !ok {
			s.finishLocked(old, hadOld)
			return nil
		}
		position = 0 // only the first dequeue honors a skip position

		path, err := s.resolver.Download(ctx, next.Metadata())
		if err != nil {
			log.Warn().Err(err).Str("guild", s.guildID).Str("track", next.ID).Msg("skipping track")
			s.notify.PlaybackError(s.textCh, next, err)
			s.limits.AdjustCount(next.AddedByID, s.guildID, -1)
			continue
		}

		if err := s.voice.Play(path); err != nil {
			log.Warn().Err(err).Str("guild", s.guildID).Str("track", next.ID).Msg("voice play failed, skipping")
			s.notify.PlaybackError(s.textCh, next, err)
			s.limits.AdjustCount(next.AddedByID, s.guildID, -1)
			continue
		}

		s.queues.SetCurrent(s.guildID, &next)
		s.limits.AdjustCount(next.AddedByID, s.guildID, -1)
		s.state = StatePlaying
		s.notify.NowPlaying(s.textCh, next)
		log.Info().Str("guild", s.guildID).Str("track", next.ID).Str("title", next.Title).Msg("now playing")

		if hadOld && old.ID != next.ID {
			s.removeIfUnreferenced(old.ID)
		}
		s.maybeAutoDJLocked()
		return nil
	}
}

// finishLocked is the Playing→Idle transition taken when the queue runs
// out. Caller holds s.mu.
func (s *Session) finishLocked(old track.Track, hadOld bool) {
	s.queues.SetCurrent(s.guildID, nil)
	if hadOld {
		s.removeIfUnreferenced(old.ID)
	}
	s.stopPollingLocked()
	if s.voice != nil {
		_ = s.voice.Disconnect()
		s.voice = nil
	}
	s.state = StateIdle
	s.files.GarbageCollect(s.queues.ActiveTrackIDs())
	log.Info().Str("guild", s.guildID).Msg("queue exhausted, disconnected")
}

// removeIfUnreferenced deletes a finished track's file unless some guild
// still has the same track queued or playing.
func (s *Session) removeIfUnreferenced(trackID string) {
	if _, active := s.queues.ActiveTrackIDs()[trackID]; active {
		return
	}
	s.files.RemoveSingle(trackID)
}

// maybeAutoDJLocked fires an asynchronous similar-tracks fetch when the
// queue is running low. The in-flight flag keeps racing advances from
// double-firing; the fetch itself never blocks the advance. Caller holds
// s.mu.
func (s *Session) maybeAutoDJLocked() {
	if !s.autoDJ || s.autoDJBusy {
		return
	}
	if s.queues.Len(s.guildID) >= s.opts.AutoDJThreshold {
		return
	}
	seed, ok := s.queues.Current(s.guildID)
	if !ok {
		return
	}

	s.autoDJBusy = true
	textCh := s.textCh

	// Disconnect and stop cancel the fetch through this handle.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	s.autoDJCancel = cancel

	go func() {
		defer func() {
			cancel()
			s.mu.Lock()
			s.autoDJBusy = false
			if s.autoDJCancel != nil {
				s.autoDJCancel = nil
			}
			s.mu.Unlock()
		}()

		metas, err := s.resolver.SimilarTo(ctx, seed, s.opts.AutoDJFetchCount)
		if err != nil {
			log.Warn().Err(err).Str("guild", s.guildID).Msg("autodj fetch failed")
			return
		}
		added := make([]track.Track, 0, len(metas))
		for _, m := range metas {
			t, err := track.FromMetadata(m, AutoDJName, AutoDJID)
			if err != nil {
				log.Debug().Err(err).Msg("autodj dropped invalid suggestion")
				continue
			}
			added = append(added, t)
		}
		if len(added) == 0 {
			return
		}

		// Disconnect cancels under s.mu, so re-checking while holding it
		// keeps suggestions out of a guild that went idle mid-fetch.
		s.mu.Lock()
		if ctx.Err() != nil {
			s.mu.Unlock()
			return
		}
		s.queues.EnqueueMany(s.guildID, added)
		s.mu.Unlock()

		s.notify.AutoDJAdded(textCh, added)
		log.Info().Str("guild", s.guildID).Int("tracks", len(added)).Msg("autodj enqueued suggestions")
	}()
}

// startPollingLocked launches the per-guild completion-detection loop.
// Starting while already running restarts the loop rather than scheduling a
// second one. Caller holds s.mu.
func (s *Session) startPollingLocked() {
	s.stopPollingLocked()

	ctx, cancel := context.WithCancel(context.Background())
	s.pollCancel = cancel
	s.polling = true

	interval := s.opts.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.pollTick(ctx)
			}
		}
	}()
}

func (s *Session) stopPollingLocked() {
	if s.pollCancel != nil {
		s.pollCancel()
		s.pollCancel = nil
	}
	s.polling = false
}

// pollTick checks whether the current stream ended and, if so, runs the
// advance transition, requeueing the finished track at the front first
// when looping is on.
func (s *Session) pollTick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.voice == nil || !s.polling {
		return
	}
	if s.voice.IsPlaying() || s.voice.IsPaused() {
		return
	}

	if s.queues.IsLooping(s.guildID) {
		if current, ok := s.queues.Current(s.guildID); ok {
			s.queues.EnqueueFront(s.guildID, current)
		}
	}

	if err := s.advanceLocked(ctx, 0); err != nil {
		log.Error().Err(err).Str("guild", s.guildID).Msg("advance failed")
	}
}
