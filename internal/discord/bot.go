// Package discord adapts the playback core to the Discord gateway: it turns
// prefix messages into command invocations, joins voice channels and sends
// playback notifications back to text channels.
package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"grajek/internal/command"
	"grajek/internal/config"
	"grajek/internal/filestore"
	"grajek/internal/limiter"
	"grajek/internal/lyrics"
	"grajek/internal/player"
	"grajek/internal/playlist"
	"grajek/internal/queue"
	"grajek/internal/resolver"
	"grajek/internal/track"
)

// Bot wires the Discord session to the playback core.
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	players  *player.Manager
	registry *command.Registry
	ctx      context.Context
}

// Deps are the storage and resolver collaborators built in main.
type Deps struct {
	Queues    *queue.Manager
	Limits    *limiter.Limiter
	Files     *filestore.Store
	Resolver  *resolver.Resolver
	Playlists *playlist.Store
	Lyrics    lyrics.Client
}

// New builds the bot, its per-guild player registry and the command table.
func New(cfg *config.Config, deps Deps) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	b := &Bot{dg: dg, cfg: cfg}

	b.players = player.NewManager(player.Deps{
		Queues:    deps.Queues,
		Limits:    deps.Limits,
		Files:     deps.Files,
		Resolver:  deps.Resolver,
		Connector: b,
		Locator:   b,
		Notifier:  b,
	}, player.Options{
		PollInterval:     cfg.PollInterval(),
		AutoDJEnabled:    cfg.AutoDJEnabled,
		AutoDJThreshold:  cfg.AutoDJThreshold,
		AutoDJFetchCount: cfg.AutoDJFetchCount,
	})

	b.registry = command.NewRegistry()
	command.RegisterMusic(b.registry, &command.Deps{
		Players:   b.players,
		Queues:    deps.Queues,
		Limits:    deps.Limits,
		Media:     deps.Resolver,
		Playlists: deps.Playlists,
		Lyrics:    deps.Lyrics,
	}, command.WithCooldown(deps.Limits), command.WithGuildOnly(), command.WithLogger())

	return b, nil
}

// Run opens the gateway connection and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent

	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onMessageCreate)
	b.dg.AddHandler(b.onVoiceStateUpdate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, disconnecting")
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Info().Str("user", s.State.User.Username).Int("guilds", len(r.Guilds)).Msg("bot is running")
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if !strings.HasPrefix(m.Content, b.cfg.CommandPrefix) {
		return
	}

	fields := strings.Fields(strings.TrimPrefix(m.Content, b.cfg.CommandPrefix))
	if len(fields) == 0 {
		return
	}
	cmd := b.registry.Get(strings.ToLower(fields[0]))
	if cmd == nil {
		return
	}

	inv := &command.Invocation{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		Username:  displayName(m),
		IsAdmin:   b.isAdmin(s, m),
		Args:      fields[1:],
		Reply:     &channelResponder{dg: s, channelID: m.ChannelID},
	}

	// Commands download and connect, so each invocation gets its own
	// goroutine; the per-guild session serializes the ones that matter.
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("command", cmd.Name()).Msg("command panicked")
				_, _ = s.ChannelMessageSend(m.ChannelID, "❌ Wystąpił nieoczekiwany błąd.")
			}
		}()
		if err := cmd.Run(b.ctx, inv); err != nil {
			log.Error().Err(err).Str("command", cmd.Name()).Msg("command failed")
			_, _ = s.ChannelMessageSend(m.ChannelID, "❌ Wystąpił błąd podczas wykonywania komendy.")
		}
	}()
}

// onVoiceStateUpdate auto-disconnects the guild's session when the bot ends
// up alone in its voice channel.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs.UserID == s.State.User.ID {
		return
	}

	guild, err := s.State.Guild(vs.GuildID)
	if err != nil {
		return
	}

	var botChannel string
	for _, state := range guild.VoiceStates {
		if state.UserID == s.State.User.ID {
			botChannel = state.ChannelID
			break
		}
	}
	if botChannel == "" {
		return
	}

	for _, state := range guild.VoiceStates {
		if state.ChannelID != botChannel || state.UserID == s.State.User.ID {
			continue
		}
		if member, err := s.State.Member(vs.GuildID, state.UserID); err == nil && member.User != nil && member.User.Bot {
			continue
		}
		return // a human is still listening
	}

	log.Info().Str("guild", vs.GuildID).Msg("voice channel empty, auto-disconnecting")
	b.players.Session(vs.GuildID).VoiceChannelEmpty()
}

func (b *Bot) isAdmin(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	perms, err := s.State.MessagePermissions(m.Message)
	if err != nil {
		return false
	}
	return perms&discordgo.PermissionAdministrator != 0
}

func displayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	return m.Author.Username
}

// Connect implements player.Connector.
func (b *Bot) Connect(guildID, channelID string) (player.VoiceSession, error) {
	vc, err := b.dg.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("join voice channel: %w", err)
	}
	return newVoiceSession(vc), nil
}

// UserVoiceChannel implements player.VoiceLocator.
func (b *Bot) UserVoiceChannel(guildID, userID string) (string, bool) {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return "", false
	}
	for _, state := range guild.VoiceStates {
		if state.UserID == userID {
			return state.ChannelID, true
		}
	}
	return "", false
}

// NowPlaying implements player.Notifier.
func (b *Bot) NowPlaying(channelID string, t track.Track) {
	b.sendEmbed(channelID, &discordgo.MessageEmbed{
		Title: "▶️ Teraz gra",
		Color: 0x2ecc71,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Tytuł", Value: t.Title, Inline: false},
			{Name: "Kanał", Value: t.Uploader, Inline: true},
			{Name: "Czas trwania", Value: t.DurationString(), Inline: true},
			{Name: "Dodał", Value: t.AddedBy, Inline: true},
			{Name: "Link", Value: t.URL, Inline: false},
		},
	})
}

// PlaybackError implements player.Notifier.
func (b *Bot) PlaybackError(channelID string, t track.Track, err error) {
	b.sendEmbed(channelID, &discordgo.MessageEmbed{
		Title:       "❌ Pominięto utwór",
		Description: fmt.Sprintf("Nie udało się odtworzyć: **%s**", t.Title),
		Color:       0xe74c3c,
	})
}

// AutoDJAdded implements player.Notifier.
func (b *Bot) AutoDJAdded(channelID string, tracks []track.Track) {
	var lines []string
	for _, t := range tracks {
		lines = append(lines, "• "+t.Title)
	}
	b.sendEmbed(channelID, &discordgo.MessageEmbed{
		Title:       "🎧 AutoDJ dodał podobne utwory",
		Description: strings.Join(lines, "\n"),
		Color:       0x3498db,
	})
}

func (b *Bot) sendEmbed(channelID string, embed *discordgo.MessageEmbed) {
	if channelID == "" {
		return
	}
	if _, err := b.dg.ChannelMessageSendEmbed(channelID, embed); err != nil {
		log.Warn().Err(err).Str("channel", channelID).Msg("notification send failed")
	}
}

type channelResponder struct {
	dg        *discordgo.Session
	channelID string
}

func (r *channelResponder) Send(content string) error {
	_, err := r.dg.ChannelMessageSend(r.channelID, content)
	return err
}

func (r *channelResponder) SendEmbed(embed *discordgo.MessageEmbed) error {
	_, err := r.dg.ChannelMessageSendEmbed(r.channelID, embed)
	return err
}
