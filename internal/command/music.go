package command

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"grajek/internal/limiter"
	"grajek/internal/lyrics"
	"grajek/internal/player"
	"grajek/internal/playlist"
	"grajek/internal/queue"
	"grajek/internal/resolver"
	"grajek/internal/track"
)

const (
	colorSuccess = 0x2ecc71
	colorError   = 0xe74c3c
	colorInfo    = 0x3498db
	colorQueue   = 0x9b59b6
)

// Media is the resolver surface the commands use.
type Media interface {
	Resolve(ctx context.Context, input string) (track.Metadata, error)
	SearchTop(ctx context.Context, query string, n int) ([]track.Metadata, error)
	ResolvePlaylist(ctx context.Context, url string) ([]track.Metadata, error)
}

// Deps are the shared collaborators of the music commands.
type Deps struct {
	Players   *player.Manager
	Queues    *queue.Manager
	Limits    *limiter.Limiter
	Media     Media
	Playlists *playlist.Store
	Lyrics    lyrics.Client
}

// RegisterMusic registers every music command, each wrapped with the given
// middlewares.
func RegisterMusic(r *Registry, deps *Deps, mws ...Middleware) {
	cmds := []Command{
		&playCommand{deps},
		&findCommand{deps},
		&pauseCommand{deps},
		&skipCommand{deps},
		&queueCommand{deps},
		&deleteCommand{deps},
		&stopCommand{deps},
		&disconnectCommand{deps},
		&volumeCommand{deps},
		&lyricsCommand{deps},
		&loopCommand{deps},
		&savePlaylistCommand{deps},
		&loadPlaylistCommand{deps},
		&listPlaylistsCommand{deps},
		&autoDJCommand{deps},
	}
	for _, c := range cmds {
		r.Register(Apply(c, mws...))
	}
	r.Register(&helpCommand{registry: r})
}

// ensurePlaying kicks playback off after an enqueue, translating the
// no-voice-channel case into a user-facing hint.
func ensurePlaying(ctx context.Context, deps *Deps, inv *Invocation) error {
	err := deps.Players.Session(inv.GuildID).EnsurePlaying(ctx, inv.UserID, inv.ChannelID)
	switch {
	case err == nil:
		return nil
	case isErr(err, player.ErrNoVoiceChannel):
		return inv.Reply.Send("Dołącz do kanału głosowego, aby rozpocząć odtwarzanie.")
	default:
		return err
	}
}

func trackEmbed(title string, t track.Track) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: title,
		Color: colorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Tytuł", Value: t.Title, Inline: false},
			{Name: "Kanał", Value: t.Uploader, Inline: true},
			{Name: "Czas trwania", Value: t.DurationString(), Inline: true},
			{Name: "Dodał", Value: t.AddedBy, Inline: true},
			{Name: "Link", Value: t.URL, Inline: false},
		},
	}
}

type playCommand struct{ deps *Deps }

func (c *playCommand) Name() string        { return "play" }
func (c *playCommand) Aliases() []string   { return []string{"p"} }
func (c *playCommand) Usage() string       { return "play <url lub fraza>" }
func (c *playCommand) Description() string { return "Odtwarza utwór lub playlistę z YouTube" }

func (c *playCommand) Run(ctx context.Context, inv *Invocation) error {
	if len(inv.Args) == 0 {
		return inv.Reply.Send("Użycie: " + c.Usage())
	}
	input := strings.TrimSpace(strings.Join(inv.Args, " "))
	if resolver.Classify(input) == resolver.KindPlaylistURL {
		return c.addPlaylist(ctx, inv, input)
	}
	return c.addSingle(ctx, inv, input)
}

func (c *playCommand) addSingle(ctx context.Context, inv *Invocation, input string) error {
	if ok, _ := c.deps.Limits.CanAddTracks(inv.UserID, inv.GuildID, 1); !ok {
		return inv.Reply.Send("⚠️ Osiągnąłeś limit utworów w kolejce.")
	}

	meta, err := c.deps.Media.Resolve(ctx, input)
	if err != nil {
		return inv.Reply.Send("❌ Nie udało się pobrać informacji o utworze. Sprawdź czy link jest poprawny.")
	}
	t, err := track.FromMetadata(meta, inv.Username, inv.UserID)
	if err != nil {
		return inv.Reply.Send("❌ Problem z metadanymi utworu.")
	}

	c.deps.Queues.Enqueue(inv.GuildID, t)
	c.deps.Limits.AdjustCount(inv.UserID, inv.GuildID, 1)
	if err := inv.Reply.SendEmbed(trackEmbed("Dodano do kolejki", t)); err != nil {
		return err
	}
	return ensurePlaying(ctx, c.deps, inv)
}

func (c *playCommand) addPlaylist(ctx context.Context, inv *Invocation, url string) error {
	metas, err := c.deps.Media.ResolvePlaylist(ctx, url)
	if err != nil || len(metas) == 0 {
		return inv.Reply.Send("❌ Nie udało się pobrać playlisty.")
	}

	requested := len(metas)
	canAll, maxAddable := c.deps.Limits.CanAddTracks(inv.UserID, inv.GuildID, requested)
	if !canAll && maxAddable == 0 {
		return inv.Reply.Send("⚠️ Osiągnąłeś limit utworów w kolejce.")
	}
	if !canAll {
		metas = metas[:maxAddable]
	}

	tracks := make([]track.Track, 0, len(metas))
	for _, m := range metas {
		t, err := track.FromMetadata(m, inv.Username, inv.UserID)
		if err != nil {
			continue
		}
		tracks = append(tracks, t)
	}
	if len(tracks) == 0 {
		return inv.Reply.Send("❌ Playlista nie zawiera utworów możliwych do odtworzenia.")
	}

	c.deps.Queues.EnqueueMany(inv.GuildID, tracks)
	c.deps.Limits.AdjustCount(inv.UserID, inv.GuildID, len(tracks))

	embed := &discordgo.MessageEmbed{
		Title: "Dodano playlistę",
		Color: colorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Kto dodał", Value: inv.Username, Inline: true},
			{Name: "Utworów dodano", Value: strconv.Itoa(len(tracks)), Inline: true},
		},
	}
	if !canAll {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Uwaga",
			Value: "Dodano tylko " + strconv.Itoa(len(tracks)) + " z " + strconv.Itoa(requested) + " utworów (limit użytkownika)",
		})
	}
	if err := inv.Reply.SendEmbed(embed); err != nil {
		return err
	}
	return ensurePlaying(ctx, c.deps, inv)
}

type findCommand struct{ deps *Deps }

func (c *findCommand) Name() string        { return "find" }
func (c *findCommand) Aliases() []string   { return []string{"f"} }
func (c *findCommand) Usage() string       { return "find <fraza>" }
func (c *findCommand) Description() string { return "Wyszukuje utwory na YouTube" }

func (c *findCommand) Run(ctx context.Context, inv *Invocation) error {
	if len(inv.Args) == 0 {
		return inv.Reply.Send("Użycie: " + c.Usage())
	}
	query := strings.Join(inv.Args, " ")

	results, err := c.deps.Media.SearchTop(ctx, query, 5)
	if err != nil || len(results) == 0 {
		return inv.Reply.Send("❌ Nie znaleziono wyników.")
	}

	embed := &discordgo.MessageEmbed{
		Title: "Wybierz link interesującego ciebie utworu:",
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Kto szukał", Value: inv.Username, Inline: true},
		},
	}
	for _, m := range results {
		seconds := 0
		if f, err := strconv.ParseFloat(m.Duration, 64); err == nil && f > 0 {
			seconds = int(f)
		}
		url := m.URL
		if url == "" {
			url = "https://www.youtube.com/watch?v=" + m.ID
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  m.Title + ": " + track.FormatDuration(seconds),
			Value: url,
		})
	}
	return inv.Reply.SendEmbed(embed)
}

type pauseCommand struct{ deps *Deps }

func (c *pauseCommand) Name() string        { return "pause" }
func (c *pauseCommand) Aliases() []string   { return []string{"pr", "resume"} }
func (c *pauseCommand) Usage() string       { return "pause" }
func (c *pauseCommand) Description() string { return "Wstrzymuje lub wznawia odtwarzanie" }

func (c *pauseCommand) Run(ctx context.Context, inv *Invocation) error {
	paused, err := c.deps.Players.Session(inv.GuildID).TogglePause()
	if isErr(err, player.ErrNothingToToggle) {
		return inv.Reply.Send("Obecnie nic nie jest odtwarzane.")
	}
	if err != nil {
		return err
	}
	if paused {
		return inv.Reply.Send("⏸️ Wstrzymano odtwarzanie.")
	}
	return inv.Reply.Send("▶️ Wznowiono odtwarzanie.")
}

type skipCommand struct{ deps *Deps }

func (c *skipCommand) Name() string        { return "skip" }
func (c *skipCommand) Aliases() []string   { return []string{"sk"} }
func (c *skipCommand) Usage() string       { return "skip [pozycja]" }
func (c *skipCommand) Description() string { return "Pomija aktualny utwór lub skacze do pozycji" }

func (c *skipCommand) Run(ctx context.Context, inv *Invocation) error {
	position := 1
	if len(inv.Args) > 0 {
		p, err := strconv.Atoi(inv.Args[0])
		if err != nil || p < 1 {
			return inv.Reply.Send("Podaj prawidłowy numer pozycji.")
		}
		position = p
	}

	err := c.deps.Players.Session(inv.GuildID).SkipTo(ctx, position-1)
	switch {
	case isErr(err, player.ErrNotConnected):
		return inv.Reply.Send("Bot nie jest połączony z żadnym kanałem głosowym.")
	case isErr(err, player.ErrPositionOutOfRange):
		return inv.Reply.Send("Kolejka jest pusta lub pozycja jest nieprawidłowa.")
	}
	return err
}

type queueCommand struct{ deps *Deps }

func (c *queueCommand) Name() string        { return "queue" }
func (c *queueCommand) Aliases() []string   { return []string{"q"} }
func (c *queueCommand) Usage() string       { return "queue" }
func (c *queueCommand) Description() string { return "Wyświetla aktualną kolejkę odtwarzania" }

func (c *queueCommand) Run(ctx context.Context, inv *Invocation) error {
	if !c.deps.Queues.HasContent(inv.GuildID) {
		return inv.Reply.Send("Kolejka jest pusta.")
	}
	return inv.Reply.SendEmbed(c.queueEmbed(inv.GuildID))
}

func (c *queueCommand) queueEmbed(guildID string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{Title: "🎼 Kolejka odtwarzania", Color: colorQueue}

	if current, ok := c.deps.Queues.Current(guildID); ok {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "🎵 Teraz gra:",
			Value: "**" + current.Title + "**\n📺 " + current.Uploader +
				"\n⏱️ " + current.DurationString() + "\n👤 " + current.AddedBy +
				"\n🔗 " + current.URL,
		})
	}

	tracks := c.deps.Queues.Tracks(guildID)
	if len(tracks) > 0 {
		shown := tracks
		if len(shown) > 10 {
			shown = shown[:10]
		}
		var lines []string
		for i, t := range shown {
			title := t.Title
			if len(title) > 50 {
				title = title[:50] + "..."
			}
			lines = append(lines, "**"+strconv.Itoa(i+1)+".** "+title+
				"\n⏱️ "+t.DurationString()+" | 👤 "+t.AddedBy)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "📋 Następne utwory (" + strconv.Itoa(len(tracks)) + " w kolejce):",
			Value: strings.Join(lines, "\n\n"),
		})
		if len(tracks) > 10 {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:  "ℹ️ Informacja:",
				Value: "Pokazano 10 z " + strconv.Itoa(len(tracks)) + " utworów w kolejce",
			})
		}
	}

	if c.deps.Queues.IsLooping(guildID) {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "🔄", Value: "Zapętlanie włączone", Inline: true})
	}
	if c.deps.Players.Session(guildID).AutoDJEnabled() {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "🎧", Value: "AutoDJ aktywny", Inline: true})
	}
	return embed
}

type deleteCommand struct{ deps *Deps }

func (c *deleteCommand) Name() string        { return "delete" }
func (c *deleteCommand) Aliases() []string   { return []string{"dl"} }
func (c *deleteCommand) Usage() string       { return "delete <numer>" }
func (c *deleteCommand) Description() string { return "Usuwa wybrany numer z kolejki odtwarzania" }

func (c *deleteCommand) Run(ctx context.Context, inv *Invocation) error {
	if len(inv.Args) == 0 {
		return inv.Reply.Send("Podaj pozycję do usunięcia!")
	}
	position, err := strconv.Atoi(inv.Args[0])
	if err != nil {
		return inv.Reply.Send("Podaj prawidłowy numer pozycji.")
	}

	tracks := c.deps.Queues.Tracks(inv.GuildID)
	if position < 1 || position > len(tracks) {
		return inv.Reply.Send("Wybrałeś zły numer.")
	}

	target := tracks[position-1]
	if err := canModifyTrack(inv, target); err != nil {
		return inv.Reply.Send("⚠️ Możesz usuwać tylko swoje utwory z kolejki!")
	}

	removed, ok := c.deps.Queues.RemoveAt(inv.GuildID, position-1)
	if !ok {
		return inv.Reply.Send("Wybrałeś zły numer.")
	}
	c.deps.Limits.AdjustCount(removed.AddedByID, inv.GuildID, -1)
	return inv.Reply.SendEmbed(trackEmbed("Usunięto z kolejki", removed))
}

// canModifyTrack allows owners and guild admins.
func canModifyTrack(inv *Invocation, t track.Track) error {
	if inv.IsAdmin || t.AddedByID == inv.UserID {
		return nil
	}
	return ErrPermissionDenied
}

type stopCommand struct{ deps *Deps }

func (c *stopCommand) Name() string        { return "stop" }
func (c *stopCommand) Aliases() []string   { return []string{"s"} }
func (c *stopCommand) Usage() string       { return "stop" }
func (c *stopCommand) Description() string { return "Zatrzymuje odtwarzanie i czyści kolejkę" }

func (c *stopCommand) Run(ctx context.Context, inv *Invocation) error {
	if err := c.deps.Players.Session(inv.GuildID).Stop(); err != nil {
		return err
	}
	return inv.Reply.Send("Zatrzymano odtwarzanie i wyczyszczono kolejkę.")
}

type disconnectCommand struct{ deps *Deps }

func (c *disconnectCommand) Name() string        { return "disconnect" }
func (c *disconnectCommand) Aliases() []string   { return []string{"d"} }
func (c *disconnectCommand) Usage() string       { return "disconnect" }
func (c *disconnectCommand) Description() string { return "Rozłącza bota z kanału głosowego" }

func (c *disconnectCommand) Run(ctx context.Context, inv *Invocation) error {
	err := c.deps.Players.Session(inv.GuildID).Disconnect()
	if isErr(err, player.ErrNotConnected) {
		return inv.Reply.Send("Bot nie jest połączony z żadnym kanałem głosowym.")
	}
	if err != nil {
		return err
	}
	return inv.Reply.Send("Rozłączono z kanału głosowego.")
}

type volumeCommand struct{ deps *Deps }

func (c *volumeCommand) Name() string        { return "volume" }
func (c *volumeCommand) Aliases() []string   { return []string{"v"} }
func (c *volumeCommand) Usage() string       { return "volume <procent>" }
func (c *volumeCommand) Description() string { return "Ustawia głośność (0-200%)" }

func (c *volumeCommand) Run(ctx context.Context, inv *Invocation) error {
	if len(inv.Args) == 0 {
		return inv.Reply.Send("Użycie: " + c.Usage())
	}
	percent, err := strconv.Atoi(inv.Args[0])
	if err != nil || percent < 0 || percent > 200 {
		return inv.Reply.Send("Głośność musi być między 0 a 200%")
	}

	err = c.deps.Players.Session(inv.GuildID).SetVolume(float64(percent) / 100)
	if isErr(err, player.ErrNotConnected) {
		return inv.Reply.Send("Bot nie jest połączony z żadnym kanałem głosowym.")
	}
	if err != nil {
		return err
	}
	return inv.Reply.Send("Głośność ustawiona na " + strconv.Itoa(percent) + "%")
}

type loopCommand struct{ deps *Deps }

func (c *loopCommand) Name() string        { return "loop" }
func (c *loopCommand) Aliases() []string   { return []string{"lp"} }
func (c *loopCommand) Usage() string       { return "loop" }
func (c *loopCommand) Description() string { return "Włącza/wyłącza zapętlanie aktualnego utworu" }

func (c *loopCommand) Run(ctx context.Context, inv *Invocation) error {
	if c.deps.Queues.ToggleLoop(inv.GuildID) {
		return inv.Reply.Send("🔄 Zapętlanie włączone.")
	}
	return inv.Reply.Send("➡️ Zapętlanie wyłączone.")
}

type autoDJCommand struct{ deps *Deps }

func (c *autoDJCommand) Name() string        { return "autodj" }
func (c *autoDJCommand) Aliases() []string   { return []string{"similar"} }
func (c *autoDJCommand) Usage() string       { return "autodj [true/false]" }
func (c *autoDJCommand) Description() string {
	return "Włącza/wyłącza automatyczne dobieranie podobnych utworów"
}

func (c *autoDJCommand) Run(ctx context.Context, inv *Invocation) error {
	session := c.deps.Players.Session(inv.GuildID)

	var enabled bool
	if len(inv.Args) > 0 {
		v, err := strconv.ParseBool(inv.Args[0])
		if err != nil {
			return inv.Reply.Send("Użycie: " + c.Usage())
		}
		session.SetAutoDJ(v)
		enabled = v
	} else {
		enabled = session.ToggleAutoDJ()
	}

	if enabled {
		return inv.Reply.Send("🎧 AutoDJ włączony - automatycznie dodam podobne utwory, gdy kolejka będzie się kończyć.")
	}
	return inv.Reply.Send("⏹️ AutoDJ wyłączony - nie będę dodawać podobnych utworów.")
}

func isErr(err, target error) bool {
	return err != nil && errors.Is(err, target)
}
