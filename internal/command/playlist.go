package command

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"grajek/internal/track"
)

type savePlaylistCommand struct{ deps *Deps }

func (c *savePlaylistCommand) Name() string        { return "saveplaylist" }
func (c *savePlaylistCommand) Aliases() []string   { return []string{"sp"} }
func (c *savePlaylistCommand) Usage() string       { return "saveplaylist <nazwa>" }
func (c *savePlaylistCommand) Description() string {
	return "Zapisuje aktualną kolejkę jako playlistę"
}

func (c *savePlaylistCommand) Run(ctx context.Context, inv *Invocation) error {
	if len(inv.Args) == 0 {
		return inv.Reply.Send("Użycie: " + c.Usage())
	}
	name := inv.Args[0]

	tracks := c.deps.Queues.Tracks(inv.GuildID)
	if len(tracks) == 0 {
		return inv.Reply.Send("❌ Kolejka jest pusta, nie ma czego zapisać.")
	}

	if err := c.deps.Playlists.Save(name, tracks, inv.Username); err != nil {
		return inv.Reply.Send("❌ Błąd podczas zapisywania playlisty '" + name + "'.")
	}
	return inv.Reply.Send("✅ Playlista '" + name + "' została zapisana z " + strconv.Itoa(len(tracks)) + " utworami.")
}

type loadPlaylistCommand struct{ deps *Deps }

func (c *loadPlaylistCommand) Name() string        { return "loadplaylist" }
func (c *loadPlaylistCommand) Aliases() []string   { return []string{"loadp"} }
func (c *loadPlaylistCommand) Usage() string       { return "loadplaylist <nazwa>" }
func (c *loadPlaylistCommand) Description() string { return "Wczytuje zapisaną playlistę" }

func (c *loadPlaylistCommand) Run(ctx context.Context, inv *Invocation) error {
	if len(inv.Args) == 0 {
		return inv.Reply.Send("Użycie: " + c.Usage())
	}
	name := inv.Args[0]

	rec, err := c.deps.Playlists.Load(name)
	if err != nil {
		return inv.Reply.Send("❌ Błąd podczas wczytywania playlisty '" + name + "'.")
	}
	if rec == nil {
		return inv.Reply.Send("❌ Playlista '" + name + "' nie istnieje.")
	}
	if len(rec.Tracks) == 0 {
		return inv.Reply.Send("❌ Playlista jest pusta.")
	}

	total := len(rec.Tracks)
	canAll, maxAddable := c.deps.Limits.CanAddTracks(inv.UserID, inv.GuildID, total)
	if !canAll && maxAddable == 0 {
		return inv.Reply.Send("⚠️ Osiągnąłeś limit utworów w kolejce.")
	}
	records := rec.Tracks
	if !canAll {
		records = records[:maxAddable]
	}

	// Loaded tracks are attributed to whoever loads them, not the original
	// saver.
	tracks := make([]track.Track, 0, len(records))
	for _, r := range records {
		t := track.FromRecord(r)
		t.AddedBy = inv.Username
		t.AddedByID = inv.UserID
		tracks = append(tracks, t)
	}

	c.deps.Queues.EnqueueMany(inv.GuildID, tracks)
	c.deps.Limits.AdjustCount(inv.UserID, inv.GuildID, len(tracks))

	embed := &discordgo.MessageEmbed{
		Title:       "Wczytano playlistę: " + name,
		Description: "Dodano " + strconv.Itoa(len(tracks)) + " utworów do kolejki.",
		Color:       colorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Utworzona przez", Value: rec.Creator, Inline: true},
			{Name: "Data utworzenia", Value: rec.CreatedAt.Format("2006-01-02 15:04"), Inline: true},
		},
	}
	if !canAll {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Uwaga",
			Value: "Dodano tylko " + strconv.Itoa(len(tracks)) + " z " + strconv.Itoa(total) + " utworów (limit użytkownika)",
		})
	}
	if err := inv.Reply.SendEmbed(embed); err != nil {
		return err
	}
	return ensurePlaying(ctx, c.deps, inv)
}

type listPlaylistsCommand struct{ deps *Deps }

func (c *listPlaylistsCommand) Name() string        { return "playlists" }
func (c *listPlaylistsCommand) Aliases() []string   { return []string{"pl"} }
func (c *listPlaylistsCommand) Usage() string       { return "playlists" }
func (c *listPlaylistsCommand) Description() string { return "Wyświetla listę dostępnych playlist" }

func (c *listPlaylistsCommand) Run(ctx context.Context, inv *Invocation) error {
	summaries, err := c.deps.Playlists.List()
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		return inv.Reply.Send("❌ Nie znaleziono żadnych zapisanych playlist.")
	}

	embed := &discordgo.MessageEmbed{Title: "Zapisane playlisty", Color: colorInfo}
	for _, s := range summaries {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: s.Name,
			Value: strings.Join([]string{
				"Utworów: " + strconv.Itoa(s.TrackCount),
				"Utworzył: " + s.Creator,
				"Data: " + s.CreatedAt.Format("2006-01-02 15:04"),
			}, "\n"),
		})
	}
	return inv.Reply.SendEmbed(embed)
}
