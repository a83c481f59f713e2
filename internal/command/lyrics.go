package command

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"grajek/internal/lyrics"
)

// embedDescriptionLimit is Discord's cap on embed description length.
const embedDescriptionLimit = 4000

type lyricsCommand struct{ deps *Deps }

func (c *lyricsCommand) Name() string        { return "lyrics" }
func (c *lyricsCommand) Aliases() []string   { return []string{"l"} }
func (c *lyricsCommand) Usage() string       { return "lyrics" }
func (c *lyricsCommand) Description() string { return "Wyświetla tekst aktualnie odtwarzanego utworu" }

func (c *lyricsCommand) Run(ctx context.Context, inv *Invocation) error {
	if c.deps.Lyrics == nil {
		return inv.Reply.Send("❌ Funkcja tekstów jest niedostępna - brak tokenu API Genius.")
	}

	current, ok := c.deps.Queues.Current(inv.GuildID)
	if !ok {
		return inv.Reply.Send("Obecnie nic nie jest odtwarzane.")
	}

	text, err := c.deps.Lyrics.Search(ctx, current.Title)
	switch {
	case isErr(err, lyrics.ErrUnconfigured):
		return inv.Reply.Send("❌ Funkcja tekstów jest niedostępna - brak tokenu API Genius.")
	case isErr(err, lyrics.ErrNotFound):
		return inv.Reply.Send("Nie znaleziono tekstu dla: " + current.Title)
	case err != nil:
		return inv.Reply.Send("❌ Błąd podczas pobierania tekstu.")
	}

	for i, chunk := range lyrics.Split(text, embedDescriptionLimit) {
		title := "Tekst: " + current.Title
		if i > 0 {
			title = "Tekst (ciąg dalszy)"
		}
		embed := &discordgo.MessageEmbed{Title: title, Description: chunk, Color: colorInfo}
		if err := inv.Reply.SendEmbed(embed); err != nil {
			return err
		}
	}
	return nil
}
