package command

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
)

type helpCommand struct {
	registry *Registry
}

func (c *helpCommand) Name() string        { return "help" }
func (c *helpCommand) Aliases() []string   { return []string{"h"} }
func (c *helpCommand) Usage() string       { return "help" }
func (c *helpCommand) Description() string { return "Wyświetla listę dostępnych komend" }

func (c *helpCommand) Run(ctx context.Context, inv *Invocation) error {
	embed := &discordgo.MessageEmbed{Title: "Dostępne komendy", Color: colorInfo}
	for _, cmd := range c.registry.All() {
		name := cmd.Usage()
		if aliases := cmd.Aliases(); len(aliases) > 0 {
			name = strings.Join(aliases, "/") + "/" + name
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "+" + name,
			Value: cmd.Description(),
		})
	}
	return inv.Reply.SendEmbed(embed)
}
