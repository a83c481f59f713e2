// Package command holds the transport-agnostic prefix commands: a command is
// something with a name, aliases and Run(ctx, invocation). How invocations
// are produced (Discord message events) lives in the adapter.
package command

import (
	"context"
	"errors"
	"sort"

	"github.com/bwmarrin/discordgo"
)

// ErrPermissionDenied means the invoking user may not perform the operation
// on the addressed resource.
var ErrPermissionDenied = errors.New("permission denied")

// Responder sends replies back to wherever the invocation came from.
type Responder interface {
	Send(content string) error
	SendEmbed(embed *discordgo.MessageEmbed) error
}

// Invocation carries everything a command needs about one incoming message.
type Invocation struct {
	GuildID   string
	ChannelID string
	UserID    string
	Username  string
	IsAdmin   bool
	Args      []string
	Reply     Responder
}

// Command is the universal contract: identity plus execution.
type Command interface {
	Name() string
	Aliases() []string
	Usage() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}

// Registry stores commands by name and alias. It does not dispatch; the
// adapter looks commands up and invokes them with its own invocation.
type Registry struct {
	byName map[string]Command
	names  []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Command)}
}

// Register adds a command under its name and all aliases.
func (r *Registry) Register(c Command) {
	r.byName[c.Name()] = c
	for _, a := range c.Aliases() {
		r.byName[a] = c
	}
	r.names = append(r.names, c.Name())
}

// Get returns the command registered under name or alias, or nil.
func (r *Registry) Get(name string) Command {
	return r.byName[name]
}

// All returns the registered commands sorted by canonical name, aliases not
// repeated.
func (r *Registry) All() []Command {
	names := append([]string(nil), r.names...)
	sort.Strings(names)
	list := make([]Command, 0, len(names))
	for _, n := range names {
		list = append(list, r.byName[n])
	}
	return list
}
