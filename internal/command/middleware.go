package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"grajek/internal/limiter"
)

// Middleware wraps a command; the wrapped value is still a Command.
type Middleware func(Command) Command

// Apply wraps c with the middlewares in order; each wraps the previous
// result, so the last in the list is the outermost.
func Apply(c Command, mws ...Middleware) Command {
	for _, mw := range mws {
		c = mw(c)
	}
	return c
}

type wrapped struct {
	Command
	run func(ctx context.Context, inv *Invocation) error
}

func (w *wrapped) Run(ctx context.Context, inv *Invocation) error {
	return w.run(ctx, inv)
}

// Wrap returns a command that runs run instead of c.Run, delegating identity
// to c.
func Wrap(c Command, run func(ctx context.Context, inv *Invocation) error) Command {
	return &wrapped{Command: c, run: run}
}

// WithGuildOnly rejects invocations that arrive outside a guild.
func WithGuildOnly() Middleware {
	return func(c Command) Command {
		return Wrap(c, func(ctx context.Context, inv *Invocation) error {
			if inv.GuildID == "" {
				return inv.Reply.Send("Ta komenda działa tylko na serwerze.")
			}
			return c.Run(ctx, inv)
		})
	}
}

// WithCooldown enforces the per-user command cooldown before running. A
// rejected attempt does not move the cooldown window.
func WithCooldown(limits *limiter.Limiter) Middleware {
	return func(c Command) Command {
		return Wrap(c, func(ctx context.Context, inv *Invocation) error {
			if err := limits.CheckAndRecord(inv.UserID, inv.GuildID, c.Name()); err != nil {
				var cooldown *limiter.CooldownActiveError
				if errors.As(err, &cooldown) {
					return inv.Reply.Send(fmt.Sprintf("⚠️ Poczekaj %.1f s przed kolejnym użyciem komendy.", cooldown.Remaining.Seconds()))
				}
				return err
			}
			return c.Run(ctx, inv)
		})
	}
}

// WithLogger logs every invocation with its outcome and duration.
func WithLogger() Middleware {
	return func(c Command) Command {
		return Wrap(c, func(ctx context.Context, inv *Invocation) error {
			start := time.Now()
			err := c.Run(ctx, inv)
			ev := log.Info()
			if err != nil {
				ev = log.Warn().Err(err)
			}
			ev.Str("command", c.Name()).
				Str("guild", inv.GuildID).
				Str("user", inv.UserID).
				Dur("took", time.Since(start)).
				Msg("command handled")
			return err
		})
	}
}
