package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"grajek/internal/cache"
	"grajek/internal/config"
	"grajek/internal/discord"
	"grajek/internal/filestore"
	"grajek/internal/limiter"
	"grajek/internal/logging"
	"grajek/internal/lyrics"
	"grajek/internal/playlist"
	"grajek/internal/queue"
	"grajek/internal/resolver"
	"grajek/internal/track"
	v "grajek/internal/version"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	logging.Setup(cfg.LogLevel, cfg.LogsDir)
	log.Info().Str("version", v.AppVersion).Msgf("starting %s", v.AppName)

	files, err := filestore.New(cfg.FilesDir)
	if err != nil {
		log.Fatal().Err(err).Msg("file store init failed")
	}
	log.Info().Str("dir", files.Dir()).Msg("file store ready")
	playlists, err := playlist.NewStore(cfg.PlaylistsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("playlist store init failed")
	}

	searches := cache.New[[]track.Metadata](cfg.CacheTTL())
	go searches.RunSweeper(ctx, time.Hour)

	queues := queue.NewManager()
	limits := limiter.New(cfg.Cooldown(), cfg.MaxQueuePerUser)

	var lyricsClient lyrics.Client
	if g := lyrics.NewGenius(cfg.LyricsToken); g != nil {
		lyricsClient = g
	}

	bot, err := discord.New(cfg, discord.Deps{
		Queues:    queues,
		Limits:    limits,
		Files:     files,
		Resolver:  resolver.New(files, searches),
		Playlists: playlists,
		Lyrics:    lyricsClient,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("bot init failed")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- bot.Run(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("bot exited with error")
		}
		cancel()
	}

	log.Info().Msg("bot exited cleanly")
}
