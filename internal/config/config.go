package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every runtime option the bot recognizes. Values come from the
// environment, with a .env file loaded first when present.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,required"`
	LyricsToken  string `env:"LYRICS_TOKEN"`

	CommandPrefix string `env:"COMMAND_PREFIX" envDefault:"+"`

	CooldownSeconds  int  `env:"COOLDOWN_SECONDS" envDefault:"3"`
	MaxQueuePerUser  int  `env:"MAX_QUEUE_PER_USER" envDefault:"15"`
	CacheTTLSeconds  int  `env:"SEARCH_CACHE_TTL_SECONDS" envDefault:"3600"`
	PollSeconds      int  `env:"POLL_INTERVAL_SECONDS" envDefault:"5"`
	AutoDJEnabled    bool `env:"AUTODJ_ENABLED" envDefault:"true"`
	AutoDJThreshold  int  `env:"AUTODJ_THRESHOLD" envDefault:"2"`
	AutoDJFetchCount int  `env:"AUTODJ_FETCH_COUNT" envDefault:"3"`

	FilesDir     string `env:"FILES_DIR" envDefault:"./files"`
	PlaylistsDir string `env:"PLAYLISTS_DIR" envDefault:"./playlists"`
	LogsDir      string `env:"LOGS_DIR" envDefault:"./logs"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// New loads configuration from .env (if any) and the environment.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollSeconds) * time.Second
}
