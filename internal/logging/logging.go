package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup configures the global zerolog logger. Console output goes to stderr;
// warnings and errors are additionally appended to a rotating file under
// logsDir so failed extractions survive restarts.
func Setup(level string, logsDir string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	writers := []io.Writer{console}
	if logsDir != "" {
		_ = os.MkdirAll(logsDir, 0o755)
		errFile := &lumberjack.Logger{
			Filename:   filepath.Join(logsDir, "errors.log"),
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     30, // days
		}
		writers = append(writers, &zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: errFile},
			Level:  zerolog.WarnLevel,
		})
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}
