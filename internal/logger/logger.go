package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// L is the package-level logger. Init must be called once at startup.
var L = zerolog.New(os.Stdout).With().Timestamp().Logger()

func Init(levelStr string) {
	level, err := zerolog.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		level = zerolog.InfoLevel
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	L = zerolog.New(output).Level(level).With().Timestamp().Logger()
	L.Info().Str("level", level.String()).Msg("logger initialized")
}
