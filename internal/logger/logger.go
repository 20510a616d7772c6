package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New создает логгер с указанным уровнем.
// pretty включает человекочитаемый вывод для локальной разработки.
func New(level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339
	l := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if pretty {
		l = l.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
	}

	return l.Level(lvl)
}

// Setup заменяет глобальный логгер пакета zerolog/log.
func Setup(level string, pretty bool) {
	log.Logger = New(level, pretty)
}
