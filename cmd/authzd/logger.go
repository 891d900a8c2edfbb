package main

import (
	"fmt"
	"io"
	"os"

	"github.com/goliatone/go-authz"
	"github.com/rs/zerolog"
)

// zlogger adapts zerolog to authz.Logger
type zlogger struct {
	log zerolog.Logger
}

var _ authz.Logger = zlogger{}

func newLogger(level string, pretty bool, component string) zlogger {
	var out io.Writer = os.Stdout
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return zlogger{
		log: zerolog.New(out).Level(lvl).With().Timestamp().Str("component", component).Logger(),
	}
}

func (l zlogger) named(component string) zlogger {
	return zlogger{log: l.log.With().Str("component", component).Logger()}
}

func (l zlogger) Debug(format string, args ...any) {
	l.log.Debug().Msg(fmt.Sprintf(format, args...))
}

func (l zlogger) Info(format string, args ...any) {
	l.log.Info().Msg(fmt.Sprintf(format, args...))
}

func (l zlogger) Error(format string, args ...any) {
	l.log.Error().Msg(fmt.Sprintf(format, args...))
}
