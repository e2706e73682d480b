package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/arithmax-research/TurboBook/infra/config"
)

type Logger = zerolog.Logger

// NewLogger builds the process logger. Output is human readable when
// logging.pretty is set or stderr is a terminal, JSON otherwise.
func NewLogger(cfg config.Config) Logger {
	return newLogger(cfg, os.Stderr, term.IsTerminal(int(os.Stderr.Fd())))
}

func newLogger(cfg config.Config, out io.Writer, tty bool) Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	w := out
	if cfg.Logging.Pretty || tty {
		w = zerolog.ConsoleWriter{Out: out, NoColor: !tty}
	}
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil || cfg.Logging.Level == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
