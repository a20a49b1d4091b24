package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"court-rotation/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	sinkMu sync.RWMutex
	sink   io.Writer = os.Stdout
	file   *rotatingWriter
)

// Init configures the global zerolog logger. When cfg.File is set, output is
// mirrored to a size-capped file next to stdout.
func Init(cfg config.LogConfig) error {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		w, err := newRotatingWriter(cfg.File, cfg.MaxMB)
		if err != nil {
			return err
		}
		sinkMu.Lock()
		if file != nil {
			_ = file.Close()
		}
		file = w
		sinkMu.Unlock()
		out = io.MultiWriter(os.Stdout, w)
	}
	sinkMu.Lock()
	sink = out
	sinkMu.Unlock()

	var console io.Writer = out
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: out}
	}

	zerolog.SetGlobalLevel(level)
	ctx := zerolog.New(console).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
	return nil
}

// Writer returns the raw sink so access logs share the destination of the
// application log.
func Writer() io.Writer {
	sinkMu.RLock()
	defer sinkMu.RUnlock()
	return sink
}

func Close() error {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	sink = os.Stdout
	return err
}
