package fiberstack

import (
	"fmt"
	"os"
	"time"

	"github.com/DataExMachina-dev/fiberstack-go/internal/persist"
)

// Option to configure the fiberstack library.
type Option interface {
	apply(*config)
}

type config struct {
	snapshotDir string
	compression persist.Compression
	listenAddr  string
	errorLogger func(err error)
	now         func() time.Time
	// envErr records a malformed environment variable. It is reported
	// through errorLogger once options are applied.
	envErr error
}

const (
	defaultSnapshotDir = "."
	defaultListenAddr  = "127.0.0.1:7390"

	ENV_SNAPSHOT_DIR = "FIBERSTACK_SNAPSHOT_DIR"
	ENV_COMPRESSION  = "FIBERSTACK_COMPRESSION"
	ENV_LISTEN_ADDR  = "FIBERSTACK_LISTEN_ADDR"
)

func makeDefaultConfig() config {
	cfg := config{
		snapshotDir: defaultSnapshotDir,
		listenAddr:  defaultListenAddr,
		errorLogger: func(err error) {},
		now:         time.Now,
	}
	if os.Getenv(ENV_SNAPSHOT_DIR) != "" {
		cfg.snapshotDir = os.Getenv(ENV_SNAPSHOT_DIR)
	}
	if os.Getenv(ENV_COMPRESSION) != "" {
		c, err := persist.ParseCompression(os.Getenv(ENV_COMPRESSION))
		if err != nil {
			cfg.envErr = fmt.Errorf("ignoring %s: %w", ENV_COMPRESSION, err)
		}
		cfg.compression = c
	}
	if os.Getenv(ENV_LISTEN_ADDR) != "" {
		cfg.listenAddr = os.Getenv(ENV_LISTEN_ADDR)
	}
	return cfg
}

func makeConfig(opts []Option) config {
	cfg := makeDefaultConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	if cfg.envErr != nil {
		cfg.errorLogger(cfg.envErr)
	}
	return cfg
}

type optionFunc func(cfg *config)

func (f optionFunc) apply(cfg *config) {
	f(cfg)
}

// WithSnapshotDir sets the base directory snapshots are written to and
// served from. Defaults to the FIBERSTACK_SNAPSHOT_DIR environment variable,
// or the working directory if that is not set either.
func WithSnapshotDir(dir string) Option {
	return optionFunc(func(cfg *config) {
		cfg.snapshotDir = dir
	})
}

// WithCompression sets how snapshots are stored. Defaults to the
// FIBERSTACK_COMPRESSION environment variable ("none" or "zstd").
func WithCompression(c Compression) Option {
	return optionFunc(func(cfg *config) {
		cfg.compression = c
	})
}

// WithListenAddr sets the address Server.Start listens on. Defaults to the
// FIBERSTACK_LISTEN_ADDR environment variable, or 127.0.0.1:7390.
func WithListenAddr(addr string) Option {
	return optionFunc(func(cfg *config) {
		cfg.listenAddr = addr
	})
}

// WithErrorLogger sets a function to be called with errors (for example for
// logging them).
func WithErrorLogger(f func(err error)) Option {
	return optionFunc(func(cfg *config) {
		cfg.errorLogger = f
	})
}

// WithClock sets the source of snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(cfg *config) {
		cfg.now = now
	})
}
