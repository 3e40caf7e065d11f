package arty

import (
	"errors"
	"fmt"
	"time"

	"github.com/iontrap/go-arty/logger"
)

// Default configuration values.
const (
	// DefaultReadTimeout bounds each wait for reply bytes. A read that
	// returns nothing within this window decodes as EndOfStream.
	DefaultReadTimeout = 1 * time.Second

	// DefaultPollInterval is the sleep between sequencer status polls in
	// [Controller.Run].
	DefaultPollInterval = 1 * time.Second
)

// Configuration range limits.
const (
	MinReadTimeout = 10 * time.Millisecond
	MaxReadTimeout = 30 * time.Second

	MinPollInterval = 1 * time.Millisecond
	MaxPollInterval = 60 * time.Second
)

// Config holds all configuration for an instrument connection.
type Config struct {
	// readTimeout is applied as a read deadline before every reply wait,
	// when the underlying channel supports deadlines.
	readTimeout time.Duration

	// pollInterval is the fixed delay between status polls in Run.
	pollInterval time.Duration

	logger logger.Logger
}

func newConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		readTimeout:  DefaultReadTimeout,
		pollInterval: DefaultPollInterval,
		logger:       logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// ReadTimeout returns the per-wait read deadline.
func (cfg *Config) ReadTimeout() time.Duration { return cfg.readTimeout }

// PollInterval returns the status poll interval used by Run.
func (cfg *Config) PollInterval() time.Duration { return cfg.pollInterval }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring a connection.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithReadTimeout sets the read deadline applied before each reply wait.
func WithReadTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinReadTimeout || d > MaxReadTimeout {
			return fmt.Errorf("arty: read timeout %v out of range [%v, %v]", d, MinReadTimeout, MaxReadTimeout)
		}
		cfg.readTimeout = d

		return nil
	})
}

// WithPollInterval sets the fixed delay between sequencer status polls in Run.
func WithPollInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinPollInterval || d > MaxPollInterval {
			return fmt.Errorf("arty: poll interval %v out of range [%v, %v]", d, MinPollInterval, MaxPollInterval)
		}
		cfg.pollInterval = d

		return nil
	})
}

// WithLogger sets the logger for the connection.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("arty: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
