package drivalyze

import (
	"time"

	"go.uber.org/zap"
)

const defaultTransitionLimit = 256

// Option configures a Resolver.
type Option func(*resolverConfig)

type resolverConfig struct {
	logger          *zap.Logger
	cache           OptionCache
	recorder        Recorder
	identity        func() Identity
	transitionLimit int
	now             func() time.Time
}

func applyOptions(opts []Option) resolverConfig {
	cfg := resolverConfig{
		logger:          zap.NewNop(),
		transitionLimit: defaultTransitionLimit,
		now:             time.Now,
		identity:        func() Identity { return Identity{} },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithLogger sets the logger used for fetch, discard and prediction events.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *resolverConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithOptionCache serves repeated scopes from cache instead of the Fetcher.
func WithOptionCache(cache OptionCache) Option {
	return func(cfg *resolverConfig) {
		cfg.cache = cache
	}
}

// WithRecorder hands successful predictions to recorder.
func WithRecorder(recorder Recorder) Option {
	return func(cfg *resolverConfig) {
		cfg.recorder = recorder
	}
}

// WithIdentity supplies the identity attached to recorded predictions.
func WithIdentity(fn func() Identity) Option {
	return func(cfg *resolverConfig) {
		if fn != nil {
			cfg.identity = fn
		}
	}
}

// WithTransitionLimit bounds the transition log. Zero or less disables it.
func WithTransitionLimit(limit int) Option {
	return func(cfg *resolverConfig) {
		cfg.transitionLimit = limit
	}
}

// WithClock overrides the time source used for transition timestamps.
func WithClock(now func() time.Time) Option {
	return func(cfg *resolverConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}
