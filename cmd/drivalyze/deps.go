package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/goliatone/go-drivalyze"
	"github.com/goliatone/go-drivalyze/pkg/activity"
	"github.com/goliatone/go-drivalyze/pkg/activity/usersink"
	"github.com/goliatone/go-drivalyze/pkg/catalog"
	"github.com/goliatone/go-drivalyze/pkg/dataset"
	"github.com/goliatone/go-drivalyze/pkg/history/sqlite"
	"github.com/goliatone/go-drivalyze/pkg/predict"
	"github.com/goliatone/go-drivalyze/pkg/session"
	"github.com/goliatone/go-drivalyze/pkg/session/identitytoolkit"
	"github.com/goliatone/go-drivalyze/pkg/state/badgerstore"
)

// activityHooks returns the hooks every recorded event fans out to: the
// local activity feed and a debug log line.
func (a *app) activityHooks() activity.Hooks {
	hooks := activity.Hooks{
		activity.HookFunc(func(_ context.Context, event activity.Event) error {
			a.logger.Debug("activity",
				zap.String("verb", event.Verb),
				zap.String("object_id", event.ObjectID),
				zap.String("user_id", event.UserID),
			)
			return nil
		}),
	}
	if a.cfg.Activity.Enabled {
		hooks = append(hooks, usersink.Hook{Sink: usersink.NewFileSink(a.cfg.ActivityFeedPath())})
	}
	return hooks
}

func (a *app) emitter() *activity.Emitter {
	return activity.NewEmitter(a.activityHooks(), activity.Config{
		Enabled: a.cfg.Activity.Enabled,
		Channel: a.cfg.Activity.Channel,
	})
}

// provider picks the identity provider. Without an API key the in-process
// provider is used; it only knows accounts created during the current run.
func (a *app) provider() session.Provider {
	if a.cfg.Auth.APIKey == "" {
		a.logger.Debug("no auth API key configured, using in-process identity provider")
		return session.NewMemoryProvider()
	}
	opts := []identitytoolkit.Option{identitytoolkit.WithLogger(a.logger)}
	if a.cfg.Auth.Endpoint != "" {
		opts = append(opts, identitytoolkit.WithEndpoint(a.cfg.Auth.Endpoint))
	}
	return identitytoolkit.New(a.cfg.Auth.APIKey, opts...)
}

// openGate restores the session from the local store. A gate opened without
// a provider can read and authorize but not sign in.
func (a *app) openGate(ctx context.Context, withProvider bool) (*session.Gate, func() error, error) {
	store, err := badgerstore.Open[session.Session](badgerstore.Config{
		Path:   a.cfg.SessionPath,
		Logger: a.logger,
	})
	if err != nil {
		return nil, nil, err
	}
	var provider session.Provider
	if withProvider {
		provider = a.provider()
	}
	gate, err := session.NewGate(ctx, provider, store,
		session.WithLogger(a.logger),
		session.WithActivity(a.emitter()),
	)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	closeFn := func() error {
		gate.Close()
		return store.Close()
	}
	return gate, closeFn, nil
}

func (a *app) openHistory(ctx context.Context) (*sqlite.Store, error) {
	if err := os.MkdirAll(filepath.Dir(a.cfg.HistoryPath), 0o750); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return sqlite.Open(ctx, a.cfg.HistoryPath)
}

// backend returns the option fetcher and predictor. With a dataset path both
// run in-process; otherwise they call the service at the configured URL.
func (a *app) backend(datasetPath, engine, expression string) (drivalyze.Fetcher, drivalyze.Predictor, error) {
	if datasetPath == "" {
		return catalog.New(a.cfg.APIURL, catalog.WithLogger(a.logger)),
			predict.New(a.cfg.APIURL, predict.WithLogger(a.logger)),
			nil
	}
	source, err := dataset.NewSource(datasetPath)
	if err != nil {
		return nil, nil, err
	}
	predictor, err := localPredictor(source, engine, expression, a.logger)
	if err != nil {
		return nil, nil, err
	}
	return source, predictor, nil
}

func joinClose(err error, closeFn func() error) error {
	if closeFn == nil {
		return err
	}
	return errors.Join(err, closeFn())
}
