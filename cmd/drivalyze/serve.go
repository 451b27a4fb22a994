package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-drivalyze/internal/metrics"
	"github.com/goliatone/go-drivalyze/internal/server"
	"github.com/goliatone/go-drivalyze/pkg/dataset"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr, datasetPath, engine, expression string
		cors                                  []string
		watch, withMetrics                    bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog and price estimation API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc := a.cfg.Server
			flags := cmd.Flags()
			if flags.Changed("addr") {
				sc.Addr = addr
			}
			if flags.Changed("dataset") {
				sc.DatasetPath = datasetPath
			}
			if flags.Changed("engine") {
				sc.Engine = engine
			}
			if flags.Changed("expr") {
				sc.Expression = expression
			}
			if flags.Changed("cors") {
				sc.CORSOrigins = cors
			}
			if flags.Changed("watch") {
				sc.Watch = watch
			}
			if flags.Changed("metrics") {
				sc.Metrics = withMetrics
			}

			source, err := dataset.NewSource(sc.DatasetPath)
			if err != nil {
				return err
			}
			estimator, err := server.NewEstimator(source, sc.Engine, sc.Expression, a.logger)
			if err != nil {
				return err
			}
			opts := []server.Option{
				server.WithLogger(a.logger),
				server.WithCORSOrigins(sc.CORSOrigins...),
			}
			if sc.Metrics {
				opts = append(opts, server.WithMetrics(metrics.New(true)))
			}
			srv, err := server.New(source, estimator, opts...)
			if err != nil {
				return err
			}

			if sc.Watch && source.Path() != "" {
				watcher, err := dataset.Watch(source,
					dataset.WithWatchLogger(a.logger),
					dataset.WithReloadHook(srv.ObserveReload),
				)
				if err != nil {
					return err
				}
				defer watcher.Close()
			}

			stats := source.Current().Stats()
			a.logger.Info("dataset loaded",
				zap.String("path", source.Path()),
				zap.Int("brands", stats.Brands),
				zap.Int("models", stats.Models),
				zap.String("pricing_engine", estimator.Engine()),
			)
			return srv.Run(cmd.Context(), sc.Addr, sc.Shutdown)
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", "", "listen address (env DRIVALYZE_ADDR)")
	f.StringVar(&datasetPath, "dataset", "", "catalog file (.json, .yaml, .toml); the built-in sample when empty")
	f.BoolVar(&watch, "watch", true, "reload the catalog when the file changes")
	f.StringVar(&engine, "engine", "", "pricing engine: expr, cel or js")
	f.StringVar(&expression, "expr", "", "pricing expression")
	f.StringSliceVar(&cors, "cors", nil, "allowed CORS origins")
	f.BoolVar(&withMetrics, "metrics", true, "expose Prometheus metrics on /metrics")
	return cmd
}
