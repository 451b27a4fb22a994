package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-drivalyze"
	"github.com/goliatone/go-drivalyze/pkg/history"
	"github.com/goliatone/go-drivalyze/pkg/predict"
)

const sinkDrainTimeout = 5 * time.Second

func newPredictCmd(a *app) *cobra.Command {
	var sel selectionFlags
	cmd := &cobra.Command{
		Use:     "predict",
		Short:   "Estimate the price of a car",
		Example: "  drivalyze predict --brand Honda --model City --fuel-type Petrol --year 2021 --transmission Manual",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()

			gate, closeGate, err := a.openGate(ctx, false)
			if err != nil {
				return err
			}
			defer func() { err = joinClose(err, closeGate) }()
			if decision := gate.Authorize("/predict"); !decision.Allow {
				return errors.New("sign in to request a price estimate (drivalyze login --next /predict)")
			}

			store, err := a.openHistory(ctx)
			if err != nil {
				return err
			}
			defer func() { err = joinClose(err, store.Close) }()

			sink := history.NewStoreSink(store, a.activityHooks(),
				history.WithSinkLogger(a.logger),
				history.WithAnonymous(a.cfg.Activity.Anonymous),
			)
			defer func() {
				drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkDrainTimeout)
				defer cancel()
				err = errors.Join(err, sink.Close(drainCtx))
			}()

			engine := a.cfg.Server.Engine
			if sel.engine != "" {
				engine = sel.engine
			}
			expression := a.cfg.Server.Expression
			if sel.expression != "" {
				expression = sel.expression
			}
			fetcher, predictor, err := a.backend(sel.dataset, engine, expression)
			if err != nil {
				return err
			}
			r := drivalyze.NewResolver(fetcher, predictor,
				drivalyze.WithLogger(a.logger),
				drivalyze.WithRecorder(sink),
				drivalyze.WithIdentity(gate.Identity),
			)
			defer r.Close()

			if err := sel.fill(cmd, r); err != nil {
				return err
			}
			price, err := r.Submit(ctx)
			if err != nil {
				return err
			}
			a.logger.Debug("prediction complete",
				zap.String("brand", sel.brand),
				zap.String("model", sel.model),
				zap.Float64("price", float64(price)),
			)
			a.printf("Estimated price: %s\n", predict.FormatINR(price))
			return nil
		},
	}
	sel.bind(cmd, true)
	return cmd
}
