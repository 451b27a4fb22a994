package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/goliatone/go-drivalyze"
	"github.com/goliatone/go-drivalyze/internal/server"
	"github.com/goliatone/go-drivalyze/pkg/dataset"
	"github.com/goliatone/go-drivalyze/pkg/predict"
)

// localPredictor prices selections in-process with the server's estimator
// and the same membership checks POST /predict applies.
func localPredictor(source *dataset.Source, engine, expression string, logger *zap.Logger) (drivalyze.Predictor, error) {
	estimator, err := server.NewEstimator(source, engine, expression, logger)
	if err != nil {
		return nil, err
	}
	return drivalyze.PredictorFunc(func(ctx context.Context, sel drivalyze.Selection) (drivalyze.Price, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := predict.NewRequest(sel).Validate(); err != nil {
			return 0, err
		}
		if msg := rejectReason(source.Current(), sel); msg != "" {
			return 0, &drivalyze.ValidationRejectedError{Message: msg}
		}
		price, err := estimator.Estimate(sel)
		if err != nil {
			return 0, err
		}
		return drivalyze.Price(price), nil
	}), nil
}

func rejectReason(ds *dataset.Dataset, sel drivalyze.Selection) string {
	switch {
	case !ds.HasBrand(sel.Brand):
		return fmt.Sprintf("Brand %q not found in dataset", sel.Brand)
	case !ds.HasModel(sel.Brand, sel.Model):
		return fmt.Sprintf("Model %q not found for brand %q", sel.Model, sel.Brand)
	case !ds.YearRange.Contains(sel.Year):
		return fmt.Sprintf("Year %d is out of valid range (%d-%d)", sel.Year, ds.YearRange.Min, ds.YearRange.Max)
	case !ds.HasFuelType(sel.FuelType):
		return fmt.Sprintf("Fuel type %q not found in dataset", sel.FuelType)
	case !ds.HasTransmission(sel.Transmission):
		return fmt.Sprintf("Transmission %q not found in dataset", sel.Transmission)
	default:
		return ""
	}
}
