package dataset

import (
	"context"
	"fmt"

	"github.com/goliatone/go-drivalyze"
)

var (
	_ drivalyze.Fetcher = (*Dataset)(nil)
	_ drivalyze.Fetcher = (*Source)(nil)
)

// Fetch answers option queries straight from the catalog, letting a Resolver
// run without the HTTP service.
func (d *Dataset) Fetch(ctx context.Context, scope drivalyze.ScopeKey) (drivalyze.OptionSet, error) {
	if err := ctx.Err(); err != nil {
		return drivalyze.OptionSet{}, err
	}
	if err := scope.Validate(); err != nil {
		return drivalyze.OptionSet{}, err
	}
	switch scope.Field {
	case drivalyze.FieldBrand:
		return drivalyze.NewOptionSet(d.Brands...), nil
	case drivalyze.FieldModel:
		return drivalyze.NewOptionSet(d.ModelsByBrand[scope.Brand]...), nil
	case drivalyze.FieldFuelType:
		return drivalyze.NewOptionSet(d.FuelTypesByBrandModel[Key(scope.Brand, scope.Model)]...), nil
	case drivalyze.FieldYear:
		return drivalyze.YearOptions(d.Years), nil
	case drivalyze.FieldTransmission:
		return drivalyze.NewOptionSet(d.Transmissions...), nil
	default:
		return drivalyze.OptionSet{}, fmt.Errorf("dataset: unsupported field %s", scope.Field)
	}
}

// Fetch serves from whichever dataset is live when the call is made.
func (s *Source) Fetch(ctx context.Context, scope drivalyze.ScopeKey) (drivalyze.OptionSet, error) {
	ds := s.Current()
	if ds == nil {
		return drivalyze.OptionSet{}, &drivalyze.UnavailableError{Op: "dataset: " + scope.Identifier()}
	}
	return ds.Fetch(ctx, scope)
}
