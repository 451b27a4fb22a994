// Package dataset holds the car catalog served by the reference server: the
// brand, model and fuel type hierarchy, transmissions, the year range and
// per-model base prices. Datasets load from JSON, YAML or TOML and are
// checked against an embedded JSON Schema before use.
package dataset

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// DefaultBasePrice is used for models without an entry in BasePrices.
const DefaultBasePrice = 500000

// YearRange is the inclusive range of model years accepted for prediction.
type YearRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether year lies within the range.
func (r YearRange) Contains(year int) bool {
	return year >= r.Min && year <= r.Max
}

// Dataset is the catalog. Brand/model keys in FuelTypesByBrandModel and
// BasePrices use the form "brand|model".
type Dataset struct {
	Brands                []string            `json:"brands"`
	ModelsByBrand         map[string][]string `json:"models_by_brand"`
	FuelTypesByBrandModel map[string][]string `json:"fuel_types_by_brand_model"`
	FuelTypes             []string            `json:"fuel_types,omitempty"`
	Transmissions         []string            `json:"transmissions"`
	Years                 []int               `json:"years,omitempty"`
	YearRange             YearRange           `json:"year_range"`
	BasePrices            map[string]float64  `json:"base_prices,omitempty"`
}

// Key joins brand and model into the map key used by the dataset.
func Key(brand, model string) string {
	return brand + "|" + model
}

// SplitKey reverses Key.
func SplitKey(key string) (brand, model string, ok bool) {
	brand, model, ok = strings.Cut(key, "|")
	if !ok || brand == "" || model == "" || strings.Contains(model, "|") {
		return "", "", false
	}
	return brand, model, true
}

// normalize fills derived fields: the global fuel type list, the year list
// and the year range, each from the others when absent.
func (d *Dataset) normalize() {
	if len(d.FuelTypes) == 0 {
		seen := map[string]bool{}
		for _, fuels := range d.FuelTypesByBrandModel {
			for _, fuel := range fuels {
				if !seen[fuel] {
					seen[fuel] = true
					d.FuelTypes = append(d.FuelTypes, fuel)
				}
			}
		}
		sort.Strings(d.FuelTypes)
	}
	if d.YearRange == (YearRange{}) && len(d.Years) > 0 {
		d.YearRange = YearRange{Min: slices.Min(d.Years), Max: slices.Max(d.Years)}
	}
	if len(d.Years) == 0 && d.YearRange.Max >= d.YearRange.Min && d.YearRange.Min > 0 {
		for year := d.YearRange.Min; year <= d.YearRange.Max; year++ {
			d.Years = append(d.Years, year)
		}
	}
	sort.Ints(d.Years)
}

// Validate checks the cross references the schema cannot express.
func (d *Dataset) Validate() error {
	var errs []error
	for brand := range d.ModelsByBrand {
		if !slices.Contains(d.Brands, brand) {
			errs = append(errs, fmt.Errorf("models listed for unknown brand %q", brand))
		}
	}
	for key := range d.FuelTypesByBrandModel {
		brand, model, ok := SplitKey(key)
		if !ok {
			errs = append(errs, fmt.Errorf("malformed brand|model key %q", key))
			continue
		}
		if !d.HasModel(brand, model) {
			errs = append(errs, fmt.Errorf("fuel types listed for unknown model %q", key))
		}
	}
	for key := range d.BasePrices {
		if brand, model, ok := SplitKey(key); !ok || !d.HasModel(brand, model) {
			errs = append(errs, fmt.Errorf("base price listed for unknown model %q", key))
		}
	}
	if d.YearRange.Min > d.YearRange.Max {
		errs = append(errs, fmt.Errorf("year range %d-%d is inverted", d.YearRange.Min, d.YearRange.Max))
	}
	for _, year := range d.Years {
		if !d.YearRange.Contains(year) {
			errs = append(errs, fmt.Errorf("year %d outside range %d-%d", year, d.YearRange.Min, d.YearRange.Max))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("dataset: %w", errors.Join(errs...))
	}
	return nil
}

// Models returns the models of brand, nil for unknown brands.
func (d *Dataset) Models(brand string) []string {
	return slices.Clone(d.ModelsByBrand[brand])
}

// FuelTypesFor returns the fuel types offered for brand and model.
func (d *Dataset) FuelTypesFor(brand, model string) []string {
	return slices.Clone(d.FuelTypesByBrandModel[Key(brand, model)])
}

func (d *Dataset) HasBrand(brand string) bool {
	return slices.Contains(d.Brands, brand)
}

func (d *Dataset) HasModel(brand, model string) bool {
	return slices.Contains(d.ModelsByBrand[brand], model)
}

func (d *Dataset) HasFuelType(fuel string) bool {
	return slices.Contains(d.FuelTypes, fuel)
}

func (d *Dataset) HasTransmission(transmission string) bool {
	return slices.Contains(d.Transmissions, transmission)
}

// BasePrice returns the configured base price for the model or
// DefaultBasePrice.
func (d *Dataset) BasePrice(brand, model string) float64 {
	if price, ok := d.BasePrices[Key(brand, model)]; ok && price > 0 {
		return price
	}
	return DefaultBasePrice
}

// Stats summarizes the catalog size.
type Stats struct {
	Brands int `json:"brands_count"`
	Models int `json:"models_count"`
}

func (d *Dataset) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	stats := Stats{Brands: len(d.Brands)}
	for _, models := range d.ModelsByBrand {
		stats.Models += len(models)
	}
	return stats
}
