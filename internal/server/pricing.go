package server

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-drivalyze"
	"github.com/goliatone/go-drivalyze/pkg/dataset"
	"github.com/goliatone/go-drivalyze/pkg/rules"
)

// DefaultExpression prices a car from its base price, depreciating six
// percent per year of age and adjusting for transmission and fuel.
const DefaultExpression = `base_price(brand, model) * (1 - 0.06 * (max_year - year)) * (transmission == "Automatic" ? 1.08 : 1.0) * fuel_factor(fuel_type)`

// DefaultCELExpression is DefaultExpression with the explicit numeric
// conversions CEL requires.
const DefaultCELExpression = `base_price(brand, model) * (1.0 - 0.06 * double(max_year - year)) * (transmission == "Automatic" ? 1.08 : 1.0) * fuel_factor(fuel_type)`

var fuelFactors = map[string]float64{
	"petrol":   1.0,
	"diesel":   1.1,
	"cng":      0.95,
	"hybrid":   1.2,
	"electric": 1.35,
}

// pricingVars are the variables a pricing rule may read.
var pricingVars = []string{"brand", "model", "fuel_type", "year", "transmission", "min_year", "max_year"}

// Estimator evaluates the pricing rule against the live dataset.
type Estimator struct {
	rule   *rules.Rule
	source *dataset.Source
}

// NewEstimator compiles expression for engineName ("expr", "cel" or "js").
// An empty expression selects the engine's default.
func NewEstimator(source *dataset.Source, engineName, expression string, logger *zap.Logger) (*Estimator, error) {
	if source == nil {
		return nil, fmt.Errorf("server: estimator requires a dataset source")
	}
	if strings.TrimSpace(expression) == "" {
		expression = DefaultExpression
		if engineName == "cel" {
			expression = DefaultCELExpression
		}
	}

	basePrice := func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("base_price expects brand and model")
		}
		brand, _ := args[0].(string)
		model, _ := args[1].(string)
		return source.Current().BasePrice(brand, model), nil
	}
	fuelFactor := func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("fuel_factor expects a fuel type")
		}
		fuel, _ := args[0].(string)
		if factor, ok := fuelFactors[strings.ToLower(fuel)]; ok {
			return factor, nil
		}
		return 1.0, nil
	}

	rule, err := rules.Compile(engineName, expression,
		rules.WithVariables(pricingVars...),
		rules.WithFunction("base_price", basePrice),
		rules.WithFunction("fuel_factor", fuelFactor),
		rules.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("server: pricing expression: %w", err)
	}
	return &Estimator{rule: rule, source: source}, nil
}

// Engine names the rule engine in use.
func (e *Estimator) Engine() string {
	return e.rule.Engine()
}

// Expression reports the rule in use.
func (e *Estimator) Expression() string {
	return e.rule.Source()
}

// Estimate prices sel. Negative results clamp to zero and the price is
// rounded to two decimals.
func (e *Estimator) Estimate(sel drivalyze.Selection) (float64, error) {
	ds := e.source.Current()
	vars := rules.Vars(sel.Map())
	vars["min_year"] = ds.YearRange.Min
	vars["max_year"] = ds.YearRange.Max

	value, err := e.rule.Eval(vars)
	if err != nil {
		return 0, err
	}
	price, err := toFloat(value)
	if err != nil {
		return 0, fmt.Errorf("server: pricing expression returned %w", err)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("server: pricing expression returned %v", price)
	}
	return math.Round(math.Max(0, price)*100) / 100, nil
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("non-numeric %T", value)
	}
}
