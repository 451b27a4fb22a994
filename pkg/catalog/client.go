// Package catalog fetches the option lists of the selection form from the
// catalog HTTP service.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-drivalyze"
	"github.com/goliatone/go-drivalyze/internal/hydrate"
)

const maxBodyBytes = 1 << 20

// Client talks to the catalog endpoints:
//
//	GET /api/brands                       {"brands": [...]}
//	GET /api/models/{brand}               {"models": [...]}
//	GET /api/fuel-types/{brand}/{model}   {"fuel_types": [...]}
//	GET /api/years                        {"years": [...]}
//	GET /api/transmissions                {"transmissions": [...]}
//
// It implements drivalyze.Fetcher. Failed requests are not retried.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithLogger attaches a logger for request diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New constructs a Client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type brandsPayload struct {
	Brands []string `json:"brands"`
}

func (p brandsPayload) entries() []string { return p.Brands }

type modelsPayload struct {
	Models []string `json:"models"`
}

func (p modelsPayload) entries() []string { return p.Models }

type fuelTypesPayload struct {
	FuelTypes []string `json:"fuel_types"`
}

func (p fuelTypesPayload) entries() []string { return p.FuelTypes }

type yearsPayload struct {
	Years []int `json:"years"`
}

func (p yearsPayload) entries() []string {
	out := make([]string, len(p.Years))
	for i, year := range p.Years {
		out[i] = strconv.Itoa(year)
	}
	return out
}

type transmissionsPayload struct {
	Transmissions []string `json:"transmissions"`
}

func (p transmissionsPayload) entries() []string { return p.Transmissions }

// optionList is implemented by every catalog payload.
type optionList interface {
	entries() []string
}

// checkEntries rejects blank and repeated option values.
func checkEntries[T optionList](_ hydrate.Context, payload *T) error {
	seen := make(map[string]bool)
	for i, value := range (*payload).entries() {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("blank value at index %d", i)
		}
		if seen[value] {
			return fmt.Errorf("duplicate value %q", value)
		}
		seen[value] = true
	}
	return nil
}

// Fetch implements drivalyze.Fetcher.
func (c *Client) Fetch(ctx context.Context, scope drivalyze.ScopeKey) (drivalyze.OptionSet, error) {
	if err := scope.Validate(); err != nil {
		return drivalyze.OptionSet{}, err
	}
	switch scope.Field {
	case drivalyze.FieldBrand:
		values, err := c.Brands(ctx)
		return drivalyze.NewOptionSet(values...), err
	case drivalyze.FieldModel:
		values, err := c.Models(ctx, scope.Brand)
		return drivalyze.NewOptionSet(values...), err
	case drivalyze.FieldFuelType:
		values, err := c.FuelTypes(ctx, scope.Brand, scope.Model)
		return drivalyze.NewOptionSet(values...), err
	case drivalyze.FieldYear:
		years, err := c.Years(ctx)
		return drivalyze.YearOptions(years), err
	case drivalyze.FieldTransmission:
		values, err := c.Transmissions(ctx)
		return drivalyze.NewOptionSet(values...), err
	default:
		return drivalyze.OptionSet{}, fmt.Errorf("catalog: unsupported field %s", scope.Field)
	}
}

// Brands lists every brand.
func (c *Client) Brands(ctx context.Context) ([]string, error) {
	payload, err := get[brandsPayload](ctx, c, "catalog: brands", "brands", "/api/brands")
	return payload.Brands, err
}

// Models lists the models of brand.
func (c *Client) Models(ctx context.Context, brand string) ([]string, error) {
	payload, err := get[modelsPayload](ctx, c, "catalog: models", "models", "/api/models/"+url.PathEscape(brand))
	return payload.Models, err
}

// FuelTypes lists the fuel types offered for brand and model.
func (c *Client) FuelTypes(ctx context.Context, brand, model string) ([]string, error) {
	path := "/api/fuel-types/" + url.PathEscape(brand) + "/" + url.PathEscape(model)
	payload, err := get[fuelTypesPayload](ctx, c, "catalog: fuel types", "fuel_types", path)
	return payload.FuelTypes, err
}

// Years lists the selectable model years.
func (c *Client) Years(ctx context.Context) ([]int, error) {
	payload, err := get[yearsPayload](ctx, c, "catalog: years", "years", "/api/years")
	return payload.Years, err
}

// Transmissions lists the transmission types.
func (c *Client) Transmissions(ctx context.Context) ([]string, error) {
	payload, err := get[transmissionsPayload](ctx, c, "catalog: transmissions", "transmissions", "/api/transmissions")
	return payload.Transmissions, err
}

func get[T optionList](ctx context.Context, c *Client, op, key, path string) (T, error) {
	var zero T
	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return zero, &drivalyze.UnavailableError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("catalog request failed", zap.String("op", op), zap.String("url", endpoint), zap.Error(err))
		return zero, &drivalyze.UnavailableError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return zero, &drivalyze.UnavailableError{Op: op, Status: resp.StatusCode, Err: err}
	}
	c.logger.Debug("catalog request",
		zap.String("op", op),
		zap.String("url", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return zero, &drivalyze.UnavailableError{Op: op, Status: resp.StatusCode, Err: serviceError(body)}
	}

	decoder := hydrate.NewDecoder[T](
		hydrate.WithRequiredKeys[T](key),
		hydrate.WithCheck[T](checkEntries[T]),
	)
	payload, err := decoder.Decode(hydrate.Context{Op: op, Source: endpoint}, body)
	if err != nil {
		return zero, &drivalyze.MalformedResponseError{Op: op, Key: key, Err: err}
	}
	return payload, nil
}

// serviceError extracts the {"error": "..."} message of a failed response.
func serviceError(body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == "" {
		return nil
	}
	return errors.New(payload.Error)
}
