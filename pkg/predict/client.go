// Package predict submits complete selections to the price estimation
// endpoint.
package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/goliatone/go-drivalyze"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// Request is the body of POST /predict.
type Request struct {
	Brand        string `json:"brand" validate:"required"`
	Model        string `json:"model" validate:"required"`
	Year         int    `json:"year" validate:"required,gt=0"`
	FuelType     string `json:"fuel_type" validate:"required"`
	Transmission string `json:"transmission" validate:"required"`
}

// NewRequest builds a request from a selection.
func NewRequest(sel drivalyze.Selection) Request {
	return Request{
		Brand:        sel.Brand,
		Model:        sel.Model,
		Year:         sel.Year,
		FuelType:     sel.FuelType,
		Transmission: sel.Transmission,
	}
}

// Validate reports the missing fields of r, wrapping drivalyze.ErrIncomplete.
func (r Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	missing := make([]string, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		missing = append(missing, fieldErr.Field())
	}
	return fmt.Errorf("%w: missing %s", drivalyze.ErrIncomplete, strings.Join(missing, ", "))
}

// Response is the success body of POST /predict.
type Response struct {
	PredictedPrice *float64 `json:"predicted_price"`
}

// Client implements drivalyze.Predictor against an HTTP endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *zap.Logger
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

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a Client posting to baseURL + "/predict".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/predict",
		http:     &http.Client{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Predict sends sel once. Incomplete selections are refused locally.
// A 4xx answer becomes *drivalyze.ValidationRejectedError, 5xx and transport
// failures *drivalyze.UnavailableError.
func (c *Client) Predict(ctx context.Context, sel drivalyze.Selection) (drivalyze.Price, error) {
	const op = "predict"
	request := NewRequest(sel)
	if err := request.Validate(); err != nil {
		return 0, err
	}
	body, err := json.Marshal(request)
	if err != nil {
		return 0, fmt.Errorf("predict: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, &drivalyze.UnavailableError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &drivalyze.UnavailableError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, &drivalyze.UnavailableError{Op: op, Status: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		message := errorMessage(payload)
		c.logger.Info("prediction rejected", zap.Int("status", resp.StatusCode), zap.String("error", message))
		return 0, &drivalyze.ValidationRejectedError{Message: message}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		var cause error
		if message := errorMessage(payload); message != "" {
			cause = errors.New(message)
		}
		return 0, &drivalyze.UnavailableError{Op: op, Status: resp.StatusCode, Err: cause}
	}

	var decoded Response
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return 0, &drivalyze.MalformedResponseError{Op: op, Key: "predicted_price", Err: err}
	}
	if decoded.PredictedPrice == nil {
		return 0, &drivalyze.MalformedResponseError{Op: op, Key: "predicted_price"}
	}
	return drivalyze.Price(*decoded.PredictedPrice), nil
}

func errorMessage(payload []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return body.Error
}
