// Package hydrate decodes JSON payloads from external services into typed
// structs, rejecting payloads that lack required keys or fail a check.
package hydrate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Context identifies the payload being decoded in error messages.
type Context struct {
	// Op names the operation, e.g. "catalog: models".
	Op string
	// Source is the URL or file the payload came from.
	Source string
}

// ErrNotObject is returned when the payload is not a JSON object.
var ErrNotObject = errors.New("hydrate: payload is not a JSON object")

// MissingKeyError reports a required key absent from the payload.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("hydrate: required key %q missing", e.Key)
}

// Check validates a decoded value.
type Check[T any] func(Context, *T) error

// DecoderOption configures a Decoder.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts service payloads into T.
type Decoder[T any] struct {
	required []string
	checks   []Check[T]
}

// WithRequiredKeys fails decoding when any of keys is absent or null.
func WithRequiredKeys[T any](keys ...string) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.required = append(d.required, keys...)
	}
}

// WithCheck runs check on every decoded value, in registration order.
func WithCheck[T any](check Check[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if check != nil {
			d.checks = append(d.checks, check)
		}
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode parses body as a JSON object, verifies the required keys, decodes
// it into T and runs the checks.
func (d *Decoder[T]) Decode(ctx Context, body []byte) (T, error) {
	var zero T
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return zero, fmt.Errorf("%s: %w", ctx.Op, ErrNotObject)
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &keys); err != nil {
		return zero, fmt.Errorf("%s: parse payload: %w", ctx.Op, err)
	}
	for _, key := range d.required {
		if raw, ok := keys[key]; !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return zero, fmt.Errorf("%s: %w", ctx.Op, &MissingKeyError{Key: key})
		}
	}

	var result T
	if err := json.Unmarshal(trimmed, &result); err != nil {
		return zero, fmt.Errorf("%s: decode: %w", ctx.Op, err)
	}
	for _, check := range d.checks {
		if err := check(ctx, &result); err != nil {
			return zero, fmt.Errorf("%s: %w", ctx.Op, err)
		}
	}
	return result, nil
}
