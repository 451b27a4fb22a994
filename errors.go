package drivalyze

import (
	"errors"
	"fmt"
)

var (
	// ErrIncomplete is returned when a prediction is requested before all
	// five fields are set. The predictor is never called in that case.
	ErrIncomplete = errors.New("drivalyze: selection is incomplete")
	// ErrNoFetcher is reported when a fetch is due but no Fetcher is configured.
	ErrNoFetcher = errors.New("drivalyze: fetcher not configured")
	// ErrNoPredictor is returned by Submit when no Predictor is configured.
	ErrNoPredictor = errors.New("drivalyze: predictor not configured")
)

// UnavailableError reports that an external service could not be reached or
// answered with a non-success status. Status is zero for transport failures.
type UnavailableError struct {
	Op     string
	Status int
	Err    error
}

func (e *UnavailableError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%s: service unavailable (status %d): %v", e.Op, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: service unavailable (status %d)", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: service unavailable: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: service unavailable", e.Op)
	}
}

func (e *UnavailableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// MalformedResponseError reports a payload that lacks the expected key or
// carries values of the wrong shape.
type MalformedResponseError struct {
	Op  string
	Key string
	Err error
}

func (e *MalformedResponseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: malformed response (key %q): %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: malformed response (key %q)", e.Op, e.Key)
}

func (e *MalformedResponseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationRejectedError reports that the prediction endpoint refused the
// submitted combination. Message is the text returned by the endpoint.
type ValidationRejectedError struct {
	Message string
}

func (e *ValidationRejectedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message == "" {
		return "prediction rejected"
	}
	return "prediction rejected: " + e.Message
}

// AuthError carries an identity provider error code such as
// "auth/wrong-password" and the message shown to the user.
type AuthError struct {
	Code    string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

func (e *AuthError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

const (
	msgLoadFailed       = "Failed to load data. Please make sure the backend server is running."
	msgModelsFailed     = "Failed to load car models. Please try again."
	msgFuelTypesFailed  = "Failed to load fuel types. Please try again."
	msgPredictionFailed = "Failed to get price prediction. Please try again."
	msgIncomplete       = "Please fill in all fields."
	msgGeneric          = "Something went wrong. Please try again."
)

// FetchFailureMessage returns the user-visible text for a failed option fetch.
func FetchFailureMessage(field Field, _ error) string {
	switch field {
	case FieldModel:
		return msgModelsFailed
	case FieldFuelType:
		return msgFuelTypesFailed
	default:
		return msgLoadFailed
	}
}

// UserMessage converts err into text suitable for showing next to the form.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		rejected    *ValidationRejectedError
		unavailable *UnavailableError
		malformed   *MalformedResponseError
		auth        *AuthError
	)
	switch {
	case errors.Is(err, ErrIncomplete):
		return msgIncomplete
	case errors.As(err, &rejected):
		if rejected.Message != "" {
			return rejected.Message
		}
		return msgPredictionFailed
	case errors.As(err, &auth):
		if auth.Message != "" {
			return auth.Message
		}
		return msgGeneric
	case errors.As(err, &unavailable), errors.As(err, &malformed):
		return msgPredictionFailed
	default:
		return msgGeneric
	}
}
