package drivalyze

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"incomplete", fmt.Errorf("submit: %w", ErrIncomplete), "Please fill in all fields."},
		{"rejected", &ValidationRejectedError{Message: "Invalid brand"}, "Invalid brand"},
		{"rejected without message", &ValidationRejectedError{}, "Failed to get price prediction. Please try again."},
		{"unavailable", &UnavailableError{Op: "predict", Status: 503}, "Failed to get price prediction. Please try again."},
		{"malformed", &MalformedResponseError{Op: "predict", Key: "predicted_price"}, "Failed to get price prediction. Please try again."},
		{"auth", &AuthError{Code: "auth/wrong-password", Message: "Incorrect password."}, "Incorrect password."},
		{"unknown", errors.New("boom"), "Something went wrong. Please try again."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, UserMessage(tc.err))
		})
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("wrapped: %w", &UnavailableError{Op: "catalog: brands", Err: cause})
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "catalog: brands: service unavailable")

	malformed := &MalformedResponseError{Op: "catalog: models", Key: "models", Err: cause}
	assert.ErrorIs(t, malformed, cause)
	assert.Equal(t, `catalog: models: malformed response (key "models")`, (&MalformedResponseError{Op: "catalog: models", Key: "models"}).Error())
	assert.Equal(t, "x: service unavailable (status 500)", (&UnavailableError{Op: "x", Status: 500}).Error())
}

func TestFetchFailureMessage(t *testing.T) {
	assert.Equal(t, "Failed to load car models. Please try again.", FetchFailureMessage(FieldModel, nil))
	assert.Equal(t, "Failed to load fuel types. Please try again.", FetchFailureMessage(FieldFuelType, nil))
	assert.Equal(t, "Failed to load data. Please make sure the backend server is running.", FetchFailureMessage(FieldYear, nil))
}
