// Package history persists completed predictions and answers "my recent
// predictions" queries. Writes arrive through Sink, which never blocks or
// fails the prediction that produced them.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-drivalyze"
)

// DefaultLimit is used by Recent when no positive limit is given.
const DefaultLimit = 10

// ErrUserRequired is returned by Recent when no user id is supplied.
var ErrUserRequired = errors.New("history: user id is required")

// Record is one stored prediction.
type Record struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id,omitempty"`
	UserEmail      string    `json:"user_email,omitempty"`
	Brand          string    `json:"brand"`
	Model          string    `json:"model"`
	Year           int       `json:"year"`
	FuelType       string    `json:"fuel_type"`
	Transmission   string    `json:"transmission"`
	PredictedPrice float64   `json:"predicted_price"`
	Timestamp      time.Time `json:"timestamp"`
}

// Selection returns the five fields the prediction was made for.
func (r Record) Selection() drivalyze.Selection {
	return drivalyze.Selection{
		Brand:        r.Brand,
		Model:        r.Model,
		Year:         r.Year,
		FuelType:     r.FuelType,
		Transmission: r.Transmission,
	}
}

// Validate checks that the record is storable.
func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("history: record id is required")
	}
	if missing := r.Selection().Missing(); len(missing) > 0 {
		return fmt.Errorf("history: record %s missing %v: %w", r.ID, missing, drivalyze.ErrIncomplete)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("history: record %s has no timestamp", r.ID)
	}
	return nil
}

// Store appends records and lists a user's most recent ones.
type Store interface {
	Append(ctx context.Context, record Record) error
	// Recent returns at most limit records for userID, newest first.
	Recent(ctx context.Context, userID string, limit int) ([]Record, error)
}

// NormalizeLimit maps non-positive limits to DefaultLimit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
