package history

import (
	"context"

	"github.com/google/uuid"

	"github.com/goliatone/go-drivalyze/pkg/activity"
)

// StoreHook appends prediction.recorded events to a Store. Other events are
// ignored.
type StoreHook struct {
	Store Store
}

func (h StoreHook) Notify(ctx context.Context, event activity.Event) error {
	if h.Store == nil {
		return nil
	}
	record, ok := RecordFromEvent(event)
	if !ok {
		return nil
	}
	return h.Store.Append(ctx, record)
}

// RecordFromEvent converts a prediction.recorded event into a Record.
func RecordFromEvent(event activity.Event) (Record, bool) {
	input, ok := activity.PredictionFromEvent(event)
	if !ok {
		return Record{}, false
	}
	id := input.RecordID
	if id == "" {
		id = uuid.NewString()
	}
	sel := input.Selection
	return Record{
		ID:             id,
		UserID:         input.Identity.UserID,
		UserEmail:      input.Identity.Email,
		Brand:          sel.Brand,
		Model:          sel.Model,
		Year:           sel.Year,
		FuelType:       sel.FuelType,
		Transmission:   sel.Transmission,
		PredictedPrice: float64(input.Price),
		Timestamp:      input.OccurredAt.UTC(),
	}, true
}
