package activity

import (
	"strings"
	"time"

	"github.com/goliatone/go-drivalyze"
)

const (
	VerbPredictionRecorded = "prediction.recorded"
	VerbSessionSignedIn    = "session.signed_in"
	VerbSessionSignedOut   = "session.signed_out"

	ObjectPrediction = "prediction"
	ObjectSession    = "session"
)

// Metadata keys carried by prediction events.
const (
	KeyBrand          = "brand"
	KeyModel          = "model"
	KeyYear           = "year"
	KeyFuelType       = "fuel_type"
	KeyTransmission   = "transmission"
	KeyPredictedPrice = "predicted_price"
	KeyUserEmail      = "user_email"
	KeyDisplayName    = "display_name"
	KeyProvider       = "provider"
)

// PredictionInput describes a completed prediction.
type PredictionInput struct {
	RecordID   string
	Identity   drivalyze.Identity
	Selection  drivalyze.Selection
	Price      drivalyze.Price
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildPredictionRecordedEvent turns a prediction into an event whose
// metadata holds the five selection fields and the price.
func BuildPredictionRecordedEvent(input PredictionInput) Event {
	metadata := ensureMetadata(cloneMap(input.Metadata))
	sel := input.Selection
	metadata[KeyBrand] = sel.Brand
	metadata[KeyModel] = sel.Model
	metadata[KeyYear] = sel.Year
	metadata[KeyFuelType] = sel.FuelType
	metadata[KeyTransmission] = sel.Transmission
	metadata[KeyPredictedPrice] = float64(input.Price)
	if email := strings.TrimSpace(input.Identity.Email); email != "" {
		metadata[KeyUserEmail] = email
	}

	objectID := strings.TrimSpace(input.RecordID)
	if objectID == "" {
		objectID = ObjectPrediction
	}
	userID := strings.TrimSpace(input.Identity.UserID)
	return Event{
		Verb:       VerbPredictionRecorded,
		ActorID:    userID,
		UserID:     userID,
		ObjectType: ObjectPrediction,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

// PredictionFromEvent reverses BuildPredictionRecordedEvent. It reports false
// for events of any other verb.
func PredictionFromEvent(event Event) (PredictionInput, bool) {
	if event.Verb != VerbPredictionRecorded {
		return PredictionInput{}, false
	}
	meta := event.Metadata
	input := PredictionInput{
		RecordID: event.ObjectID,
		Identity: drivalyze.Identity{
			UserID: event.UserID,
			Email:  metaString(meta, KeyUserEmail),
		},
		Selection: drivalyze.Selection{
			Brand:        metaString(meta, KeyBrand),
			Model:        metaString(meta, KeyModel),
			Year:         metaInt(meta, KeyYear),
			FuelType:     metaString(meta, KeyFuelType),
			Transmission: metaString(meta, KeyTransmission),
		},
		Price:      drivalyze.Price(metaFloat(meta, KeyPredictedPrice)),
		Channel:    event.Channel,
		OccurredAt: event.OccurredAt,
	}
	if input.RecordID == ObjectPrediction {
		input.RecordID = ""
	}
	return input, true
}

// SessionInput describes a sign-in or sign-out.
type SessionInput struct {
	Identity   drivalyze.Identity
	Provider   string
	OccurredAt time.Time
}

// BuildSessionSignedInEvent records that identity signed in.
func BuildSessionSignedInEvent(input SessionInput) Event {
	return buildSessionEvent(VerbSessionSignedIn, input)
}

// BuildSessionSignedOutEvent records that identity signed out.
func BuildSessionSignedOutEvent(input SessionInput) Event {
	return buildSessionEvent(VerbSessionSignedOut, input)
}

func buildSessionEvent(verb string, input SessionInput) Event {
	var metadata map[string]any
	if email := strings.TrimSpace(input.Identity.Email); email != "" {
		metadata = ensureMetadata(metadata)
		metadata[KeyUserEmail] = email
	}
	if name := strings.TrimSpace(input.Identity.DisplayName); name != "" {
		metadata = ensureMetadata(metadata)
		metadata[KeyDisplayName] = name
	}
	if provider := strings.TrimSpace(input.Provider); provider != "" {
		metadata = ensureMetadata(metadata)
		metadata[KeyProvider] = provider
	}

	userID := strings.TrimSpace(input.Identity.UserID)
	objectID := userID
	if objectID == "" {
		objectID = ObjectSession
	}
	return Event{
		Verb:       verb,
		ActorID:    userID,
		UserID:     userID,
		ObjectType: ObjectSession,
		ObjectID:   objectID,
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}

func metaString(meta map[string]any, key string) string {
	value, _ := meta[key].(string)
	return value
}

func metaInt(meta map[string]any, key string) int {
	switch value := meta[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	default:
		return 0
	}
}

func metaFloat(meta map[string]any, key string) float64 {
	switch value := meta[key].(type) {
	case float64:
		return value
	case float32:
		return float64(value)
	case int:
		return float64(value)
	case int64:
		return float64(value)
	default:
		return 0
	}
}
