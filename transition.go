package drivalyze

import (
	"encoding/json"
	"time"
)

// Outcome classifies how the reducer handled an event.
type Outcome string

const (
	// OutcomeApplied means the event changed the state or produced effects.
	OutcomeApplied Outcome = "applied"
	// OutcomeDiscarded means the event carried a superseded epoch.
	OutcomeDiscarded Outcome = "discarded"
	// OutcomeIgnored means the event was current but changed nothing, such
	// as a Submit on an incomplete selection.
	OutcomeIgnored Outcome = "ignored"
)

// Transition records one event handled by a Resolver.
type Transition struct {
	Seq       uint64    `json:"seq"`
	Event     string    `json:"event"`
	Field     string    `json:"field,omitempty"`
	Epoch     uint64    `json:"epoch,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	Effects   int       `json:"effects,omitempty"`
	Selection Selection `json:"selection"`
	At        time.Time `json:"at"`
}

// ToJSON serialises the transition for logging or transport.
func (t Transition) ToJSON() ([]byte, error) {
	type alias Transition
	return json.Marshal(alias(t))
}

// TransitionFromJSON decodes a payload produced by ToJSON.
func TransitionFromJSON(payload []byte) (Transition, error) {
	type alias Transition
	var transition alias
	if err := json.Unmarshal(payload, &transition); err != nil {
		return Transition{}, err
	}
	return Transition(transition), nil
}

func describeEvent(ev Event) (field string, epoch uint64) {
	switch ev := ev.(type) {
	case SetBrand:
		return FieldBrand.String(), 0
	case SetModel:
		return FieldModel.String(), 0
	case SetFuelType:
		return FieldFuelType.String(), 0
	case SetYear:
		return FieldYear.String(), 0
	case SetTransmission:
		return FieldTransmission.String(), 0
	case OptionsArrived:
		return ev.Field.String(), ev.Epoch
	case FetchFailed:
		return ev.Field.String(), ev.Epoch
	default:
		return "", 0
	}
}
