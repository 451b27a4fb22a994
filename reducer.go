package drivalyze

import (
	"errors"
	"fmt"
)

// Reduce applies ev to s and returns the next state together with the
// effects the caller must run. It never performs I/O and never mutates s.
//
// Upstream changes clear their dependents immediately and bump the dependents'
// epochs, so any fetch still in flight for the old scope is discarded when it
// lands. Brand, year and transmission are roots and accepted as given; model
// and fuel type must be members of their current option lists or they are
// reset to empty.
func Reduce(s State, ev Event) (State, []Effect) {
	switch ev := ev.(type) {
	case Load:
		effects := make([]Effect, 0, 3)
		for _, field := range []Field{FieldBrand, FieldYear, FieldTransmission} {
			effects = append(effects, s.fetch(field))
		}
		return s, effects

	case SetBrand:
		s.Selection.Brand = ev.Brand
		s.reset(FieldFuelType)
		if ev.Brand == "" {
			s.reset(FieldModel)
			return s, nil
		}
		s.clear(FieldModel)
		return s, []Effect{s.fetch(FieldModel)}

	case SetModel:
		model := ev.Model
		if model != "" && (s.Selection.Brand == "" || !s.Options[FieldModel].Contains(model)) {
			model = ""
		}
		s.Selection.Model = model
		if model == "" {
			s.reset(FieldFuelType)
			return s, nil
		}
		s.clear(FieldFuelType)
		return s, []Effect{s.fetch(FieldFuelType)}

	case SetFuelType:
		fuel := ev.FuelType
		if fuel != "" && (s.Selection.Model == "" || !s.Options[FieldFuelType].Contains(fuel)) {
			fuel = ""
		}
		s.Selection.FuelType = fuel
		return s, nil

	case SetYear:
		year := ev.Year
		if year < 0 {
			year = 0
		}
		s.Selection.Year = year
		return s, nil

	case SetTransmission:
		s.Selection.Transmission = ev.Transmission
		return s, nil

	case OptionsArrived:
		if IsStale(s, ev) {
			return s, nil
		}
		s.Options[ev.Field] = ev.Options
		s.Pending[ev.Field] = false
		s.Errors[ev.Field] = ""
		s.revalidate(ev.Field)
		return s, nil

	case FetchFailed:
		if IsStale(s, ev) {
			return s, nil
		}
		s.Options[ev.Field] = OptionSet{}
		s.Pending[ev.Field] = false
		s.Errors[ev.Field] = FetchFailureMessage(ev.Field, ev.Err)
		return s, nil

	case Submit:
		if !s.Selection.IsComplete() {
			return s, nil
		}
		return s, []Effect{PredictEffect{Selection: s.Selection}}
	}
	return s, nil
}

// IsStale reports whether ev is an arrival or failure tagged with an epoch
// other than the field's current one. Other events are never stale.
func IsStale(s State, ev Event) bool {
	switch ev := ev.(type) {
	case OptionsArrived:
		return !ev.Field.Valid() || ev.Epoch == 0 || ev.Epoch != s.Epochs[ev.Field]
	case FetchFailed:
		return !ev.Field.Valid() || ev.Epoch == 0 || ev.Epoch != s.Epochs[ev.Field]
	default:
		return false
	}
}

// CheckInvariants verifies that dependent selections are consistent with
// their upstream values and current option lists.
func CheckInvariants(s State) error {
	var errs []error
	sel := s.Selection
	if sel.Model != "" {
		if sel.Brand == "" {
			errs = append(errs, fmt.Errorf("model %q selected without a brand", sel.Model))
		}
		if !s.Options[FieldModel].Contains(sel.Model) {
			errs = append(errs, fmt.Errorf("model %q not in current model options", sel.Model))
		}
	}
	if sel.FuelType != "" {
		if sel.Brand == "" || sel.Model == "" {
			errs = append(errs, fmt.Errorf("fuel type %q selected without brand and model", sel.FuelType))
		}
		if !s.Options[FieldFuelType].Contains(sel.FuelType) {
			errs = append(errs, fmt.Errorf("fuel type %q not in current fuel type options", sel.FuelType))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("drivalyze: invariant violated: %w", errors.Join(errs...))
}

// fetch starts a new epoch for field and returns the matching effect.
func (s *State) fetch(field Field) Effect {
	s.Epochs[field]++
	s.Pending[field] = true
	s.Errors[field] = ""
	return FetchEffect{Scope: ScopeFor(field, s.Selection), Epoch: s.Epochs[field]}
}

// clear empties the value and options of field.
func (s *State) clear(field Field) {
	s.Selection = s.Selection.with(field, "")
	s.Options[field] = OptionSet{}
	s.Pending[field] = false
	s.Errors[field] = ""
}

// reset clears field and supersedes any fetch in flight for it.
func (s *State) reset(field Field) {
	s.clear(field)
	s.Epochs[field]++
}

func (s *State) resetDownstream(field Field) {
	for _, dependent := range Downstream(field) {
		s.reset(dependent)
	}
}

// revalidate clears the selected value of field when the new options no
// longer contain it, cascading to its dependents. No fetch is issued.
func (s *State) revalidate(field Field) {
	value := s.Selection.Get(field)
	if value == "" || s.Options[field].Contains(value) {
		return
	}
	s.Selection = s.Selection.with(field, "")
	s.resetDownstream(field)
}
