package drivalyze

// Event is an input to Reduce.
type Event interface {
	eventName() string
}

// Load requests the root option lists: brands, years and transmissions.
type Load struct{}

// SetBrand selects a brand, clearing model and fuel type.
type SetBrand struct{ Brand string }

// SetModel selects a model, clearing fuel type.
type SetModel struct{ Model string }

// SetFuelType selects a fuel type.
type SetFuelType struct{ FuelType string }

// SetYear selects a year; zero clears it.
type SetYear struct{ Year int }

// SetTransmission selects a transmission.
type SetTransmission struct{ Transmission string }

// OptionsArrived delivers the result of the fetch tagged with Epoch.
type OptionsArrived struct {
	Field   Field
	Epoch   uint64
	Options OptionSet
}

// FetchFailed reports that the fetch tagged with Epoch failed.
type FetchFailed struct {
	Field Field
	Epoch uint64
	Err   error
}

// Submit asks for a prediction of the current selection.
type Submit struct{}

func (Load) eventName() string            { return "load" }
func (SetBrand) eventName() string        { return "set_brand" }
func (SetModel) eventName() string        { return "set_model" }
func (SetFuelType) eventName() string     { return "set_fuel_type" }
func (SetYear) eventName() string         { return "set_year" }
func (SetTransmission) eventName() string { return "set_transmission" }
func (OptionsArrived) eventName() string  { return "options_arrived" }
func (FetchFailed) eventName() string     { return "fetch_failed" }
func (Submit) eventName() string          { return "submit" }

// EventName returns the snake_case name of ev, used in transition logs.
func EventName(ev Event) string {
	if ev == nil {
		return ""
	}
	return ev.eventName()
}

// Effect is work Reduce asks the caller to perform.
type Effect interface {
	effect()
}

// FetchEffect asks for the options of Scope; the result must be reported
// back with the same Epoch.
type FetchEffect struct {
	Scope ScopeKey
	Epoch uint64
}

// PredictEffect asks for a price estimate of a complete selection.
type PredictEffect struct {
	Selection Selection
}

func (FetchEffect) effect()   {}
func (PredictEffect) effect() {}
