package drivalyze

// State is the full form state. It is a plain value: copying it yields an
// independent snapshot because OptionSets are immutable.
type State struct {
	Selection Selection `json:"selection"`
	// Options holds the current valid choices per field.
	Options [NumFields]OptionSet `json:"options"`
	// Epochs holds the tag of the most recent fetch issued per field.
	Epochs [NumFields]uint64 `json:"epochs"`
	// Pending marks fields with a fetch in flight for the current epoch.
	Pending [NumFields]bool `json:"pending"`
	// Errors holds a user-visible, non-fatal message per field.
	Errors [NumFields]string `json:"errors"`
}

// OptionsFor returns the current choices for field.
func (s State) OptionsFor(field Field) OptionSet {
	if !field.Valid() {
		return OptionSet{}
	}
	return s.Options[field]
}

// Epoch returns the current fetch epoch for field.
func (s State) Epoch(field Field) uint64 {
	if !field.Valid() {
		return 0
	}
	return s.Epochs[field]
}

// Loading reports whether field is waiting on a fetch.
func (s State) Loading(field Field) bool {
	return field.Valid() && s.Pending[field]
}

// Message returns the error message recorded for field, if any.
func (s State) Message(field Field) string {
	if !field.Valid() {
		return ""
	}
	return s.Errors[field]
}

// Enabled reports whether field can currently be chosen: its upstream value
// is set and its options are not empty.
func (s State) Enabled(field Field) bool {
	if upstream, ok := field.Upstream(); ok && s.Selection.Get(upstream) == "" {
		return false
	}
	return !s.OptionsFor(field).Empty()
}
