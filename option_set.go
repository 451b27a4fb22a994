package drivalyze

import (
	"encoding/json"
	"slices"
	"strconv"
)

// OptionSet is an ordered, immutable list of valid choices for a field. A new
// set replaces the previous one wholesale; it is never edited in place.
type OptionSet struct {
	values []string
}

// NewOptionSet copies values into a new set.
func NewOptionSet(values ...string) OptionSet {
	if len(values) == 0 {
		return OptionSet{}
	}
	return OptionSet{values: slices.Clone(values)}
}

// YearOptions builds a set from integer years, preserving order.
func YearOptions(years []int) OptionSet {
	if len(years) == 0 {
		return OptionSet{}
	}
	values := make([]string, len(years))
	for i, year := range years {
		values[i] = strconv.Itoa(year)
	}
	return OptionSet{values: values}
}

// Values returns a copy of the choices.
func (o OptionSet) Values() []string {
	return slices.Clone(o.values)
}

// Len returns the number of choices.
func (o OptionSet) Len() int {
	return len(o.values)
}

// Empty reports whether there are no choices.
func (o OptionSet) Empty() bool {
	return len(o.values) == 0
}

// Contains reports whether value is one of the choices.
func (o OptionSet) Contains(value string) bool {
	return slices.Contains(o.values, value)
}

// Equal reports whether both sets hold the same choices in the same order.
func (o OptionSet) Equal(other OptionSet) bool {
	return slices.Equal(o.values, other.values)
}

func (o OptionSet) MarshalJSON() ([]byte, error) {
	if o.values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(o.values)
}

func (o *OptionSet) UnmarshalJSON(payload []byte) error {
	var values []string
	if err := json.Unmarshal(payload, &values); err != nil {
		return err
	}
	*o = NewOptionSet(values...)
	return nil
}
