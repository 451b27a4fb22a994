package drivalyze

import "fmt"

// Field identifies one input of the selection form.
type Field int

const (
	FieldBrand Field = iota
	FieldModel
	FieldFuelType
	FieldYear
	FieldTransmission

	// NumFields is the number of selection fields.
	NumFields
)

var fieldNames = [NumFields]string{
	FieldBrand:        "brand",
	FieldModel:        "model",
	FieldFuelType:     "fuel_type",
	FieldYear:         "year",
	FieldTransmission: "transmission",
}

// Fields lists every field in dependency order.
func Fields() []Field {
	return []Field{FieldBrand, FieldModel, FieldFuelType, FieldYear, FieldTransmission}
}

func (f Field) String() string {
	if !f.Valid() {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fieldNames[f]
}

// Valid reports whether f names a known field.
func (f Field) Valid() bool {
	return f >= 0 && f < NumFields
}

// MarshalText encodes the wire name of the field.
func (f Field) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("drivalyze: unknown field %d", int(f))
	}
	return []byte(fieldNames[f]), nil
}

// UnmarshalText decodes a wire name produced by MarshalText.
func (f *Field) UnmarshalText(text []byte) error {
	parsed, err := ParseField(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseField resolves a wire name ("fuel_type") into a Field.
func ParseField(name string) (Field, error) {
	for i, candidate := range fieldNames {
		if candidate == name {
			return Field(i), nil
		}
	}
	return 0, fmt.Errorf("drivalyze: unknown field %q", name)
}

// Upstream returns the field f depends on, if any.
func (f Field) Upstream() (Field, bool) {
	switch f {
	case FieldModel:
		return FieldBrand, true
	case FieldFuelType:
		return FieldModel, true
	default:
		return 0, false
	}
}

// Downstream returns the fields invalidated when f changes, nearest first.
// Year and transmission are independent leaves.
func Downstream(f Field) []Field {
	switch f {
	case FieldBrand:
		return []Field{FieldModel, FieldFuelType}
	case FieldModel:
		return []Field{FieldFuelType}
	default:
		return nil
	}
}
