package drivalyze

import "strconv"

// Selection is the value of the form. Empty strings and a zero Year mean the
// field has not been chosen.
type Selection struct {
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	FuelType     string `json:"fuel_type"`
	Year         int    `json:"year"`
	Transmission string `json:"transmission"`
}

// IsComplete reports whether all five fields are set.
func (s Selection) IsComplete() bool {
	return s.Brand != "" && s.Model != "" && s.FuelType != "" && s.Year > 0 && s.Transmission != ""
}

// Missing lists the fields that are still empty.
func (s Selection) Missing() []Field {
	var missing []Field
	for _, field := range Fields() {
		if s.Get(field) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// Get returns the value of field as a string, "" when unset.
func (s Selection) Get(field Field) string {
	switch field {
	case FieldBrand:
		return s.Brand
	case FieldModel:
		return s.Model
	case FieldFuelType:
		return s.FuelType
	case FieldYear:
		if s.Year <= 0 {
			return ""
		}
		return strconv.Itoa(s.Year)
	case FieldTransmission:
		return s.Transmission
	default:
		return ""
	}
}

// Map returns the selection keyed by wire names, Year kept as an int.
func (s Selection) Map() map[string]any {
	return map[string]any{
		FieldBrand.String():        s.Brand,
		FieldModel.String():        s.Model,
		FieldFuelType.String():     s.FuelType,
		FieldYear.String():         s.Year,
		FieldTransmission.String(): s.Transmission,
	}
}

func (s Selection) with(field Field, value string) Selection {
	switch field {
	case FieldBrand:
		s.Brand = value
	case FieldModel:
		s.Model = value
	case FieldFuelType:
		s.FuelType = value
	case FieldYear:
		year, err := strconv.Atoi(value)
		if err != nil || year < 0 {
			year = 0
		}
		s.Year = year
	case FieldTransmission:
		s.Transmission = value
	}
	return s
}
