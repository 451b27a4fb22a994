package drivalyze

import (
	"fmt"
	"net/url"
)

// ScopeKey names the upstream values an option list depends on: nothing for
// brands, years and transmissions, the brand for models and (brand, model)
// for fuel types.
type ScopeKey struct {
	Field Field  `json:"field"`
	Brand string `json:"brand,omitempty"`
	Model string `json:"model,omitempty"`
}

// ScopeFor builds the key used to fetch options for field given sel.
func ScopeFor(field Field, sel Selection) ScopeKey {
	key := ScopeKey{Field: field}
	switch field {
	case FieldModel:
		key.Brand = sel.Brand
	case FieldFuelType:
		key.Brand = sel.Brand
		key.Model = sel.Model
	}
	return key
}

// Validate rejects keys missing the upstream values their field requires.
func (k ScopeKey) Validate() error {
	if !k.Field.Valid() {
		return fmt.Errorf("drivalyze: scope key has unknown field %d", int(k.Field))
	}
	switch k.Field {
	case FieldModel:
		if k.Brand == "" {
			return fmt.Errorf("drivalyze: model scope requires a brand")
		}
	case FieldFuelType:
		if k.Brand == "" || k.Model == "" {
			return fmt.Errorf("drivalyze: fuel_type scope requires brand and model")
		}
	}
	return nil
}

// Identifier returns a stable, path-like key suitable for caches and logs.
func (k ScopeKey) Identifier() string {
	switch k.Field {
	case FieldBrand:
		return "brands"
	case FieldModel:
		return "models/" + url.PathEscape(k.Brand)
	case FieldFuelType:
		return "fuel-types/" + url.PathEscape(k.Brand) + "/" + url.PathEscape(k.Model)
	case FieldYear:
		return "years"
	case FieldTransmission:
		return "transmissions"
	default:
		return fmt.Sprintf("unknown/%d", int(k.Field))
	}
}

func (k ScopeKey) String() string {
	return k.Identifier()
}
