package hydrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDecoderFromFixtures(t *testing.T) {
	fx := loadFixture(t, "hydrate_catalog.json")

	for _, tc := range fx.Cases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			decoder := NewDecoder[catalogPayload](buildOptions(tc)...)
			body, err := json.Marshal(tc.Input)
			if err != nil {
				t.Fatalf("marshal input: %v", err)
			}

			result, err := decoder.Decode(Context{Op: tc.Op}, body)

			if tc.ExpectErr != "" {
				if err == nil {
					t.Fatalf("expected error %q, got nil", tc.ExpectErr)
				}
				if !strings.Contains(err.Error(), tc.ExpectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.ExpectErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}

			if !reflect.DeepEqual(tc.Expect, result) {
				t.Fatalf("decoded payload mismatch:\nwant: %#v\n got: %#v", tc.Expect, result)
			}
		})
	}
}

func TestMissingKeyIsTyped(t *testing.T) {
	decoder := NewDecoder[catalogPayload](WithRequiredKeys[catalogPayload]("models"))
	_, err := decoder.Decode(Context{Op: "catalog: models"}, []byte(`{"brand":"Honda"}`))

	var missing *MissingKeyError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingKeyError, got %v", err)
	}
	if missing.Key != "models" {
		t.Fatalf("expected key models, got %q", missing.Key)
	}
}

func TestDecodeRejectsNonObjects(t *testing.T) {
	decoder := NewDecoder[catalogPayload]()
	for _, body := range []string{``, `[]`, `"models"`, `null`} {
		if _, err := decoder.Decode(Context{Op: "catalog: models"}, []byte(body)); !errors.Is(err, ErrNotObject) {
			t.Fatalf("body %q: expected ErrNotObject, got %v", body, err)
		}
	}
	if _, err := decoder.Decode(Context{Op: "catalog: models"}, []byte(`{"models":`)); err == nil {
		t.Fatalf("expected parse error for truncated body")
	}
}

func TestChecksRunInOrderAndStopAtFirstFailure(t *testing.T) {
	var ran []string
	first := func(_ Context, p *catalogPayload) error {
		ran = append(ran, "first")
		if len(p.Models) == 0 {
			return errors.New("no models")
		}
		return nil
	}
	second := func(Context, *catalogPayload) error {
		ran = append(ran, "second")
		return nil
	}
	decoder := NewDecoder[catalogPayload](
		WithCheck[catalogPayload](first),
		WithCheck[catalogPayload](second),
	)

	if _, err := decoder.Decode(Context{Op: "catalog: models"}, []byte(`{"models":["City"]}`)); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(ran, []string{"first", "second"}) {
		t.Fatalf("unexpected check order %v", ran)
	}

	ran = nil
	_, err := decoder.Decode(Context{Op: "catalog: models"}, []byte(`{"models":[]}`))
	if err == nil || err.Error() != "catalog: models: no models" {
		t.Fatalf("expected check error, got %v", err)
	}
	if !reflect.DeepEqual(ran, []string{"first"}) {
		t.Fatalf("later checks should not run after a failure, ran %v", ran)
	}
}

func buildOptions(tc fixtureCase) []DecoderOption[catalogPayload] {
	options := []DecoderOption[catalogPayload]{
		WithRequiredKeys[catalogPayload](tc.Required...),
	}
	for _, name := range tc.Checks {
		switch name {
		case "unique":
			options = append(options, WithCheck[catalogPayload](uniqueBrands))
		}
	}
	return options
}

func uniqueBrands(_ Context, payload *catalogPayload) error {
	seen := map[string]bool{}
	for _, brand := range payload.Brands {
		if seen[brand] {
			return fmt.Errorf("duplicate brand %q", brand)
		}
		seen[brand] = true
	}
	return nil
}

type fixture struct {
	Description string        `json:"description"`
	Cases       []fixtureCase `json:"cases"`
}

type fixtureCase struct {
	Name      string         `json:"name"`
	Op        string         `json:"op"`
	Input     map[string]any `json:"input"`
	Required  []string       `json:"required"`
	Expect    catalogPayload `json:"expect"`
	ExpectErr string         `json:"expectErr"`
	Checks    []string       `json:"checks"`
}

type catalogPayload struct {
	Brands        []string `json:"brands,omitempty"`
	Models        []string `json:"models,omitempty"`
	FuelTypes     []string `json:"fuel_types,omitempty"`
	Years         []int    `json:"years,omitempty"`
	Transmissions []string `json:"transmissions,omitempty"`
}

func loadFixture(t *testing.T, name string) fixture {
	t.Helper()
	path := filepath.Join("..", "..", "testdata", name)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read hydrate fixture %q: %v", name, err)
	}
	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		t.Fatalf("failed to unmarshal hydrate fixture %q: %v", name, err)
	}
	return fx
}
