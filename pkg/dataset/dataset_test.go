package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/goliatone/go-drivalyze"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLoadFormats(t *testing.T) {
	cases := []struct {
		file       string
		brands     []string
		years      []int
		yearRange  YearRange
		fuelTypes  []string
		swiftPrice float64
	}{
		{
			file:       "catalog.json",
			brands:     []string{"Honda", "Hyundai", "Land Rover", "Maruti", "Tata"},
			years:      []int{2019, 2020, 2021, 2022, 2023, 2024},
			yearRange:  YearRange{Min: 2019, Max: 2024},
			fuelTypes:  []string{"CNG", "Diesel", "Electric", "Hybrid", "Petrol"},
			swiftPrice: 600000,
		},
		{
			file:       "catalog.yaml",
			brands:     []string{"Maruti", "Tata"},
			years:      []int{2021, 2022},
			yearRange:  YearRange{Min: 2021, Max: 2022},
			fuelTypes:  []string{"CNG", "Diesel", "Electric", "Petrol"},
			swiftPrice: 600000,
		},
		{
			file:       "catalog.toml",
			brands:     []string{"Hyundai"},
			years:      []int{2020, 2023},
			yearRange:  YearRange{Min: 2018, Max: 2023},
			fuelTypes:  []string{"Diesel", "Petrol"},
			swiftPrice: DefaultBasePrice,
		},
	}
	for _, tc := range cases {
		t.Run(tc.file, func(t *testing.T) {
			ds, err := Load(filepath.Join("testdata", tc.file))
			require.NoError(t, err)
			assert.Equal(t, tc.brands, ds.Brands)
			assert.Equal(t, tc.years, ds.Years)
			assert.Equal(t, tc.yearRange, ds.YearRange)
			assert.Equal(t, tc.fuelTypes, ds.FuelTypes)
			assert.Equal(t, tc.swiftPrice, ds.BasePrice("Maruti", "Swift"))
		})
	}
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "invalid_schema.json"))
	require.Error(t, err)
	var validationErr *jsonschema.ValidationError
	assert.True(t, errors.As(err, &validationErr), "expected schema error, got %v", err)
}

func TestLoadRejectsUnknownReferences(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "unknown_brand.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `models listed for unknown brand "Kia"`)
}

func TestLoadRejectsUnsupportedExtension(t *testing.T) {
	_, err := Load("catalog.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file extension")
}

func TestParseDerivesYearsFromRange(t *testing.T) {
	ds, err := Parse([]byte(`{
		"brands": ["Tata"],
		"models_by_brand": {"Tata": ["Nexon"]},
		"fuel_types_by_brand_model": {"Tata|Nexon": ["Electric"]},
		"transmissions": ["Automatic"],
		"year_range": {"min": 2022, "max": 2024}
	}`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, []int{2022, 2023, 2024}, ds.Years)
	assert.Equal(t, []string{"Electric"}, ds.FuelTypes)
}

func TestValidateRejectsYearsOutsideRange(t *testing.T) {
	_, err := Parse([]byte(`{
		"brands": ["Tata"],
		"models_by_brand": {"Tata": ["Nexon"]},
		"fuel_types_by_brand_model": {},
		"transmissions": ["Automatic"],
		"years": [2015],
		"year_range": {"min": 2020, "max": 2024}
	}`), FormatJSON)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "year 2015 outside range 2020-2024")
}

func TestSampleIsValid(t *testing.T) {
	ds := Sample()
	assert.Equal(t, Stats{Brands: 5, Models: 9}, ds.Stats())
	assert.Equal(t, []string{"Range Rover Evoque"}, ds.Models("Land Rover"))
	assert.Nil(t, ds.Models("Kia"))
	assert.True(t, ds.HasFuelType("Hybrid"))
	assert.False(t, ds.HasTransmission("CVT"))
}

func TestSplitKey(t *testing.T) {
	brand, model, ok := SplitKey(Key("Land Rover", "Range Rover Evoque"))
	require.True(t, ok)
	assert.Equal(t, "Land Rover", brand)
	assert.Equal(t, "Range Rover Evoque", model)

	for _, key := range []string{"Tata", "|Nexon", "Tata|", "a|b|c"} {
		_, _, ok := SplitKey(key)
		assert.False(t, ok, key)
	}
}

func TestDatasetFetch(t *testing.T) {
	ds := Sample()
	ctx := context.Background()

	models, err := ds.Fetch(ctx, drivalyze.ScopeKey{Field: drivalyze.FieldModel, Brand: "Honda"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Amaze", "City"}, models.Values())

	fuels, err := ds.Fetch(ctx, drivalyze.ScopeKey{Field: drivalyze.FieldFuelType, Brand: "Honda", Model: "City"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hybrid", "Petrol"}, fuels.Values())

	years, err := ds.Fetch(ctx, drivalyze.ScopeKey{Field: drivalyze.FieldYear})
	require.NoError(t, err)
	assert.Equal(t, "2019", years.Values()[0])

	unknown, err := ds.Fetch(ctx, drivalyze.ScopeKey{Field: drivalyze.FieldModel, Brand: "Kia"})
	require.NoError(t, err)
	assert.True(t, unknown.Empty())

	_, err = ds.Fetch(ctx, drivalyze.ScopeKey{Field: drivalyze.FieldFuelType, Brand: "Honda"})
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = ds.Fetch(cancelled, drivalyze.ScopeKey{Field: drivalyze.FieldBrand})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSourceKeepsPreviousDatasetOnFailedReload(t *testing.T) {
	path := copyFixture(t, "catalog.yaml")
	source, err := NewSource(path)
	require.NoError(t, err)

	var reloaded []*Dataset
	source.OnReload(func(ds *Dataset) { reloaded = append(reloaded, ds) })

	require.NoError(t, os.WriteFile(path, []byte("brands: []\n"), 0o600))
	require.Error(t, source.Reload())
	assert.Equal(t, []string{"Maruti", "Tata"}, source.Current().Brands)
	assert.Empty(t, reloaded)

	require.NoError(t, os.WriteFile(path, []byte(hyundaiYAML), 0o600))
	require.NoError(t, source.Reload())
	assert.Equal(t, []string{"Hyundai"}, source.Current().Brands)
	assert.Len(t, reloaded, 1)
}

func TestSourceWithoutPathServesSample(t *testing.T) {
	source, err := NewSource("")
	require.NoError(t, err)
	assert.Equal(t, Sample().Brands, source.Current().Brands)
	require.NoError(t, source.Reload())

	brands, err := source.Fetch(context.Background(), drivalyze.ScopeKey{Field: drivalyze.FieldBrand})
	require.NoError(t, err)
	assert.Equal(t, 5, brands.Len())
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := copyFixture(t, "catalog.yaml")
	source, err := NewSource(path)
	require.NoError(t, err)

	outcomes := make(chan error, 4)
	watcher, err := Watch(source,
		WithDebounce(20*time.Millisecond),
		WithReloadHook(func(err error) {
			select {
			case outcomes <- err:
			default:
			}
		}),
	)
	require.NoError(t, err)
	defer watcher.Close()

	require.NoError(t, os.WriteFile(path, []byte(hyundaiYAML), 0o600))

	deadline := time.After(5 * time.Second)
	for reloaded := false; !reloaded; {
		select {
		case err := <-outcomes:
			// A partially written file can fail once before the final write lands.
			reloaded = err == nil
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		}
	}
	assert.Equal(t, []string{"Hyundai"}, source.Current().Brands)
}

func TestWatchRequiresFileSource(t *testing.T) {
	_, err := Watch(NewStaticSource(Sample()))
	assert.Error(t, err)
}

const hyundaiYAML = `brands: [Hyundai]
models_by_brand:
  Hyundai: [Creta]
fuel_types_by_brand_model:
  "Hyundai|Creta": [Diesel, Petrol]
transmissions: [Automatic, Manual]
year_range: {min: 2018, max: 2023}
`

func copyFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}
