package drivalyze

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type staticFetcher struct {
	mu       sync.Mutex
	options  map[string][]string
	failures map[string]error
	calls    map[string]int
}

func newStaticFetcher() *staticFetcher {
	return &staticFetcher{
		options: map[string][]string{
			"brands":                {"Honda", "Toyota"},
			"years":                 {"2019", "2020", "2021"},
			"transmissions":         {"Manual", "Automatic"},
			"models/Honda":          {"City", "Civic"},
			"models/Toyota":         {"Corolla", "Camry"},
			"fuel-types/Honda/City": {"Petrol", "Diesel"},
		},
		failures: map[string]error{},
		calls:    map[string]int{},
	}
}

func (f *staticFetcher) Fetch(_ context.Context, scope ScopeKey) (OptionSet, error) {
	key := scope.Identifier()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	if err := f.failures[key]; err != nil {
		return OptionSet{}, err
	}
	return NewOptionSet(f.options[key]...), nil
}

func (f *staticFetcher) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

// gatedFetcher blocks each fetch until the test releases its key.
type gatedFetcher struct {
	mu      sync.Mutex
	gates   map[string]chan OptionSet
	calls   []string
	ctxErrs map[string]error
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{gates: map[string]chan OptionSet{}, ctxErrs: map[string]error{}}
}

func (f *gatedFetcher) gate(key string) chan OptionSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.gates[key]
	if !ok {
		ch = make(chan OptionSet, 1)
		f.gates[key] = ch
	}
	return ch
}

func (f *gatedFetcher) Fetch(ctx context.Context, scope ScopeKey) (OptionSet, error) {
	key := scope.Identifier()
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.mu.Unlock()

	options := <-f.gate(key)

	f.mu.Lock()
	f.ctxErrs[key] = ctx.Err()
	f.mu.Unlock()
	return options, nil
}

func (f *gatedFetcher) release(key string, values ...string) {
	f.gate(key) <- NewOptionSet(values...)
}

func (f *gatedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type capturePredictor struct {
	mu    sync.Mutex
	calls []Selection
	price Price
	err   error
}

func (p *capturePredictor) Predict(_ context.Context, sel Selection) (Price, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, sel)
	return p.price, p.err
}

type captureRecorder struct {
	mu      sync.Mutex
	records []Selection
	prices  []Price
	users   []Identity
}

func (r *captureRecorder) Record(_ context.Context, sel Selection, price Price, identity Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, sel)
	r.prices = append(r.prices, price)
	r.users = append(r.users, identity)
}

func TestResolverCompleteFlow(t *testing.T) {
	predictor := &capturePredictor{price: 650000}
	recorder := &captureRecorder{}
	resolver := NewResolver(newStaticFetcher(), predictor,
		WithRecorder(recorder),
		WithIdentity(func() Identity { return Identity{UserID: "u-1", Email: "a@b.co"} }),
	)
	defer resolver.Close()

	require.NoError(t, resolver.Load(context.Background()))
	state := resolver.State()
	assert.Equal(t, []string{"Honda", "Toyota"}, state.OptionsFor(FieldBrand).Values())
	assert.Equal(t, []string{"2019", "2020", "2021"}, state.OptionsFor(FieldYear).Values())

	resolver.SetBrand("Honda")
	resolver.Wait()
	resolver.SetModel("City")
	resolver.Wait()
	resolver.SetFuelType("Petrol")
	resolver.SetYear(2021)
	resolver.SetTransmission("Manual")

	price, err := resolver.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Price(650000), price)

	want := Selection{Brand: "Honda", Model: "City", FuelType: "Petrol", Year: 2021, Transmission: "Manual"}
	require.Len(t, predictor.calls, 1)
	assert.Equal(t, want, predictor.calls[0])
	require.Len(t, recorder.records, 1)
	assert.Equal(t, want, recorder.records[0])
	assert.Equal(t, "u-1", recorder.users[0].UserID)
}

func TestResolverSubmitIncompleteNeverPredicts(t *testing.T) {
	predictor := &capturePredictor{price: 1}
	recorder := &captureRecorder{}
	resolver := NewResolver(newStaticFetcher(), predictor, WithRecorder(recorder))
	defer resolver.Close()

	resolver.SetYear(2021)
	_, err := resolver.Submit(context.Background())
	require.ErrorIs(t, err, ErrIncomplete)
	assert.Empty(t, predictor.calls)
	assert.Empty(t, recorder.records)

	transitions := resolver.Transitions()
	require.NotEmpty(t, transitions)
	assert.Equal(t, OutcomeIgnored, transitions[len(transitions)-1].Outcome)
}

func TestResolverPredictionFailureSkipsRecorder(t *testing.T) {
	predictor := &capturePredictor{err: &ValidationRejectedError{Message: "Invalid model for selected brand"}}
	recorder := &captureRecorder{}
	resolver := NewResolver(newStaticFetcher(), predictor, WithRecorder(recorder))
	defer resolver.Close()

	require.NoError(t, resolver.Load(context.Background()))
	resolver.SetBrand("Honda")
	resolver.Wait()
	resolver.SetModel("City")
	resolver.Wait()
	resolver.SetFuelType("Diesel")
	resolver.SetYear(2020)
	resolver.SetTransmission("Automatic")

	_, err := resolver.Submit(context.Background())
	var rejected *ValidationRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "Invalid model for selected brand", UserMessage(err))
	assert.Empty(t, recorder.records)
	assert.Equal(t, "Diesel", resolver.State().Selection.FuelType, "form stays editable")
}

func TestResolverNoPredictor(t *testing.T) {
	resolver := NewResolver(newStaticFetcher(), nil)
	defer resolver.Close()
	require.NoError(t, resolver.Load(context.Background()))
	resolver.SetBrand("Honda")
	resolver.Wait()
	resolver.SetModel("City")
	resolver.Wait()
	resolver.SetFuelType("Petrol")
	resolver.SetYear(2021)
	resolver.SetTransmission("Manual")

	_, err := resolver.Submit(context.Background())
	require.ErrorIs(t, err, ErrNoPredictor)
}

func TestResolverDiscardsOutOfOrderArrival(t *testing.T) {
	fetcher := newGatedFetcher()
	resolver := NewResolver(fetcher, nil)
	defer resolver.Close()

	resolver.SetBrand("Honda")
	require.Eventually(t, func() bool { return fetcher.callCount() == 1 }, time.Second, time.Millisecond)
	resolver.SetBrand("Toyota")
	require.Eventually(t, func() bool { return fetcher.callCount() == 2 }, time.Second, time.Millisecond)

	fetcher.release("models/Toyota", "Corolla", "Camry")
	require.Eventually(t, func() bool {
		return resolver.State().OptionsFor(FieldModel).Len() == 2
	}, time.Second, time.Millisecond)
	fetcher.release("models/Honda", "City", "Civic")
	resolver.Wait()

	assert.Equal(t, []string{"Corolla", "Camry"}, resolver.State().OptionsFor(FieldModel).Values())

	fetcher.mu.Lock()
	assert.ErrorIs(t, fetcher.ctxErrs["models/Honda"], context.Canceled, "superseded fetch is aborted")
	assert.NoError(t, fetcher.ctxErrs["models/Toyota"])
	fetcher.mu.Unlock()

	var discarded int
	for _, transition := range resolver.Transitions() {
		if transition.Outcome == OutcomeDiscarded {
			discarded++
			assert.Equal(t, "model", transition.Field)
		}
	}
	assert.Equal(t, 1, discarded)
}

func TestResolverFetchFailureSurfacesMessage(t *testing.T) {
	fetcher := newStaticFetcher()
	fetcher.failures["models/Honda"] = &UnavailableError{Op: "catalog: models", Status: 500}
	resolver := NewResolver(fetcher, nil)
	defer resolver.Close()

	require.NoError(t, resolver.Load(context.Background()))
	resolver.SetBrand("Honda")
	resolver.Wait()

	state := resolver.State()
	assert.Equal(t, "Honda", state.Selection.Brand)
	assert.True(t, state.OptionsFor(FieldModel).Empty())
	assert.Equal(t, "Failed to load car models. Please try again.", state.Message(FieldModel))
	assert.Equal(t, 1, fetcher.callCount("models/Honda"), "no automatic retry")
}

func TestResolverLoadReturnsFirstFailure(t *testing.T) {
	fetcher := newStaticFetcher()
	fetcher.failures["brands"] = &UnavailableError{Op: "catalog: brands", Err: errors.New("connection refused")}
	resolver := NewResolver(fetcher, nil)
	defer resolver.Close()

	err := resolver.Load(context.Background())
	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)

	state := resolver.State()
	assert.Equal(t, "Failed to load data. Please make sure the backend server is running.", state.Message(FieldBrand))
	assert.Equal(t, 2, state.OptionsFor(FieldTransmission).Len())
}

func TestResolverNoFetcher(t *testing.T) {
	resolver := NewResolver(nil, nil)
	defer resolver.Close()
	require.ErrorIs(t, resolver.Load(context.Background()), ErrNoFetcher)
}

func TestResolverUsesOptionCache(t *testing.T) {
	fetcher := newStaticFetcher()
	resolver := NewResolver(fetcher, nil, WithOptionCache(NewMemoryOptionCache(0)))
	defer resolver.Close()

	for i := 0; i < 3; i++ {
		resolver.SetBrand("Honda")
		resolver.Wait()
	}
	assert.Equal(t, 1, fetcher.callCount("models/Honda"))
	assert.Equal(t, []string{"City", "Civic"}, resolver.State().OptionsFor(FieldModel).Values())
}

func TestResolverOnChange(t *testing.T) {
	resolver := NewResolver(newStaticFetcher(), nil)
	defer resolver.Close()

	var (
		mu     sync.Mutex
		brands []string
	)
	unsubscribe := resolver.OnChange(func(s State) {
		mu.Lock()
		brands = append(brands, s.Selection.Brand)
		mu.Unlock()
	})
	resolver.SetBrand("Honda")
	resolver.Wait()
	unsubscribe()
	resolver.SetBrand("Toyota")
	resolver.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Honda", "Honda"}, brands, "set_brand and the models arrival")
}

func TestResolverTransitionLimit(t *testing.T) {
	resolver := NewResolver(nil, nil, WithTransitionLimit(2))
	defer resolver.Close()
	resolver.SetYear(2019)
	resolver.SetYear(2020)
	resolver.SetYear(2021)

	transitions := resolver.Transitions()
	require.Len(t, transitions, 2)
	assert.Equal(t, uint64(2), transitions[0].Seq)
	assert.Equal(t, 2021, transitions[1].Selection.Year)
}

func TestResolverCloseAbortsInflight(t *testing.T) {
	started := make(chan struct{})
	fetcher := FetcherFunc(func(ctx context.Context, _ ScopeKey) (OptionSet, error) {
		close(started)
		<-ctx.Done()
		return OptionSet{}, ctx.Err()
	})
	resolver := NewResolver(fetcher, nil)
	resolver.SetBrand("Honda")
	<-started

	done := make(chan struct{})
	go func() {
		resolver.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("close did not return")
	}
	assert.False(t, resolver.State().Loading(FieldModel))
}
