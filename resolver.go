package drivalyze

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Price is an estimated vehicle price in rupees.
type Price float64

// Identity describes the signed-in user a prediction belongs to.
type Identity struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// Fetcher retrieves the valid options for a scope.
type Fetcher interface {
	Fetch(ctx context.Context, scope ScopeKey) (OptionSet, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, scope ScopeKey) (OptionSet, error)

func (fn FetcherFunc) Fetch(ctx context.Context, scope ScopeKey) (OptionSet, error) {
	return fn(ctx, scope)
}

// Predictor estimates the price of a complete selection.
type Predictor interface {
	Predict(ctx context.Context, sel Selection) (Price, error)
}

// PredictorFunc adapts a function to Predictor.
type PredictorFunc func(ctx context.Context, sel Selection) (Price, error)

func (fn PredictorFunc) Predict(ctx context.Context, sel Selection) (Price, error) {
	return fn(ctx, sel)
}

// Recorder persists successful predictions. Implementations must return
// promptly and handle their own failures; the price has already been shown.
type Recorder interface {
	Record(ctx context.Context, sel Selection, price Price, identity Identity)
}

type inflightFetch struct {
	epoch  uint64
	cancel context.CancelFunc
}

// Resolver runs the reducer against real collaborators. It is safe for
// concurrent use. Fetches run on their own goroutines; a fetch superseded by
// a newer epoch has its context cancelled and its result discarded.
type Resolver struct {
	fetcher   Fetcher
	predictor Predictor
	cfg       resolverConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	state       State
	seq         uint64
	transitions []Transition
	inflight    map[Field]inflightFetch
	listeners   map[int]func(State)
	nextID      int
}

// NewResolver constructs a Resolver. fetcher and predictor may be nil, in
// which case fetches fail with ErrNoFetcher and Submit with ErrNoPredictor.
func NewResolver(fetcher Fetcher, predictor Predictor, opts ...Option) *Resolver {
	ctx, cancel := context.WithCancel(context.Background())
	return &Resolver{
		fetcher:   fetcher,
		predictor: predictor,
		cfg:       applyOptions(opts),
		ctx:       ctx,
		cancel:    cancel,
		inflight:  make(map[Field]inflightFetch),
		listeners: make(map[int]func(State)),
	}
}

// State returns a snapshot of the current state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Transitions returns a copy of the transition log, oldest first.
func (r *Resolver) Transitions() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Transition, len(r.transitions))
	copy(out, r.transitions)
	return out
}

// OnChange registers fn to be called with the new state after every applied
// event. The returned function removes the listener.
func (r *Resolver) OnChange(fn func(State)) func() {
	if fn == nil {
		return func() {}
	}
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// Load fetches the root option lists (brands, years, transmissions) and
// waits for them. Failures are recorded in the state as user messages; the
// first one is also returned.
func (r *Resolver) Load(ctx context.Context) error {
	effects := r.dispatch(Load{})
	var group errgroup.Group
	for _, effect := range effects {
		fetch, ok := effect.(FetchEffect)
		if !ok {
			continue
		}
		group.Go(func() error {
			return r.runFetch(ctx, fetch)
		})
	}
	return group.Wait()
}

// SetBrand selects brand and starts fetching its models.
func (r *Resolver) SetBrand(brand string) State {
	return r.Dispatch(SetBrand{Brand: brand})
}

// SetModel selects model and starts fetching its fuel types.
func (r *Resolver) SetModel(model string) State {
	return r.Dispatch(SetModel{Model: model})
}

// SetFuelType selects a fuel type.
func (r *Resolver) SetFuelType(fuel string) State {
	return r.Dispatch(SetFuelType{FuelType: fuel})
}

// SetYear selects a year.
func (r *Resolver) SetYear(year int) State {
	return r.Dispatch(SetYear{Year: year})
}

// SetTransmission selects a transmission.
func (r *Resolver) SetTransmission(transmission string) State {
	return r.Dispatch(SetTransmission{Transmission: transmission})
}

// Dispatch applies ev, starts any fetches it produces in the background and
// returns the resulting state. Submit events should go through Submit.
func (r *Resolver) Dispatch(ev Event) State {
	effects := r.dispatch(ev)
	for _, effect := range effects {
		if fetch, ok := effect.(FetchEffect); ok {
			r.startFetch(fetch)
		}
	}
	return r.State()
}

// Submit requests a price for the current selection. An incomplete selection
// returns ErrIncomplete without calling the Predictor. The call is made once;
// there are no retries. On success the result is handed to the Recorder.
func (r *Resolver) Submit(ctx context.Context) (Price, error) {
	effects := r.dispatch(Submit{})
	var predict *PredictEffect
	for _, effect := range effects {
		if p, ok := effect.(PredictEffect); ok {
			predict = &p
			break
		}
	}
	if predict == nil {
		return 0, ErrIncomplete
	}
	if r.predictor == nil {
		return 0, ErrNoPredictor
	}
	price, err := r.predictor.Predict(ctx, predict.Selection)
	if err != nil {
		r.cfg.logger.Warn("prediction failed",
			zap.String("brand", predict.Selection.Brand),
			zap.String("model", predict.Selection.Model),
			zap.Error(err),
		)
		return 0, err
	}
	if r.cfg.recorder != nil {
		r.cfg.recorder.Record(ctx, predict.Selection, price, r.cfg.identity())
	}
	return price, nil
}

// Wait blocks until every fetch started so far has been reported back.
func (r *Resolver) Wait() {
	r.wg.Wait()
}

// Close cancels in-flight fetches and waits for their goroutines to exit.
func (r *Resolver) Close() {
	r.cancel()
	r.wg.Wait()
}

func (r *Resolver) dispatch(ev Event) []Effect {
	r.mu.Lock()
	prev := r.state
	stale := IsStale(prev, ev)
	next, effects := Reduce(prev, ev)
	r.state = next

	outcome := OutcomeApplied
	switch {
	case stale:
		outcome = OutcomeDiscarded
	case len(effects) == 0 && statesEqual(prev, next):
		outcome = OutcomeIgnored
	}
	r.record(ev, outcome, len(effects), next.Selection)
	r.cancelSuperseded(next)

	var listeners []func(State)
	if outcome == OutcomeApplied {
		listeners = make([]func(State), 0, len(r.listeners))
		for _, fn := range r.listeners {
			listeners = append(listeners, fn)
		}
	}
	r.mu.Unlock()

	if stale {
		field, epoch := describeEvent(ev)
		r.cfg.logger.Debug("discarded stale result",
			zap.String("event", EventName(ev)),
			zap.String("field", field),
			zap.Uint64("epoch", epoch),
			zap.Uint64("current_epoch", next.Epoch(fieldOf(ev))),
		)
	}
	for _, fn := range listeners {
		fn(next)
	}
	return effects
}

// cancelSuperseded aborts fetches whose epoch is no longer current. Must be
// called with r.mu held.
func (r *Resolver) cancelSuperseded(s State) {
	for field, fetch := range r.inflight {
		if s.Epochs[field] != fetch.epoch {
			fetch.cancel()
			delete(r.inflight, field)
		}
	}
}

func (r *Resolver) record(ev Event, outcome Outcome, effects int, sel Selection) {
	if r.cfg.transitionLimit <= 0 {
		return
	}
	r.seq++
	field, epoch := describeEvent(ev)
	r.transitions = append(r.transitions, Transition{
		Seq:       r.seq,
		Event:     EventName(ev),
		Field:     field,
		Epoch:     epoch,
		Outcome:   outcome,
		Effects:   effects,
		Selection: sel,
		At:        r.cfg.now(),
	})
	if overflow := len(r.transitions) - r.cfg.transitionLimit; overflow > 0 {
		r.transitions = append(r.transitions[:0:0], r.transitions[overflow:]...)
	}
}

func (r *Resolver) startFetch(fetch FetchEffect) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_ = r.runFetch(r.ctx, fetch)
	}()
}

// runFetch performs fetch and reports the result back as an event. The
// returned error is informational; the state already reflects it.
func (r *Resolver) runFetch(parent context.Context, fetch FetchEffect) error {
	field := fetch.Scope.Field
	key := fetch.Scope.Identifier()
	if r.cfg.cache != nil {
		if options, ok := r.cfg.cache.Get(key); ok {
			r.dispatch(OptionsArrived{Field: field, Epoch: fetch.Epoch, Options: options})
			return nil
		}
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	stop := context.AfterFunc(r.ctx, cancel)
	defer stop()

	r.mu.Lock()
	if r.state.Epochs[field] != fetch.Epoch {
		r.mu.Unlock()
		return nil
	}
	if previous, ok := r.inflight[field]; ok {
		previous.cancel()
	}
	r.inflight[field] = inflightFetch{epoch: fetch.Epoch, cancel: cancel}
	r.mu.Unlock()

	options, err := r.fetch(ctx, fetch.Scope)

	r.mu.Lock()
	if current, ok := r.inflight[field]; ok && current.epoch == fetch.Epoch {
		delete(r.inflight, field)
	}
	r.mu.Unlock()

	if err != nil {
		if errors.Is(err, context.Canceled) && r.State().Epoch(field) != fetch.Epoch {
			r.cfg.logger.Debug("fetch aborted", zap.String("scope", key), zap.Uint64("epoch", fetch.Epoch))
		} else {
			r.cfg.logger.Warn("fetch failed", zap.String("scope", key), zap.Uint64("epoch", fetch.Epoch), zap.Error(err))
		}
		r.dispatch(FetchFailed{Field: field, Epoch: fetch.Epoch, Err: err})
		return err
	}
	if r.cfg.cache != nil {
		r.cfg.cache.Set(key, options)
	}
	r.dispatch(OptionsArrived{Field: field, Epoch: fetch.Epoch, Options: options})
	return nil
}

func (r *Resolver) fetch(ctx context.Context, scope ScopeKey) (OptionSet, error) {
	if r.fetcher == nil {
		return OptionSet{}, ErrNoFetcher
	}
	if err := scope.Validate(); err != nil {
		return OptionSet{}, err
	}
	return r.fetcher.Fetch(ctx, scope)
}

func fieldOf(ev Event) Field {
	switch ev := ev.(type) {
	case OptionsArrived:
		return ev.Field
	case FetchFailed:
		return ev.Field
	default:
		return -1
	}
}

func statesEqual(a, b State) bool {
	if a.Selection != b.Selection || a.Epochs != b.Epochs || a.Pending != b.Pending || a.Errors != b.Errors {
		return false
	}
	for i := range a.Options {
		if !a.Options[i].Equal(b.Options[i]) {
			return false
		}
	}
	return true
}
