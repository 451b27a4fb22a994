package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-drivalyze"
	"github.com/goliatone/go-drivalyze/pkg/activity"
)

// Sink is the fire-and-forget Persistence Sink. Record returns at once; the
// event is built synchronously and fanned out on its own goroutine. Hook
// failures are logged and never reach the caller.
type Sink struct {
	emitter   *activity.Emitter
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
	anonymous bool

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

var _ drivalyze.Recorder = (*Sink)(nil)

// SinkOption configures a Sink.
type SinkOption func(*Sink)

func WithSinkLogger(logger *zap.Logger) SinkOption {
	return func(s *Sink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithSinkClock(now func() time.Time) SinkOption {
	return func(s *Sink) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(newID func() string) SinkOption {
	return func(s *Sink) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithAnonymous records predictions made without a signed-in user. By
// default they are skipped.
func WithAnonymous(enabled bool) SinkOption {
	return func(s *Sink) {
		s.anonymous = enabled
	}
}

// NewSink builds a Sink publishing through emitter.
func NewSink(emitter *activity.Emitter, opts ...SinkOption) *Sink {
	s := &Sink{
		emitter: emitter,
		logger:  zap.NewNop(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// NewStoreSink is shorthand for a Sink that appends to store and forwards to
// any extra hooks.
func NewStoreSink(store Store, extra activity.Hooks, opts ...SinkOption) *Sink {
	hooks := append(activity.Hooks{StoreHook{Store: store}}, extra...)
	return NewSink(activity.NewEmitter(hooks, activity.Config{Enabled: true}), opts...)
}

// Record implements drivalyze.Recorder.
func (s *Sink) Record(ctx context.Context, sel drivalyze.Selection, price drivalyze.Price, identity drivalyze.Identity) {
	if s == nil || !s.emitter.Enabled() {
		return
	}
	if identity.UserID == "" && !s.anonymous {
		s.logger.Debug("skipping prediction record without user")
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("prediction sink closed, dropping record",
			zap.String("brand", sel.Brand),
			zap.String("model", sel.Model),
		)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	event := activity.BuildPredictionRecordedEvent(activity.PredictionInput{
		RecordID:   s.newID(),
		Identity:   identity,
		Selection:  sel,
		Price:      price,
		OccurredAt: s.now(),
	})
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer s.wg.Done()
		if err := s.emitter.Emit(ctx, event); err != nil {
			s.logger.Error("failed to persist prediction",
				zap.String("record_id", event.ObjectID),
				zap.String("user_id", event.UserID),
				zap.Error(err),
			)
			return
		}
		s.logger.Debug("prediction persisted", zap.String("record_id", event.ObjectID))
	}()
}

// Close stops accepting records and waits for pending writes or ctx.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
