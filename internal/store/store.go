package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/hospital/internal/platform/apiclient"
	"github.com/ehr/hospital/internal/platform/session"
	"github.com/ehr/hospital/pkg/validation"
)

// Backend is the subset of *apiclient.Client the store needs.
type Backend interface {
	Login(ctx context.Context, username, password string) (*apiclient.LoginResult, error)
	Logout(ctx context.Context) error
	Resume(ctx context.Context) (session.Saved, bool)
	Do(ctx context.Context, req apiclient.Request, out any) error
}

// Store holds the State and runs the operations that change it. It is safe
// for concurrent use; network calls happen outside the lock.
type Store struct {
	backend Backend
	logger  zerolog.Logger
	now     func() time.Time

	mu    sync.Mutex
	state State
	// epoch changes whenever the session does; results of calls started
	// under an older epoch are discarded.
	epoch uint64
	seq   uint64
	subs  []func(State)
	// version counts applied actions. Subscribers only ever see increasing
	// versions; a state overtaken by a newer one before delivery is skipped.
	version uint64

	notifyMu  sync.Mutex
	delivered uint64
}

type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSubscriber registers fn to receive new states in the order they were
// applied. Calls are serialized and a state already superseded when its turn
// comes is skipped, so the last call always carries the latest state. fn must
// not call back into the Store synchronously.
func WithSubscriber(fn func(State)) Option {
	return func(s *Store) { s.subs = append(s.subs, fn) }
}

func New(backend Backend, logger zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		logger:  logger.With().Str("component", "store").Logger(),
		now:     time.Now,
		state:   Initial(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Snapshot returns the current state. The value shares backing arrays with
// the store but reducers never write through them, so it is safe to read
// from any goroutine.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ClearError dismisses the recorded error.
func (s *Store) ClearError() {
	s.dispatch(ErrorCleared{})
}

func (s *Store) dispatch(a Action) {
	s.mu.Lock()
	s.apply(a)
	st, version := s.state, s.version
	s.mu.Unlock()
	s.publish(version, st)
}

// dispatchAt applies a only if the session has not changed since epoch.
func (s *Store) dispatchAt(epoch uint64, a Action) bool {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.logger.Debug().Msgf("dropping %T from a previous session", a)
		return false
	}
	s.apply(a)
	st, version := s.state, s.version
	s.mu.Unlock()
	s.publish(version, st)
	return true
}

// apply must be called with mu held.
func (s *Store) apply(a Action) {
	s.state = Reduce(s.state, a)
	s.version++
	switch a.(type) {
	case LoginSucceeded, LoggedOut, SessionExpired:
		s.epoch++
	}
}

// publish hands st to the subscribers unless a newer state was delivered
// first.
func (s *Store) publish(version uint64, st State) {
	if len(s.subs) == 0 {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if version <= s.delivered {
		return
	}
	s.delivered = version
	for _, fn := range s.subs {
		fn(st)
	}
}

// begin returns the current epoch and a fresh sequence number for a fetch.
func (s *Store) begin() (epoch, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.epoch, s.seq
}

func (s *Store) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// fail records err. An expired session forces a logout instead.
func (s *Store) fail(epoch uint64, err error) error {
	if errors.Is(err, apiclient.ErrSessionExpired) {
		if s.dispatchAt(epoch, SessionExpired{Err: err}) {
			s.logger.Warn().Msg("session expired, signed out")
		}
		return err
	}
	s.dispatchAt(epoch, ErrorRecorded{Err: err})
	return err
}

type validator interface {
	Validate() error
}

// check runs client-side validation on payloads that support it.
func check(payload any) error {
	v, ok := payload.(validator)
	if !ok {
		return nil
	}
	err := v.Validate()
	if err == nil {
		return nil
	}
	var fields validation.Errors
	if errors.As(err, &fields) {
		return apiclient.NewValidationError(fields)
	}
	return &apiclient.Error{Kind: apiclient.KindValidation, Message: err.Error(), Err: err}
}
