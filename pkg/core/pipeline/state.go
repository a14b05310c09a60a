package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"alphaseeker/pkg/models"
)

// State is a step of the per-request state machine.
type State string

const (
	StateReceived     State = "RECEIVED"
	StateModeSelected State = "MODE_SELECTED"
	StateMerged       State = "MERGED"
	StateModelInvoked State = "MODEL_INVOKED"
	StateValidated    State = "VALIDATED"
	StatePersisted    State = "PERSISTED"
	StateFailed       State = "FAILED"
)

// FailureKind classifies why a request reached FAILED.
type FailureKind string

const (
	KindInvalidInput       FailureKind = "InvalidInput"
	KindNotFound           FailureKind = "NotFound"
	KindModelUnavailable   FailureKind = "ModelUnavailable"
	KindInvalidModelOutput FailureKind = "InvalidModelOutput"
	KindStorage            FailureKind = "StorageError"
	KindCancelled          FailureKind = "Cancelled"
)

// Failure is the terminal error of a request. State is the last state the
// request reached before failing. Err wraps one of the models sentinels, or
// the context error for KindCancelled.
type Failure struct {
	State State
	Kind  FailureKind
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s after %s: %v", f.Kind, f.State, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// KindOf returns the failure kind of err, or "" when err is not a *Failure.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// run tracks one request through the state machine and logs each transition.
type run struct {
	log     zerolog.Logger
	state   State
	started time.Time
}

func newRun(log zerolog.Logger, op, ticker string) *run {
	r := &run{
		log:     log.With().Str("op", op).Str("ticker", ticker).Logger(),
		state:   StateReceived,
		started: time.Now(),
	}
	r.log.Debug().Str("state", string(StateReceived)).Msg("request received")
	return r
}

func (r *run) to(s State, mode models.Mode) {
	r.state = s
	ev := r.log.Info().Str("state", string(s))
	if mode != "" {
		ev = ev.Str("mode", string(mode))
	}
	ev.Dur("elapsed", time.Since(r.started)).Msg("transition")
}

func (r *run) fail(kind FailureKind, err error) error {
	f := &Failure{State: r.state, Kind: kind, Err: err}
	ev := r.log.Warn()
	if kind == KindStorage {
		ev = r.log.Error()
	}
	ev.Err(err).Str("state", string(StateFailed)).Str("from", string(r.state)).Str("kind", string(kind)).
		Dur("elapsed", time.Since(r.started)).Msg("request failed")
	return f
}

// keyedLock serializes work per key. Waiting honours context cancellation.
type keyedLock struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{slots: make(map[string]*slot)}
}

// Lock blocks until key is free or ctx is done. The returned func releases it.
func (k *keyedLock) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	s, ok := k.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.refs++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				k.release(key, s)
			})
		}, nil
	case <-ctx.Done():
		k.release(key, s)
		return nil, ctx.Err()
	}
}

func (k *keyedLock) release(key string, s *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
}
