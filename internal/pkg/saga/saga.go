// Package saga keeps an ordered list of compensating actions for side effects
// that live outside the database transaction (blob uploads, identity
// accounts). Actions are unwound newest first.
package saga

import (
	"context"
	"errors"
	"sync"

	"ecos/internal/pkg/logger"
)

// ErrAlreadyGone lets an undo report that the thing it would remove does not
// exist. Unwind treats it as success.
var ErrAlreadyGone = errors.New("already gone")

type action struct {
	name string
	undo func(ctx context.Context) error
}

// Saga is safe for concurrent Stage calls.
type Saga struct {
	log *logger.Logger

	mu      sync.Mutex
	actions []action
}

func New(log *logger.Logger) *Saga {
	if log == nil {
		log = logger.Nop()
	}
	return &Saga{log: log}
}

// Stage records undo. Call it before starting the side effect it reverses.
func (s *Saga) Stage(name string, undo func(ctx context.Context) error) {
	if undo == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action{name: name, undo: undo})
}

// Len is the number of staged actions.
func (s *Saga) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actions)
}

// Forget drops every staged action; used once the owning operation committed.
func (s *Saga) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = nil
}

// Unwind runs staged actions in reverse order. Every action is attempted even
// when an earlier one fails; failures are logged and returned joined. The
// context is detached from cancellation so a disconnected client does not
// leave orphans behind.
func (s *Saga) Unwind(ctx context.Context) error {
	s.mu.Lock()
	actions := s.actions
	s.actions = nil
	s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := len(actions) - 1; i >= 0; i-- {
		a := actions[i]
		err := runUndo(ctx, a)
		if err == nil || errors.Is(err, ErrAlreadyGone) {
			continue
		}
		s.log.Warn("compensation failed", "action", a.name, "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func runUndo(ctx context.Context, a action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("compensation panicked: " + a.name)
		}
	}()
	return a.undo(ctx)
}
