// Package fsm holds helpers shared by the looplab/fsm based state machines.
package fsm

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// WrapEvent adapts an error-returning callback to fsm.Callback. A non-nil
// error is stored on the event and returned by FSM.Event.
func WrapEvent(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Err = err
		}
	}
}

// RealError filters the errors FSM.Event uses for control flow. A
// self-transition or a cancelled transition yields nil, unless a callback
// of the self-transition failed, in which case that failure is returned.
func RealError(err error) error {
	if err == nil {
		return nil
	}

	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return noTransition.Err
	}

	var canceled fsm.CanceledError
	if errors.As(err, &canceled) {
		return nil
	}

	return err
}

// IsRealError reports whether RealError(err) is non-nil.
func IsRealError(err error) bool {
	return RealError(err) != nil
}
