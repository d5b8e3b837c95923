package core

import (
	"context"
	"sync"

	"github.com/autopeer-io/groundpeer/internal/station/model"
)

// Listener is told about changes to the set of known vehicles.
type Listener interface {
	OnVehicleAdded(ctx context.Context, id model.VehicleID)
	OnVehicleDeleted(ctx context.Context, id model.VehicleID)
	OnMainVehicleChanged(ctx context.Context, id model.VehicleID)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Added       func(ctx context.Context, id model.VehicleID)
	Deleted     func(ctx context.Context, id model.VehicleID)
	MainChanged func(ctx context.Context, id model.VehicleID)
}

func (f ListenerFuncs) OnVehicleAdded(ctx context.Context, id model.VehicleID) {
	if f.Added != nil {
		f.Added(ctx, id)
	}
}

func (f ListenerFuncs) OnVehicleDeleted(ctx context.Context, id model.VehicleID) {
	if f.Deleted != nil {
		f.Deleted(ctx, id)
	}
}

func (f ListenerFuncs) OnMainVehicleChanged(ctx context.Context, id model.VehicleID) {
	if f.MainChanged != nil {
		f.MainChanged(ctx, id)
	}
}

// Listeners calls its members in registration order.
type Listeners struct {
	mu   sync.RWMutex
	list []Listener
}

func (l *Listeners) Register(ls ...Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.list = append(l.list, ls...)
}

func (l *Listeners) snapshot() []Listener {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Listener(nil), l.list...)
}

func (l *Listeners) VehicleAdded(ctx context.Context, id model.VehicleID) {
	for _, ls := range l.snapshot() {
		ls.OnVehicleAdded(ctx, id)
	}
}

func (l *Listeners) VehicleDeleted(ctx context.Context, id model.VehicleID) {
	for _, ls := range l.snapshot() {
		ls.OnVehicleDeleted(ctx, id)
	}
}

func (l *Listeners) MainVehicleChanged(ctx context.Context, id model.VehicleID) {
	for _, ls := range l.snapshot() {
		ls.OnMainVehicleChanged(ctx, id)
	}
}
