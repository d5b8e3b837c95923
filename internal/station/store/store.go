// Package store keeps the known-vehicle snapshots: an in-memory map that
// hands out copies, backed by a durable key/value backend holding the
// encoded snapshots.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/autopeer-io/groundpeer/internal/station/codec"
	"github.com/autopeer-io/groundpeer/internal/station/model"
	"github.com/autopeer-io/groundpeer/pkg/log"
	"github.com/autopeer-io/groundpeer/pkg/options"
)

// ErrNotFound is returned by backends for an unknown vehicle id.
var ErrNotFound = errors.New("snapshot not found")

// Backend persists encoded snapshots. Save must replace the previous value
// atomically: a reader sees either the old or the new payload.
type Backend interface {
	Load(ctx context.Context, id model.VehicleID) ([]byte, error)
	Save(ctx context.Context, id model.VehicleID, payload []byte) error
	Delete(ctx context.Context, id model.VehicleID) error
	List(ctx context.Context) ([]model.VehicleID, error)
	Close() error
}

// Store is safe for concurrent use. Snapshots passed in and out are copies.
type Store struct {
	backend Backend

	mu        sync.RWMutex
	snapshots map[model.VehicleID]*model.Snapshot
}

// New opens the backend selected by opts.
func New(opts *options.StoreOptions) (*Store, error) {
	var (
		b   Backend
		err error
	)
	switch opts.Driver {
	case options.StoreDriverBolt:
		b, err = OpenBolt(opts.Path)
	case options.StoreDriverSQLite:
		b, err = OpenSQLite(opts.Path)
	case options.StoreDriverMemory:
		b = NewMemory()
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", opts.Driver, err)
	}
	return NewWithBackend(b), nil
}

// NewWithBackend wraps an already opened backend.
func NewWithBackend(b Backend) *Store {
	return &Store{backend: b, snapshots: make(map[model.VehicleID]*model.Snapshot)}
}

// Warm loads every snapshot from the backend into memory. Entries that no
// longer decode are logged and skipped.
func (s *Store) Warm(ctx context.Context) error {
	ids, err := s.backend.List(ctx)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}

	loaded := make(map[model.VehicleID]*model.Snapshot, len(ids))
	for _, id := range ids {
		payload, err := s.backend.Load(ctx, id)
		if err != nil {
			return fmt.Errorf("load snapshot %s: %w", id, err)
		}
		snap, err := codec.Decode(payload)
		if err != nil {
			log.Warn("Skipping undecodable stored snapshot", "vehicleId", id, "error", err)
			continue
		}
		loaded[id] = snap
	}

	s.mu.Lock()
	s.snapshots = loaded
	s.mu.Unlock()

	log.Info("Snapshot store loaded", "vehicles", len(loaded))
	return nil
}

// Get returns a copy of the snapshot for id.
func (s *Store) Get(id model.VehicleID) (*model.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[id]
	if !ok {
		return nil, false
	}
	return snap.Clone(), true
}

// Has reports whether a snapshot for id is known.
func (s *Store) Has(id model.VehicleID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.snapshots[id]
	return ok
}

// Put replaces the snapshot for snap.VehicleID in memory and then in the
// backend. A backend failure is returned but the in-memory value stays
// replaced.
func (s *Store) Put(ctx context.Context, snap *model.Snapshot) error {
	payload, err := codec.Encode(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	s.mu.Lock()
	s.snapshots[snap.VehicleID] = snap.Clone()
	s.mu.Unlock()

	if err := s.backend.Save(ctx, snap.VehicleID, payload); err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.VehicleID, err)
	}
	return nil
}

// Delete forgets id. Deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, id model.VehicleID) error {
	s.mu.Lock()
	delete(s.snapshots, id)
	s.mu.Unlock()

	if err := s.backend.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	return nil
}

// IDs returns the known vehicle ids in ascending order.
func (s *Store) IDs() []model.VehicleID {
	s.mu.RLock()
	ids := make([]model.VehicleID, 0, len(s.snapshots))
	for id := range s.snapshots {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// List returns copies of every snapshot ordered by vehicle id.
func (s *Store) List() []*model.Snapshot {
	ids := s.IDs()
	out := make([]*model.Snapshot, 0, len(ids))
	for _, id := range ids {
		if snap, ok := s.Get(id); ok {
			out = append(out, snap)
		}
	}
	return out
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
