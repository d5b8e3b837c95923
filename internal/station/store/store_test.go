package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/autopeer-io/groundpeer/internal/station/model"
	"github.com/autopeer-io/groundpeer/pkg/options"
)

func snapshot(id model.VehicleID) *model.Snapshot {
	return &model.Snapshot{
		VehicleID: id,
		Name:      "vehicle",
		Version:   model.NewVersion(10, 4, 270),
		Links:     []model.RadioLink{{FrequencyKHz: 5745000, CapabilityFlags: model.CapCanTx}},
		Camera:    model.CameraSettings{Active: -1},
		Relay:     model.Relay{EnabledOnLink: model.RelayDisabled},
	}
}

func backends() map[string]func(t *testing.T) *Store {
	return map[string]func(t *testing.T) *Store{
		options.StoreDriverMemory: func(t *testing.T) *Store {
			s, err := New(&options.StoreOptions{Driver: options.StoreDriverMemory})
			if err != nil {
				t.Fatal(err)
			}
			return s
		},
		options.StoreDriverBolt: func(t *testing.T) *Store {
			s, err := New(&options.StoreOptions{Driver: options.StoreDriverBolt, Path: filepath.Join(t.TempDir(), "bolt", "vehicles.db")})
			if err != nil {
				t.Fatal(err)
			}
			return s
		},
		options.StoreDriverSQLite: func(t *testing.T) *Store {
			s, err := New(&options.StoreOptions{Driver: options.StoreDriverSQLite, Path: filepath.Join(t.TempDir(), "sqlite", "vehicles.db")})
			if err != nil {
				t.Fatal(err)
			}
			return s
		},
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			if _, ok := s.Get(42); ok {
				t.Fatal("Get() on empty store found a snapshot")
			}
			for _, id := range []model.VehicleID{77, 42} {
				if err := s.Put(ctx, snapshot(id)); err != nil {
					t.Fatalf("Put(%d) = %v", id, err)
				}
			}

			got, ok := s.Get(42)
			if !ok {
				t.Fatal("Get(42) missing")
			}
			if diff := cmp.Diff(snapshot(42), got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Get(42) mismatch (-want +got):\n%s", diff)
			}

			// Mutating a returned snapshot must not leak into the store.
			got.Links[0].FrequencyKHz = 1
			if again, _ := s.Get(42); again.Links[0].FrequencyKHz != 5745000 {
				t.Error("store shares memory with returned snapshot")
			}

			if diff := cmp.Diff([]model.VehicleID{42, 77}, s.IDs()); diff != "" {
				t.Errorf("IDs() mismatch (-want +got):\n%s", diff)
			}

			// A fresh view over the same backend sees the persisted data.
			fresh := NewWithBackend(s.backend)
			if err := fresh.Warm(ctx); err != nil {
				t.Fatalf("Warm() = %v", err)
			}
			if len(fresh.List()) != 2 {
				t.Errorf("Warm() loaded %d snapshots, want 2", len(fresh.List()))
			}

			if err := s.Delete(ctx, 77); err != nil {
				t.Fatalf("Delete() = %v", err)
			}
			if err := s.Delete(ctx, 77); err != nil {
				t.Fatalf("second Delete() = %v", err)
			}
			if s.Has(77) {
				t.Error("Has(77) after Delete")
			}
			if _, err := s.backend.Load(ctx, 77); !errors.Is(err, ErrNotFound) {
				t.Errorf("backend Load after Delete = %v, want ErrNotFound", err)
			}
		})
	}
}

type failingBackend struct{ *Memory }

func (failingBackend) Save(context.Context, model.VehicleID, []byte) error {
	return errors.New("disk full")
}

func TestPutKeepsMemoryOnBackendFailure(t *testing.T) {
	s := NewWithBackend(failingBackend{NewMemory()})

	if err := s.Put(context.Background(), snapshot(42)); err == nil {
		t.Fatal("Put() succeeded with a failing backend")
	}
	if !s.Has(42) {
		t.Error("in-memory snapshot was reverted after a backend failure")
	}
}

func TestPutRejectsReservedID(t *testing.T) {
	s := NewWithBackend(NewMemory())
	if err := s.Put(context.Background(), snapshot(0)); err == nil {
		t.Fatal("Put() accepted vehicle id 0")
	}
	if s.Has(0) {
		t.Error("vehicle id 0 stored")
	}
}

func TestWarmSkipsCorrupt(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Save(ctx, 5, []byte{0xFF})

	s := NewWithBackend(m)
	if err := s.Put(ctx, snapshot(6)); err != nil {
		t.Fatal(err)
	}
	if err := s.Warm(ctx); err != nil {
		t.Fatalf("Warm() = %v", err)
	}
	if diff := cmp.Diff([]model.VehicleID{6}, s.IDs()); diff != "" {
		t.Errorf("IDs() mismatch (-want +got):\n%s", diff)
	}
}
