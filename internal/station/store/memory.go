package store

import (
	"context"
	"slices"
	"sync"

	"github.com/autopeer-io/groundpeer/internal/station/model"
)

// Memory is a Backend that keeps payloads in a map. Nothing survives a
// restart.
type Memory struct {
	mu   sync.Mutex
	data map[model.VehicleID][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[model.VehicleID][]byte)}
}

func (m *Memory) Load(_ context.Context, id model.VehicleID) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(b), nil
}

func (m *Memory) Save(_ context.Context, id model.VehicleID, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = slices.Clone(payload)
	return nil
}

func (m *Memory) Delete(_ context.Context, id model.VehicleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

func (m *Memory) List(_ context.Context) ([]model.VehicleID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]model.VehicleID, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *Memory) Close() error { return nil }
