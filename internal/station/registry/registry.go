// Package registry tracks the vehicles taking part in the current pairing:
// the home vehicle in slot 0 and at most one relayed vehicle in slot 1.
// Entries hold vehicle ids only; snapshots live in the store.
package registry

import (
	"errors"
	"fmt"

	"github.com/autopeer-io/groundpeer/internal/station/model"
)

const (
	// HomeSlot always holds the vehicle whose configuration drives the radio.
	HomeSlot = 0
	// RelaySlot holds the vehicle relayed through the home vehicle.
	RelaySlot = 1
	// Capacity is the number of slots.
	Capacity = 2
)

var (
	ErrReservedID  = errors.New("vehicle id 0 is reserved")
	ErrRelayIsHome = errors.New("relayed vehicle is the home vehicle")
)

// Telemetry records which telemetry streams have been seen for a vehicle.
type Telemetry struct {
	Ruby  bool `json:"ruby"`
	FC    bool `json:"fc"`
	Armed bool `json:"armed"`
}

// Entry is one occupied slot.
type Entry struct {
	VehicleID model.VehicleID `json:"vehicleId"`
	Telemetry Telemetry       `json:"telemetry"`
}

// Registry is a fixed-size slot table. The zero value is empty and ready to
// use. It is not safe for concurrent use.
type Registry struct {
	slots [Capacity]Entry
}

// Reset empties every slot.
func (r *Registry) Reset() {
	r.slots = [Capacity]Entry{}
}

// SetHome puts id in the home slot. A relay slot holding the same id is
// cleared so that every id appears at most once.
func (r *Registry) SetHome(id model.VehicleID) error {
	if !id.Valid() {
		return ErrReservedID
	}
	if r.slots[HomeSlot].VehicleID != id {
		r.slots[HomeSlot] = Entry{VehicleID: id}
	}
	if r.slots[RelaySlot].VehicleID == id {
		r.slots[RelaySlot] = Entry{}
	}
	return nil
}

// SetRelay puts id in the relay slot.
func (r *Registry) SetRelay(id model.VehicleID) error {
	if !id.Valid() {
		return ErrReservedID
	}
	if r.slots[HomeSlot].VehicleID == id {
		return fmt.Errorf("vehicle %s: %w", id, ErrRelayIsHome)
	}
	if r.slots[RelaySlot].VehicleID != id {
		r.slots[RelaySlot] = Entry{VehicleID: id}
	}
	return nil
}

// Find returns the slot holding id.
func (r *Registry) Find(id model.VehicleID) (int, bool) {
	if !id.Valid() {
		return -1, false
	}
	for i, e := range r.slots {
		if e.VehicleID == id {
			return i, true
		}
	}
	return -1, false
}

// Entry returns the entry in slot; ok is false for an empty or invalid slot.
func (r *Registry) Entry(slot int) (Entry, bool) {
	if slot < 0 || slot >= Capacity || !r.slots[slot].VehicleID.Valid() {
		return Entry{}, false
	}
	return r.slots[slot], true
}

// Home returns the home vehicle id, or model.NoVehicle.
func (r *Registry) Home() model.VehicleID { return r.slots[HomeSlot].VehicleID }

// Relay returns the relayed vehicle id, or model.NoVehicle.
func (r *Registry) Relay() model.VehicleID { return r.slots[RelaySlot].VehicleID }

// UpdateTelemetry replaces the telemetry flags of id and returns the
// previous value. ok is false when id is not registered.
func (r *Registry) UpdateTelemetry(id model.VehicleID, t Telemetry) (prev Telemetry, ok bool) {
	slot, ok := r.Find(id)
	if !ok {
		return Telemetry{}, false
	}
	prev = r.slots[slot].Telemetry
	r.slots[slot].Telemetry = t
	return prev, true
}

// Entries returns the occupied slots in slot order.
func (r *Registry) Entries() []Entry {
	var out []Entry
	for _, e := range r.slots {
		if e.VehicleID.Valid() {
			out = append(out, e)
		}
	}
	return out
}
