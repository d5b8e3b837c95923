// Package state holds the mutable station context handed to every event
// handler. It is owned by the dispatch goroutine and is not safe for
// concurrent use.
package state

import (
	"github.com/autopeer-io/groundpeer/internal/station/model"
	"github.com/autopeer-io/groundpeer/internal/station/registry"
	"github.com/autopeer-io/groundpeer/internal/station/upload"
)

// Flags are the transient conditions raised by link and video events.
type Flags struct {
	VideoDataOverload bool `json:"videoDataOverload"`
	VideoTxOverload   bool `json:"videoTxOverload"`
	LinkLost          bool `json:"linkLost"`
	ReconfiguringLink bool `json:"reconfiguringLink"`
	RouterReady       bool `json:"routerReady"`
	FreezeDisplay     bool `json:"freezeDisplay"`

	GotVideoBitrateStats bool `json:"gotVideoBitrateStats"`
	GotVehicleTxStats    bool `json:"gotVehicleTxStats"`

	// SyncOnLinkRecover asks for a full resync once data flows again.
	SyncOnLinkRecover bool `json:"syncOnLinkRecover"`
	// UpdatePromptShown makes the update prompt one-shot per selection.
	UpdatePromptShown bool `json:"updatePromptShown"`
	// FirstConnection is set when a vehicle is selected and cleared by its
	// first accepted settings.
	FirstConnection bool `json:"firstConnection"`
}

// ClearAlarms drops the alarm and stats flags raised during a pairing.
func (f *Flags) ClearAlarms() {
	f.VideoDataOverload = false
	f.VideoTxOverload = false
	f.LinkLost = false
	f.FreezeDisplay = false
	f.GotVideoBitrateStats = false
	f.GotVehicleTxStats = false
}

// ClearLinkMarkers drops the link state once pairing has stopped.
func (f *Flags) ClearLinkMarkers() {
	f.ReconfiguringLink = false
	f.RouterReady = false
	f.VideoDataOverload = false
	f.VideoTxOverload = false
	f.GotVideoBitrateStats = false
	f.GotVehicleTxStats = false
}

// Session is the station context.
type Session struct {
	Registry registry.Registry
	// CurrentID is the selected configuration, NoVehicle when none.
	CurrentID model.VehicleID
	// MustSyncFromVehicle requests a full settings download from the
	// current vehicle.
	MustSyncFromVehicle bool
	Upload              upload.Session
	Flags               Flags
}

func New(current model.VehicleID) *Session {
	s := &Session{}
	s.Select(current)
	return s
}

// Select switches the current configuration. The registry, the upload and
// every transient flag are reset.
func (s *Session) Select(id model.VehicleID) {
	s.CurrentID = id
	s.MustSyncFromVehicle = false
	s.Registry.Reset()
	s.Upload.Reset()
	s.Flags = Flags{FirstConnection: id.Valid()}
}

// IsHome reports whether id is the vehicle in the home slot.
func (s *Session) IsHome(id model.VehicleID) bool {
	return id.Valid() && s.Registry.Home() == id
}
