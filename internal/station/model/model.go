// Package model defines the vehicle configuration snapshot exchanged with
// vehicles and held by the station.
package model

import (
	"slices"
	"strconv"
)

// VehicleID identifies a vehicle. Zero is reserved and never valid.
type VehicleID uint32

// NoVehicle is the reserved zero id.
const NoVehicle VehicleID = 0

func (id VehicleID) String() string { return strconv.FormatUint(uint64(id), 10) }

// Valid reports whether id is not the reserved zero id.
func (id VehicleID) Valid() bool { return id != NoVehicle }

// Radio capability flags, shared by links and interfaces.
const (
	CapCanTx         uint32 = 1 << 0
	CapCanRx         uint32 = 1 << 1
	CapDisabled      uint32 = 1 << 2
	CapCanUseVideo   uint32 = 1 << 3
	CapCanUseData    uint32 = 1 << 4
	CapHighCapacity  uint32 = 1 << 5
	CapUsedForRelay  uint32 = 1 << 12
	CapSikRadio      uint32 = 1 << 13
	CapSupportedMask uint32 = 0x00FF0000
)

// LegacyRelayFlagsBuild is the first build that reports CapUsedForRelay
// correctly.
const LegacyRelayFlagsBuild = 79

// Relay modes.
const (
	RelayModeNone        uint32 = 0
	RelayModeMain        uint32 = 1 << 0
	RelayModeRemote      uint32 = 1 << 1
	RelayModePIPMain     uint32 = 1 << 2
	RelayModePIPRemote   uint32 = 1 << 3
	RelayModeIsRelayNode uint32 = 1 << 4
)

// RelayDisabled is the EnabledOnLink value of a vehicle that does not relay.
const RelayDisabled int32 = -1

// Alarm bits carried in Snapshot.Alarms.
const (
	AlarmUnsupportedUSBSerial uint32 = 1 << 10
)

// CameraType is a detected or forced camera hardware type.
type CameraType int32

const (
	CameraTypeNone CameraType = iota
	CameraTypeCSI
	CameraTypeHDMI
	CameraTypeVeye290
	CameraTypeVeye307
	CameraTypeIMX415
	CameraTypeUSB
	CameraTypeIPCamera
)

func (t CameraType) String() string {
	switch t {
	case CameraTypeNone:
		return "None"
	case CameraTypeCSI:
		return "CSI Camera"
	case CameraTypeHDMI:
		return "HDMI Camera"
	case CameraTypeVeye290:
		return "Veye 290"
	case CameraTypeVeye307:
		return "Veye 307"
	case CameraTypeIMX415:
		return "IMX415"
	case CameraTypeUSB:
		return "USB Camera"
	case CameraTypeIPCamera:
		return "IP Camera"
	default:
		return "Unknown (" + strconv.Itoa(int(t)) + ")"
	}
}

type RadioLink struct {
	FrequencyKHz    uint32 `json:"frequencyKHz"`
	CapabilityFlags uint32 `json:"capabilityFlags"`
	FrameFlags      uint32 `json:"frameFlags"`
}

type RadioInterface struct {
	CapabilityFlags uint32 `json:"capabilityFlags"`
	// TypeAndDriver has a zero driver byte (bits 16-23) when the card is not
	// fully supported.
	TypeAndDriver uint32 `json:"typeAndDriver"`
}

// Supported reports whether the interface has a known driver.
func (i RadioInterface) Supported() bool { return i.TypeAndDriver&CapSupportedMask != 0 }

type Camera struct {
	Type       CameraType `json:"type"`
	ForcedType CameraType `json:"forcedType"`
	Name       string     `json:"name,omitempty"`
}

// ForcedMismatch reports whether the camera is forced to a type other than
// the one detected.
func (c Camera) ForcedMismatch() bool {
	return c.ForcedType != CameraTypeNone && c.ForcedType != c.Type
}

type CameraSettings struct {
	// Active indexes Cameras; -1 when no camera is active.
	Active  int32    `json:"active"`
	Cameras []Camera `json:"cameras,omitempty"`
}

// Current returns the active camera, if any.
func (c CameraSettings) Current() (Camera, bool) {
	if c.Active < 0 || int(c.Active) >= len(c.Cameras) {
		return Camera{}, false
	}
	return c.Cameras[c.Active], true
}

type Audio struct {
	Enabled     bool   `json:"enabled"`
	HasDevice   bool   `json:"hasDevice"`
	DeviceIndex uint32 `json:"deviceIndex"`
	Volume      uint32 `json:"volume"`
}

type OSD struct {
	Layout uint32 `json:"layout"`
	// Preferences holds one bit set per layout.
	Preferences []uint32 `json:"preferences,omitempty"`
}

type Relay struct {
	// EnabledOnLink is the radio link carrying the relay, RelayDisabled if none.
	EnabledOnLink    int32     `json:"enabledOnLink"`
	RelayedVehicleID VehicleID `json:"relayedVehicleId"`
	Mode             uint32    `json:"mode"`
}

// Active reports whether relaying is enabled towards a concrete vehicle.
func (r Relay) Active() bool {
	return r.EnabledOnLink >= 0 && r.RelayedVehicleID.Valid()
}

type VideoProfile struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

type Video struct {
	Selected uint32         `json:"selected"`
	Profiles []VideoProfile `json:"profiles,omitempty"`
}

// SelectedProfile returns the user-selected profile, or a zero profile when
// the index is out of range.
func (v Video) SelectedProfile() VideoProfile {
	if int(v.Selected) >= len(v.Profiles) {
		return VideoProfile{}
	}
	return v.Profiles[v.Selected]
}

type Stats struct {
	OnTimeSec     uint32 `json:"onTimeSec"`
	FlightTimeSec uint32 `json:"flightTimeSec"`
	TotalFlights  uint32 `json:"totalFlights"`
}

// Snapshot is one vehicle's configuration as last reported by the vehicle,
// merged with the station's locally owned settings.
type Snapshot struct {
	VehicleID     VehicleID     `json:"vehicleId"`
	Name          string        `json:"name,omitempty"`
	Version       PackedVersion `json:"version"`
	DeveloperMode bool          `json:"developerMode"`
	// Spectator marks an observe-only connection. It is owned by the station.
	Spectator bool `json:"spectator"`

	Links      []RadioLink      `json:"links,omitempty"`
	Interfaces []RadioInterface `json:"interfaces,omitempty"`
	Camera     CameraSettings   `json:"camera"`
	Audio      Audio            `json:"audio"`
	OSD        OSD              `json:"osd"`
	Relay      Relay            `json:"relay"`
	Video      Video            `json:"video"`
	Stats      Stats            `json:"stats"`
	Alarms     uint32           `json:"alarms"`
}

// Clone returns a deep copy of s.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Links = slices.Clone(s.Links)
	c.Interfaces = slices.Clone(s.Interfaces)
	c.Camera.Cameras = slices.Clone(s.Camera.Cameras)
	c.OSD.Preferences = slices.Clone(s.OSD.Preferences)
	c.Video.Profiles = slices.Clone(s.Video.Profiles)
	return &c
}

// NeedsLegacyNormalization reports whether s comes from a build that set
// CapUsedForRelay incorrectly.
func (s *Snapshot) NeedsLegacyNormalization() bool {
	return s.Version.Build() < LegacyRelayFlagsBuild
}

// StripLegacyRelayFlags clears CapUsedForRelay on every link and interface.
func (s *Snapshot) StripLegacyRelayFlags() {
	for i := range s.Links {
		s.Links[i].CapabilityFlags &^= CapUsedForRelay
	}
	for i := range s.Interfaces {
		s.Interfaces[i].CapabilityFlags &^= CapUsedForRelay
	}
}

// UnsupportedInterfaces counts interfaces without a known driver.
func (s *Snapshot) UnsupportedInterfaces() int {
	n := 0
	for _, i := range s.Interfaces {
		if !i.Supported() {
			n++
		}
	}
	return n
}
