// Package core declares the collaborators the station talks to and the
// listener list notified of vehicle set changes.
package core

import (
	"context"
	"time"

	"github.com/autopeer-io/groundpeer/internal/station/model"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notice is a user-visible advisory attached to a vehicle.
type Notice struct {
	VehicleID model.VehicleID `json:"vehicleId"`
	Message   string          `json:"message"`
	Severity  Severity        `json:"severity"`
	// Duration overrides the presenter's default display time when non-zero.
	Duration time.Duration `json:"duration,omitempty"`
}

type ModalKind string

const (
	ModalUpdateVehicle ModalKind = "update_vehicle"
)

// Modal is a prompt requiring user interaction.
type Modal struct {
	Kind      ModalKind       `json:"kind"`
	VehicleID model.VehicleID `json:"vehicleId"`
	Message   string          `json:"message,omitempty"`
}

type OverlayKind string

const (
	OverlayRadioReconfiguring    OverlayKind = "radio_reconfiguring"
	OverlayUnsupportedInterfaces OverlayKind = "unsupported_interfaces"
	OverlayLooking               OverlayKind = "looking"
	OverlayLinkLost              OverlayKind = "link_lost"
	OverlayWrongVehicle          OverlayKind = "wrong_vehicle"
	OverlayVideoOverload         OverlayKind = "video_overload"
)

// Overlay is a transient on-screen message that can be dismissed by kind.
type Overlay struct {
	Kind      OverlayKind     `json:"kind"`
	VehicleID model.VehicleID `json:"vehicleId"`
	Message   string          `json:"message"`
	Severity  Severity        `json:"severity"`
	Duration  time.Duration   `json:"duration,omitempty"`
}

type ReloadReason string

const (
	ReloadSynchronisedFromVehicle ReloadReason = "synchronised_settings_from_vehicle"
	ReloadVehicleSelected         ReloadReason = "vehicle_selected"
)

type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

type Presenter interface {
	ShowModal(ctx context.Context, m Modal) error
	ShowOverlay(ctx context.Context, o Overlay) error
	Dismiss(ctx context.Context, kind OverlayKind) error
	DismissAll(ctx context.Context) error
	// ModalActive reports whether a modal is currently on screen.
	ModalActive() bool
}

type Broadcaster interface {
	BroadcastReload(ctx context.Context, reason ReloadReason, id model.VehicleID) error
}

// LinkControl drives the radio link layer.
type LinkControl interface {
	RequestPairingStop(ctx context.Context) error
	RequestPairingStart(ctx context.Context) error
}

type Display interface {
	ApplyLayout(ctx context.Context, id model.VehicleID, layout uint32) error
}

// AudioOutput reports whether the station itself can play audio.
type AudioOutput interface {
	Available(ctx context.Context) (bool, error)
}

// Ports bundles every collaborator.
type Ports struct {
	Notifier    Notifier
	Presenter   Presenter
	Broadcaster Broadcaster
	Link        LinkControl
	Display     Display
	Audio       AudioOutput
}
