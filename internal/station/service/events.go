package service

import (
	"github.com/autopeer-io/groundpeer/internal/station/dispatch"
	"github.com/autopeer-io/groundpeer/internal/station/model"
	"github.com/autopeer-io/groundpeer/internal/station/upload"
)

const (
	EventBeginPairing     dispatch.EventType = "begin_pairing"
	EventLinkEstablished  dispatch.EventType = "link_established"
	EventTelemetry        dispatch.EventType = "telemetry"
	EventStopPairing      dispatch.EventType = "stop_pairing"
	EventSettingsReceived dispatch.EventType = "settings_received"
	EventRelayModeChanged dispatch.EventType = "relay_mode_changed"
	EventUploadSegment    dispatch.EventType = "upload_segment"
	EventSelectVehicle    dispatch.EventType = "select_vehicle"
	EventVehicleAdded     dispatch.EventType = "vehicle_added"
	EventVehicleDeleted   dispatch.EventType = "vehicle_deleted"
	EventOverloadAlarm    dispatch.EventType = "overload_alarm"
	EventLinkLost         dispatch.EventType = "link_lost"
)

// Payloads. A zero VehicleID falls back to the event source.

type VehicleMessage struct {
	VehicleID model.VehicleID `json:"vehicleId"`
}

type TelemetryMessage struct {
	VehicleID model.VehicleID `json:"vehicleId"`
	Ruby      bool            `json:"ruby"`
	FC        bool            `json:"fc"`
	Armed     bool            `json:"armed"`
}

// SettingsMessage carries a raw settings payload; Payload is base64 in JSON.
type SettingsMessage struct {
	VehicleID   model.VehicleID `json:"vehicleId"`
	Unsolicited bool            `json:"unsolicited"`
	Payload     []byte          `json:"payload"`
}

type RelayModeMessage struct {
	// Mode, when set, replaces the relay mode of the current vehicle.
	Mode *uint32 `json:"mode,omitempty"`
}

type UploadMessage struct {
	VehicleID model.VehicleID `json:"vehicleId"`
	upload.Segment
}

// VehicleAddedMessage may carry the initial settings of the new vehicle.
type VehicleAddedMessage struct {
	VehicleID model.VehicleID `json:"vehicleId"`
	Payload   []byte          `json:"payload,omitempty"`
}

type AlarmKind string

const (
	AlarmVideoData AlarmKind = "video_data"
	AlarmVideoTx   AlarmKind = "video_tx"
)

type AlarmMessage struct {
	VehicleID model.VehicleID `json:"vehicleId"`
	Kind      AlarmKind       `json:"kind"`
}

func resolve(id model.VehicleID, ev dispatch.Event) model.VehicleID {
	if id.Valid() {
		return id
	}
	return ev.Source
}
