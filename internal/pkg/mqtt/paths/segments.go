package paths

// Topic segments between the controller and its collaborators. Every topic
// has the form {root}/{segment}/{vehicleID}.

// Inbound: collaborators -> controller.
const (
	// Settings carries a complete settings payload.
	// Payload: { "vehicleId": 42, "unsolicited": true, "payload": "<base64>" }
	Settings = "settings"

	// Upload carries one segment of a segmented settings transfer.
	// Payload: { "fileId": 3, "segment": 0, "totalSegments": 4, "fileName": "...", "data": "<base64>" }
	Upload = "upload"

	// Events carries lifecycle events (begin_pairing, telemetry, ...).
	// Payload: { "type": "telemetry", "ruby": true, "fc": true, "armed": false }
	Events = "events"

	// ModalClosed reports that the user dismissed a modal.
	ModalClosed = "modal/closed"
)

// Outbound: controller -> collaborators.
const (
	// Notify carries a user-visible advisory.
	Notify = "notify"

	// Modal asks the UI to present a modal prompt.
	Modal = "modal"

	// Overlay shows or dismisses a transient overlay.
	Overlay = "overlay"

	// Reload tells other components to reload the vehicle configuration.
	Reload = "reload"

	// PairingRequest asks the link layer to stop or start pairing.
	PairingRequest = "pairing/request"

	// DisplayLayout asks the display to apply a layout index.
	DisplayLayout = "display/layout"
)
