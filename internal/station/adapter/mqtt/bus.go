// Package mqtt implements the station's collaborator ports by publishing
// JSON messages on the MQTT bus.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/autopeer-io/groundpeer/internal/pkg/mqtt/paths"
	"github.com/autopeer-io/groundpeer/internal/station/core"
	"github.com/autopeer-io/groundpeer/internal/station/model"
	"github.com/autopeer-io/groundpeer/pkg/log"
	pkgmqtt "github.com/autopeer-io/groundpeer/pkg/mqtt"
	"github.com/autopeer-io/groundpeer/pkg/mqtt/topic"
)

// StationID addresses messages that concern the station rather than one
// vehicle.
const StationID = "station"

type OverlayAction string

const (
	OverlayShow       OverlayAction = "show"
	OverlayDismiss    OverlayAction = "dismiss"
	OverlayDismissAll OverlayAction = "dismiss_all"
)

// OverlayMessage is published on the overlay topic.
type OverlayMessage struct {
	Action  OverlayAction    `json:"action"`
	Kind    core.OverlayKind `json:"kind,omitempty"`
	Overlay *core.Overlay    `json:"overlay,omitempty"`
}

type ReloadMessage struct {
	Reason    core.ReloadReason `json:"reason"`
	VehicleID model.VehicleID   `json:"vehicleId"`
}

type PairingRequest struct {
	Action string `json:"action"`
	Mode   string `json:"mode,omitempty"`
}

type LayoutMessage struct {
	VehicleID model.VehicleID `json:"vehicleId"`
	Layout    uint32          `json:"layout"`
}

// Bus publishes port calls. A modal is considered on screen from a
// successful ShowModal until a message arrives on the modal closed topic.
type Bus struct {
	client pkgmqtt.Client
	topics *topic.Builder
	qos    int

	modalOpen atomic.Bool
}

var (
	_ core.Notifier    = (*Bus)(nil)
	_ core.Presenter   = (*Bus)(nil)
	_ core.Broadcaster = (*Bus)(nil)
	_ core.LinkControl = (*Bus)(nil)
	_ core.Display     = (*Bus)(nil)
)

func New(client pkgmqtt.Client, builder *topic.Builder, qos int) *Bus {
	return &Bus{client: client, topics: builder, qos: qos}
}

// Subscribe registers the modal closed listener. The client re-subscribes
// it after reconnects.
func (b *Bus) Subscribe(ctx context.Context) error {
	filter := b.topics.Wildcard(paths.ModalClosed)
	return b.client.Subscribe(ctx, filter, b.qos, func(_ context.Context, t string, _ []byte) {
		if b.modalOpen.Swap(false) {
			log.Debug("Modal closed", "topic", t)
		}
	})
}

func (b *Bus) publish(ctx context.Context, segment, id string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", segment, err)
	}
	return b.client.Publish(ctx, b.topics.Build(segment, id), b.qos, false, payload)
}

func (b *Bus) Notify(ctx context.Context, n core.Notice) error {
	return b.publish(ctx, paths.Notify, n.VehicleID.String(), n)
}

func (b *Bus) ShowModal(ctx context.Context, m core.Modal) error {
	if err := b.publish(ctx, paths.Modal, m.VehicleID.String(), m); err != nil {
		return err
	}
	b.modalOpen.Store(true)
	return nil
}

func (b *Bus) ModalActive() bool { return b.modalOpen.Load() }

func (b *Bus) ShowOverlay(ctx context.Context, o core.Overlay) error {
	return b.publish(ctx, paths.Overlay, o.VehicleID.String(), OverlayMessage{Action: OverlayShow, Kind: o.Kind, Overlay: &o})
}

func (b *Bus) Dismiss(ctx context.Context, kind core.OverlayKind) error {
	return b.publish(ctx, paths.Overlay, StationID, OverlayMessage{Action: OverlayDismiss, Kind: kind})
}

func (b *Bus) DismissAll(ctx context.Context) error {
	return b.publish(ctx, paths.Overlay, StationID, OverlayMessage{Action: OverlayDismissAll})
}

func (b *Bus) BroadcastReload(ctx context.Context, reason core.ReloadReason, id model.VehicleID) error {
	return b.publish(ctx, paths.Reload, id.String(), ReloadMessage{Reason: reason, VehicleID: id})
}

func (b *Bus) RequestPairingStop(ctx context.Context) error {
	return b.publish(ctx, paths.PairingRequest, StationID, PairingRequest{Action: "stop"})
}

func (b *Bus) RequestPairingStart(ctx context.Context) error {
	return b.publish(ctx, paths.PairingRequest, StationID, PairingRequest{Action: "start", Mode: "normal"})
}

func (b *Bus) ApplyLayout(ctx context.Context, id model.VehicleID, layout uint32) error {
	return b.publish(ctx, paths.DisplayLayout, id.String(), LayoutMessage{VehicleID: id, Layout: layout})
}
