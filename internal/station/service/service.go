// Package service handles station events: it owns the station context and
// drives the pairing lifecycle, settings ingestion, link repair and relay
// checks from a single dispatch goroutine.
package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/groundpeer/internal/station/core"
	"github.com/autopeer-io/groundpeer/internal/station/dispatch"
	"github.com/autopeer-io/groundpeer/internal/station/ingest"
	"github.com/autopeer-io/groundpeer/internal/station/model"
	"github.com/autopeer-io/groundpeer/internal/station/pairing"
	"github.com/autopeer-io/groundpeer/internal/station/registry"
	"github.com/autopeer-io/groundpeer/internal/station/relay"
	"github.com/autopeer-io/groundpeer/internal/station/repair"
	"github.com/autopeer-io/groundpeer/internal/station/scratch"
	"github.com/autopeer-io/groundpeer/internal/station/state"
	"github.com/autopeer-io/groundpeer/internal/station/store"
	"github.com/autopeer-io/groundpeer/pkg/options"
)

// Status is the read-only view published after every event.
type Status struct {
	State               pairing.State      `json:"state"`
	CurrentVehicle      model.VehicleID    `json:"currentVehicleId"`
	Registry            []registry.Entry   `json:"registry"`
	MustSyncFromVehicle bool               `json:"mustSyncFromVehicle"`
	UploadActive        bool               `json:"uploadActive"`
	Flags               state.Flags        `json:"flags"`
	LastEvent           dispatch.EventType `json:"lastEvent,omitempty"`
	LastError           string             `json:"lastError,omitempty"`
	UpdatedAt           time.Time          `json:"updatedAt"`
}

type Service struct {
	logger    logr.Logger
	clock     clock.Clock
	session   *state.Session
	store     *store.Store
	ports     core.Ports
	listeners *core.Listeners

	pairing  *pairing.Controller
	ingestor *ingest.Ingestor
	repairer *repair.Sequencer
	relay    *relay.Checker

	status atomic.Pointer[Status]
}

func New(st *store.Store, w scratch.Writer, ports core.Ports, clk clock.Clock, opts *options.SyncOptions, logger logr.Logger) *Service {
	local := model.NewVersion(opts.VersionMajor, opts.VersionMinor, opts.VersionBuild)
	s := &Service{
		logger:    logger,
		clock:     clk,
		session:   state.New(model.VehicleID(opts.HomeVehicle)),
		store:     st,
		ports:     ports,
		listeners: &core.Listeners{},
		pairing:   pairing.New(st, ports),
		ingestor:  ingest.New(st, w, ports, local),
		repairer:  repair.NewSequencer(ports, clk, opts.SettleDelay),
		relay:     relay.NewChecker(ports.Notifier, clk, opts.RelayWarnWindow),
	}
	s.publish("", nil)
	return s
}

// Listeners returns the list notified of vehicle set changes.
func (s *Service) Listeners() *core.Listeners { return s.listeners }

// Status returns the view published after the last handled event.
func (s *Service) Status() *Status { return s.status.Load() }

// Linked reports whether the link to the home vehicle is up.
func (s *Service) Linked() bool {
	st := s.Status().State
	return st == pairing.StatePaired || st == pairing.StateReceivingData
}

// Register wires every handler into d.
func (s *Service) Register(d *dispatch.Dispatcher) {
	d.Handle(EventBeginPairing, s.handleBeginPairing)
	d.Handle(EventLinkEstablished, s.handleLinkEstablished)
	d.Handle(EventTelemetry, dispatch.JSON(s.handleTelemetry))
	d.Handle(EventStopPairing, s.handleStopPairing)
	d.Handle(EventSettingsReceived, dispatch.JSON(s.handleSettings))
	d.Handle(EventRelayModeChanged, dispatch.JSON(s.handleRelayModeChanged))
	d.Handle(EventUploadSegment, dispatch.JSON(s.handleUploadSegment))
	d.Handle(EventSelectVehicle, dispatch.JSON(s.handleSelectVehicle))
	d.Handle(EventVehicleAdded, dispatch.JSON(s.handleVehicleAdded))
	d.Handle(EventVehicleDeleted, dispatch.JSON(s.handleVehicleDeleted))
	d.Handle(EventOverloadAlarm, dispatch.JSON(s.handleOverloadAlarm))
	d.Handle(EventLinkLost, dispatch.JSON(s.handleLinkLost))
	d.AfterEach(func(ev dispatch.Event, err error) { s.publish(ev.Type, err) })
}

func (s *Service) publish(last dispatch.EventType, err error) {
	st := &Status{
		State:               s.pairing.State(),
		CurrentVehicle:      s.session.CurrentID,
		Registry:            s.session.Registry.Entries(),
		MustSyncFromVehicle: s.session.MustSyncFromVehicle,
		UploadActive:        s.session.Upload.Active(),
		Flags:               s.session.Flags,
		LastEvent:           last,
		UpdatedAt:           s.clock.Now(),
	}
	if err != nil {
		st.LastError = err.Error()
	}
	s.status.Store(st)
}

func (s *Service) log(ev dispatch.Event) logr.Logger {
	return s.logger.WithValues("event", ev.Type)
}

func (s *Service) handleBeginPairing(ctx context.Context, ev dispatch.Event) error {
	return s.pairing.BeginPairing(ctx, s.log(ev), s.session)
}

func (s *Service) handleLinkEstablished(ctx context.Context, ev dispatch.Event) error {
	return s.pairing.LinkEstablished(ctx, s.log(ev), s.session)
}

func (s *Service) handleStopPairing(ctx context.Context, ev dispatch.Event) error {
	return s.pairing.StopPairing(ctx, s.log(ev), s.session)
}

// handleTelemetry records the telemetry flags of a registered vehicle. The
// first telemetry seen while paired means data is flowing.
func (s *Service) handleTelemetry(ctx context.Context, ev dispatch.Event, msg *TelemetryMessage) error {
	logger := s.log(ev)
	id := resolve(msg.VehicleID, ev)

	prev, ok := s.session.Registry.UpdateTelemetry(id, registry.Telemetry{Ruby: msg.Ruby, FC: msg.FC, Armed: msg.Armed})
	if !ok {
		logger.V(1).Info("Telemetry from unregistered vehicle ignored", "vehicleId", id)
		return nil
	}

	if msg.FC && msg.Armed != prev.Armed {
		text := fmt.Sprintf("Vehicle %s is disarmed", id)
		if msg.Armed {
			text = fmt.Sprintf("Vehicle %s is armed", id)
		}
		logger.Info(text, "vehicleId", id)
		s.notify(ctx, logger, id, text, core.SeverityInfo)
	}

	if s.pairing.State() == pairing.StatePaired {
		return s.pairing.FirstData(ctx, logger, s.session)
	}
	return nil
}

func (s *Service) handleSettings(ctx context.Context, ev dispatch.Event, msg *SettingsMessage) error {
	return s.ingest(ctx, s.log(ev), ingest.Request{
		VehicleID:   resolve(msg.VehicleID, ev),
		Payload:     msg.Payload,
		Unsolicited: msg.Unsolicited,
	})
}

// ingest runs one settings payload through ingestion and, when the radio
// must be reconfigured, through the repair sequence before returning.
func (s *Service) ingest(ctx context.Context, logger logr.Logger, req ingest.Request) error {
	res, err := s.ingestor.Ingest(ctx, logger, s.session, req)
	if err != nil {
		return err
	}
	if res.Outcome != ingest.OutcomeAcceptedRequiresRepair {
		return nil
	}
	s.session.Flags.ReconfiguringLink = true
	return s.repairer.Run(ctx, logger, req.VehicleID)
}

func (s *Service) handleRelayModeChanged(ctx context.Context, ev dispatch.Event, msg *RelayModeMessage) error {
	logger := s.log(ev)

	current, ok := s.store.Get(s.session.CurrentID)
	if !ok {
		logger.Info("Relay mode changed without a current vehicle")
		return nil
	}
	if msg.Mode != nil {
		current.Relay.Mode = *msg.Mode
		if err := s.store.Put(ctx, current); err != nil {
			return fmt.Errorf("persist relay mode: %w", err)
		}
	}
	logger.Info("Relay mode changed", "mode", current.Relay.Mode, "vehicleId", current.VehicleID,
		"relayedVehicleId", current.Relay.RelayedVehicleID)

	relayed, ok := s.store.Get(current.Relay.RelayedVehicleID)
	if !ok {
		return nil
	}
	s.relay.Check(ctx, logger, current, relayed)
	return nil
}

// handleUploadSegment assembles a segmented settings transfer and ingests
// it once complete.
func (s *Service) handleUploadSegment(ctx context.Context, ev dispatch.Event, msg *UploadMessage) error {
	logger := s.log(ev)
	up := &s.session.Upload

	// A bad segment is dropped on its own; only a new file id restarts the
	// transfer.
	done, err := up.Add(msg.Segment)
	if err != nil {
		return fmt.Errorf("upload segment: %w", err)
	}
	if !done {
		logger.V(1).Info("Upload segment stored", "fileId", msg.FileID, "missing", len(up.Missing()))
		return nil
	}

	payload, err := up.Bytes()
	name := up.FileName
	up.Reset()
	if err != nil {
		return err
	}
	logger.Info("Upload complete", "fileId", msg.FileID, "fileName", name, "length", len(payload))
	return s.ingest(ctx, logger, ingest.Request{
		VehicleID:   resolve(msg.VehicleID, ev),
		Payload:     payload,
		Unsolicited: true,
	})
}

func (s *Service) handleSelectVehicle(ctx context.Context, ev dispatch.Event, msg *VehicleMessage) error {
	logger := s.log(ev)
	id := msg.VehicleID
	if id.Valid() && !s.store.Has(id) {
		return fmt.Errorf("select vehicle %s: %w", id, store.ErrNotFound)
	}

	s.session.Select(id)
	if err := s.ports.Presenter.DismissAll(ctx); err != nil {
		logger.Error(err, "Failed to clear overlays")
	}
	if !id.Valid() {
		logger.Info("No vehicle selected")
	}
	s.listeners.MainVehicleChanged(ctx, id)
	if err := s.ports.Broadcaster.BroadcastReload(ctx, core.ReloadVehicleSelected, id); err != nil {
		logger.Error(err, "Failed to broadcast vehicle selection")
	}
	logger.Info("Main vehicle changed", "vehicleId", id)
	return nil
}

func (s *Service) handleVehicleAdded(ctx context.Context, ev dispatch.Event, msg *VehicleAddedMessage) error {
	logger := s.log(ev)
	id := resolve(msg.VehicleID, ev)
	if !id.Valid() {
		return fmt.Errorf("vehicle added: %w", registry.ErrReservedID)
	}

	if len(msg.Payload) > 0 {
		snap, err := decodeFor(id, msg.Payload)
		if err != nil {
			return err
		}
		if err := s.store.Put(ctx, snap); err != nil {
			return fmt.Errorf("store vehicle %s: %w", id, err)
		}
	}
	s.listeners.VehicleAdded(ctx, id)
	logger.Info("Vehicle added", "vehicleId", id, "withSettings", len(msg.Payload) > 0)
	return nil
}

func (s *Service) handleVehicleDeleted(ctx context.Context, ev dispatch.Event, msg *VehicleMessage) error {
	logger := s.log(ev)
	id := resolve(msg.VehicleID, ev)

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete vehicle %s: %w", id, err)
	}
	s.session.Flags.GotVideoBitrateStats = false
	s.session.Flags.GotVehicleTxStats = false
	if id == s.session.CurrentID {
		s.session.Select(model.NoVehicle)
	}
	s.listeners.VehicleDeleted(ctx, id)
	logger.Info("Vehicle deleted", "vehicleId", id)
	return nil
}

func (s *Service) handleOverloadAlarm(ctx context.Context, ev dispatch.Event, msg *AlarmMessage) error {
	id := resolve(msg.VehicleID, ev)

	var text string
	switch msg.Kind {
	case AlarmVideoData:
		s.session.Flags.VideoDataOverload = true
		text = "The video link is overloaded, the vehicle is sending more video data than the radio link can carry."
	case AlarmVideoTx:
		s.session.Flags.VideoTxOverload = true
		text = "The vehicle radio transmitter is overloaded."
	default:
		return fmt.Errorf("unknown overload alarm %q", msg.Kind)
	}
	return s.ports.Presenter.ShowOverlay(ctx, core.Overlay{
		Kind:      core.OverlayVideoOverload,
		VehicleID: id,
		Message:   text,
		Severity:  core.SeverityWarning,
		Duration:  5 * time.Second,
	})
}

func (s *Service) handleLinkLost(ctx context.Context, ev dispatch.Event, msg *VehicleMessage) error {
	id := resolve(msg.VehicleID, ev)
	s.session.Flags.LinkLost = true
	s.session.Flags.SyncOnLinkRecover = true
	s.log(ev).Info("Link to vehicle lost", "vehicleId", id)
	return s.ports.Presenter.ShowOverlay(ctx, core.Overlay{
		Kind:      core.OverlayLinkLost,
		VehicleID: id,
		Message:   "Link to vehicle lost.",
		Severity:  core.SeverityError,
	})
}

func (s *Service) notify(ctx context.Context, logger logr.Logger, id model.VehicleID, msg string, sev core.Severity) {
	if err := s.ports.Notifier.Notify(ctx, core.Notice{VehicleID: id, Message: msg, Severity: sev}); err != nil {
		logger.Error(err, "Failed to send notice", "message", msg)
	}
}
