// Package ingest turns a raw settings payload received from a vehicle into
// the stored configuration of that vehicle.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/autopeer-io/groundpeer/internal/pkg/metrics"
	"github.com/autopeer-io/groundpeer/internal/station/codec"
	"github.com/autopeer-io/groundpeer/internal/station/core"
	"github.com/autopeer-io/groundpeer/internal/station/diff"
	"github.com/autopeer-io/groundpeer/internal/station/model"
	"github.com/autopeer-io/groundpeer/internal/station/repair"
	"github.com/autopeer-io/groundpeer/internal/station/scratch"
	"github.com/autopeer-io/groundpeer/internal/station/state"
	"github.com/autopeer-io/groundpeer/internal/station/store"
)

var (
	ErrInputRejected   = errors.New("input rejected")
	ErrUnknownVehicle  = errors.New("unknown vehicle")
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
	ErrPersistence     = errors.New("persistence error")
)

type Outcome string

const (
	OutcomeAccepted               Outcome = "accepted"
	OutcomeAcceptedRequiresRepair Outcome = "accepted_requires_repair"
	OutcomeStoredForeign          Outcome = "stored_foreign"
)

// UpdateNoticeDuration is how long the outdated vehicle advisory stays up.
const UpdateNoticeDuration = 12 * time.Second

// Request is one received settings payload.
type Request struct {
	// VehicleID is the vehicle the payload was received from.
	VehicleID   model.VehicleID `json:"vehicleId"`
	Payload     []byte          `json:"payload"`
	Unsolicited bool            `json:"unsolicited"`
}

// Result describes an accepted payload.
type Result struct {
	Outcome Outcome `json:"outcome"`
	// SnapshotID is the id found in the payload; it differs from the
	// request id for foreign snapshots.
	SnapshotID model.VehicleID `json:"snapshotId"`
	Changes    diff.Changes    `json:"changes"`
	// VehicleOutdated is set when the vehicle runs older software than the
	// station. It never causes a rejection.
	VehicleOutdated bool `json:"vehicleOutdated"`
	// PersistErr records a failed write of the merged configuration. The
	// in-memory configuration is updated regardless.
	PersistErr error `json:"-"`
}

// Ingestor validates, persists and merges settings payloads.
type Ingestor struct {
	store   *store.Store
	scratch scratch.Writer
	ports   core.Ports
	local   model.PackedVersion
}

func New(st *store.Store, w scratch.Writer, ports core.Ports, local model.PackedVersion) *Ingestor {
	return &Ingestor{store: st, scratch: w, ports: ports, local: local}
}

// Ingest handles one payload against the station context s. Rejections are
// returned as errors wrapping one of the package sentinels; nothing stored
// changes on rejection.
func (in *Ingestor) Ingest(ctx context.Context, logger logr.Logger, s *state.Session, req Request) (*Result, error) {
	logger = logger.WithValues("vehicleId", req.VehicleID, "unsolicited", req.Unsolicited, "length", len(req.Payload))

	res, err := in.ingest(ctx, logger, s, req)
	metrics.IngestTotal.WithLabelValues(outcomeLabel(res, err)).Inc()
	if err != nil {
		logger.Error(err, "Failed to process received vehicle settings")
		return nil, err
	}
	logger.Info("Processed received vehicle settings", "outcome", res.Outcome, "snapshotId", res.SnapshotID,
		"cameraChanged", res.Changes.CameraChanged, "radioChanged", res.Changes.RadioAny,
		"radioCritical", res.Changes.RadioCritical)
	return res, nil
}

func (in *Ingestor) ingest(ctx context.Context, logger logr.Logger, s *state.Session, req Request) (*Result, error) {
	if !req.VehicleID.Valid() {
		return nil, fmt.Errorf("%w: vehicle id 0", ErrInputRejected)
	}
	if !s.CurrentID.Valid() || !in.store.Has(s.CurrentID) {
		return nil, fmt.Errorf("%w: no current vehicle configuration", ErrInputRejected)
	}
	if _, ok := s.Registry.Find(req.VehicleID); !ok {
		return nil, fmt.Errorf("%w: vehicle %s is not registered", ErrUnknownVehicle, req.VehicleID)
	}

	if err := in.scratch.Write(ctx, req.VehicleID, req.Payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	raw, err := in.scratch.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	received, err := codec.Decode(raw)
	if err != nil {
		in.notify(ctx, logger, req.VehicleID, "Received invalid vehicle settings.", core.SeverityError)
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	if received.NeedsLegacyNormalization() {
		logger.Info("Received settings from a legacy vehicle, removing relay flags", "version", received.Version)
		received.StripLegacyRelayFlags()
	}

	if received.VehicleID != req.VehicleID {
		return in.storeForeign(ctx, logger, received)
	}

	prev, ok := in.store.Get(req.VehicleID)
	if !ok {
		return nil, fmt.Errorf("%w: no stored configuration for vehicle %s", ErrUnknownVehicle, req.VehicleID)
	}

	res := &Result{SnapshotID: received.VehicleID, Changes: diff.Compare(prev, received)}
	merged := diff.Merge(prev, received)

	if err := in.store.Put(ctx, merged); err != nil {
		res.PersistErr = err
		metrics.PersistFailures.Inc()
		logger.Error(err, "Failed to persist merged vehicle configuration")
	}

	if req.Unsolicited {
		in.notify(ctx, logger, merged.VehicleID, "Received vehicle settings.", core.SeverityInfo)
	} else {
		in.notify(ctx, logger, merged.VehicleID, "Got vehicle settings.", core.SeverityInfo)
	}

	res.VehicleOutdated = in.checkVersion(ctx, logger, s, merged)

	isHome := s.IsHome(merged.VehicleID)
	if isHome {
		s.MustSyncFromVehicle = false
	}
	in.advise(ctx, logger, s, merged, isHome)

	if repair.Decide(repair.Signals{
		RadioCritical:       res.Changes.RadioCritical,
		AudioEnabledChanged: res.Changes.AudioEnabledChanged,
		IsHome:              isHome,
	}) {
		res.Outcome = OutcomeAcceptedRequiresRepair
		return res, nil
	}

	res.Outcome = OutcomeAccepted
	if err := in.ports.Broadcaster.BroadcastReload(ctx, core.ReloadSynchronisedFromVehicle, merged.VehicleID); err != nil {
		logger.Error(err, "Failed to broadcast configuration reload")
	}
	return res, nil
}

// storeForeign replaces the configuration of an already known vehicle that
// is not the one the payload came from. The stored copy is replaced whole,
// without merging or change detection, even when it belongs to the home
// vehicle and arrives through the relayed one.
func (in *Ingestor) storeForeign(ctx context.Context, logger logr.Logger, received *model.Snapshot) (*Result, error) {
	if !in.store.Has(received.VehicleID) {
		return nil, fmt.Errorf("%w: settings for vehicle %s which is not in the known list", ErrUnknownVehicle, received.VehicleID)
	}

	res := &Result{Outcome: OutcomeStoredForeign, SnapshotID: received.VehicleID}
	if err := in.store.Put(ctx, received); err != nil {
		res.PersistErr = err
		metrics.PersistFailures.Inc()
		logger.Error(err, "Failed to persist foreign vehicle configuration", "snapshotId", received.VehicleID)
	}
	in.notify(ctx, logger, received.VehicleID, "Received vehicle settings.", core.SeverityInfo)
	return res, nil
}

// checkVersion warns when the vehicle runs older software than the station
// and, once per selection, prompts for an update.
func (in *Ingestor) checkVersion(ctx context.Context, logger logr.Logger, s *state.Session, snap *model.Snapshot) bool {
	logger.V(1).Info("Comparing software versions", "vehicle", snap.Version, "station", in.local)
	if !snap.Version.OlderThan(in.local) {
		return false
	}

	v, l := snap.Version, in.local
	if err := in.ports.Notifier.Notify(ctx, core.Notice{
		VehicleID: snap.VehicleID,
		Message: fmt.Sprintf("Vehicle has software version %d.%d (b%d) and your controller %d.%d (b%d). You should update your vehicle.",
			v.Major(), v.Minor(), v.Build(), l.Major(), l.Minor(), l.Build()),
		Severity: core.SeverityWarning,
		Duration: UpdateNoticeDuration,
	}); err != nil {
		logger.Error(err, "Failed to send update advisory")
	}

	var armed bool
	if slot, ok := s.Registry.Find(snap.VehicleID); ok {
		e, _ := s.Registry.Entry(slot)
		armed = e.Telemetry.FC && e.Telemetry.Armed
	}
	if armed || s.Flags.UpdatePromptShown || in.ports.Presenter.ModalActive() {
		return true
	}
	if err := in.ports.Presenter.ShowModal(ctx, core.Modal{Kind: core.ModalUpdateVehicle, VehicleID: snap.VehicleID}); err != nil {
		logger.Error(err, "Failed to show update prompt")
		return true
	}
	s.Flags.UpdatePromptShown = true
	return true
}

// advise raises the diagnostics derived from an accepted configuration.
func (in *Ingestor) advise(ctx context.Context, logger logr.Logger, s *state.Session, snap *model.Snapshot, isHome bool) {
	if isHome && len(snap.Interfaces) > 0 {
		switch n := snap.UnsupportedInterfaces(); {
		case n == len(snap.Interfaces):
			in.overlay(ctx, logger, snap.VehicleID, "No radio interface on your vehicle is fully supported.", core.SeverityError)
		case n > 0:
			in.overlay(ctx, logger, snap.VehicleID, "Some radio interfaces on your vehicle are not fully supported.", core.SeverityWarning)
		}
	}

	if snap.Alarms&model.AlarmUnsupportedUSBSerial != 0 {
		in.notify(ctx, logger, snap.VehicleID, "Your vehicle has an unsupported USB to Serial adapter. "+
			"Use brand name serial adapters or ones with CP2102 chipset. The ones with 340 chipset are not compatible.",
			core.SeverityError)
	}

	if snap.Audio.Enabled {
		if !snap.Audio.HasDevice {
			in.notify(ctx, logger, snap.VehicleID, "Your vehicle has audio enabled but no audio capture device", core.SeverityError)
		} else if isHome {
			ok, err := in.ports.Audio.Available(ctx)
			if err != nil {
				logger.Error(err, "Failed to probe audio output")
			} else if !ok {
				in.notify(ctx, logger, snap.VehicleID, "Your vehicle has audio enabled but your controller can't output audio.", core.SeverityError)
			}
		}
	}

	for i, cam := range snap.Camera.Cameras {
		if !cam.ForcedMismatch() {
			continue
		}
		msg := fmt.Sprintf("Your camera is autodetected as %s but you forced to work as %s", cam.Type, cam.ForcedType)
		if len(snap.Camera.Cameras) > 1 {
			msg = fmt.Sprintf("Your camera %d is autodetected as %s but you forced to work as %s", i+1, cam.Type, cam.ForcedType)
		}
		in.notify(ctx, logger, snap.VehicleID, msg, core.SeverityWarning)
	}

	if isHome && s.Flags.FirstConnection {
		s.Flags.FirstConnection = false
		in.notify(ctx, logger, snap.VehicleID, fmt.Sprintf("Total flights: %d", snap.Stats.TotalFlights), core.SeverityInfo)
	}
}

func (in *Ingestor) notify(ctx context.Context, logger logr.Logger, id model.VehicleID, msg string, sev core.Severity) {
	if err := in.ports.Notifier.Notify(ctx, core.Notice{VehicleID: id, Message: msg, Severity: sev}); err != nil {
		logger.Error(err, "Failed to send notice", "message", msg)
	}
}

func (in *Ingestor) overlay(ctx context.Context, logger logr.Logger, id model.VehicleID, msg string, sev core.Severity) {
	if err := in.ports.Presenter.ShowOverlay(ctx, core.Overlay{
		Kind:      core.OverlayUnsupportedInterfaces,
		VehicleID: id,
		Message:   msg,
		Severity:  sev,
		Duration:  6 * time.Second,
	}); err != nil {
		logger.Error(err, "Failed to show overlay", "message", msg)
	}
}

func outcomeLabel(res *Result, err error) string {
	switch {
	case err == nil:
		return string(res.Outcome)
	case errors.Is(err, ErrInputRejected):
		return "input_rejected"
	case errors.Is(err, ErrUnknownVehicle):
		return "unknown_vehicle"
	case errors.Is(err, ErrCorruptSnapshot):
		return "corrupt_snapshot"
	case errors.Is(err, ErrPersistence):
		return "persistence_error"
	default:
		return "error"
	}
}
