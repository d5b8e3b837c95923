// Package pairing drives the pairing lifecycle of the station.
package pairing

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/looplab/fsm"

	"github.com/autopeer-io/groundpeer/internal/pkg/metrics"
	fsmutil "github.com/autopeer-io/groundpeer/internal/pkg/util/fsm"
	"github.com/autopeer-io/groundpeer/internal/station/core"
	"github.com/autopeer-io/groundpeer/internal/station/model"
	"github.com/autopeer-io/groundpeer/internal/station/registry"
	"github.com/autopeer-io/groundpeer/internal/station/state"
	"github.com/autopeer-io/groundpeer/internal/station/store"
)

type State string

const (
	StateUnpaired        State = "unpaired"
	StateBeforePairing   State = "before_pairing"
	StatePaired          State = "paired"
	StateReceivingData   State = "receiving_data"
	StateStoppingPairing State = "stopping_pairing"
)

// States lists every lifecycle state.
var States = []State{StateUnpaired, StateBeforePairing, StatePaired, StateReceivingData, StateStoppingPairing}

const (
	EventBeginPairing    = "begin_pairing"
	EventLinkEstablished = "link_established"
	EventFirstData       = "first_data"
	EventStopPairing     = "stop_pairing"
	EventPairingStopped  = "pairing_stopped"
)

// Controller is the lifecycle state machine. Transition actions run in the
// after_<event> callbacks, so firing an event twice re-runs its resets.
type Controller struct {
	*fsm.FSM

	store *store.Store
	ports core.Ports
}

// call is passed as the single event argument.
type call struct {
	logger  logr.Logger
	session *state.Session
}

func New(st *store.Store, ports core.Ports) *Controller {
	c := &Controller{store: st, ports: ports}

	events := fsm.Events{
		{Name: EventBeginPairing, Src: []string{string(StateUnpaired), string(StateBeforePairing)}, Dst: string(StateBeforePairing)},
		{Name: EventLinkEstablished, Src: []string{string(StateBeforePairing), string(StatePaired)}, Dst: string(StatePaired)},
		{Name: EventFirstData, Src: []string{string(StatePaired), string(StateReceivingData)}, Dst: string(StateReceivingData)},
		{Name: EventStopPairing, Src: []string{
			string(StateUnpaired), string(StateBeforePairing), string(StatePaired),
			string(StateReceivingData), string(StateStoppingPairing),
		}, Dst: string(StateStoppingPairing)},
		{Name: EventPairingStopped, Src: []string{string(StateStoppingPairing)}, Dst: string(StateUnpaired)},
	}

	callbacks := fsm.Callbacks{
		"after_" + EventBeginPairing:    fsmutil.WrapEvent(c.ActionBeginPairing),
		"after_" + EventLinkEstablished: fsmutil.WrapEvent(c.ActionLinkEstablished),
		"after_" + EventFirstData:       fsmutil.WrapEvent(c.ActionFirstData),
		"after_" + EventStopPairing:     fsmutil.WrapEvent(c.ActionStopPairing),
		"after_" + EventPairingStopped:  fsmutil.WrapEvent(c.ActionPairingStopped),

		"after_event": func(_ context.Context, e *fsm.Event) {
			metrics.PairingTransitions.WithLabelValues(e.Src, e.Dst).Inc()
		},
		"enter_state": func(_ context.Context, e *fsm.Event) {
			setStateGauge(State(e.Dst))
		},
	}

	c.FSM = fsm.NewFSM(string(StateUnpaired), events, callbacks)
	setStateGauge(StateUnpaired)
	return c
}

func setStateGauge(current State) {
	for _, s := range States {
		v := 0.0
		if s == current {
			v = 1
		}
		metrics.PairingState.WithLabelValues(string(s)).Set(v)
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State { return State(c.Current()) }

// Linked reports whether a link to the home vehicle is up.
func (c *Controller) Linked() bool {
	s := c.State()
	return s == StatePaired || s == StateReceivingData
}

func (c *Controller) fire(ctx context.Context, logger logr.Logger, s *state.Session, event string) error {
	from := c.Current()
	err := fsmutil.RealError(c.Event(ctx, event, &call{logger: logger, session: s}))
	if err != nil {
		return fmt.Errorf("pairing %s from %s: %w", event, from, err)
	}
	logger.V(1).Info("Pairing lifecycle event handled", "event", event, "from", from, "to", c.Current())
	return nil
}

func (c *Controller) BeginPairing(ctx context.Context, logger logr.Logger, s *state.Session) error {
	return c.fire(ctx, logger, s, EventBeginPairing)
}

func (c *Controller) LinkEstablished(ctx context.Context, logger logr.Logger, s *state.Session) error {
	return c.fire(ctx, logger, s, EventLinkEstablished)
}

func (c *Controller) FirstData(ctx context.Context, logger logr.Logger, s *state.Session) error {
	return c.fire(ctx, logger, s, EventFirstData)
}

// StopPairing moves through StoppingPairing back to Unpaired.
func (c *Controller) StopPairing(ctx context.Context, logger logr.Logger, s *state.Session) error {
	if err := c.fire(ctx, logger, s, EventStopPairing); err != nil {
		return err
	}
	return c.fire(ctx, logger, s, EventPairingStopped)
}

func args(e *fsm.Event) *call {
	return e.Args[0].(*call)
}

// ActionBeginPairing rebuilds the registry from the selected configuration.
func (c *Controller) ActionBeginPairing(ctx context.Context, e *fsm.Event) error {
	a := args(e)
	s := a.session

	s.Registry.Reset()
	s.Flags.ClearAlarms()
	s.Upload.Reset()

	if err := c.ports.Presenter.DismissAll(ctx); err != nil {
		a.logger.Error(err, "Failed to clear overlays")
	}

	current, ok := c.store.Get(s.CurrentID)
	if !ok {
		a.logger.Info("No current vehicle configuration, registry left empty")
		return nil
	}
	if err := s.Registry.SetHome(current.VehicleID); err != nil {
		return err
	}

	if err := c.ports.Notifier.Notify(ctx, core.Notice{
		VehicleID: current.VehicleID,
		Message:   fmt.Sprintf("Start pairing with %s", displayName(current)),
		Severity:  core.SeverityInfo,
	}); err != nil {
		a.logger.Error(err, "Failed to send pairing notice")
	}

	relayed := current.Relay.RelayedVehicleID
	if current.Relay.Active() && relayed.Valid() {
		if !c.store.Has(relayed) {
			a.logger.Info("Relayed vehicle is not known, relay slot left empty", "relayedVehicleId", relayed)
		} else if err := s.Registry.SetRelay(relayed); err != nil {
			a.logger.Error(err, "Failed to register relayed vehicle", "relayedVehicleId", relayed)
		}
	}

	a.logger.Info("Registry populated", "home", s.Registry.Home(), "relay", s.Registry.Relay())
	return nil
}

// ActionLinkEstablished re-applies the display layout of the current
// configuration.
func (c *Controller) ActionLinkEstablished(ctx context.Context, e *fsm.Event) error {
	a := args(e)
	s := a.session

	s.Flags.LinkLost = false

	var layout uint32
	id := model.NoVehicle
	if current, ok := c.store.Get(s.CurrentID); ok {
		id, layout = current.VehicleID, current.OSD.Layout
	}
	return c.ports.Display.ApplyLayout(ctx, id, layout)
}

// ActionFirstData clears the link advisories and arms a pending resync.
func (c *Controller) ActionFirstData(ctx context.Context, e *fsm.Event) error {
	a := args(e)
	s := a.session

	for _, kind := range []core.OverlayKind{core.OverlayLooking, core.OverlayLinkLost, core.OverlayWrongVehicle} {
		if err := c.ports.Presenter.Dismiss(ctx, kind); err != nil {
			a.logger.Error(err, "Failed to dismiss overlay", "kind", kind)
		}
	}

	home, _ := s.Registry.Entry(registry.HomeSlot)
	a.logger.Info("Started receiving data from vehicle",
		"rubyTelemetry", home.Telemetry.Ruby, "fcTelemetry", home.Telemetry.FC,
		"syncOnLinkRecover", s.Flags.SyncOnLinkRecover, "mustSync", s.MustSyncFromVehicle)

	if s.Flags.SyncOnLinkRecover {
		s.Flags.SyncOnLinkRecover = false
		if s.CurrentID.Valid() {
			s.MustSyncFromVehicle = true
		}
	}
	return nil
}

// ActionStopPairing hands a relaying home vehicle back to main mode.
func (c *Controller) ActionStopPairing(ctx context.Context, e *fsm.Event) error {
	a := args(e)

	current, ok := c.store.Get(a.session.CurrentID)
	if !ok || current.Relay.EnabledOnLink < 0 {
		return nil
	}
	current.Relay.Mode = model.RelayModeMain | model.RelayModeIsRelayNode
	// The cached copy already holds the new mode; a failed save must not
	// keep the lifecycle out of Unpaired.
	if err := c.store.Put(ctx, current); err != nil {
		metrics.PersistFailures.Inc()
		a.logger.Error(err, "Failed to persist relay mode", "vehicleId", current.VehicleID)
	}
	return nil
}

// ActionPairingStopped clears everything tied to the stopped link.
func (c *Controller) ActionPairingStopped(ctx context.Context, e *fsm.Event) error {
	a := args(e)
	s := a.session

	s.Registry.Reset()
	s.Flags.ClearLinkMarkers()

	if err := c.ports.Presenter.DismissAll(ctx); err != nil {
		a.logger.Error(err, "Failed to clear overlays")
	}
	return nil
}

func displayName(s *model.Snapshot) string {
	if s.Name != "" {
		return s.Name
	}
	return "vehicle " + s.VehicleID.String()
}
