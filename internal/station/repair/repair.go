// Package repair decides when a configuration change needs the radio link
// torn down and rebuilt, and runs that sequence.
package repair

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/oklog/ulid/v2"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/groundpeer/internal/pkg/metrics"
	"github.com/autopeer-io/groundpeer/internal/station/core"
	"github.com/autopeer-io/groundpeer/internal/station/model"
)

// DefaultSettleDelay separates pairing stop and start.
const DefaultSettleDelay = 100 * time.Millisecond

const overlayMessage = "Radio links configuration changed on the vehicle. Updating local radio configuration..."

// Signals are the inputs of Decide.
type Signals struct {
	RadioCritical       bool
	AudioEnabledChanged bool
	IsHome              bool
}

// Decide reports whether the link must be re-paired. Only the home vehicle
// drives the local radio, so changes on any other vehicle never do.
func Decide(s Signals) bool {
	return s.IsHome && (s.RadioCritical || s.AudioEnabledChanged)
}

// Sequencer runs the re-pairing sequence.
type Sequencer struct {
	presenter core.Presenter
	link      core.LinkControl
	clock     clock.Clock
	settle    time.Duration
}

func NewSequencer(ports core.Ports, clk clock.Clock, settle time.Duration) *Sequencer {
	return &Sequencer{presenter: ports.Presenter, link: ports.Link, clock: clk, settle: settle}
}

// Run shows the reconfiguring overlay, requests a pairing stop, waits for
// the settle delay and requests a normal pairing start. It blocks the
// caller for the whole sequence. Overlay and stop failures are logged and
// do not interrupt the sequence; a start failure is returned.
func (s *Sequencer) Run(ctx context.Context, logger logr.Logger, id model.VehicleID) error {
	logger = logger.WithValues("repair", ulid.Make().String(), "vehicleId", id)
	logger.Info("Critical radio change on the vehicle, restarting pairing")
	metrics.RepairsTotal.Inc()

	if err := s.presenter.ShowOverlay(ctx, core.Overlay{
		Kind:      core.OverlayRadioReconfiguring,
		VehicleID: id,
		Message:   overlayMessage,
		Severity:  core.SeverityWarning,
		Duration:  5 * time.Second,
	}); err != nil {
		logger.Error(err, "Failed to show reconfiguring overlay")
	}

	if err := s.link.RequestPairingStop(ctx); err != nil {
		logger.Error(err, "Pairing stop request failed")
	}

	s.clock.Sleep(s.settle)

	if err := s.link.RequestPairingStart(ctx); err != nil {
		return fmt.Errorf("request pairing start: %w", err)
	}
	logger.V(1).Info("Repair sequence complete", "settle", s.settle)
	return nil
}
