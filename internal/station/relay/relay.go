// Package relay cross-checks the video settings of a relaying vehicle and
// the vehicle it relays.
package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/groundpeer/internal/pkg/metrics"
	"github.com/autopeer-io/groundpeer/internal/station/core"
	"github.com/autopeer-io/groundpeer/internal/station/model"
)

// DefaultWindow is the minimum interval between two advisories.
const DefaultWindow = 60 * time.Second

// Checker warns when the selected video profiles of the home and relayed
// vehicles have different resolutions. At most one advisory is emitted per
// window; suppressed mismatches do not move the window.
type Checker struct {
	notifier core.Notifier
	clock    clock.PassiveClock
	window   time.Duration

	last    time.Time
	emitted bool
}

func NewChecker(n core.Notifier, clk clock.PassiveClock, window time.Duration) *Checker {
	return &Checker{notifier: n, clock: clk, window: window}
}

// Check compares home with relayed and reports whether an advisory was
// emitted.
func (c *Checker) Check(ctx context.Context, logger logr.Logger, home, relayed *model.Snapshot) bool {
	h, r := home.Video.SelectedProfile(), relayed.Video.SelectedProfile()
	if h.Width == r.Width && h.Height == r.Height {
		return false
	}

	now := c.clock.Now()
	if c.emitted && now.Sub(c.last) <= c.window {
		logger.V(1).Info("Relay resolution mismatch advisory suppressed", "since", now.Sub(c.last))
		return false
	}
	c.last, c.emitted = now, true
	metrics.RelayWarningsTotal.Inc()

	msg := fmt.Sprintf("The relay and relayed vehicles have different video streams resolutions (%d x %d and %d x %d). "+
		"Set the same video resolution for both cameras to get best relaying performance.",
		h.Width, h.Height, r.Width, r.Height)
	if err := c.notifier.Notify(ctx, core.Notice{
		VehicleID: home.VehicleID,
		Message:   msg,
		Severity:  core.SeverityWarning,
	}); err != nil {
		logger.Error(err, "Failed to send relay advisory")
	}
	return true
}
