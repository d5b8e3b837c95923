package relay

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/autopeer-io/groundpeer/internal/station/core/fake"
	"github.com/autopeer-io/groundpeer/internal/station/model"
)

func pair() (*model.Snapshot, *model.Snapshot) {
	home := &model.Snapshot{VehicleID: 1, Video: model.Video{Selected: 0, Profiles: []model.VideoProfile{{Width: 1280, Height: 720}}}}
	relayed := &model.Snapshot{VehicleID: 2, Video: model.Video{Selected: 1, Profiles: []model.VideoProfile{{Width: 1280, Height: 720}, {Width: 1920, Height: 1080}}}}
	return home, relayed
}

func TestCheckerRateLimit(t *testing.T) {
	tests := []struct {
		name string
		gap  time.Duration
		want int
	}{
		{"10s apart", 10 * time.Second, 1},
		{"exactly one window apart", 60 * time.Second, 1},
		{"61s apart", 61 * time.Second, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := fake.New()
			clk := clocktesting.NewFakePassiveClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
			c := NewChecker(rec, clk, DefaultWindow)
			home, relayed := pair()

			c.Check(context.Background(), logr.Discard(), home, relayed)
			clk.SetTime(clk.Now().Add(tt.gap))
			c.Check(context.Background(), logr.Discard(), home, relayed)

			if got := len(rec.Notices); got != tt.want {
				t.Errorf("emitted %d advisories, want %d", got, tt.want)
			}
		})
	}
}

func TestCheckerSuppressedDoesNotMoveWindow(t *testing.T) {
	rec := fake.New()
	clk := clocktesting.NewFakePassiveClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := NewChecker(rec, clk, DefaultWindow)
	home, relayed := pair()
	ctx := context.Background()

	for _, step := range []time.Duration{0, 40 * time.Second, 21 * time.Second} {
		clk.SetTime(clk.Now().Add(step))
		c.Check(ctx, logr.Discard(), home, relayed)
	}
	// 0s emits, 40s is suppressed, 61s emits again.
	if got := len(rec.Notices); got != 2 {
		t.Errorf("emitted %d advisories, want 2", got)
	}
	want := "The relay and relayed vehicles have different video streams resolutions (1280 x 720 and 1920 x 1080). " +
		"Set the same video resolution for both cameras to get best relaying performance."
	if rec.Notices[0].Message != want {
		t.Errorf("message = %q", rec.Notices[0].Message)
	}
}

func TestCheckerMatchingResolution(t *testing.T) {
	rec := fake.New()
	c := NewChecker(rec, clocktesting.NewFakePassiveClock(time.Now()), DefaultWindow)
	home, relayed := pair()
	relayed.Video.Selected = 0

	if c.Check(context.Background(), logr.Discard(), home, relayed) {
		t.Error("Check() emitted for matching resolutions")
	}
}
