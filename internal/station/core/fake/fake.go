// Package fake provides an in-memory recorder implementing every
// collaborator port, for tests.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/autopeer-io/groundpeer/internal/station/core"
	"github.com/autopeer-io/groundpeer/internal/station/model"
)

// Reload is one recorded BroadcastReload call.
type Reload struct {
	Reason    core.ReloadReason
	VehicleID model.VehicleID
}

// Recorder records every port call. Calls lists them in order as short
// strings such as "notify", "overlay:radio_reconfiguring" or "pairing_stop".
type Recorder struct {
	mu sync.Mutex

	Calls     []string
	Notices   []core.Notice
	Modals    []core.Modal
	Overlays  []core.Overlay
	Dismissed []core.OverlayKind
	Reloads   []Reload
	Layouts   []uint32

	// ModalOpen is returned by ModalActive.
	ModalOpen bool
	// AudioAvailable is returned by Available.
	AudioAvailable bool
	// Err, when set, is returned by every call after it is recorded.
	Err error
}

var (
	_ core.Notifier    = (*Recorder)(nil)
	_ core.Presenter   = (*Recorder)(nil)
	_ core.Broadcaster = (*Recorder)(nil)
	_ core.LinkControl = (*Recorder)(nil)
	_ core.Display     = (*Recorder)(nil)
	_ core.AudioOutput = (*Recorder)(nil)
)

// New returns a Recorder with audio output available.
func New() *Recorder {
	return &Recorder{AudioAvailable: true}
}

// Ports wires r into every port.
func (r *Recorder) Ports() core.Ports {
	return core.Ports{Notifier: r, Presenter: r, Broadcaster: r, Link: r, Display: r, Audio: r}
}

func (r *Recorder) record(call string) error {
	r.Calls = append(r.Calls, call)
	return r.Err
}

func (r *Recorder) Notify(_ context.Context, n core.Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Notices = append(r.Notices, n)
	return r.record("notify")
}

func (r *Recorder) ShowModal(_ context.Context, m core.Modal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Modals = append(r.Modals, m)
	return r.record("modal:" + string(m.Kind))
}

func (r *Recorder) ShowOverlay(_ context.Context, o core.Overlay) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Overlays = append(r.Overlays, o)
	return r.record("overlay:" + string(o.Kind))
}

func (r *Recorder) Dismiss(_ context.Context, kind core.OverlayKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Dismissed = append(r.Dismissed, kind)
	return r.record("dismiss:" + string(kind))
}

func (r *Recorder) DismissAll(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.record("dismiss_all")
}

func (r *Recorder) ModalActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ModalOpen
}

func (r *Recorder) BroadcastReload(_ context.Context, reason core.ReloadReason, id model.VehicleID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reloads = append(r.Reloads, Reload{Reason: reason, VehicleID: id})
	return r.record("reload")
}

func (r *Recorder) RequestPairingStop(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.record("pairing_stop")
}

func (r *Recorder) RequestPairingStart(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.record("pairing_start")
}

func (r *Recorder) ApplyLayout(_ context.Context, _ model.VehicleID, layout uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Layouts = append(r.Layouts, layout)
	return r.record(fmt.Sprintf("layout:%d", layout))
}

func (r *Recorder) Available(context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.AudioAvailable, r.record("audio_probe")
}

// Messages returns the text of every recorded notice.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Notices))
	for i, n := range r.Notices {
		out[i] = n.Message
	}
	return out
}

// Reset forgets every recorded call; configuration fields are kept.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls, r.Notices, r.Modals, r.Overlays = nil, nil, nil, nil
	r.Dismissed, r.Reloads, r.Layouts = nil, nil, nil
}
