package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/autopeer-io/groundpeer/internal/station/codec"
	"github.com/autopeer-io/groundpeer/internal/station/core"
	"github.com/autopeer-io/groundpeer/internal/station/core/fake"
	"github.com/autopeer-io/groundpeer/internal/station/model"
	"github.com/autopeer-io/groundpeer/internal/station/registry"
	"github.com/autopeer-io/groundpeer/internal/station/scratch"
	"github.com/autopeer-io/groundpeer/internal/station/state"
	"github.com/autopeer-io/groundpeer/internal/station/store"
)

const home model.VehicleID = 42

var localVersion = model.NewVersion(1, 1, 79)

type fixture struct {
	ctx     context.Context
	dir     string
	store   *store.Store
	rec     *fake.Recorder
	session *state.Session
	in      *Ingestor
}

func newFixture(t *testing.T, stored ...*model.Snapshot) *fixture {
	t.Helper()
	return newFixtureWith(t, store.NewWithBackend(store.NewMemory()), stored...)
}

func newFixtureWith(t *testing.T, st *store.Store, stored ...*model.Snapshot) *fixture {
	t.Helper()
	f := &fixture{
		ctx:     context.Background(),
		dir:     t.TempDir(),
		store:   st,
		rec:     fake.New(),
		session: state.New(home),
	}
	for _, s := range stored {
		_ = f.store.Put(f.ctx, s)
	}
	if err := f.session.Registry.SetHome(home); err != nil {
		t.Fatal(err)
	}
	f.in = New(f.store, scratch.NewFiles(f.dir), f.rec.Ports(), localVersion)
	return f
}

func (f *fixture) ingest(id model.VehicleID, payload []byte) (*Result, error) {
	return f.in.Ingest(f.ctx, logr.Discard(), f.session, Request{VehicleID: id, Payload: payload})
}

func vehicle(id model.VehicleID) *model.Snapshot {
	return &model.Snapshot{
		VehicleID: id,
		Name:      "quad",
		Version:   model.NewVersion(1, 1, 79),
		Links: []model.RadioLink{
			{FrequencyKHz: 5745000, CapabilityFlags: model.CapCanTx | model.CapCanRx},
			{FrequencyKHz: 2472000, CapabilityFlags: model.CapCanTx | model.CapCanRx},
		},
		Interfaces: []model.RadioInterface{
			{CapabilityFlags: model.CapCanTx, TypeAndDriver: 0x010203},
			{CapabilityFlags: model.CapCanTx, TypeAndDriver: 0x010203},
		},
		Camera: model.CameraSettings{Active: 0, Cameras: []model.Camera{{Type: model.CameraTypeCSI}}},
		OSD:    model.OSD{Layout: 1, Preferences: []uint32{7, 7}},
		Relay:  model.Relay{EnabledOnLink: model.RelayDisabled},
		Video:  model.Video{Profiles: []model.VideoProfile{{Width: 1280, Height: 720}}},
		Stats:  model.Stats{TotalFlights: 12},
	}
}

func encode(t *testing.T, s *model.Snapshot) []byte {
	t.Helper()
	b, err := codec.Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func stored(t *testing.T, f *fixture, id model.VehicleID) *model.Snapshot {
	t.Helper()
	s, ok := f.store.Get(id)
	if !ok {
		t.Fatalf("vehicle %d not stored", id)
	}
	return s
}

var snapOpts = cmpopts.EquateEmpty()

func TestRejections(t *testing.T) {
	tests := []struct {
		name    string
		id      model.VehicleID
		payload func(t *testing.T) []byte
		setup   func(f *fixture)
		wantErr error
	}{
		{
			name:    "zero vehicle id",
			id:      model.NoVehicle,
			payload: func(t *testing.T) []byte { return encode(t, vehicle(home)) },
			wantErr: ErrInputRejected,
		},
		{
			name:    "empty payload",
			id:      home,
			payload: func(*testing.T) []byte { return nil },
			wantErr: ErrCorruptSnapshot,
		},
		{
			name:    "no current configuration",
			id:      home,
			payload: func(t *testing.T) []byte { return encode(t, vehicle(home)) },
			setup:   func(f *fixture) { f.session.CurrentID = 99 },
			wantErr: ErrInputRejected,
		},
		{
			name:    "unregistered vehicle",
			id:      7,
			payload: func(t *testing.T) []byte { return encode(t, vehicle(7)) },
			wantErr: ErrUnknownVehicle,
		},
		{
			name:    "foreign vehicle not known",
			id:      home,
			payload: func(t *testing.T) []byte { return encode(t, vehicle(8)) },
			wantErr: ErrUnknownVehicle,
		},
		{
			name:    "corrupt payload",
			id:      home,
			payload: func(*testing.T) []byte { return []byte{0xff, 0xff, 0xff} },
			wantErr: ErrCorruptSnapshot,
		},
		{
			name: "truncated payload",
			id:   home,
			payload: func(t *testing.T) []byte {
				b := encode(t, vehicle(home))
				return b[:len(b)-1]
			},
			wantErr: ErrCorruptSnapshot,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := vehicle(home)
			prev.Spectator = true
			f := newFixture(t, prev, vehicle(7))
			if tt.setup != nil {
				tt.setup(f)
			}
			before := f.store.List()

			res, err := f.ingest(tt.id, tt.payload(t))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Ingest() error = %v, want %v", err, tt.wantErr)
			}
			if res != nil {
				t.Errorf("Ingest() result = %+v on rejection", res)
			}
			if diff := cmp.Diff(before, f.store.List(), snapOpts); diff != "" {
				t.Errorf("stored state changed (-before +after):\n%s", diff)
			}
			if slices.Contains(f.rec.Calls, "reload") {
				t.Error("rejected payload broadcast a reload")
			}
		})
	}
}

func TestCorruptPayloadNotice(t *testing.T) {
	for name, payload := range map[string][]byte{
		"garbage": []byte("garbage"),
		"empty":   {},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, vehicle(home))
			if _, err := f.ingest(home, payload); !errors.Is(err, ErrCorruptSnapshot) {
				t.Fatalf("Ingest() = %v", err)
			}
			if diff := cmp.Diff([]string{"Received invalid vehicle settings."}, f.rec.Messages()); diff != "" {
				t.Errorf("notices mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

type failingScratch struct{}

func (failingScratch) Write(context.Context, model.VehicleID, []byte) error {
	return errors.New("read-only file system")
}

func (failingScratch) Read(context.Context) ([]byte, error) { return nil, os.ErrNotExist }

func TestScratchWriteFailure(t *testing.T) {
	f := newFixture(t, vehicle(home))
	f.in = New(f.store, failingScratch{}, f.rec.Ports(), localVersion)

	next := vehicle(home)
	next.Links = next.Links[:1]
	if _, err := f.ingest(home, encode(t, next)); !errors.Is(err, ErrPersistence) {
		t.Fatalf("Ingest() = %v, want ErrPersistence", err)
	}
	if got := stored(t, f, home); len(got.Links) != 2 {
		t.Error("stored configuration changed after a scratch failure")
	}
}

func TestScratchCopiesWritten(t *testing.T) {
	f := newFixture(t, vehicle(home))
	payload := encode(t, vehicle(home))
	if _, err := f.ingest(home, payload); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{scratch.PrimaryName, scratch.BackupName} {
		b, err := os.ReadFile(filepath.Join(f.dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(b, payload) {
			t.Errorf("%s does not hold the payload", name)
		}
	}
}

func TestRepairClassification(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *model.Snapshot)
		want   Outcome
	}{
		{
			name: "link count 2 to 3",
			mutate: func(s *model.Snapshot) {
				s.Links = append(s.Links, model.RadioLink{FrequencyKHz: 5825000})
			},
			want: OutcomeAcceptedRequiresRepair,
		},
		{
			name:   "link frequency",
			mutate: func(s *model.Snapshot) { s.Links[1].FrequencyKHz = 2412000 },
			want:   OutcomeAcceptedRequiresRepair,
		},
		{
			name:   "interface count",
			mutate: func(s *model.Snapshot) { s.Interfaces = s.Interfaces[:1] },
			want:   OutcomeAcceptedRequiresRepair,
		},
		{
			name:   "audio toggled",
			mutate: func(s *model.Snapshot) { s.Audio = model.Audio{Enabled: true, HasDevice: true} },
			want:   OutcomeAcceptedRequiresRepair,
		},
		{
			name:   "non-critical capability flag",
			mutate: func(s *model.Snapshot) { s.Links[0].CapabilityFlags |= model.CapHighCapacity },
			want:   OutcomeAccepted,
		},
		{
			name:   "camera change",
			mutate: func(s *model.Snapshot) { s.Camera.Cameras[0].Type = model.CameraTypeUSB },
			want:   OutcomeAccepted,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, vehicle(home))
			next := vehicle(home)
			tt.mutate(next)

			res, err := f.ingest(home, encode(t, next))
			if err != nil {
				t.Fatal(err)
			}
			if res.Outcome != tt.want {
				t.Errorf("outcome = %s, want %s", res.Outcome, tt.want)
			}
			reloaded := slices.Contains(f.rec.Calls, "reload")
			if reloaded != (tt.want == OutcomeAccepted) {
				t.Errorf("reload broadcast = %v for outcome %s", reloaded, res.Outcome)
			}
			if diff := cmp.Diff(next, stored(t, f, home), snapOpts); diff != "" {
				t.Errorf("stored mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRelayedVehicleNeverRequiresRepair(t *testing.T) {
	f := newFixture(t, vehicle(home), vehicle(7))
	if err := f.session.Registry.SetRelay(7); err != nil {
		t.Fatal(err)
	}
	next := vehicle(7)
	next.Links = next.Links[:1]

	res, err := f.ingest(7, encode(t, next))
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeAccepted || !res.Changes.RadioCritical {
		t.Errorf("result = %+v, want accepted with a critical change", res)
	}
	if diff := cmp.Diff([]fake.Reload{{Reason: core.ReloadSynchronisedFromVehicle, VehicleID: 7}}, f.rec.Reloads); diff != "" {
		t.Errorf("reloads mismatch (-want +got):\n%s", diff)
	}
}

func TestObserverOnlyPreserved(t *testing.T) {
	prev := vehicle(home)
	prev.Spectator = true
	prev.DeveloperMode = true
	prev.OSD = model.OSD{Layout: 1, Preferences: []uint32{1, 2}}
	f := newFixture(t, prev)

	next := vehicle(home)
	next.Spectator = false
	next.OSD = model.OSD{Layout: 2, Preferences: []uint32{9, 9, 9}}
	next.Stats.TotalFlights = 13

	if _, err := f.ingest(home, encode(t, next)); err != nil {
		t.Fatal(err)
	}
	got := stored(t, f, home)
	if !got.Spectator || !got.DeveloperMode {
		t.Errorf("local flags overwritten: spectator=%v developer=%v", got.Spectator, got.DeveloperMode)
	}
	if diff := cmp.Diff(prev.OSD, got.OSD); diff != "" {
		t.Errorf("osd overwritten (-want +got):\n%s", diff)
	}
	if got.Stats.TotalFlights != 13 {
		t.Errorf("remote stats not applied: %d", got.Stats.TotalFlights)
	}
}

func TestLegacyRelayFlagsStripped(t *testing.T) {
	f := newFixture(t, vehicle(home))
	next := vehicle(home)
	next.Version = model.NewVersion(1, 1, 78)
	next.Links[0].CapabilityFlags |= model.CapUsedForRelay
	next.Interfaces[1].CapabilityFlags |= model.CapUsedForRelay

	if _, err := f.ingest(home, encode(t, next)); err != nil {
		t.Fatal(err)
	}
	got := stored(t, f, home)
	for i, l := range got.Links {
		if l.CapabilityFlags&model.CapUsedForRelay != 0 {
			t.Errorf("link %d kept the relay flag", i)
		}
	}
	for i, itf := range got.Interfaces {
		if itf.CapabilityFlags&model.CapUsedForRelay != 0 {
			t.Errorf("interface %d kept the relay flag", i)
		}
	}
}

func TestForeignSnapshotStored(t *testing.T) {
	f := newFixture(t, vehicle(home), vehicle(7))
	next := vehicle(7)
	next.Links = next.Links[:1]

	res, err := f.ingest(home, encode(t, next))
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeStoredForeign || res.SnapshotID != 7 {
		t.Errorf("result = %+v", res)
	}
	if diff := cmp.Diff(next, stored(t, f, 7), snapOpts); diff != "" {
		t.Errorf("foreign snapshot mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(vehicle(home), stored(t, f, home), snapOpts); diff != "" {
		t.Errorf("home snapshot changed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"notify"}, f.rec.Calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestRelayedVehicleReplacesHomeSnapshot(t *testing.T) {
	f := newFixture(t, vehicle(home), vehicle(7))
	if err := f.session.Registry.SetRelay(7); err != nil {
		t.Fatal(err)
	}
	next := vehicle(home)
	next.Name = "from relay"
	next.Links = next.Links[:1]

	res, err := f.ingest(7, encode(t, next))
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeStoredForeign || res.SnapshotID != home {
		t.Errorf("result = %+v", res)
	}
	if diff := cmp.Diff(next, stored(t, f, home), snapOpts); diff != "" {
		t.Errorf("home snapshot not replaced (-want +got):\n%s", diff)
	}
	if slices.Contains(f.rec.Calls, "pairing_stop") {
		t.Error("repair triggered for a foreign snapshot")
	}
}

// Home vehicle 42 stored at b79 v1.1, the vehicle now reports b78 v1.5
// with the same radio topology.
func TestOlderVehicleBuild(t *testing.T) {
	f := newFixture(t, vehicle(home))
	f.session.Flags.FirstConnection = false
	next := vehicle(home)
	next.Version = model.NewVersion(1, 5, 78)

	res, err := f.ingest(home, encode(t, next))
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeAccepted || !res.VehicleOutdated {
		t.Errorf("result = %+v, want accepted and outdated", res)
	}
	if slices.Contains(f.rec.Calls, "pairing_stop") {
		t.Error("repair triggered")
	}

	wantNotices := []core.Notice{
		{VehicleID: home, Message: "Got vehicle settings.", Severity: core.SeverityInfo},
		{
			VehicleID: home,
			Message:   "Vehicle has software version 1.5 (b78) and your controller 1.1 (b79). You should update your vehicle.",
			Severity:  core.SeverityWarning,
			Duration:  UpdateNoticeDuration,
		},
	}
	if diff := cmp.Diff(wantNotices, f.rec.Notices); diff != "" {
		t.Errorf("notices mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]core.Modal{{Kind: core.ModalUpdateVehicle, VehicleID: home}}, f.rec.Modals); diff != "" {
		t.Errorf("modals mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdatePromptSuppressed(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
	}{
		{"armed", func(f *fixture) {
			f.session.Registry.UpdateTelemetry(home, registry.Telemetry{Ruby: true, FC: true, Armed: true})
		}},
		{"modal on screen", func(f *fixture) { f.rec.ModalOpen = true }},
		{"already shown", func(f *fixture) { f.session.Flags.UpdatePromptShown = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, vehicle(home))
			tt.setup(f)
			next := vehicle(home)
			next.Version = model.NewVersion(1, 0, 60)

			res, err := f.ingest(home, encode(t, next))
			if err != nil {
				t.Fatal(err)
			}
			if !res.VehicleOutdated {
				t.Error("vehicle not reported outdated")
			}
			if len(f.rec.Modals) != 0 {
				t.Errorf("prompt shown: %+v", f.rec.Modals)
			}
		})
	}
}

func TestUpdatePromptOneShot(t *testing.T) {
	f := newFixture(t, vehicle(home))
	next := vehicle(home)
	next.Version = model.NewVersion(1, 0, 60)
	payload := encode(t, next)

	for range 2 {
		if _, err := f.ingest(home, payload); err != nil {
			t.Fatal(err)
		}
	}
	if len(f.rec.Modals) != 1 {
		t.Errorf("prompt shown %d times, want 1", len(f.rec.Modals))
	}
}

func TestIdempotentIngestion(t *testing.T) {
	f := newFixture(t, vehicle(home))
	next := vehicle(home)
	next.Camera.Cameras[0].ForcedType = model.CameraTypeUSB
	payload := encode(t, next)

	var outcomes []Outcome
	var states []*model.Snapshot
	for range 2 {
		res, err := f.ingest(home, payload)
		if err != nil {
			t.Fatal(err)
		}
		outcomes = append(outcomes, res.Outcome)
		states = append(states, stored(t, f, home))
	}
	if diff := cmp.Diff([]Outcome{OutcomeAccepted, OutcomeAccepted}, outcomes); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(states[0], states[1], snapOpts); diff != "" {
		t.Errorf("stored state changed between identical ingestions (-first +second):\n%s", diff)
	}
}

func TestPersistFailureKeepsMerge(t *testing.T) {
	f := newFixtureWith(t, store.NewWithBackend(readOnly{store.NewMemory()}), vehicle(home))
	next := vehicle(home)
	next.Name = "renamed"

	res, err := f.ingest(home, encode(t, next))
	if err != nil {
		t.Fatalf("Ingest() = %v, a persistence failure of the merge is not a rejection", err)
	}
	if res.PersistErr == nil {
		t.Error("PersistErr not recorded")
	}
	if res.Outcome != OutcomeAccepted {
		t.Errorf("outcome = %s", res.Outcome)
	}
	if got := stored(t, f, home); got.Name != "renamed" {
		t.Errorf("in-memory merge reverted, name = %q", got.Name)
	}
}

type readOnly struct{ *store.Memory }

func (readOnly) Save(context.Context, model.VehicleID, []byte) error {
	return errors.New("read-only")
}

func TestDiagnostics(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *model.Snapshot)
		setup   func(f *fixture)
		want    []string
		overlay string
	}{
		{
			name: "first connection",
			want: []string{"Got vehicle settings.", "Total flights: 12"},
		},
		{
			name:   "usb serial alarm",
			mutate: func(s *model.Snapshot) { s.Alarms = model.AlarmUnsupportedUSBSerial },
			want: []string{
				"Got vehicle settings.",
				"Your vehicle has an unsupported USB to Serial adapter. Use brand name serial adapters or ones with CP2102 chipset. The ones with 340 chipset are not compatible.",
			},
		},
		{
			name:   "audio without capture device",
			mutate: func(s *model.Snapshot) { s.Audio = model.Audio{Enabled: true} },
			want:   []string{"Got vehicle settings.", "Your vehicle has audio enabled but no audio capture device"},
		},
		{
			name:   "audio without controller output",
			mutate: func(s *model.Snapshot) { s.Audio = model.Audio{Enabled: true, HasDevice: true} },
			setup:  func(f *fixture) { f.rec.AudioAvailable = false },
			want:   []string{"Got vehicle settings.", "Your vehicle has audio enabled but your controller can't output audio."},
		},
		{
			name: "forced camera type",
			mutate: func(s *model.Snapshot) {
				s.Camera.Cameras[0] = model.Camera{Type: model.CameraTypeCSI, ForcedType: model.CameraTypeHDMI}
			},
			want: []string{
				"Got vehicle settings.",
				"Your camera is autodetected as " + model.CameraTypeCSI.String() + " but you forced to work as " + model.CameraTypeHDMI.String(),
			},
		},
		{
			name: "second forced camera",
			mutate: func(s *model.Snapshot) {
				s.Camera.Cameras = append(s.Camera.Cameras, model.Camera{Type: model.CameraTypeUSB, ForcedType: model.CameraTypeCSI})
			},
			want: []string{
				"Got vehicle settings.",
				"Your camera 2 is autodetected as " + model.CameraTypeUSB.String() + " but you forced to work as " + model.CameraTypeCSI.String(),
			},
		},
		{
			name:    "no supported interface",
			mutate:  func(s *model.Snapshot) { s.Interfaces[0].TypeAndDriver, s.Interfaces[1].TypeAndDriver = 0x0203, 0x0203 },
			want:    []string{"Got vehicle settings."},
			overlay: "No radio interface on your vehicle is fully supported.",
		},
		{
			name:    "some unsupported interfaces",
			mutate:  func(s *model.Snapshot) { s.Interfaces[1].TypeAndDriver = 0x0203 },
			want:    []string{"Got vehicle settings."},
			overlay: "Some radio interfaces on your vehicle are not fully supported.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := vehicle(home)
			next := vehicle(home)
			if tt.mutate != nil {
				tt.mutate(prev)
				tt.mutate(next)
			}
			f := newFixture(t, prev)
			if tt.name != "first connection" {
				f.session.Flags.FirstConnection = false
			}
			if tt.setup != nil {
				tt.setup(f)
			}

			if _, err := f.ingest(home, encode(t, next)); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, f.rec.Messages()); diff != "" {
				t.Errorf("notices mismatch (-want +got):\n%s", diff)
			}
			var overlays []string
			for _, o := range f.rec.Overlays {
				overlays = append(overlays, o.Message)
			}
			var wantOverlays []string
			if tt.overlay != "" {
				wantOverlays = []string{tt.overlay}
			}
			if diff := cmp.Diff(wantOverlays, overlays); diff != "" {
				t.Errorf("overlays mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnsolicitedNotice(t *testing.T) {
	f := newFixture(t, vehicle(home))
	f.session.Flags.FirstConnection = false
	f.session.MustSyncFromVehicle = true

	_, err := f.in.Ingest(f.ctx, logr.Discard(), f.session, Request{VehicleID: home, Payload: encode(t, vehicle(home)), Unsolicited: true})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Received vehicle settings."}, f.rec.Messages()); diff != "" {
		t.Errorf("notices mismatch (-want +got):\n%s", diff)
	}
	if f.session.MustSyncFromVehicle {
		t.Error("sync request not cleared")
	}
}
