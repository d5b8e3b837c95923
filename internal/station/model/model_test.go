package model

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPackedVersion(t *testing.T) {
	v := NewVersion(1, 5, 78)
	if v.Major() != 1 || v.Minor() != 5 || v.Build() != 78 {
		t.Fatalf("NewVersion(1, 5, 78) unpacked to %d.%d b%d", v.Major(), v.Minor(), v.Build())
	}
	if uint32(v) != 78<<16|1<<8|5 {
		t.Errorf("packed = %#x", uint32(v))
	}
	if got := NewVersion(10, 4, 270).String(); got != "10.04 (b270)" {
		t.Errorf("String() = %q", got)
	}
}

func TestPackedVersionOlderThan(t *testing.T) {
	tests := []struct {
		name string
		a, b PackedVersion
		want bool
	}{
		{"older build wins over newer minor", NewVersion(1, 5, 78), NewVersion(1, 1, 79), true},
		{"newer build", NewVersion(1, 1, 80), NewVersion(1, 5, 79), false},
		{"same build older minor", NewVersion(1, 1, 79), NewVersion(1, 2, 79), true},
		{"same build older major", NewVersion(1, 9, 79), NewVersion(2, 0, 79), true},
		{"equal", NewVersion(1, 1, 79), NewVersion(1, 1, 79), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.OlderThan(tt.b); got != tt.want {
				t.Errorf("%s.OlderThan(%s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := &Snapshot{
		VehicleID: 42,
		Links:     []RadioLink{{FrequencyKHz: 5745000}},
		Camera:    CameraSettings{Cameras: []Camera{{Type: CameraTypeCSI}}},
		OSD:       OSD{Preferences: []uint32{1, 2}},
	}
	c := s.Clone()
	if diff := cmp.Diff(s, c); diff != "" {
		t.Fatalf("clone differs (-orig +clone):\n%s", diff)
	}

	c.Links[0].FrequencyKHz = 2412000
	c.Camera.Cameras[0].Type = CameraTypeHDMI
	c.OSD.Preferences[0] = 9
	if s.Links[0].FrequencyKHz != 5745000 || s.Camera.Cameras[0].Type != CameraTypeCSI || s.OSD.Preferences[0] != 1 {
		t.Error("mutating the clone changed the original")
	}
}

func TestStripLegacyRelayFlags(t *testing.T) {
	s := &Snapshot{
		Version:    NewVersion(7, 5, 78),
		Links:      []RadioLink{{CapabilityFlags: CapCanTx | CapUsedForRelay}},
		Interfaces: []RadioInterface{{CapabilityFlags: CapUsedForRelay | CapCanRx}},
	}
	if !s.NeedsLegacyNormalization() {
		t.Fatal("build 78 does not need normalization")
	}
	s.StripLegacyRelayFlags()
	if s.Links[0].CapabilityFlags != CapCanTx || s.Interfaces[0].CapabilityFlags != CapCanRx {
		t.Errorf("relay flag not stripped: %+v %+v", s.Links, s.Interfaces)
	}
	if (&Snapshot{Version: NewVersion(7, 6, 79)}).NeedsLegacyNormalization() {
		t.Error("build 79 needs normalization")
	}
}

func TestCurrentCamera(t *testing.T) {
	c := CameraSettings{Active: 1, Cameras: []Camera{{Type: CameraTypeCSI}, {Type: CameraTypeHDMI}}}
	if cam, ok := c.Current(); !ok || cam.Type != CameraTypeHDMI {
		t.Errorf("Current() = %v, %v", cam, ok)
	}
	c.Active = -1
	if _, ok := c.Current(); ok {
		t.Error("Current() found a camera with Active=-1")
	}
}
