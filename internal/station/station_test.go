package station

import (
	"testing"

	"github.com/autopeer-io/groundpeer/internal/station/model"
	"github.com/autopeer-io/groundpeer/internal/station/pairing"
	"github.com/autopeer-io/groundpeer/pkg/options"
)

func testConfig(t *testing.T) *Config {
	sync := options.NewSyncOptions()
	sync.ScratchDir = t.TempDir()
	sync.HomeVehicle = 42
	return &Config{
		HttpOptions:  options.NewHttpOptions(),
		GrpcOptions:  options.NewGrpcOptions(),
		MqttOptions:  options.NewMqttOptions(),
		S3Options:    options.NewS3Options(),
		StoreOptions: &options.StoreOptions{Driver: options.StoreDriverMemory},
		SyncOptions:  sync,
	}
}

func TestNewStation(t *testing.T) {
	s, err := testConfig(t).NewStation()
	if err != nil {
		t.Fatal(err)
	}
	defer s.close()

	st := s.Service().Status()
	if st.State != pairing.StateUnpaired {
		t.Errorf("initial state = %s, want %s", st.State, pairing.StateUnpaired)
	}
	if st.CurrentVehicle != model.VehicleID(42) {
		t.Errorf("current vehicle = %d, want 42", st.CurrentVehicle)
	}
	if !st.Flags.FirstConnection {
		t.Error("home vehicle selection should mark the first connection")
	}
}

func TestNewStationRejectsBadStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreOptions.Driver = "etcd"
	if _, err := cfg.NewStation(); err == nil {
		t.Fatal("expected an error for an unknown store driver")
	}
}
