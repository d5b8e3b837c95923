package options

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*SyncOptions)(nil)

// SyncOptions tunes configuration ingestion and the pairing lifecycle.
type SyncOptions struct {
	// Local software version, compared against each vehicle's version.
	VersionMajor uint8  `json:"version-major" mapstructure:"version-major"`
	VersionMinor uint8  `json:"version-minor" mapstructure:"version-minor"`
	VersionBuild uint16 `json:"version-build" mapstructure:"version-build"`

	// ScratchDir receives the primary and backup copies of the last payload.
	ScratchDir string `json:"scratch-dir" mapstructure:"scratch-dir"`

	// SettleDelay separates pairing stop and start during a repair.
	SettleDelay time.Duration `json:"settle-delay" mapstructure:"settle-delay"`

	// RelayWarnWindow rate-limits relay resolution mismatch advisories.
	RelayWarnWindow time.Duration `json:"relay-warn-window" mapstructure:"relay-warn-window"`

	// QueueSize bounds the event queue in front of the dispatcher.
	QueueSize int `json:"queue-size" mapstructure:"queue-size"`

	// HomeVehicle is the vehicle selected at startup; 0 leaves none selected.
	HomeVehicle uint32 `json:"home-vehicle" mapstructure:"home-vehicle"`
}

func NewSyncOptions() *SyncOptions {
	return &SyncOptions{
		VersionMajor:    11,
		VersionMinor:    1,
		VersionBuild:    270,
		ScratchDir:      "/var/lib/groundpeer/tmp",
		SettleDelay:     100 * time.Millisecond,
		RelayWarnWindow: 60 * time.Second,
		QueueSize:       64,
	}
}

func (o *SyncOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ScratchDir == "" {
		errs = append(errs, errors.New("--sync.scratch-dir is required"))
	}
	if o.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("--sync.settle-delay must not be negative, got %s", o.SettleDelay))
	}
	if o.RelayWarnWindow <= 0 {
		errs = append(errs, fmt.Errorf("--sync.relay-warn-window must be positive, got %s", o.RelayWarnWindow))
	}
	if o.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("--sync.queue-size must be positive, got %d", o.QueueSize))
	}
	return errs
}

func (o *SyncOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.Uint8Var(&o.VersionMajor, flagName("sync.version-major", prefixes), o.VersionMajor, "Local software major version.")
	fs.Uint8Var(&o.VersionMinor, flagName("sync.version-minor", prefixes), o.VersionMinor, "Local software minor version.")
	fs.Uint16Var(&o.VersionBuild, flagName("sync.version-build", prefixes), o.VersionBuild, "Local software build number.")
	fs.StringVar(&o.ScratchDir, flagName("sync.scratch-dir", prefixes), o.ScratchDir, "Directory for the scratch copies of received settings.")
	fs.DurationVar(&o.SettleDelay, flagName("sync.settle-delay", prefixes), o.SettleDelay, "Pause between pairing stop and start during a link repair.")
	fs.DurationVar(&o.RelayWarnWindow, flagName("sync.relay-warn-window", prefixes), o.RelayWarnWindow, "Minimum interval between relay resolution warnings.")
	fs.IntVar(&o.QueueSize, flagName("sync.queue-size", prefixes), o.QueueSize, "Capacity of the event queue.")
	fs.Uint32Var(&o.HomeVehicle, flagName("sync.home-vehicle", prefixes), o.HomeVehicle, "Vehicle selected as home at startup.")
}
