package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

var _ IOptions = (*StoreOptions)(nil)

// Snapshot store drivers.
const (
	StoreDriverBolt   = "bolt"
	StoreDriverSQLite = "sqlite"
	StoreDriverMemory = "memory"
)

// StoreOptions selects the durable backend of the known-vehicle store.
type StoreOptions struct {
	Driver string `json:"driver" mapstructure:"driver"`
	// Path is the database file; ignored by the memory driver.
	Path string `json:"path" mapstructure:"path"`
}

func NewStoreOptions() *StoreOptions {
	return &StoreOptions{
		Driver: StoreDriverBolt,
		Path:   "/var/lib/groundpeer/vehicles.db",
	}
}

func (o *StoreOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Driver {
	case StoreDriverBolt, StoreDriverSQLite:
		if o.Path == "" {
			errs = append(errs, fmt.Errorf("--store.path is required for driver %q", o.Driver))
		}
	case StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("--store.driver must be one of bolt, sqlite, memory, got %q", o.Driver))
	}
	return errs
}

func (o *StoreOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Driver, flagName("store.driver", prefixes), o.Driver, "Known-vehicle store backend: bolt, sqlite or memory.")
	fs.StringVar(&o.Path, flagName("store.path", prefixes), o.Path, "Database file of the known-vehicle store.")
}
