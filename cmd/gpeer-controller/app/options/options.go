package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/groundpeer/internal/station"
	"github.com/autopeer-io/groundpeer/pkg/app"
	"github.com/autopeer-io/groundpeer/pkg/log"
	"github.com/autopeer-io/groundpeer/pkg/options"
)

type ControllerOptions struct {
	HttpOptions  *options.HttpOptions  `json:"http" mapstructure:"http"`
	GrpcOptions  *options.GrpcOptions  `json:"grpc" mapstructure:"grpc"`
	MqttOptions  *options.MqttOptions  `json:"mqtt" mapstructure:"mqtt"`
	S3Options    *options.S3Options    `json:"s3" mapstructure:"s3"`
	StoreOptions *options.StoreOptions `json:"store" mapstructure:"store"`
	SyncOptions  *options.SyncOptions  `json:"sync" mapstructure:"sync"`
	Log          *log.Options          `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*ControllerOptions)(nil)

func NewControllerOptions() *ControllerOptions {
	o := &ControllerOptions{
		HttpOptions:  options.NewHttpOptions(),
		GrpcOptions:  options.NewGrpcOptions(),
		MqttOptions:  options.NewMqttOptions(),
		S3Options:    options.NewS3Options(),
		StoreOptions: options.NewStoreOptions(),
		SyncOptions:  options.NewSyncOptions(),
		Log:          log.NewOptions(),
	}

	return o
}

func (o *ControllerOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.GrpcOptions.AddFlags(fss.FlagSet("grpc"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.StoreOptions.AddFlags(fss.FlagSet("store"))
	o.SyncOptions.AddFlags(fss.FlagSet("sync"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

// Complete names the logger after the MQTT client when none is set.
func (o *ControllerOptions) Complete() error {
	if o.Log.Name == "" {
		o.Log.Name = o.MqttOptions.ClientID
	}
	return nil
}

func (o *ControllerOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.GrpcOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.S3Options.Validate()...)
	errs = append(errs, o.StoreOptions.Validate()...)
	errs = append(errs, o.SyncOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *ControllerOptions) Config() (*station.Config, error) {
	return &station.Config{
		HttpOptions:  o.HttpOptions,
		GrpcOptions:  o.GrpcOptions,
		MqttOptions:  o.MqttOptions,
		S3Options:    o.S3Options,
		StoreOptions: o.StoreOptions,
		SyncOptions:  o.SyncOptions,
	}, nil
}
