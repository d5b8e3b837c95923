package options

import (
	"errors"

	"github.com/spf13/pflag"
)

var _ IOptions = (*S3Options)(nil)

// S3Options configures the optional object-storage mirror of received
// configuration payloads.
type S3Options struct {
	Enabled         bool   `json:"enabled" mapstructure:"enabled"`
	Endpoint        string `json:"endpoint" mapstructure:"endpoint"`
	AccessKeyID     string `json:"access-key-id" mapstructure:"access-key-id"`
	SecretAccessKey string `json:"secret-access-key" mapstructure:"secret-access-key"`
	UseSSL          bool   `json:"use-ssl" mapstructure:"use-ssl"`
	BucketName      string `json:"bucket-name" mapstructure:"bucket-name"`
	Region          string `json:"region" mapstructure:"region"`
}

func NewS3Options() *S3Options {
	return &S3Options{
		Endpoint:   "127.0.0.1:9000",
		UseSSL:     false,
		BucketName: "groundpeer-scratch",
		Region:     "us-east-1",
	}
}

func (o *S3Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if o.Endpoint == "" {
		errs = append(errs, errors.New("--s3.endpoint is required when the mirror is enabled"))
	}
	if o.BucketName == "" {
		errs = append(errs, errors.New("--s3.bucket-name is required when the mirror is enabled"))
	}
	return errs
}

func (o *S3Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.Enabled, flagName("s3.enabled", prefixes), o.Enabled, "Mirror every received settings payload to object storage.")
	fs.StringVar(&o.Endpoint, flagName("s3.endpoint", prefixes), o.Endpoint, "S3 service endpoint (e.g. s3.amazonaws.com or minio.local:9000)")
	fs.StringVar(&o.AccessKeyID, flagName("s3.access-key-id", prefixes), o.AccessKeyID, "S3 access key ID")
	fs.StringVar(&o.SecretAccessKey, flagName("s3.secret-access-key", prefixes), o.SecretAccessKey, "S3 secret access key")
	fs.BoolVar(&o.UseSSL, flagName("s3.use-ssl", prefixes), o.UseSSL, "Enable SSL for S3 connection")
	fs.StringVar(&o.BucketName, flagName("s3.bucket-name", prefixes), o.BucketName, "S3 bucket receiving mirrored payloads")
	fs.StringVar(&o.Region, flagName("s3.region", prefixes), o.Region, "S3 region")
}
