package options

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/autopeer-io/groundpeer/pkg/mqtt"
)

var _ IOptions = (*MqttOptions)(nil)

// MqttOptions configures the connection to the local collaborator bus.
type MqttOptions struct {
	Broker   string `json:"broker" mapstructure:"broker"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	ClientID string `json:"client-id" mapstructure:"client-id"`

	// Client behavior
	KeepAlive      time.Duration `json:"keep-alive" mapstructure:"keep-alive"`
	ConnectTimeout time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	SessionExpiry  uint32        `json:"session-expiry" mapstructure:"session-expiry"`
	CleanStart     bool          `json:"clean-start" mapstructure:"clean-start"`

	// InsecureSkipVerify disables TLS verification for tls:// and wss:// brokers.
	InsecureSkipVerify bool `json:"insecure-skip-verify" mapstructure:"insecure-skip-verify"`

	// TopicRoot prefixes every topic: {TopicRoot}/{segment}/{vehicleID}.
	TopicRoot string `json:"topic-root" mapstructure:"topic-root"`

	// QoS used for both subscriptions and publishes.
	QoS int `json:"qos" mapstructure:"qos"`
}

// NewMqttOptions creates a new MqttOptions with default values.
func NewMqttOptions() *MqttOptions {
	return &MqttOptions{
		Broker:         "tcp://127.0.0.1:1883",
		ClientID:       "gpeer-controller",
		KeepAlive:      30 * time.Second,
		ConnectTimeout: 5 * time.Second,
		SessionExpiry:  60,
		CleanStart:     true,
		TopicRoot:      "gpeer/v1",
		QoS:            1,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *MqttOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Broker == "" {
		errs = append(errs, errors.New("--mqtt.broker is required"))
	} else if _, err := url.Parse(o.Broker); err != nil {
		errs = append(errs, fmt.Errorf("--mqtt.broker: %w", err))
	}
	if o.TopicRoot == "" || strings.ContainsAny(o.TopicRoot, "+#") {
		errs = append(errs, fmt.Errorf("--mqtt.topic-root must be a non-empty topic without wildcards, got %q", o.TopicRoot))
	}
	if o.QoS < 0 || o.QoS > 2 {
		errs = append(errs, fmt.Errorf("--mqtt.qos must be 0, 1 or 2, got %d", o.QoS))
	}
	return errs
}

// AddFlags adds flags for MqttOptions to the specified FlagSet.
func (o *MqttOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Broker, flagName("mqtt.broker", prefixes), o.Broker, "The URL of the MQTT broker.")
	fs.StringVar(&o.Username, flagName("mqtt.username", prefixes), o.Username, "The username for MQTT authentication.")
	fs.StringVar(&o.Password, flagName("mqtt.password", prefixes), o.Password, "The password for MQTT authentication.")
	fs.StringVar(&o.ClientID, flagName("mqtt.client-id", prefixes), o.ClientID, "MQTT client identifier.")

	fs.DurationVar(&o.KeepAlive, flagName("mqtt.keep-alive", prefixes), o.KeepAlive, "MQTT Keep Alive interval.")
	fs.DurationVar(&o.ConnectTimeout, flagName("mqtt.connect-timeout", prefixes), o.ConnectTimeout, "Timeout for establishing MQTT connection.")
	fs.Uint32Var(&o.SessionExpiry, flagName("mqtt.session-expiry", prefixes), o.SessionExpiry, "MQTT Session Expiry Interval in seconds.")
	fs.BoolVar(&o.CleanStart, flagName("mqtt.clean-start", prefixes), o.CleanStart, "Start a clean MQTT session on the first connection.")
	fs.BoolVar(&o.InsecureSkipVerify, flagName("mqtt.insecure-skip-verify", prefixes), o.InsecureSkipVerify, "If true, skips the TLS certificate verification.")

	fs.StringVar(&o.TopicRoot, flagName("mqtt.topic-root", prefixes), o.TopicRoot, "Prefix of every inbound and outbound topic.")
	fs.IntVar(&o.QoS, flagName("mqtt.qos", prefixes), o.QoS, "QoS for subscriptions and publishes.")
}

// ToClientConfig converts the options into a client configuration. The will
// message announces the controller going offline on {root}/status.
func (o *MqttOptions) ToClientConfig() *mqtt.ClientConfig {
	return &mqtt.ClientConfig{
		BrokerURL:          o.Broker,
		Username:           o.Username,
		Password:           o.Password,
		ClientID:           o.ClientID,
		KeepAlive:          uint16(o.KeepAlive.Seconds()),
		SessionExpiry:      o.SessionExpiry,
		ConnectTimeout:     o.ConnectTimeout,
		CleanStart:         o.CleanStart,
		InsecureSkipVerify: o.InsecureSkipVerify,
		WillTopic:          o.TopicRoot + "/status",
		WillPayload:        []byte(`{"online":false}`),
		WillQoS:            byte(o.QoS),
		WillRetain:         true,
	}
}
