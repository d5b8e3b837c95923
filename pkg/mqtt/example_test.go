package mqtt_test

import (
	"context"
	"fmt"
	"time"

	"github.com/autopeer-io/groundpeer/pkg/log"
	"github.com/autopeer-io/groundpeer/pkg/mqtt"
	"github.com/autopeer-io/groundpeer/pkg/mqtt/topic"
)

// ExampleClient shows how the controller connects to the local bus,
// listens for settings payloads and publishes a notice.
func ExampleClient() {
	cfg := &mqtt.ClientConfig{
		BrokerURL:      "tcp://localhost:1883",
		ClientID:       "gpeer-controller",
		KeepAlive:      30,
		ConnectTimeout: 5 * time.Second,
		CleanStart:     true,
		WillTopic:      "gpeer/v1/status",
		WillPayload:    []byte(`{"online":false}`),
		WillRetain:     true,
	}

	client, err := mqtt.NewClient(cfg)
	if err != nil {
		log.Error(err, "Failed to create MQTT client")
		return
	}

	// Start returns immediately; the connection (and reconnects) happen in
	// the background.
	ctx := context.Background()
	if err := client.Start(ctx); err != nil {
		log.Error(err, "Failed to start MQTT client")
		return
	}

	topics := topic.NewBuilder("gpeer/v1")

	// Subscriptions survive reconnects.
	onSettings := func(ctx context.Context, t string, payload []byte) {
		fmt.Printf("settings on %s: %d bytes\n", t, len(payload))
	}
	if err := client.Subscribe(ctx, topics.Wildcard("settings"), 1, onSettings); err != nil {
		log.Error(err, "Failed to subscribe")
	}

	if err := client.AwaitConnection(ctx); err != nil {
		log.Error(err, "Connection timed out")
		return
	}

	notice := []byte(`{"vehicleId":42,"message":"Got vehicle settings.","severity":"info"}`)
	if err := client.Publish(ctx, topics.Build("notify", "42"), 1, false, notice); err != nil {
		log.Error(err, "Failed to publish notice")
	}

	client.Disconnect(ctx)
}
