// Package mqtt is the MQTT ingress: it turns collaborator messages into
// station events.
package mqtt

import (
	"context"
	"fmt"
	"time"

	"github.com/autopeer-io/groundpeer/internal/pkg/mqtt/paths"
	"github.com/autopeer-io/groundpeer/internal/station/dispatch"
	"github.com/autopeer-io/groundpeer/pkg/log"
	pkgmqtt "github.com/autopeer-io/groundpeer/pkg/mqtt"
	"github.com/autopeer-io/groundpeer/pkg/mqtt/topic"
)

// Sink accepts events for the dispatcher.
type Sink interface {
	Submit(ev dispatch.Event) error
}

// Subscriber registers its own subscriptions once connected.
type Subscriber interface {
	Subscribe(ctx context.Context) error
}

// Server implements the MQTT ingress layer.
type Server struct {
	client      pkgmqtt.Client
	topics      *topic.Builder
	qos         int
	sink        Sink
	subscribers []Subscriber
}

func NewServer(client pkgmqtt.Client, builder *topic.Builder, qos int, sink Sink, subscribers ...Subscriber) *Server {
	return &Server{
		client:      client,
		topics:      builder,
		qos:         qos,
		sink:        sink,
		subscribers: subscribers,
	}
}

// Start connects to the broker, subscribes and blocks until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if err := s.client.Start(ctx); err != nil {
		return err
	}

	defer func() {
		log.Info("Disconnecting MQTT client...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.client.Disconnect(shutdownCtx)
		log.Info("MQTT client disconnected")
	}()

	log.Info("Waiting for MQTT connection...")
	if err := s.client.AwaitConnection(ctx); err != nil {
		return err
	}
	log.Info("MQTT Connected")

	if err := s.subscribe(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	return nil
}

func (s *Server) subscribe(ctx context.Context) error {
	subscriptions := map[string]HandlerFunc{
		paths.Settings: s.forward(eventSettings),
		paths.Upload:   s.forward(eventUpload),
		paths.Events:   s.handleEvent,
	}

	for segment, handler := range subscriptions {
		filter := s.topics.Wildcard(segment)
		if err := s.client.Subscribe(ctx, filter, s.qos, func(c context.Context, t string, p []byte) {
			if handleErr := handler(c, t, p); handleErr != nil {
				log.Error(handleErr, "Handler execution failed", "topic", t)
			}
		}); err != nil {
			return fmt.Errorf("failed to subscribe to topic: %s, err: %w", filter, err)
		}
	}

	for _, sub := range s.subscribers {
		if err := sub.Subscribe(ctx); err != nil {
			return err
		}
	}
	return nil
}
