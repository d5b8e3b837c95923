package station

import (
	"fmt"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/groundpeer/internal/station/adapter/audio"
	mqttadapter "github.com/autopeer-io/groundpeer/internal/station/adapter/mqtt"
	"github.com/autopeer-io/groundpeer/internal/station/core"
	"github.com/autopeer-io/groundpeer/internal/station/dispatch"
	"github.com/autopeer-io/groundpeer/internal/station/scratch"
	"github.com/autopeer-io/groundpeer/internal/station/server"
	"github.com/autopeer-io/groundpeer/internal/station/service"
	"github.com/autopeer-io/groundpeer/internal/station/store"
	"github.com/autopeer-io/groundpeer/pkg/log"
	pkgmqtt "github.com/autopeer-io/groundpeer/pkg/mqtt"
	"github.com/autopeer-io/groundpeer/pkg/mqtt/topic"
	"github.com/autopeer-io/groundpeer/pkg/options"
)

type Config struct {
	HttpOptions  *options.HttpOptions
	GrpcOptions  *options.GrpcOptions
	MqttOptions  *options.MqttOptions
	S3Options    *options.S3Options
	StoreOptions *options.StoreOptions
	SyncOptions  *options.SyncOptions
}

func (cfg *Config) NewStation() (*Station, error) {
	// 1. Infrastructure: known-vehicle store and scratch files.
	st, err := store.New(cfg.StoreOptions)
	if err != nil {
		return nil, err
	}

	var (
		writer scratch.Writer = scratch.NewFiles(cfg.SyncOptions.ScratchDir)
		mirror *scratch.Mirror
	)
	if cfg.S3Options.Enabled {
		mirror, err = scratch.NewMirror(writer, cfg.S3Options)
		if err != nil {
			st.Close()
			return nil, err
		}
		writer = mirror
	}

	// 2. Collaborator bus.
	mqttClient, err := pkgmqtt.NewClient(cfg.MqttOptions.ToClientConfig())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to init mqtt client: %w", err)
	}
	topicBuilder := topic.NewBuilder(cfg.MqttOptions.TopicRoot)
	bus := mqttadapter.New(mqttClient, topicBuilder, cfg.MqttOptions.QoS)

	ports := core.Ports{
		Notifier:    bus,
		Presenter:   bus,
		Broadcaster: bus,
		Link:        bus,
		Display:     bus,
		Audio:       audio.NewProbe(),
	}

	// 3. Event handling.
	logger := log.WithName("station").Logr()
	svc := service.New(st, writer, ports, clock.RealClock{}, cfg.SyncOptions, logger)
	svc.Listeners().Register(vehicleLog(logger.WithName("vehicles")))

	dispatcher := dispatch.New(cfg.SyncOptions.QueueSize, logger.WithName("dispatch"))
	svc.Register(dispatcher)

	// 4. Ingress servers.
	serverConfig := &server.Config{
		HttpOptions: cfg.HttpOptions,
		GrpcOptions: cfg.GrpcOptions,
		MqttOptions: cfg.MqttOptions,
	}
	srvManager, err := server.NewManager(serverConfig, &server.Deps{
		Client:     mqttClient,
		Topics:     topicBuilder,
		Bus:        bus,
		Dispatcher: dispatcher,
		Service:    svc,
		Store:      st,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to init server manager: %w", err)
	}

	return &Station{
		store:         st,
		mirror:        mirror,
		service:       svc,
		dispatcher:    dispatcher,
		serverManager: srvManager,
	}, nil
}
