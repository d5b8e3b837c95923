package server

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	mqttadapter "github.com/autopeer-io/groundpeer/internal/station/adapter/mqtt"
	"github.com/autopeer-io/groundpeer/internal/station/dispatch"
	"github.com/autopeer-io/groundpeer/internal/station/server/grpc"
	"github.com/autopeer-io/groundpeer/internal/station/server/http"
	"github.com/autopeer-io/groundpeer/internal/station/server/mqtt"
	"github.com/autopeer-io/groundpeer/internal/station/service"
	"github.com/autopeer-io/groundpeer/internal/station/store"
	"github.com/autopeer-io/groundpeer/pkg/log"
	pkgmqtt "github.com/autopeer-io/groundpeer/pkg/mqtt"
	"github.com/autopeer-io/groundpeer/pkg/mqtt/topic"
)

// Server defines the common interface for all sub-servers (grpc, mqtt, http).
type Server interface {
	Start(ctx context.Context) error
}

// Deps are the station components the servers front.
type Deps struct {
	Client     pkgmqtt.Client
	Topics     *topic.Builder
	Bus        *mqttadapter.Bus
	Dispatcher *dispatch.Dispatcher
	Service    *service.Service
	Store      *store.Store
}

// Manager manages the lifecycle of all protocol servers.
type Manager struct {
	servers []Server
}

// NewManager creates a new server manager and initializes all sub-servers.
func NewManager(cfg *Config, d *Deps) (*Manager, error) {
	var servers []Server

	// 1. MQTT ingress, the collaborator bus.
	mqttSrv := mqtt.NewServer(d.Client, d.Topics, cfg.MqttOptions.QoS, d.Dispatcher, d.Bus)
	servers = append(servers, mqttSrv)

	// 2. gRPC health, tracking the pairing link.
	if cfg.GrpcOptions.Enabled {
		grpcSrv, err := grpc.NewServer(cfg.GrpcOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to init grpc server: %w", err)
		}
		d.Dispatcher.AfterEach(func(dispatch.Event, error) {
			grpcSrv.SetLinked(d.Service.Linked())
		})
		servers = append(servers, grpcSrv)
	}

	// 3. HTTP status, events and metrics.
	httpSrv := http.NewServer(cfg.HttpOptions, d.Service, d.Store, d.Dispatcher, d.Client.IsConnected)
	servers = append(servers, httpSrv)

	return &Manager{
		servers: servers,
	}, nil
}

// Start launches all servers in parallel and waits for termination.
func (m *Manager) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range m.servers {
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	log.Info("All servers starting...")
	return g.Wait()
}
