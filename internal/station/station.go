// Package station assembles the ground-station controller: the
// known-vehicle store, the event service and its ingress servers.
package station

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/groundpeer/internal/station/core"
	"github.com/autopeer-io/groundpeer/internal/station/dispatch"
	"github.com/autopeer-io/groundpeer/internal/station/model"
	"github.com/autopeer-io/groundpeer/internal/station/scratch"
	"github.com/autopeer-io/groundpeer/internal/station/server"
	"github.com/autopeer-io/groundpeer/internal/station/service"
	"github.com/autopeer-io/groundpeer/internal/station/store"
	"github.com/autopeer-io/groundpeer/pkg/log"
)

// Station is the main application struct of the controller.
type Station struct {
	store         *store.Store
	mirror        *scratch.Mirror
	service       *service.Service
	dispatcher    *dispatch.Dispatcher
	serverManager *server.Manager
}

// Service exposes the event service.
func (s *Station) Service() *service.Service { return s.service }

// Run loads the store, then runs the dispatcher and the servers until ctx is
// done or one of them fails.
func (s *Station) Run(ctx context.Context) error {
	log.Info("Starting ground station controller...")
	defer s.close()

	if err := s.store.Warm(ctx); err != nil {
		return fmt.Errorf("failed to load vehicle store: %w", err)
	}
	log.Info("Vehicle store loaded", "vehicles", len(s.store.IDs()))

	if s.mirror != nil {
		if err := s.mirror.EnsureBucket(ctx); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.dispatcher.Run(ctx) })
	g.Go(func() error { return s.serverManager.Start(ctx) })
	return g.Wait()
}

func (s *Station) close() {
	if s.mirror != nil {
		s.mirror.Wait()
	}
	if err := s.store.Close(); err != nil {
		log.Error(err, "Failed to close vehicle store")
	}
}

// vehicleLog records vehicle set changes.
func vehicleLog(logger logr.Logger) core.Listener {
	return core.ListenerFuncs{
		Added: func(_ context.Context, id model.VehicleID) {
			logger.Info("Vehicle added", "vehicleId", id)
		},
		Deleted: func(_ context.Context, id model.VehicleID) {
			logger.Info("Vehicle deleted", "vehicleId", id)
		},
		MainChanged: func(_ context.Context, id model.VehicleID) {
			logger.Info("Main vehicle changed", "vehicleId", id)
		},
	}
}
