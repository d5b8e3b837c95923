// Package http serves health probes, metrics and the station status and
// event API.
package http

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/autopeer-io/groundpeer/internal/pkg/metrics"
	"github.com/autopeer-io/groundpeer/internal/station/dispatch"
	"github.com/autopeer-io/groundpeer/internal/station/model"
	"github.com/autopeer-io/groundpeer/internal/station/service"
	"github.com/autopeer-io/groundpeer/pkg/log"
	"github.com/autopeer-io/groundpeer/pkg/options"
)

// StatusSource publishes the station status.
type StatusSource interface {
	Status() *service.Status
}

// Vehicles reads the known-vehicle store.
type Vehicles interface {
	Get(id model.VehicleID) (*model.Snapshot, bool)
	List() []*model.Snapshot
}

// Sink accepts events for the dispatcher.
type Sink interface {
	Submit(ev dispatch.Event) error
}

// maxEventBody bounds POSTed event payloads; settings payloads are small.
const maxEventBody = 1 << 20

type Server struct {
	server  *http.Server
	options *options.HttpOptions

	status   StatusSource
	vehicles Vehicles
	sink     Sink
	ready    func() bool
}

func NewServer(opts *options.HttpOptions, status StatusSource, vehicles Vehicles, sink Sink, ready func() bool) *Server {
	s := &Server{
		options:  opts,
		status:   status,
		vehicles: vehicles,
		sink:     sink,
		ready:    ready,
	}
	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  opts.Timeout,
		WriteTimeout: opts.Timeout,
	}
	return s
}

// Handler returns the router, for serving or testing.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	// Basic Liveness Probe
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	// Readiness follows the broker connection.
	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if s.ready != nil && !s.ready() {
			http.Error(w, "mqtt not connected", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/vehicles", s.handleListVehicles).Methods(http.MethodGet)
	api.HandleFunc("/vehicles/{id:[0-9]+}", s.handleGetVehicle).Methods(http.MethodGet)
	api.HandleFunc("/events/{type}", s.handlePostEvent).Methods(http.MethodPost)

	return r
}

func (s *Server) Start(ctx context.Context) error {
	log.Info("Starting HTTP Server", "addr", s.server.Addr)

	lis, err := net.Listen(s.options.Network, s.options.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}
