package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/autopeer-io/groundpeer/internal/station/dispatch"
	"github.com/autopeer-io/groundpeer/internal/station/model"
	"github.com/autopeer-io/groundpeer/pkg/log"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error(err, "Failed to write response")
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func parseVehicleID(s string) (model.VehicleID, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return model.NoVehicle, err
	}
	return model.VehicleID(id), nil
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Status())
}

func (s *Server) handleListVehicles(w http.ResponseWriter, _ *http.Request) {
	list := s.vehicles.List()
	if list == nil {
		list = []*model.Snapshot{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := parseVehicleID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	snap, ok := s.vehicles.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("vehicle not found"))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handlePostEvent queues the request body as an event. The optional
// vehicle query parameter sets the event source.
func (s *Server) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	ev := dispatch.Event{Type: dispatch.EventType(mux.Vars(r)["type"])}
	if v := r.URL.Query().Get("vehicle"); v != "" {
		id, err := parseVehicleID(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		ev.Source = id
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	ev.Payload = body

	switch err := s.sink.Submit(ev); {
	case errors.Is(err, dispatch.ErrUnknownEvent):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, dispatch.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		w.WriteHeader(http.StatusAccepted)
	}
}
