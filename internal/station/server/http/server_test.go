package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"

	"github.com/autopeer-io/groundpeer/internal/station/dispatch"
	"github.com/autopeer-io/groundpeer/internal/station/model"
	"github.com/autopeer-io/groundpeer/internal/station/pairing"
	"github.com/autopeer-io/groundpeer/internal/station/service"
	"github.com/autopeer-io/groundpeer/internal/station/store"
	"github.com/autopeer-io/groundpeer/pkg/options"
)

type staticStatus struct{ st *service.Status }

func (s staticStatus) Status() *service.Status { return s.st }

func newTestServer(t *testing.T, ready bool) (*Server, *dispatch.Dispatcher) {
	t.Helper()
	st := store.NewWithBackend(store.NewMemory())
	if err := st.Put(context.Background(), &model.Snapshot{VehicleID: 42, Name: "falcon"}); err != nil {
		t.Fatal(err)
	}
	d := dispatch.New(1, logr.Discard())
	d.Handle("link_lost", func(context.Context, dispatch.Event) error { return nil })

	status := staticStatus{&service.Status{State: pairing.StatePaired, CurrentVehicle: 42}}
	s := NewServer(options.NewHttpOptions(), status, st, d, func() bool { return ready })
	return s, d
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestProbes(t *testing.T) {
	up, _ := newTestServer(t, true)
	down, _ := newTestServer(t, false)

	tests := []struct {
		name string
		srv  *Server
		path string
		want int
	}{
		{"healthz", down, "/healthz", http.StatusOK},
		{"readyz connected", up, "/readyz", http.StatusOK},
		{"readyz disconnected", down, "/readyz", http.StatusServiceUnavailable},
		{"metrics", up, "/metrics", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, tt.srv.Handler(), http.MethodGet, tt.path, ""); rec.Code != tt.want {
				t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
			}
		})
	}
}

func TestStatusAndVehicles(t *testing.T) {
	s, _ := newTestServer(t, true)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/status", "")
	var st service.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.State != pairing.StatePaired || st.CurrentVehicle != 42 {
		t.Errorf("status = %+v", st)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/vehicles", "")
	var list []model.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, v := range list {
		names = append(names, v.Name)
	}
	if diff := cmp.Diff([]string{"falcon"}, names); diff != "" {
		t.Errorf("vehicles mismatch (-want +got):\n%s", diff)
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/vehicles/42", ""); rec.Code != http.StatusOK {
		t.Errorf("GET vehicle 42 = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/vehicles/7", ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET vehicle 7 = %d, want 404", rec.Code)
	}
}

func TestPostEvent(t *testing.T) {
	s, _ := newTestServer(t, true)
	h := s.Handler()

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"accepted", "/api/v1/events/link_lost?vehicle=42", http.StatusAccepted},
		// The dispatcher is not running, so its single slot is now taken.
		{"queue full", "/api/v1/events/link_lost", http.StatusServiceUnavailable},
		{"unknown type", "/api/v1/events/reboot", http.StatusNotFound},
		{"bad vehicle", "/api/v1/events/link_lost?vehicle=x", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, http.MethodPost, tt.target, `{}`); rec.Code != tt.want {
				t.Errorf("POST %s = %d, want %d: %s", tt.target, rec.Code, tt.want, rec.Body)
			}
		})
	}
}
