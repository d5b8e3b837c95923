package mqtt

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/autopeer-io/groundpeer/internal/station/dispatch"
	pkgmqtt "github.com/autopeer-io/groundpeer/pkg/mqtt"
	"github.com/autopeer-io/groundpeer/pkg/mqtt/topic"
)

type fakeClient struct {
	pkgmqtt.Client

	started, disconnected bool
	handlers              map[string]pkgmqtt.MessageHandler
}

func (c *fakeClient) Start(context.Context) error           { c.started = true; return nil }
func (c *fakeClient) Disconnect(context.Context)            { c.disconnected = true }
func (c *fakeClient) AwaitConnection(context.Context) error { return nil }

func (c *fakeClient) Subscribe(_ context.Context, t string, _ int, h pkgmqtt.MessageHandler) error {
	if c.handlers == nil {
		c.handlers = map[string]pkgmqtt.MessageHandler{}
	}
	c.handlers[t] = h
	return nil
}

type recordingSink struct {
	events []dispatch.Event
	err    error
}

func (r *recordingSink) Submit(ev dispatch.Event) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

type subscriberFunc func(ctx context.Context) error

func (f subscriberFunc) Subscribe(ctx context.Context) error { return f(ctx) }

func TestStartSubscribes(t *testing.T) {
	c := &fakeClient{}
	sink := &recordingSink{}
	var modal bool
	s := NewServer(c, topic.NewBuilder("gpeer/v1"), 1, sink, subscriberFunc(func(context.Context) error {
		modal = true
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if !c.started || !c.disconnected {
		t.Errorf("started=%v disconnected=%v, want both", c.started, c.disconnected)
	}
	if !modal {
		t.Error("extra subscriber not registered")
	}
	for _, filter := range []string{"gpeer/v1/settings/+", "gpeer/v1/upload/+", "gpeer/v1/events/+"} {
		if _, ok := c.handlers[filter]; !ok {
			t.Errorf("missing subscription %s", filter)
		}
	}
}

func TestIngressEvents(t *testing.T) {
	c := &fakeClient{}
	sink := &recordingSink{}
	s := NewServer(c, topic.NewBuilder("gpeer/v1"), 1, sink)
	ctx := context.Background()
	if err := s.subscribe(ctx); err != nil {
		t.Fatal(err)
	}

	c.handlers["gpeer/v1/settings/+"](ctx, "gpeer/v1/settings/42", []byte(`{"payload":"AQI="}`))
	c.handlers["gpeer/v1/events/+"](ctx, "gpeer/v1/events/42", []byte(`{"type":"telemetry","fc":true}`))
	c.handlers["gpeer/v1/upload/+"](ctx, "gpeer/v1/upload/7", []byte(`{"fileId":1}`))
	// Dropped: no type, bad id, bad json.
	c.handlers["gpeer/v1/events/+"](ctx, "gpeer/v1/events/42", []byte(`{"fc":true}`))
	c.handlers["gpeer/v1/events/+"](ctx, "gpeer/v1/events/abc", []byte(`{"type":"telemetry"}`))
	c.handlers["gpeer/v1/events/+"](ctx, "gpeer/v1/events/42", []byte(`{`))

	want := []dispatch.Event{
		{Type: "settings_received", Source: 42, Payload: []byte(`{"payload":"AQI="}`)},
		{Type: "telemetry", Source: 42, Payload: []byte(`{"type":"telemetry","fc":true}`)},
		{Type: "upload_segment", Source: 7, Payload: []byte(`{"fileId":1}`)},
	}
	if diff := cmp.Diff(want, sink.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleEventErrors(t *testing.T) {
	full := errors.New("full")
	s := NewServer(&fakeClient{}, topic.NewBuilder("gpeer/v1"), 1, &recordingSink{err: full})

	if err := s.handleEvent(context.Background(), "gpeer/v1/events/1", []byte(`{"type":"link_lost"}`)); !errors.Is(err, full) {
		t.Errorf("sink error not returned: %v", err)
	}
	if err := s.handleEvent(context.Background(), "gpeer/v1/events/1", []byte(`{}`)); !errors.Is(err, errMissingType) {
		t.Errorf("got %v, want errMissingType", err)
	}
}
