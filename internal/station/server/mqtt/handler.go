package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/autopeer-io/groundpeer/internal/station/dispatch"
	"github.com/autopeer-io/groundpeer/internal/station/model"
	"github.com/autopeer-io/groundpeer/internal/station/service"
	"github.com/autopeer-io/groundpeer/pkg/mqtt/topic"
)

type HandlerFunc func(ctx context.Context, topic string, payload []byte) error

const (
	eventSettings = service.EventSettingsReceived
	eventUpload   = service.EventUploadSegment
)

var errMissingType = errors.New("event without type")

// envelope is the common header of messages on the events topic.
type envelope struct {
	Type dispatch.EventType `json:"type"`
}

// source parses the vehicle id carried by the last topic level.
func source(t string) (model.VehicleID, error) {
	id, err := strconv.ParseUint(topic.ID(t), 10, 32)
	if err != nil {
		return model.NoVehicle, fmt.Errorf("topic %q does not end in a vehicle id: %w", t, err)
	}
	return model.VehicleID(id), nil
}

// forward submits the payload unchanged as an event of type et.
func (s *Server) forward(et dispatch.EventType) HandlerFunc {
	return func(_ context.Context, t string, payload []byte) error {
		id, err := source(t)
		if err != nil {
			return err
		}
		return s.sink.Submit(dispatch.Event{Type: et, Source: id, Payload: payload})
	}
}

func (s *Server) handleEvent(_ context.Context, t string, payload []byte) error {
	id, err := source(t)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("decode event envelope: %w", err)
	}
	if env.Type == "" {
		return errMissingType
	}
	return s.sink.Submit(dispatch.Event{Type: env.Type, Source: id, Payload: payload})
}
