package service

import (
	"fmt"

	"github.com/autopeer-io/groundpeer/internal/station/codec"
	"github.com/autopeer-io/groundpeer/internal/station/model"
)

// decodeFor decodes the settings of a newly added vehicle. Unlike settings
// received over the link, they must describe id itself.
func decodeFor(id model.VehicleID, payload []byte) (*model.Snapshot, error) {
	snap, err := codec.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("vehicle %s settings: %w", id, err)
	}
	if snap.VehicleID != id {
		return nil, fmt.Errorf("vehicle %s settings describe vehicle %s", id, snap.VehicleID)
	}
	if snap.NeedsLegacyNormalization() {
		snap.StripLegacyRelayFlags()
	}
	return snap, nil
}
