// Package diff compares a received snapshot with the stored one and merges
// them under the station's ownership rules.
package diff

import (
	"slices"

	"github.com/autopeer-io/groundpeer/internal/station/model"
)

// Changes classifies the differences between two snapshots of one vehicle.
type Changes struct {
	// CameraChanged: the active camera index, or the active camera's
	// detected or forced type, differs.
	CameraChanged bool `json:"cameraChanged"`
	// RadioCritical: the link count, the interface count or a link frequency
	// differs. Such a change cannot be applied without re-pairing.
	RadioCritical bool `json:"radioCritical"`
	// RadioAny: any radio link or interface field differs. Diagnostic only.
	RadioAny bool `json:"radioAny"`
	// AudioEnabledChanged: the audio enabled flag toggled.
	AudioEnabledChanged bool `json:"audioEnabledChanged"`
}

// Compare computes the changes from prev to next.
func Compare(prev, next *model.Snapshot) Changes {
	return Changes{
		CameraChanged:       cameraChanged(prev.Camera, next.Camera),
		RadioCritical:       radioCritical(prev, next),
		RadioAny:            !slices.Equal(prev.Links, next.Links) || !slices.Equal(prev.Interfaces, next.Interfaces),
		AudioEnabledChanged: prev.Audio.Enabled != next.Audio.Enabled,
	}
}

func cameraChanged(prev, next model.CameraSettings) bool {
	if prev.Active != next.Active {
		return true
	}
	p, okPrev := prev.Current()
	n, okNext := next.Current()
	if !okPrev || !okNext {
		return false
	}
	return p.Type != n.Type || p.ForcedType != n.ForcedType
}

func radioCritical(prev, next *model.Snapshot) bool {
	if len(prev.Links) != len(next.Links) || len(prev.Interfaces) != len(next.Interfaces) {
		return true
	}
	for i := range prev.Links {
		if prev.Links[i].FrequencyKHz != next.Links[i].FrequencyKHz {
			return true
		}
	}
	return false
}

// Merge returns the snapshot to store when next replaces prev. Everything
// comes from next except the locally owned settings: the spectator and
// developer-mode flags, and, while spectating, the OSD block.
func Merge(prev, next *model.Snapshot) *model.Snapshot {
	merged := next.Clone()
	merged.Spectator = prev.Spectator
	merged.DeveloperMode = prev.DeveloperMode
	if prev.Spectator {
		merged.OSD = model.OSD{
			Layout:      prev.OSD.Layout,
			Preferences: slices.Clone(prev.OSD.Preferences),
		}
	}
	return merged
}
