// Package codec converts snapshots to and from their wire representation,
// a protobuf-compatible message written with protowire.
//
// Field layout (format 1):
//
//	1 format     varint
//	2 vehicle_id varint
//	3 name       bytes
//	4 sw_version varint (packed version)
//	5 developer  varint
//	6 spectator  varint
//	7 link       message, repeated {1 freq_khz, 2 caps, 3 frame_flags}
//	8 interface  message, repeated {1 caps, 2 type_and_driver}
//	9 camera     message {1 active sint, 2 camera repeated {1 type sint, 2 forced sint, 3 name}}
//	10 audio     message {1 enabled, 2 has_device, 3 device, 4 volume}
//	11 osd       message {1 layout, 2 preferences packed}
//	12 relay     message {1 link sint, 2 relayed_id, 3 mode}
//	13 video     message {1 selected, 2 profile repeated {1 width, 2 height}}
//	14 stats     message {1 on_time, 2 flight_time, 3 total_flights}
//	15 alarms    varint
//
// Unknown fields are skipped so newer vehicles can add fields.
package codec

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/autopeer-io/groundpeer/internal/station/model"
)

// Format is the only wire format version understood.
const Format = 1

// Bounds enforced on decode and encode.
const (
	MaxLinks         = 4
	MaxInterfaces    = 8
	MaxCameras       = 4
	MaxOSDLayouts    = 8
	MaxVideoProfiles = 16
)

// ErrCorrupt is wrapped by every decode failure.
var ErrCorrupt = errors.New("corrupt snapshot")

const (
	fFormat protowire.Number = iota + 1
	fVehicleID
	fName
	fVersion
	fDeveloper
	fSpectator
	fLink
	fInterface
	fCamera
	fAudio
	fOSD
	fRelay
	fVideo
	fStats
	fAlarms
)

var wireTypes = map[protowire.Number]protowire.Type{
	fFormat:    protowire.VarintType,
	fVehicleID: protowire.VarintType,
	fName:      protowire.BytesType,
	fVersion:   protowire.VarintType,
	fDeveloper: protowire.VarintType,
	fSpectator: protowire.VarintType,
	fLink:      protowire.BytesType,
	fInterface: protowire.BytesType,
	fCamera:    protowire.BytesType,
	fAudio:     protowire.BytesType,
	fOSD:       protowire.BytesType,
	fRelay:     protowire.BytesType,
	fVideo:     protowire.BytesType,
	fStats:     protowire.BytesType,
	fAlarms:    protowire.VarintType,
}

// Encode serializes s. It fails only when s violates the bounds above or
// has the reserved vehicle id.
func Encode(s *model.Snapshot) ([]byte, error) {
	if err := validate(s); err != nil {
		return nil, err
	}

	var b []byte
	b = appendUint(b, fFormat, Format)
	b = appendUint(b, fVehicleID, uint64(s.VehicleID))
	if s.Name != "" {
		b = protowire.AppendTag(b, fName, protowire.BytesType)
		b = protowire.AppendString(b, s.Name)
	}
	b = appendUint(b, fVersion, uint64(s.Version))
	b = appendBool(b, fDeveloper, s.DeveloperMode)
	b = appendBool(b, fSpectator, s.Spectator)

	for _, l := range s.Links {
		var m []byte
		m = appendUint(m, 1, uint64(l.FrequencyKHz))
		m = appendUint(m, 2, uint64(l.CapabilityFlags))
		m = appendUint(m, 3, uint64(l.FrameFlags))
		b = appendMessage(b, fLink, m)
	}
	for _, i := range s.Interfaces {
		var m []byte
		m = appendUint(m, 1, uint64(i.CapabilityFlags))
		m = appendUint(m, 2, uint64(i.TypeAndDriver))
		b = appendMessage(b, fInterface, m)
	}

	var cam []byte
	cam = appendSint(cam, 1, int64(s.Camera.Active))
	for _, c := range s.Camera.Cameras {
		var m []byte
		m = appendSint(m, 1, int64(c.Type))
		m = appendSint(m, 2, int64(c.ForcedType))
		if c.Name != "" {
			m = protowire.AppendTag(m, 3, protowire.BytesType)
			m = protowire.AppendString(m, c.Name)
		}
		cam = appendMessage(cam, 2, m)
	}
	b = appendMessage(b, fCamera, cam)

	var audio []byte
	audio = appendBool(audio, 1, s.Audio.Enabled)
	audio = appendBool(audio, 2, s.Audio.HasDevice)
	audio = appendUint(audio, 3, uint64(s.Audio.DeviceIndex))
	audio = appendUint(audio, 4, uint64(s.Audio.Volume))
	b = appendMessage(b, fAudio, audio)

	var osd []byte
	osd = appendUint(osd, 1, uint64(s.OSD.Layout))
	if len(s.OSD.Preferences) > 0 {
		var packed []byte
		for _, p := range s.OSD.Preferences {
			packed = protowire.AppendVarint(packed, uint64(p))
		}
		osd = appendMessage(osd, 2, packed)
	}
	b = appendMessage(b, fOSD, osd)

	var relay []byte
	relay = appendSint(relay, 1, int64(s.Relay.EnabledOnLink))
	relay = appendUint(relay, 2, uint64(s.Relay.RelayedVehicleID))
	relay = appendUint(relay, 3, uint64(s.Relay.Mode))
	b = appendMessage(b, fRelay, relay)

	var video []byte
	video = appendUint(video, 1, uint64(s.Video.Selected))
	for _, p := range s.Video.Profiles {
		var m []byte
		m = appendUint(m, 1, uint64(p.Width))
		m = appendUint(m, 2, uint64(p.Height))
		video = appendMessage(video, 2, m)
	}
	b = appendMessage(b, fVideo, video)

	var stats []byte
	stats = appendUint(stats, 1, uint64(s.Stats.OnTimeSec))
	stats = appendUint(stats, 2, uint64(s.Stats.FlightTimeSec))
	stats = appendUint(stats, 3, uint64(s.Stats.TotalFlights))
	b = appendMessage(b, fStats, stats)

	b = appendUint(b, fAlarms, uint64(s.Alarms))
	return b, nil
}

// Decode parses b. Any failure wraps ErrCorrupt; a partially parsed
// snapshot is never returned.
func Decode(b []byte) (*model.Snapshot, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrCorrupt)
	}

	s := &model.Snapshot{
		Camera: model.CameraSettings{Active: -1},
		Relay:  model.Relay{EnabledOnLink: model.RelayDisabled},
	}
	format := uint64(0)

	err := walk(b, func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error {
		if want, ok := wireTypes[num]; ok && want != typ {
			return fmt.Errorf("field %d: wire type %d, want %d", num, typ, want)
		}
		switch num {
		case fFormat:
			format = v
		case fVehicleID:
			id, err := toUint32(v)
			if err != nil {
				return fmt.Errorf("vehicle id: %w", err)
			}
			s.VehicleID = model.VehicleID(id)
		case fName:
			s.Name = string(raw)
		case fVersion:
			ver, err := toUint32(v)
			if err != nil {
				return fmt.Errorf("version: %w", err)
			}
			s.Version = model.PackedVersion(ver)
		case fDeveloper:
			s.DeveloperMode = v != 0
		case fSpectator:
			s.Spectator = v != 0
		case fLink:
			var l model.RadioLink
			if err := walkFields(raw, map[protowire.Number]*uint32{
				1: &l.FrequencyKHz, 2: &l.CapabilityFlags, 3: &l.FrameFlags,
			}); err != nil {
				return fmt.Errorf("link %d: %w", len(s.Links), err)
			}
			s.Links = append(s.Links, l)
		case fInterface:
			var i model.RadioInterface
			if err := walkFields(raw, map[protowire.Number]*uint32{
				1: &i.CapabilityFlags, 2: &i.TypeAndDriver,
			}); err != nil {
				return fmt.Errorf("interface %d: %w", len(s.Interfaces), err)
			}
			s.Interfaces = append(s.Interfaces, i)
		case fCamera:
			return decodeCamera(raw, &s.Camera)
		case fAudio:
			var enabled, hasDevice uint32
			if err := walkFields(raw, map[protowire.Number]*uint32{
				1: &enabled, 2: &hasDevice, 3: &s.Audio.DeviceIndex, 4: &s.Audio.Volume,
			}); err != nil {
				return fmt.Errorf("audio: %w", err)
			}
			s.Audio.Enabled, s.Audio.HasDevice = enabled != 0, hasDevice != 0
		case fOSD:
			return decodeOSD(raw, &s.OSD)
		case fRelay:
			return decodeRelay(raw, &s.Relay)
		case fVideo:
			return decodeVideo(raw, &s.Video)
		case fStats:
			if err := walkFields(raw, map[protowire.Number]*uint32{
				1: &s.Stats.OnTimeSec, 2: &s.Stats.FlightTimeSec, 3: &s.Stats.TotalFlights,
			}); err != nil {
				return fmt.Errorf("stats: %w", err)
			}
		case fAlarms:
			alarms, err := toUint32(v)
			if err != nil {
				return fmt.Errorf("alarms: %w", err)
			}
			s.Alarms = alarms
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	if format != Format {
		return nil, fmt.Errorf("%w: unsupported format %d", ErrCorrupt, format)
	}
	if err := validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeCamera(raw []byte, c *model.CameraSettings) error {
	return walk(raw, func(num protowire.Number, _ protowire.Type, v uint64, sub []byte) (err error) {
		switch num {
		case 1:
			c.Active, err = toInt32(v)
			if err != nil {
				return fmt.Errorf("active camera: %w", err)
			}
		case 2:
			var cam model.Camera
			err = walk(sub, func(num protowire.Number, _ protowire.Type, v uint64, name []byte) error {
				switch num {
				case 1, 2:
					t, err := toInt32(v)
					if err != nil {
						return err
					}
					if num == 1 {
						cam.Type = model.CameraType(t)
					} else {
						cam.ForcedType = model.CameraType(t)
					}
				case 3:
					cam.Name = string(name)
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("camera %d: %w", len(c.Cameras), err)
			}
			c.Cameras = append(c.Cameras, cam)
		}
		return nil
	})
}

func decodeOSD(raw []byte, o *model.OSD) error {
	return walk(raw, func(num protowire.Number, _ protowire.Type, v uint64, packed []byte) (err error) {
		switch num {
		case 1:
			if o.Layout, err = toUint32(v); err != nil {
				return fmt.Errorf("osd layout: %w", err)
			}
		case 2:
			for len(packed) > 0 {
				p, n := protowire.ConsumeVarint(packed)
				if n < 0 {
					return fmt.Errorf("osd preferences: %w", protowire.ParseError(n))
				}
				pref, err := toUint32(p)
				if err != nil {
					return fmt.Errorf("osd preferences: %w", err)
				}
				o.Preferences = append(o.Preferences, pref)
				packed = packed[n:]
			}
		}
		return nil
	})
}

func decodeRelay(raw []byte, r *model.Relay) error {
	return walk(raw, func(num protowire.Number, _ protowire.Type, v uint64, _ []byte) (err error) {
		switch num {
		case 1:
			r.EnabledOnLink, err = toInt32(v)
		case 2:
			var id uint32
			id, err = toUint32(v)
			r.RelayedVehicleID = model.VehicleID(id)
		case 3:
			r.Mode, err = toUint32(v)
		}
		if err != nil {
			return fmt.Errorf("relay field %d: %w", num, err)
		}
		return nil
	})
}

func decodeVideo(raw []byte, video *model.Video) error {
	return walk(raw, func(num protowire.Number, _ protowire.Type, v uint64, sub []byte) (err error) {
		switch num {
		case 1:
			if video.Selected, err = toUint32(v); err != nil {
				return fmt.Errorf("selected video profile: %w", err)
			}
		case 2:
			var p model.VideoProfile
			if err := walkFields(sub, map[protowire.Number]*uint32{1: &p.Width, 2: &p.Height}); err != nil {
				return fmt.Errorf("video profile %d: %w", len(video.Profiles), err)
			}
			video.Profiles = append(video.Profiles, p)
		}
		return nil
	})
}

func validate(s *model.Snapshot) error {
	switch {
	case s == nil:
		return fmt.Errorf("%w: nil snapshot", ErrCorrupt)
	case !s.VehicleID.Valid():
		return fmt.Errorf("%w: reserved vehicle id 0", ErrCorrupt)
	case len(s.Links) > MaxLinks:
		return fmt.Errorf("%w: %d radio links, max %d", ErrCorrupt, len(s.Links), MaxLinks)
	case len(s.Interfaces) > MaxInterfaces:
		return fmt.Errorf("%w: %d radio interfaces, max %d", ErrCorrupt, len(s.Interfaces), MaxInterfaces)
	case len(s.Camera.Cameras) > MaxCameras:
		return fmt.Errorf("%w: %d cameras, max %d", ErrCorrupt, len(s.Camera.Cameras), MaxCameras)
	case s.Camera.Active < -1 || int(s.Camera.Active) >= max(len(s.Camera.Cameras), 1):
		return fmt.Errorf("%w: active camera %d of %d", ErrCorrupt, s.Camera.Active, len(s.Camera.Cameras))
	case len(s.OSD.Preferences) > MaxOSDLayouts || s.OSD.Layout >= MaxOSDLayouts:
		return fmt.Errorf("%w: osd layout %d with %d preference sets", ErrCorrupt, s.OSD.Layout, len(s.OSD.Preferences))
	case len(s.Video.Profiles) > MaxVideoProfiles:
		return fmt.Errorf("%w: %d video profiles, max %d", ErrCorrupt, len(s.Video.Profiles), MaxVideoProfiles)
	case len(s.Video.Profiles) > 0 && int(s.Video.Selected) >= len(s.Video.Profiles):
		return fmt.Errorf("%w: selected video profile %d of %d", ErrCorrupt, s.Video.Selected, len(s.Video.Profiles))
	case s.Relay.EnabledOnLink >= int32(max(len(s.Links), 1)):
		return fmt.Errorf("%w: relay on link %d of %d", ErrCorrupt, s.Relay.EnabledOnLink, len(s.Links))
	}
	return nil
}

// walk visits every field of a message. Varint fields pass their value in v,
// length-delimited fields their payload in raw. Fixed-width and group fields
// are skipped.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			if err := fn(num, typ, v, nil); err != nil {
				return err
			}
		case protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			if err := fn(num, typ, 0, raw); err != nil {
				return err
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

// walkFields decodes a flat message of uint32 varint fields into dst.
func walkFields(b []byte, dst map[protowire.Number]*uint32) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v uint64, _ []byte) error {
		if p, ok := dst[num]; ok && typ == protowire.VarintType {
			n, err := toUint32(v)
			if err != nil {
				return fmt.Errorf("field %d: %w", num, err)
			}
			*p = n
		}
		return nil
	})
}

// toUint32 narrows a varint, failing instead of truncating.
func toUint32(v uint64) (uint32, error) {
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("value %d overflows uint32", v)
	}
	return uint32(v), nil
}

// toInt32 decodes a zigzag varint, failing instead of truncating.
func toInt32(v uint64) (int32, error) {
	n := protowire.DecodeZigZag(v)
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("value %d overflows int32", n)
	}
	return int32(n), nil
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendSint(b []byte, num protowire.Number, v int64) []byte {
	return appendUint(b, num, protowire.EncodeZigZag(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	return appendUint(b, num, protowire.EncodeBool(v))
}

func appendMessage(b []byte, num protowire.Number, m []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}
