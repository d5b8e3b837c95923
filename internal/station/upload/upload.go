// Package upload assembles a settings payload that arrives in segments.
package upload

import (
	"errors"
	"fmt"
	"slices"
)

// MaxSegments bounds the number of segments of one transfer.
const MaxSegments = 128

var (
	ErrNoSession       = errors.New("no upload in progress")
	ErrFileMismatch    = errors.New("segment belongs to another file")
	ErrSegmentRange    = errors.New("segment index out of range")
	ErrTooManySegments = errors.New("too many segments")
)

// Segment is one piece of a transfer as received from the link.
type Segment struct {
	FileID        uint32 `json:"fileId"`
	Index         int    `json:"segment"`
	TotalSegments int    `json:"totalSegments"`
	FileName      string `json:"fileName,omitempty"`
	Data          []byte `json:"data"`
}

// Session tracks one in-flight transfer. The zero value is idle.
type Session struct {
	FileID        uint32
	TotalSegments int
	FileName      string

	segments [][]byte
	received []bool
	count    int
}

// Active reports whether a transfer is in progress.
func (s *Session) Active() bool { return s.FileID != 0 }

// Reset drops any in-flight transfer.
func (s *Session) Reset() {
	*s = Session{}
}

// Begin starts a new transfer, discarding any previous one.
func (s *Session) Begin(fileID uint32, total int, name string) error {
	if fileID == 0 {
		return fmt.Errorf("file id 0: %w", ErrNoSession)
	}
	if total <= 0 || total > MaxSegments {
		return fmt.Errorf("%d segments: %w", total, ErrTooManySegments)
	}
	*s = Session{
		FileID:        fileID,
		TotalSegments: total,
		FileName:      name,
		segments:      make([][]byte, total),
		received:      make([]bool, total),
	}
	return nil
}

// Add stores seg. A segment of a new file id restarts the session. It
// returns true once every segment has been received.
func (s *Session) Add(seg Segment) (bool, error) {
	if !s.Active() || seg.FileID != s.FileID {
		if err := s.Begin(seg.FileID, seg.TotalSegments, seg.FileName); err != nil {
			return false, err
		}
	}
	if seg.TotalSegments != s.TotalSegments {
		return false, fmt.Errorf("file %d announces %d segments, session has %d: %w",
			seg.FileID, seg.TotalSegments, s.TotalSegments, ErrFileMismatch)
	}
	if seg.Index < 0 || seg.Index >= s.TotalSegments {
		return false, fmt.Errorf("segment %d of %d: %w", seg.Index, s.TotalSegments, ErrSegmentRange)
	}

	if !s.received[seg.Index] {
		s.received[seg.Index] = true
		s.count++
	}
	s.segments[seg.Index] = slices.Clone(seg.Data)
	return s.Complete(), nil
}

// Complete reports whether every segment has arrived.
func (s *Session) Complete() bool {
	return s.Active() && s.count == s.TotalSegments
}

// Missing returns the indexes not received yet.
func (s *Session) Missing() []int {
	var out []int
	for i, ok := range s.received {
		if !ok {
			out = append(out, i)
		}
	}
	return out
}

// Bytes concatenates the segments of a complete transfer.
func (s *Session) Bytes() ([]byte, error) {
	if !s.Complete() {
		return nil, fmt.Errorf("file %d missing segments %v: %w", s.FileID, s.Missing(), ErrNoSession)
	}
	return slices.Concat(s.segments...), nil
}
