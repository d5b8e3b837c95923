package model

import "fmt"

// PackedVersion is a software version packed as
// bits 0-7 minor, bits 8-15 major, bits 16-31 build.
type PackedVersion uint32

// NewVersion packs major, minor and build.
func NewVersion(major, minor uint8, build uint16) PackedVersion {
	return PackedVersion(uint32(build)<<16 | uint32(major)<<8 | uint32(minor))
}

func (v PackedVersion) Major() uint8  { return uint8(v >> 8) }
func (v PackedVersion) Minor() uint8  { return uint8(v) }
func (v PackedVersion) Build() uint16 { return uint16(v >> 16) }

// String renders "major.minor (bBuild)". Minor versions below ten are
// printed with a leading zero, e.g. "10.04 (b270)".
func (v PackedVersion) String() string {
	return fmt.Sprintf("%d.%02d (b%d)", v.Major(), v.Minor(), v.Build())
}

// OlderThan reports whether v predates other. Build numbers increase
// monotonically across releases, so they decide first; major and minor only
// break ties between equal builds.
func (v PackedVersion) OlderThan(other PackedVersion) bool {
	if v.Build() != other.Build() {
		return v.Build() < other.Build()
	}
	if v.Major() != other.Major() {
		return v.Major() < other.Major()
	}
	return v.Minor() < other.Minor()
}
