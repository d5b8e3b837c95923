// Package topic builds the MQTT topic strings exchanged between the
// controller and its collaborators.
package topic

import (
	"strings"
)

// Standard MQTT wildcard definitions.
const (
	// Wildcard matches exactly one topic level.
	Wildcard = "+"

	// MultiWildcard matches the current level and all that follow. It must
	// be the last level of a filter.
	MultiWildcard = "#"
)

// Builder constructs topics of the form {root}/{segment}/{id}.
type Builder struct {
	// root is the base namespace for all topics (e.g., "gpeer/v1").
	root string
}

// NewBuilder returns a Builder rooted at root. Trailing slashes are dropped.
func NewBuilder(root string) *Builder {
	return &Builder{root: strings.TrimRight(root, "/")}
}

// Root returns the namespace the builder was created with.
func (b *Builder) Root() string { return b.root }

// Build returns {root}/{segment}/{id}.
func (b *Builder) Build(segment, id string) string {
	return b.root + "/" + segment + "/" + id
}

// Wildcard returns {root}/{segment}/+, matching every id.
func (b *Builder) Wildcard(segment string) string {
	return b.Build(segment, Wildcard)
}

// Shared wraps filter into a shared subscription for group.
func Shared(group, filter string) string {
	return "$share/" + group + "/" + filter
}

// ID returns the last level of topic, which carries the identifier.
func ID(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
