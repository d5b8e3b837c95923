package app

import (
	cliflag "k8s.io/component-base/cli/flag"
)

// NamedFlagSetOptions is implemented by the option struct of each binary.
type NamedFlagSetOptions interface {
	// Flags returns the flag sets, grouped by section for help output.
	Flags() cliflag.NamedFlagSets

	// Complete fills in defaults derived from other fields.
	Complete() error

	// Validate checks the completed options.
	Validate() error
}
