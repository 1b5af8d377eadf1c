package state

// Version information for the state module.
const (
	// Version is the current version of the state module. Major versions
	// change with the snapshot envelope.
	Version = "2.0.0"

	// MinCompatibleVersion is the oldest snapshot envelope this module reads.
	MinCompatibleVersion = "2.0.0"
)
