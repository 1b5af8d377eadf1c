package lifecycle

// Version information for the scope lifecycle module.
const (
	// Version is the current version of the lifecycle module.
	Version = "1.0.0"

	// MinCompatibleVersion is the oldest version whose listeners and saved
	// bundles this version accepts.
	MinCompatibleVersion = "1.0.0"
)
