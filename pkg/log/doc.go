// Package log provides the logging abstraction used across scopesync.
//
// The coordinator, the host and the plugins all log through the Logger
// interface so that embedding applications can route scope lifecycle
// messages into whatever logging stack they already run. A zerolog adapter
// and a no-op logger are provided.
//
// # Usage
//
// Wrap an existing zerolog logger:
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//
// Or build a console logger at a given level:
//
//	logger, err := log.NewConsoleLogger("debug")
//
// Or discard everything (the default everywhere):
//
//	logger := log.NewNoopLogger()
//
// # Fields
//
// Field helpers such as [Path], [Key] and [Phase] keep field names consistent
// between components so log lines about the same scope can be correlated.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package log
