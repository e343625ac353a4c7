// Package output is the entry point for generated-unit destinations. It
// re-exports the sink contracts and wraps the infra-backed drivers so other
// packages never import them directly.
package output

import "eavcore/internal/output/sink"

type (
	// Driver identifies an output backend.
	Driver = sink.Driver
	// WriteOptions configures a unit write.
	WriteOptions = sink.WriteOptions
	// Info describes a stored unit.
	Info = sink.Info
	// Sink is the interface every output backend implements.
	Sink = sink.Sink
	// WriteError reports a destination that could not accept a unit.
	WriteError = sink.WriteError
)

const (
	DriverFilesystem = sink.DriverFilesystem
	DriverS3         = sink.DriverS3
	DriverMemory     = sink.DriverMemory
)

// ErrNotFound is returned by Read for unknown keys.
var ErrNotFound = sink.ErrNotFound
