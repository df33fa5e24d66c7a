package coordinator

import "io"

// Config configures a Coordinator run, per SPEC_FULL.md §6.
type Config struct {
	Input  io.Reader
	Output io.Writer

	// Trace enables human-readable per-command narration.
	Trace bool

	// DumpOnExit runs dump() once more after clean EOF.
	DumpOnExit bool
}
