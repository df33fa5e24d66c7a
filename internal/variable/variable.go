// Package variable implements the versioned values the simulator
// operates on: a committed history plus at most one pending
// uncommitted value, per spec.md §4.1.
package variable

// Version is one entry in a variable's committed history.
type Version struct {
	CommitTick int
	Value      int
}

// Variable is identified by its id (e.g. "x7") and holds a strictly
// decreasing-by-CommitTick committed history, head first, plus at
// most one uncommitted value owned by a single writer.
//
// AvailableForRead is only meaningful for replicated (even-id)
// variables: it goes false on site recovery and back to true on the
// first post-recovery commit.
type Variable struct {
	ID               string
	history          []Version // head = most recent; tick 0 entry never removed
	uncommitted      *int
	AvailableForRead bool
}

// New creates a variable with its tick-0 initial value.
func New(id string, initial int) *Variable {
	return &Variable{
		ID:               id,
		history:          []Version{{CommitTick: 0, Value: initial}},
		AvailableForRead: true,
	}
}

// Read returns the value visible to the caller, per spec.md §4.1.
// Read-write callers see the uncommitted value if one exists, else the
// latest committed value. Read-only callers see the latest committed
// version with CommitTick strictly less than timestamp.
func (v *Variable) Read(isReadOnly bool, timestamp int) (value int, ok bool) {
	if !v.AvailableForRead {
		return 0, false
	}

	if !isReadOnly {
		if v.uncommitted != nil {
			return *v.uncommitted, true
		}
		return v.history[0].Value, true
	}

	for _, ver := range v.history {
		if ver.CommitTick < timestamp {
			return ver.Value, true
		}
	}
	return 0, false
}

// HasUncommitted reports whether a write lock owner's pending write is
// waiting to be committed.
func (v *Variable) HasUncommitted() bool {
	return v.uncommitted != nil
}

// Write sets the single uncommitted slot. Callers must already hold
// the write lock.
func (v *Variable) Write(val int) {
	v.uncommitted = &val
}

// Commit prepends (tick, uncommitted) to the history, clears the
// uncommitted slot, and marks the variable available for read.
func (v *Variable) Commit(tick int) {
	val := *v.uncommitted
	v.history = append([]Version{{CommitTick: tick, Value: val}}, v.history...)
	v.uncommitted = nil
	v.AvailableForRead = true
}

// AbortClear discards the uncommitted value; history is untouched.
func (v *Variable) AbortClear() {
	v.uncommitted = nil
}

// Latest returns the head of the committed history.
func (v *Variable) Latest() Version {
	return v.history[0]
}

// History returns a copy of the committed history, head first.
func (v *Variable) History() []Version {
	out := make([]Version, len(v.history))
	copy(out, v.history)
	return out
}
