package model

// Status represents the upload status of a model record
type Status string

const (
	// StatusNotUploaded means the model is known but was never submitted
	StatusNotUploaded Status = "not-uploaded"

	// StatusUploading means a run is (or was, before a crash) moving the asset
	StatusUploading Status = "uploading"

	// StatusUploaded means the asset is stored and ResultURL is set
	StatusUploaded Status = "uploaded"

	// StatusError means the last run failed and the model may be resubmitted
	StatusError Status = "error-while-uploading"
)

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsValid reports whether s is one of the known statuses
func (s Status) IsValid() bool {
	switch s {
	case StatusNotUploaded, StatusUploading, StatusUploaded, StatusError:
		return true
	}
	return false
}

// IsTerminal returns true for statuses a run can end in
func (s Status) IsTerminal() bool {
	return s == StatusUploaded || s == StatusError
}

// CanSubmit reports whether a record in this status may be submitted again.
// Uploading is accepted so a record left behind by a crashed process can be
// restarted; live runs are rejected separately by the in-process guard.
func (s Status) CanSubmit() bool {
	return s != StatusUploaded
}

// RunState represents the pipeline state of a single upload run
type RunState string

const (
	RunStateIdle                 RunState = "idle"
	RunStateAuthenticating       RunState = "authenticating"
	RunStateNavigating           RunState = "navigating"
	RunStateAwaitingInterception RunState = "awaiting-interception"
	RunStateFetching             RunState = "fetching"
	RunStatePublishing           RunState = "publishing"
	RunStateSucceeded            RunState = "succeeded"
	RunStateFailed               RunState = "failed"
)

// runStateOrder fixes the forward order of the pipeline
var runStateOrder = map[RunState]int{
	RunStateIdle:                 0,
	RunStateAuthenticating:       1,
	RunStateNavigating:           2,
	RunStateAwaitingInterception: 3,
	RunStateFetching:             4,
	RunStatePublishing:           5,
	RunStateSucceeded:            6,
	RunStateFailed:               6,
}

// String returns the string representation of RunState
func (rs RunState) String() string {
	return string(rs)
}

// IsActive returns true if the run is between idle and a terminal state
func (rs RunState) IsActive() bool {
	return rs != RunStateIdle && !rs.IsFinished()
}

// IsFinished returns true if the run reached succeeded or failed
func (rs RunState) IsFinished() bool {
	return rs == RunStateSucceeded || rs == RunStateFailed
}

// CanTransition reports whether the pipeline may move from rs to next.
// Transitions are strictly forward, any non-terminal state may fail, and
// terminal states never move.
func (rs RunState) CanTransition(next RunState) bool {
	if rs.IsFinished() {
		return false
	}
	if next == RunStateFailed {
		return true
	}
	from, ok := runStateOrder[rs]
	if !ok {
		return false
	}
	to, ok := runStateOrder[next]
	if !ok {
		return false
	}
	return to > from
}
