package progress

import "strings"

// Stage names a step of the turn pipeline.
type Stage string

const (
	StageGenerating Stage = "generating"
	StageExecuting  Stage = "executing"
	StageMapping    Stage = "mapping"
	StageDone       Stage = "done"
)

// Update describes a progress message emitted by the orchestrator while a turn runs.
type Update struct {
	// Stage is the pipeline step that produced the update.
	Stage Stage
	// Message is the human readable status line.
	Message string
	// AddNewLine appends a newline to Message if one is not already present.
	AddNewLine bool
	// Ephemeral marks the update as transient (superseded by the next one).
	Ephemeral bool
}

// Callback receives progress updates.
type Callback func(Update) error

// Normalize applies the requested formatting to the update.
func Normalize(update Update) Update {
	if update.AddNewLine && update.Message != "" && !strings.HasSuffix(update.Message, "\n") {
		update.Message += "\n"
	}
	return update
}

// Dispatch normalizes and sends the update if the callback is set.
func Dispatch(cb Callback, update Update) error {
	if cb == nil {
		return nil
	}
	return cb(Normalize(update))
}
