package store

import "errors"

var (
	// ErrInvalidTimeRange rejects schedules whose end is not after their start.
	ErrInvalidTimeRange = errors.New("scheduled end must be after scheduled start")
	// ErrNotFound reports a missing schedule, recording, or source.
	ErrNotFound = errors.New("not found")
	// ErrNotCancelable reports a cancel against a schedule that already left the scheduled state.
	ErrNotCancelable = errors.New("only scheduled entries can be canceled; stop the running recording first")
	// ErrNotEditable reports an edit against a schedule that already left the scheduled state.
	ErrNotEditable = errors.New("only scheduled entries can be edited")
	// ErrInvalidTransition reports a status change the transition table forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUnknownSetting reports a settings key outside the known set.
	ErrUnknownSetting = errors.New("unknown setting")
	// ErrInvalidSetting reports a settings value that does not parse.
	ErrInvalidSetting = errors.New("invalid setting value")
)

// ErrInvalidPadding rejects negative paddings.
var ErrInvalidPadding = errors.New("padding must not be negative")
