package scheduler

import "errors"

// Sentinel errors surfaced at API boundaries. All recoverable timing
// policy (late arrival, budget exceeded) is a silent drop, not an
// error return — see player.go and pipeline.go.
var (
	// ErrSinkUnavailable is returned when the named output port cannot
	// be found at construction time.
	ErrSinkUnavailable = errors.New("scheduler: output port not found")

	// ErrChainingUnseeded is returned when a NoteDescriptor requests
	// chaining (ScheduledTick < 0) before any note has been admitted.
	ErrChainingUnseeded = errors.New("scheduler: chaining requested before previous-end marker was seeded")

	// ErrInvalidTempo is returned by ChangeTempo when tempo <= 0.
	ErrInvalidTempo = errors.New("scheduler: tempo must be greater than 0")

	// ErrIndexOutOfRange is returned by BeatFromIndex outside [0, 600).
	ErrIndexOutOfRange = errors.New("scheduler: beat grid index out of range")

	// ErrStartWhenRunning is returned by Start when the player thread
	// is already running; it is not treated as fatal.
	ErrStartWhenRunning = errors.New("scheduler: already started")
)
