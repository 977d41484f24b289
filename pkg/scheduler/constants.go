package scheduler

// Budget and horizon constants, ticks expressed at defaultFrequency
// (10,000,000/sec) to match the values the original implementation
// hard-coded at the same frequency.
const (
	// budgetTicks (G) is the promotion guard and the per-iteration work
	// budget for smartSleep's incremental maintenance: ten milliseconds.
	budgetTicks Tick = 100_000

	// gridHorizonSeconds is how far ahead precalculateBeats fills the
	// beat grid.
	gridHorizonSeconds = 300

	// gridCapacity bounds BeatFromIndex's valid range; the grid never
	// holds more than this many pending entries at once.
	gridCapacity = 600

	// allNotesOffDelayMs is the pause before the all-notes-off control
	// change is sent, giving in-flight note-offs a chance to land first.
	allNotesOffDelayMs = 100
)
