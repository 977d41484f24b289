package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Logger is the narrow diagnostic surface the scheduler writes
// through; *log.Logger from charmbracelet/log satisfies it. A nil
// Logger (the default) makes every call a no-op, matching the
// original's mPrintMsgs-gated fmt.Printf diagnostics.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...interface{}) {}
func (noopLogger) Infof(string, ...interface{})  {}
func (noopLogger) Warnf(string, ...interface{})  {}

// Scheduler is the hard-real-time MIDI dispatch engine: a producer
// side (AddEvent/AddEvents, ChangeTempo, ShiftBeats) that touches the
// admission buffer and the beat grid (and, for ChangeTempo and
// ShiftBeats, the ready queue), and a single player
// goroutine that drains the ready queue against wall-clock deadlines.
type Scheduler struct {
	id   string
	sink Sink

	clock    Clock
	pipeline *Pipeline
	grid     *BeatGrid

	beatsPerMeasure int
	beatUnit        int
	channel         uint8

	running atomic.Bool
	paused  atomic.Bool
	pauseMu sync.Mutex
	pauseCv *sync.Cond

	playerWg sync.WaitGroup
	stopCh   chan struct{}

	tempoMu  sync.RWMutex
	tempoBPM float64

	markerMu      sync.Mutex
	previousEnd   Tick
	markerSeeded  bool

	rng *pcgJitter

	logger  Logger
	metrics *metricsSet

	printMsgs        bool
	startImmediately bool
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithClock overrides the production monotonic clock, primarily for
// tests driving a FakeClock.
func WithClock(c Clock) Option { return func(s *Scheduler) { s.clock = c } }

// WithSink overrides the output sink; without it, New requires a
// non-empty port name and opens a live one via OpenSink.
func WithSink(sink Sink) Option { return func(s *Scheduler) { s.sink = sink } }

// WithBeatsPerMeasure sets the grid's beats-per-measure (default 4).
func WithBeatsPerMeasure(n int) Option { return func(s *Scheduler) { s.beatsPerMeasure = n } }

// WithBeatUnit sets the grid's beat unit / note value denominator
// (default 4, i.e. quarter-note beats).
func WithBeatUnit(n int) Option { return func(s *Scheduler) { s.beatUnit = n } }

// WithTempoBPM sets the initial tempo (default 60).
func WithTempoBPM(bpm float64) Option { return func(s *Scheduler) { s.tempoBPM = bpm } }

// WithChannel sets the MIDI channel (0-15) messages are sent on
// (default 0).
func WithChannel(ch uint8) Option { return func(s *Scheduler) { s.channel = ch } }

// WithStartImmediately starts the player goroutine inside New instead
// of requiring a separate Start call.
func WithStartImmediately() Option {
	return func(s *Scheduler) { s.startImmediately = true }
}

// WithPrintMsgs enables per-dispatch diagnostic logging.
func WithPrintMsgs() Option { return func(s *Scheduler) { s.printMsgs = true } }

// WithLogger overrides the diagnostic logger (default: silent).
func WithLogger(l Logger) Option {
	return func(s *Scheduler) {
		if l == nil {
			l = noopLogger{}
		}
		s.logger = l
	}
}

// WithSeed fixes the jitter PRNG's seed for reproducible tests.
func WithSeed(seed uint64) Option {
	return func(s *Scheduler) { s.rng = newPCGJitter(seed) }
}

// New constructs a Scheduler against the named MIDI output port (the
// driver package registering that port, e.g. rtmididrv, must already
// be blank-imported by the caller), applying opts. If WithSink was
// given, portName is ignored.
func New(portName string, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		beatsPerMeasure: 4,
		beatUnit:        4,
		tempoBPM:        60,
		logger:          noopLogger{},
		stopCh:          make(chan struct{}),
	}
	s.id = uuid.New().String()
	s.pauseCv = sync.NewCond(&s.pauseMu)

	for _, opt := range opts {
		opt(s)
	}

	if s.clock == nil {
		s.clock = NewMonotonicClock()
	}
	if s.rng == nil {
		s.rng = newPCGJitter(uint64(s.clock.Now()))
	}
	if s.sink == nil {
		sink, err := OpenSink(portName)
		if err != nil {
			return nil, err
		}
		s.sink = sink
	}

	s.pipeline = NewPipeline()
	s.grid = NewBeatGrid(s.clock, s.beatsPerMeasure, s.beatUnit, s.tempoBPM)
	s.grid.Precalculate(s.clock.Future(s.clock.Now(), 1000))
	s.metrics = newMetricsSet(s.id, func() float64 { return float64(s.pipeline.QueueLen()) })

	if s.startImmediately {
		_ = s.Start()
	}

	return s, nil
}

// ID returns the scheduler instance's generated identifier.
func (s *Scheduler) ID() string { return s.id }

// Now returns the scheduler's clock's current tick, so a caller
// admitting events (e.g. seeding a chain's first anchor) can compute
// deadlines relative to the same time base the player dispatches
// against.
func (s *Scheduler) Now() Tick { return s.clock.Now() }

// Future returns the tick offsetMs milliseconds ahead of now, in the
// scheduler's own clock's units, for callers computing a lead-time
// anchor without hardcoding a tick frequency.
func (s *Scheduler) Future(offsetMs int64) Tick { return s.clock.Future(s.clock.Now(), offsetMs) }

// GetTempo returns the scheduler's current global tempo in BPM.
func (s *Scheduler) GetTempo() float64 {
	s.tempoMu.RLock()
	defer s.tempoMu.RUnlock()
	return s.tempoBPM
}

// GetBeatSchedule returns a snapshot of the upcoming beat grid's
// deadlines, for diagnostics and the TUI monitor view.
func (s *Scheduler) GetBeatSchedule() []Tick {
	n := s.grid.Len()
	out := make([]Tick, 0, n)
	for i := 0; i < n; i++ {
		e, err := s.grid.BeatFromIndex(i)
		if err != nil {
			break
		}
		out = append(out, e.Deadline)
	}
	return out
}

// IsRunning reports whether the player goroutine is active.
func (s *Scheduler) IsRunning() bool { return s.running.Load() }

// IsPaused reports whether dispatch is currently paused.
func (s *Scheduler) IsPaused() bool { return s.paused.Load() }
