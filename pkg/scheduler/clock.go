package scheduler

import "time"

// Tick is a count from a monotonic counter whose frequency is fixed
// for the lifetime of a Clock.
type Tick int64

// Clock is the scheduler's only dependency on wall-clock time. The
// default implementation wraps time.Now()'s monotonic reading at a
// fixed virtual frequency; tests inject a FakeClock (see clock_fake.go)
// so scenario tests never depend on a real sleep.
type Clock interface {
	// Now returns the current tick count.
	Now() Tick
	// Frequency returns ticks per second. Constant after construction.
	Frequency() int64
	// Future returns anchor advanced by ms milliseconds, in ticks.
	Future(anchor Tick, ms int64) Tick
	// SleepCoarse blocks the calling goroutine for approximately ms
	// milliseconds using whatever coarse timer the platform offers.
	SleepCoarse(ms int64)
}

// defaultFrequency matches the original implementation's QPC_FREQUENCY
// constant (10 MHz), chosen so a whole note at 60 BPM (4000ms) is
// exactly 4e7 ticks with no rounding loss.
const defaultFrequency int64 = 10_000_000

// monotonicClock is the production Clock, built on time.Now()'s
// monotonic reading scaled to defaultFrequency ticks/sec.
type monotonicClock struct {
	freq  int64
	epoch time.Time
}

// NewMonotonicClock returns the production Clock used when none is
// supplied via WithClock.
func NewMonotonicClock() Clock {
	return &monotonicClock{freq: defaultFrequency, epoch: time.Now()}
}

func (c *monotonicClock) Now() Tick {
	ns := time.Since(c.epoch).Nanoseconds()
	// Split into whole seconds and remainder so ns*freq cannot overflow.
	sec, rem := ns/int64(time.Second), ns%int64(time.Second)
	return Tick(sec*c.freq + rem*c.freq/int64(time.Second))
}

func (c *monotonicClock) Frequency() int64 {
	return c.freq
}

func (c *monotonicClock) Future(anchor Tick, ms int64) Tick {
	return anchor + Tick(ms*c.freq/1000)
}

func (c *monotonicClock) SleepCoarse(ms int64) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

// fpFloor clamps x to the signed 64-bit range before flooring,
// matching the original's MathUtils::FpFloor overflow guard.
func fpFloor(x float64) int64 {
	const maxI = float64(1<<63 - 1)
	const minI = -float64(1 << 63)
	switch {
	case x >= maxI:
		return 1<<63 - 1
	case x <= minI:
		return -1 << 63
	default:
		return int64(x)
	}
}

// beatsToTicks converts a Beat (whose value is its ms length at 60
// BPM) to ticks at the given tempo, via two explicit floors: beat ->
// ms at tempo, then ms -> ticks at the clock's frequency. See
// SPEC_FULL.md / spec.md §4.1 for why this isn't fused into one
// product.
func beatsToTicks(c Clock, tempoBPM float64, beat Beat) Tick {
	ms := fpFloor(float64(beat) * (60.0 / tempoBPM))
	ticks := fpFloor(float64(ms) / 1000.0 * float64(c.Frequency()))
	return Tick(ticks)
}
