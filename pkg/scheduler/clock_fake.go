package scheduler

import "sync/atomic"

// FakeClock is a Clock whose Now() is advanced explicitly by the test
// driving it, so scenario and invariant tests run without wall-clock
// sleeps. SleepCoarse advances the clock itself rather than blocking,
// since nothing else is progressing time in a single-goroutine test.
type FakeClock struct {
	now  atomic.Int64
	freq int64
}

// NewFakeClock returns a FakeClock starting at tick 0 with the given
// frequency (ticks/sec).
func NewFakeClock(freq int64) *FakeClock {
	fc := &FakeClock{freq: freq}
	return fc
}

func (f *FakeClock) Now() Tick {
	return Tick(f.now.Load())
}

func (f *FakeClock) Frequency() int64 {
	return f.freq
}

func (f *FakeClock) Future(anchor Tick, ms int64) Tick {
	return anchor + Tick(ms*f.freq/1000)
}

func (f *FakeClock) SleepCoarse(ms int64) {
	f.Advance(Tick(ms * f.freq / 1000))
}

// Advance moves the clock forward by delta ticks.
func (f *FakeClock) Advance(delta Tick) {
	f.now.Add(int64(delta))
}

// Set pins the clock to an absolute tick value.
func (f *FakeClock) Set(t Tick) {
	f.now.Store(int64(t))
}
