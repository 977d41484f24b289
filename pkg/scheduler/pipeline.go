package scheduler

import (
	"container/heap"
	"sort"
	"sync"
)

// eventHeap is a container/heap.Interface min-heap over RawEvent,
// ordered earliest-deadline-first. It backs both the admission buffer
// B and the ready queue Q (spec.md §4.4); this is the idiomatic
// replacement for the original's std::priority_queue<MidiEvent>.
type eventHeap []RawEvent

func (h eventHeap) Len() int            { return len(h) }
func (h eventHeap) Less(i, j int) bool  { return h[i].Deadline < h[j].Deadline }
func (h eventHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x interface{}) { *h = append(*h, x.(RawEvent)) }
func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	last := old[n-1]
	*h = old[:n-1]
	return last
}

// Pipeline holds the two-queue admission pipeline: B (the buffer,
// where freshly admitted events and in-progress chains land) and Q
// (the ready queue the player drains). Promotion moves an event from B
// to Q only once it clears the guard window.
type Pipeline struct {
	mu     sync.Mutex
	buffer eventHeap
	queue  eventHeap

	rescaling       bool
	rescaleFactor   float64
	rescaleSnapshot []RawEvent
	rescaleSwap     eventHeap
	rescaleCursor   int
	rescalePrevOld  Tick
	rescalePrevNew  Tick
}

// NewPipeline returns an empty pipeline.
func NewPipeline() *Pipeline {
	p := &Pipeline{}
	heap.Init(&p.buffer)
	heap.Init(&p.queue)
	return p
}

// PushBuffer admits e into B.
func (p *Pipeline) PushBuffer(e RawEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	heap.Push(&p.buffer, e)
}

// BufferEmpty reports whether B currently holds nothing.
func (p *Pipeline) BufferEmpty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer) == 0
}

// QueueEmpty reports whether Q currently holds nothing.
func (p *Pipeline) QueueEmpty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue) == 0
}

// QueueLen and BufferLen expose depth for metrics/diagnostics.
func (p *Pipeline) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Pipeline) BufferLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}

// PromoteOnce pops the earliest-deadline event from B and tries to
// admit it into Q. hadWork is false if B was already empty. accepted
// is false if the event's deadline is already inside the guard window
// (now+guard) or past: it is dropped rather than queued, matching the
// original's scheduleEvent rejection (spec.md §4.4's admission policy).
func (p *Pipeline) PromoteOnce(now, guard Tick) (accepted, hadWork bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buffer) == 0 {
		return false, false
	}
	e := heap.Pop(&p.buffer).(RawEvent)
	if e.Deadline < now+guard {
		return false, true
	}
	heap.Push(&p.queue, e)
	return true, true
}

// PeekQueue returns Q's earliest-deadline event without removing it.
func (p *Pipeline) PeekQueue() (RawEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return RawEvent{}, false
	}
	return p.queue[0], true
}

// PopQueue removes and returns Q's earliest-deadline event.
func (p *Pipeline) PopQueue() (RawEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return RawEvent{}, false
	}
	e := heap.Pop(&p.queue).(RawEvent)
	return e, true
}

// PopBuffer removes and returns B's earliest-deadline event, for
// callers (diagnostics, tests) that need to inspect pending admissions
// without going through PromoteOnce's guard check.
func (p *Pipeline) PopBuffer() (RawEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buffer) == 0 {
		return RawEvent{}, false
	}
	e := heap.Pop(&p.buffer).(RawEvent)
	return e, true
}

// DrainQueue empties Q atomically, returning nothing: used by Stop,
// matching the original's queue-swap-with-empty technique.
func (p *Pipeline) DrainQueue() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = p.queue[:0]
}

// BeginQueueRescale arms an incremental, cumulative rescale of Q: a
// deadline-ascending snapshot is taken up front (mirroring the
// original's tempQueue copy), and RescaleQueueIncrementally walks it
// one entry per call, building the rescaled result into a side heap
// that is swapped in for Q once every entry has been visited — the
// live queue is never read mid-rescale, so a concurrent PromoteOnce
// can't observe a partially-rescaled Q.
func (p *Pipeline) BeginQueueRescale(factor float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rescaleSnapshot = make([]RawEvent, len(p.queue))
	copy(p.rescaleSnapshot, p.queue)
	sort.Slice(p.rescaleSnapshot, func(i, j int) bool {
		return p.rescaleSnapshot[i].Deadline < p.rescaleSnapshot[j].Deadline
	})
	p.rescaleFactor = factor
	p.rescaleCursor = 0
	p.rescaleSwap = p.rescaleSwap[:0]
	p.rescaling = len(p.rescaleSnapshot) > 0
}

// QueueRescaleInProgress reports whether a queue rescale is still
// being applied.
func (p *Pipeline) QueueRescaleInProgress() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rescaling
}

// RescaleQueueIncrementally applies changeBeatLengthsIncrementally's
// cumulative formula to one snapshot entry per call: the earliest
// deadline is left unchanged (it anchors the pass) and every later
// entry is rescaled relative to the *previous entry's own rescaled
// deadline*, not to the current clock reading — so a tempo change
// mid-queue redistributes the gaps between already-admitted events
// rather than recentering them on "now". Swaps the rescaled result
// into Q once the snapshot is exhausted.
func (p *Pipeline) RescaleQueueIncrementally() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.rescaling {
		return
	}
	if p.rescaleCursor >= len(p.rescaleSnapshot) {
		p.queue = p.rescaleSwap
		p.rescaling = false
		p.rescaleSnapshot = nil
		p.rescaleSwap = nil
		return
	}

	e := p.rescaleSnapshot[p.rescaleCursor]
	oldDeadline := e.Deadline
	if p.rescaleCursor > 0 {
		timeDiff := oldDeadline - p.rescalePrevOld
		e.Deadline = p.rescalePrevNew + Tick(fpFloor(float64(timeDiff)*p.rescaleFactor))
	}
	p.rescalePrevOld = oldDeadline
	p.rescalePrevNew = e.Deadline

	heap.Push(&p.rescaleSwap, e)
	p.rescaleCursor++
}

// ShiftQueue translates every entry in Q by offsetTicks in one pass.
func (p *Pipeline) ShiftQueue(offsetTicks Tick) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.queue {
		p.queue[i].Deadline += offsetTicks
	}
}
