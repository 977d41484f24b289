package scheduler

import "runtime"

// smartSleep is the cooperative wait between the player's dispatch of
// consecutive events (spec.md §4.6). Rather than blocking outright, it
// spends the time until deadline-budgetTicks on pipeline maintenance,
// in strict priority order: promote a buffered admission, else apply
// a pending grid shift (all entries at once), else advance an in-flight
// queue rescale, else advance an in-flight grid rescale, else
// extend/prune the beat grid by one step. Each branch does a single
// unit of work and loops,
// so no single pass can blow past the guard window and starve dispatch
// of the upcoming event.
func smartSleep(clock Clock, pipeline *Pipeline, grid *BeatGrid, deadline Tick, stopCh <-chan struct{}) {
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		now := clock.Now()
		if now >= deadline-budgetTicks {
			return
		}

		switch {
		case !pipeline.BufferEmpty():
			pipeline.PromoteOnce(now, budgetTicks)
		case grid.ShiftInProgress():
			grid.ShiftIncrementally()
		case pipeline.QueueRescaleInProgress():
			pipeline.RescaleQueueIncrementally()
		case grid.RescaleInProgress():
			grid.RescaleIncrementally(now)
		default:
			grid.PruneExpiredIncrementally(now)
		}

		runtime.Gosched()
	}
}
