package scheduler

// Start launches the player goroutine. Calling Start on an already
// running Scheduler returns ErrStartWhenRunning; it is not fatal, the
// existing player keeps running.
func (s *Scheduler) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrStartWhenRunning
	}
	s.stopCh = make(chan struct{})
	s.playerWg.Add(1)
	go s.player()
	return nil
}

// Stop halts dispatch: it signals the player goroutine to exit, waits
// for it to do so, drains the ready queue, and sends all-notes-off.
func (s *Scheduler) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stopCh)
	s.resumeLocked()
	s.playerWg.Wait()
	s.pipeline.DrainQueue()
	s.allNotesOff()
}

// Pause blocks the player goroutine between dispatches until Resume is
// called. In-flight busy-waits are allowed to complete their current
// event first.
func (s *Scheduler) Pause() {
	s.paused.Store(true)
	s.allNotesOff()
}

// Resume releases a paused player goroutine.
func (s *Scheduler) Resume() {
	s.resumeLocked()
}

func (s *Scheduler) resumeLocked() {
	s.paused.Store(false)
	s.pauseMu.Lock()
	s.pauseCv.Broadcast()
	s.pauseMu.Unlock()
}

// conditionallyPause blocks the calling (player) goroutine while
// paused, waking on Resume or Stop.
func (s *Scheduler) conditionallyPause() {
	s.pauseMu.Lock()
	for s.paused.Load() && s.running.Load() {
		s.pauseCv.Wait()
	}
	s.pauseMu.Unlock()
}

// allNotesOff waits allNotesOffDelayMs for in-flight note-offs to land,
// then sends a control-change all-notes-off on the active channel.
func (s *Scheduler) allNotesOff() {
	s.clock.SleepCoarse(allNotesOffDelayMs)
	ev := allNotesOffEvent(s.channel, s.clock.Now())
	if err := s.sink.Send(ev.bytes()); err != nil {
		s.logger.Warnf("scheduler: all-notes-off send failed: %v", err)
	}
}
