package scheduler

// player is the scheduler's single dispatch goroutine (spec.md §4.5).
// Each iteration: honor pause, ensure Q has something to drain (trying
// promotions from B when it doesn't), apply the late-arrival policy to
// Q's head, smart-sleep until the guard window, busy-wait the
// remainder, then emit.
func (s *Scheduler) player() {
	defer s.playerWg.Done()

	for s.running.Load() {
		s.conditionallyPause()
		select {
		case <-s.stopCh:
			return
		default:
		}

		event, ok := s.pipeline.PeekQueue()
		if !ok {
			if s.pipeline.BufferEmpty() {
				s.resetChainMarker()
				continue
			}
			accepted, hadWork := s.pipeline.PromoteOnce(s.clock.Now(), budgetTicks)
			if !accepted {
				if hadWork {
					s.metrics.droppedBudget.Inc()
				}
				continue
			}
			s.metrics.promoted.Inc()
			continue
		}

		now := s.clock.Now()
		switch {
		case now > event.Deadline+budgetTicks:
			// Too late even for the budget window: drop silently.
			s.pipeline.PopQueue()
			s.metrics.droppedLate.Inc()
			continue

		case now > event.Deadline:
			// Inside the budget window but already due: emit now,
			// no sleep.
			s.pipeline.PopQueue()
			s.emit(event)
			continue
		}

		smartSleep(s.clock, s.pipeline, s.grid, event.Deadline, s.stopCh)
		for s.clock.Now() < event.Deadline {
			// Busy-wait: the final stretch inside the guard window is
			// too short to trust any scheduler-mediated sleep.
			select {
			case <-s.stopCh:
				return
			default:
			}
		}

		s.pipeline.PopQueue()
		s.emit(event)
	}
}

func (s *Scheduler) emit(e RawEvent) {
	if err := s.sink.Send(e.bytes()); err != nil {
		s.logger.Warnf("scheduler: send failed: %v", err)
		return
	}
	if s.printMsgs {
		s.logger.Debugf("scheduler: emitted kind=%#x note=%d velocity=%d deadline=%d", e.Kind, e.Note, e.Velocity, e.Deadline)
	}
	s.metrics.emitted.WithLabelValues(kindLabel(e.Kind)).Inc()
}

func kindLabel(k MidiMessageKind) string {
	switch k {
	case NoteOn:
		return "note_on"
	case NoteOff:
		return "note_off"
	case PolyKeyPressure:
		return "poly_key_pressure"
	case ControlChange:
		return "control_change"
	case ProgramChange:
		return "program_change"
	case ChannelPressure:
		return "channel_pressure"
	case PitchBend:
		return "pitch_bend"
	default:
		return "unknown"
	}
}
