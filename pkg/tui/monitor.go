package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/beatforge/midisched/pkg/scheduler"
)

// monitorTickMsg drives the polling loop; pollInterval trades update
// latency for CPU, same tradeoff the conversion spinner's Tick makes.
type monitorTickMsg time.Time

const pollInterval = 100 * time.Millisecond

// MonitorModel is a live view of a running Scheduler: run/pause state,
// tempo, and the most recent dispatched events; `p` toggles
// pause/resume. Queue depth is not shown.
type MonitorModel struct {
	sched  *scheduler.Scheduler
	events chan scheduler.RawEvent
	unsub  func()

	recent []scheduler.RawEvent
	width  int
}

// NewMonitor builds a MonitorModel subscribed to bsink's live event
// stream for as long as the returned program runs.
func NewMonitor(sched *scheduler.Scheduler, bsink *scheduler.BroadcastSink) MonitorModel {
	ch := bsink.Subscribe()
	return MonitorModel{
		sched:  sched,
		events: ch,
		unsub:  func() { bsink.Unsubscribe(ch) },
	}
}

func (m MonitorModel) Init() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return monitorTickMsg(t) })
}

func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.unsub()
			return m, tea.Quit
		case "p":
			if m.sched.IsPaused() {
				m.sched.Resume()
			} else {
				m.sched.Pause()
			}
			return m, nil
		}

	case monitorTickMsg:
		m.drain()
		return m, tea.Tick(pollInterval, func(t time.Time) tea.Msg { return monitorTickMsg(t) })
	}
	return m, nil
}

// drain pulls every event queued since the last tick without blocking.
func (m *MonitorModel) drain() {
	for {
		select {
		case ev := <-m.events:
			m.recent = append(m.recent, ev)
			if len(m.recent) > 8 {
				m.recent = m.recent[len(m.recent)-8:]
			}
		default:
			return
		}
	}
}

func (m MonitorModel) View() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render(" SCHEDULER MONITOR "))
	s.WriteString("\n\n")

	status := "running"
	if m.sched.IsPaused() {
		status = "paused"
	}
	if !m.sched.IsRunning() {
		status = "stopped"
	}
	s.WriteString(statusStyle.Render(fmt.Sprintf("status: %s   tempo: %.1f bpm", status, m.sched.GetTempo())))
	s.WriteString("\n\n")

	s.WriteString(menuStyle.Render("recent events:"))
	s.WriteString("\n")
	if len(m.recent) == 0 {
		s.WriteString(menuStyle.Render("  (none yet)"))
	}
	for _, ev := range m.recent {
		s.WriteString(lipgloss.NewStyle().Foreground(acidGreen).Render(
			fmt.Sprintf("  note=%-3d vel=%-3d ch=%-2d @%d", ev.Note, ev.Velocity, ev.Channel, ev.Deadline)))
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("p: pause/resume • q: quit"))
	return boxStyle.Render(s.String())
}

// RunMonitor launches the live monitor as its own full-screen program.
func RunMonitor(sched *scheduler.Scheduler, bsink *scheduler.BroadcastSink) error {
	p := tea.NewProgram(NewMonitor(sched, bsink), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
