package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/r2k/internal/protocol"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestMonitor(triggers *int, clock *fakeClock) Monitor {
	return NewMonitor(MonitorConfig{
		Title:  "dock",
		Events: make(chan protocol.Response),
		Trigger: func() error {
			*triggers++
			return nil
		},
		Now: clock.Now,
	})
}

func update(t *testing.T, m Monitor, msg tea.Msg) (Monitor, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	mon, ok := next.(Monitor)
	if !ok {
		t.Fatalf("Update() returned %T", next)
	}
	return mon, cmd
}

func keyMsg(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestMonitorRoundCycle(t *testing.T) {
	var triggers int
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	m := newTestMonitor(&triggers, clock)

	m, cmd := update(t, m, startMsg{})
	if cmd == nil || !m.inFlight {
		t.Fatal("startMsg did not start a round")
	}
	if msg := cmd(); msg != (triggerMsg{}) || triggers != 1 {
		t.Fatalf("trigger cmd = %v, triggers = %d", msg, triggers)
	}

	tag := &protocol.TagEvent{Command: protocol.CmdRealTimeInventory, Tag: protocol.TagRecord{EPC: "E200", RSSI: -52, Antenna: 1}}
	if next := m.handleEvent(tag); next != nil {
		t.Error("tag event started a round")
	}
	m.handleEvent(tag)

	next := m.handleEvent(&protocol.RoundComplete{Command: protocol.CmdRealTimeInventory, Antenna: 1, ReadRate: 40, TotalRead: 2})
	if next == nil {
		t.Fatal("round end did not start the next round")
	}
	next()
	if triggers != 2 {
		t.Errorf("triggers = %d, want 2", triggers)
	}
	if m.Rounds != 1 || m.Tally.Reads() != 2 || m.Tally.Len() != 1 {
		t.Errorf("rounds = %d, reads = %d, tags = %d", m.Rounds, m.Tally.Reads(), m.Tally.Len())
	}

	view := m.View()
	for _, want := range []string{"dock", "E200", "1 tags  2 reads  1 rounds", "at 40/s"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestMonitorPause(t *testing.T) {
	var triggers int
	m := newTestMonitor(&triggers, &fakeClock{now: time.Now()})

	m, _ = update(t, m, keyMsg('p'))
	if !m.Paused {
		t.Fatal("p did not pause")
	}
	if cmd := m.handleEvent(&protocol.RoundComplete{TotalRead: 0}); cmd != nil {
		t.Error("round started while paused")
	}

	m, cmd := update(t, m, keyMsg('p'))
	if m.Paused || cmd == nil {
		t.Fatal("resume did not start a round")
	}
	cmd()
	if triggers != 1 {
		t.Errorf("triggers = %d, want 1", triggers)
	}
}

func TestMonitorErrorEndsRound(t *testing.T) {
	var triggers int
	m := newTestMonitor(&triggers, &fakeClock{now: time.Now()})
	m, _ = update(t, m, startMsg{})

	cmd := m.handleEvent(&protocol.ErrorEvent{Command: protocol.CmdRealTimeInventory, Code: protocol.ErrAntennaMissing, Text: "antenna missing"})
	if cmd == nil {
		t.Fatal("error event did not start the next round")
	}
	if m.Errors != 1 || !strings.Contains(m.LastError, "antenna missing") {
		t.Errorf("Errors = %d, LastError = %q", m.Errors, m.LastError)
	}
}

func TestMonitorWatchdogRestartsStalledRound(t *testing.T) {
	var triggers int
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	m := newTestMonitor(&triggers, clock)
	m, _ = update(t, m, startMsg{})

	m, _ = update(t, m, watchdogMsg(clock.now))
	if m.Errors != 0 {
		t.Fatal("watchdog fired before the round timeout")
	}

	clock.now = clock.now.Add(DefaultRoundTimeout + time.Second)
	m, cmd := update(t, m, watchdogMsg(clock.now))
	if cmd == nil || m.Errors != 1 || m.LastError != "round timed out" {
		t.Errorf("Errors = %d, LastError = %q", m.Errors, m.LastError)
	}
	if !m.started.Equal(clock.now) {
		t.Errorf("round restarted at %v, want %v", m.started, clock.now)
	}
}

func TestMonitorTriggerFailure(t *testing.T) {
	var triggers int
	m := newTestMonitor(&triggers, &fakeClock{now: time.Now()})
	m, _ = update(t, m, startMsg{})

	m, _ = update(t, m, triggerMsg{err: errors.New("closed")})
	if m.inFlight || m.Errors != 1 || m.LastError != "closed" {
		t.Errorf("inFlight = %v, Errors = %d, LastError = %q", m.inFlight, m.Errors, m.LastError)
	}
}

func TestMonitorClosedAndReset(t *testing.T) {
	var triggers int
	m := newTestMonitor(&triggers, &fakeClock{now: time.Now()})
	m.handleEvent(&protocol.TagEvent{Tag: protocol.TagRecord{EPC: "AA"}})

	m, _ = update(t, m, keyMsg('r'))
	if m.Tally.Len() != 0 || m.Rounds != 0 {
		t.Errorf("after reset tags = %d, rounds = %d", m.Tally.Len(), m.Rounds)
	}

	m, _ = update(t, m, closedMsg{})
	if !m.Closed {
		t.Fatal("closedMsg not recorded")
	}
	if cmd := m.startRound(); cmd != nil {
		t.Error("round started after the event channel closed")
	}
	if !strings.Contains(m.View(), "disconnected") {
		t.Error("View() does not show the disconnect")
	}
}

func TestMonitorQuit(t *testing.T) {
	var triggers int
	m := newTestMonitor(&triggers, &fakeClock{now: time.Now()})
	_, cmd := update(t, m, keyMsg('q'))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}
