package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/r2k/internal/protocol"
)

// DefaultRoundTimeout is how long the monitor waits for a round to finish
// before starting another one.
const DefaultRoundTimeout = 5 * time.Second

// Trigger starts the next inventory round. It must not wait for the
// round's results; those arrive on the event channel.
type Trigger func() error

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	Title        string // e.g. the reader name
	Events       <-chan protocol.Response
	Trigger      Trigger
	RoundTimeout time.Duration
	Now          func() time.Time
}

// monitorKeyMap defines key bindings for the monitor
type monitorKeyMap struct {
	Up    key.Binding
	Down  key.Binding
	Pause key.Binding
	Reset key.Binding
	Help  key.Binding
	Quit  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k monitorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Reset, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k monitorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Pause, k.Reset},
		{k.Help, k.Quit},
	}
}

type (
	startMsg    struct{}
	eventMsg    struct{ ev protocol.Response }
	closedMsg   struct{}
	triggerMsg  struct{ err error }
	watchdogMsg time.Time
)

// Monitor is a Bubble Tea model that runs inventory rounds back to back and
// shows every tag seen.
type Monitor struct {
	cfg MonitorConfig

	Tally     Tally
	Rounds    int
	LastRound *protocol.RoundComplete
	Errors    int
	LastError string
	Paused    bool
	Closed    bool

	inFlight bool
	started  time.Time

	Width  int
	Height int

	table   table.Model
	spinner spinner.Model
	help    help.Model
	keys    monitorKeyMap
}

// NewMonitor creates a monitor over an event channel.
func NewMonitor(cfg MonitorConfig) Monitor {
	if cfg.RoundTimeout <= 0 {
		cfg.RoundTimeout = DefaultRoundTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	widths := []int{26, 7, 6, 4, 8}
	columns := make([]table.Column, len(TagColumns))
	for i, title := range TagColumns {
		columns[i] = table.Column{Title: title, Width: widths[i]}
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(PrimaryColor).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(TextColor).
		Background(PrimaryColor)
	t.SetStyles(styles)

	return Monitor{
		cfg:     cfg,
		table:   t,
		spinner: s,
		help:    help.New(),
		keys: monitorKeyMap{
			Up: key.NewBinding(
				key.WithKeys("up", "k"),
				key.WithHelp("↑/k", "up"),
			),
			Down: key.NewBinding(
				key.WithKeys("down", "j"),
				key.WithHelp("↓/j", "down"),
			),
			Pause: key.NewBinding(
				key.WithKeys("p", " "),
				key.WithHelp("p", "pause"),
			),
			Reset: key.NewBinding(
				key.WithKeys("r"),
				key.WithHelp("r", "reset"),
			),
			Help: key.NewBinding(
				key.WithKeys("?"),
				key.WithHelp("?", "help"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "ctrl+c"),
				key.WithHelp("q", "quit"),
			),
		},
	}
}

func (m Monitor) waitForEvent() tea.Msg {
	ev, ok := <-m.cfg.Events
	if !ok {
		return closedMsg{}
	}
	return eventMsg{ev}
}

func (m Monitor) watchdog() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return watchdogMsg(t) })
}

// startRound marks a round in flight and returns the command that triggers it.
func (m *Monitor) startRound() tea.Cmd {
	if m.Paused || m.Closed || m.cfg.Trigger == nil {
		return nil
	}
	m.inFlight = true
	m.started = m.cfg.Now()
	trigger := m.cfg.Trigger
	return func() tea.Msg { return triggerMsg{trigger()} }
}

// Init implements tea.Model
func (m Monitor) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.waitForEvent,
		m.watchdog(),
		func() tea.Msg { return startMsg{} },
	)
}

// Update implements tea.Model
func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.table.SetHeight(max(msg.Height-10, 5))
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.Paused = !m.Paused
			if !m.Paused && !m.inFlight {
				return m, m.startRound()
			}
			return m, nil
		case key.Matches(msg, m.keys.Reset):
			m.Tally.Reset()
			m.Rounds, m.Errors = 0, 0
			m.LastRound, m.LastError = nil, ""
			m.refresh()
			return m, nil
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd

	case startMsg:
		return m, m.startRound()

	case eventMsg:
		cmd := m.handleEvent(msg.ev)
		return m, tea.Batch(m.waitForEvent, cmd)

	case closedMsg:
		m.Closed = true
		m.inFlight = false
		return m, nil

	case triggerMsg:
		if msg.err != nil {
			m.Errors++
			m.LastError = msg.err.Error()
			m.inFlight = false
		}
		return m, nil

	case watchdogMsg:
		if m.Closed {
			return m, nil
		}
		if m.inFlight && m.cfg.Now().Sub(m.started) > m.cfg.RoundTimeout {
			m.Errors++
			m.LastError = "round timed out"
			return m, tea.Batch(m.watchdog(), m.startRound())
		}
		if !m.inFlight {
			return m, tea.Batch(m.watchdog(), m.startRound())
		}
		return m, m.watchdog()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleEvent folds one event into the model and returns the command that
// starts the next round when this event ended one.
func (m *Monitor) handleEvent(ev protocol.Response) tea.Cmd {
	switch ev := ev.(type) {
	case *protocol.TagEvent:
		m.Tally.Add(ev.Tag, m.cfg.Now())
		m.refresh()
		return nil
	case *protocol.RoundComplete:
		m.Rounds++
		m.LastRound = ev
	case *protocol.ErrorEvent:
		m.Errors++
		m.LastError = fmt.Sprintf("%s: %s", ev.Command, ev.Text)
		if ev.Code == 0 {
			return nil
		}
	default:
		return nil
	}
	m.inFlight = false
	return m.startRound()
}

func (m *Monitor) refresh() {
	stats := m.Tally.Stats()
	rows := make([]table.Row, len(stats))
	for i, st := range stats {
		rows[i] = TagRow(st)
	}
	m.table.SetRows(rows)
}

// View implements tea.Model
func (m Monitor) View() string {
	var b strings.Builder

	title := "MONITOR"
	if m.cfg.Title != "" {
		title += "  " + m.cfg.Title
	}
	state := m.spinner.View() + " scanning"
	switch {
	case m.Closed:
		state = ErrorTitleStyle.Render(FailureMarker + " disconnected")
	case m.Paused:
		state = StepPendingStyle.Render("paused")
	}
	b.WriteString(HeaderTitleStyle.Render(title) + "  " + state + "\n\n")

	b.WriteString(lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Render(m.table.View()))
	b.WriteString("\n")

	b.WriteString(HeaderCommandStyle.Render(m.summary()))
	b.WriteString("\n")
	if m.LastError != "" {
		b.WriteString(lipgloss.NewStyle().PaddingLeft(2).Render(ErrorMessageStyle.Render(m.LastError)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().PaddingLeft(2).Render(m.help.View(m.keys)))
	return b.String()
}

func (m Monitor) summary() string {
	s := fmt.Sprintf("%d tags  %d reads  %d rounds  %d errors", m.Tally.Len(), m.Tally.Reads(), m.Rounds, m.Errors)
	if r := m.LastRound; r != nil {
		s += fmt.Sprintf("  last round: %d reads", r.TotalRead)
		if r.ReadRate > 0 {
			s += fmt.Sprintf(" at %d/s", r.ReadRate)
		}
	}
	return s
}

// RunMonitor runs the monitor until the user quits and returns the final
// model.
func RunMonitor(cfg MonitorConfig, opts ...tea.ProgramOption) (Monitor, error) {
	final, err := tea.NewProgram(NewMonitor(cfg), append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...).Run()
	if err != nil {
		return Monitor{}, err
	}
	return final.(Monitor), nil
}
