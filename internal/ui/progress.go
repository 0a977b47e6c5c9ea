package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus represents the current state of a step
type StepStatus int

const (
	StepPending  StepStatus = iota // Not yet started
	StepRunning                    // Currently executing
	StepComplete                   // Successfully completed
	StepFailed                     // Failed
	StepSkipped                    // Skipped
)

var stepStatusNames = []string{"pending", "running", "complete", "failed", "skipped"}

func (s StepStatus) String() string {
	if int(s) < len(stepStatusNames) {
		return stepStatusNames[s]
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s StepStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Step represents a single step in a multi-step operation
type Step struct {
	Number  int        `json:"number"`            // 1-based
	Name    string     `json:"name"`              // Step description
	Status  StepStatus `json:"status"`            // Current status
	Message string     `json:"message,omitempty"` // e.g. "30 dBm", "timeout"
}

// Steps is a numbered step list with a progress bar.
type Steps struct {
	Label     string
	Steps     []Step
	Current   int     // step running or last finished (1-based)
	Percent   float64 // 0.0 - 1.0
	Width     int
	ShowBar   bool
	ShowSteps bool
	bar       progress.Model
}

// NewSteps creates a step list with one pending step per name.
func NewSteps(label string, names ...string) *Steps {
	steps := make([]Step, len(names))
	for i, name := range names {
		steps[i] = Step{Number: i + 1, Name: name, Status: StepPending}
	}
	s := &Steps{
		Label:     label,
		Steps:     steps,
		ShowBar:   true,
		ShowSteps: true,
	}
	return s.SetWidth(GetTerminalWidth())
}

// SetWidth sets the terminal width for responsive rendering
func (s *Steps) SetWidth(width int) *Steps {
	s.Width = width
	barWidth := min(max(width-20, 20), 50)
	s.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
	)
	return s
}

// Total returns the number of steps.
func (s *Steps) Total() int {
	return len(s.Steps)
}

// Update sets a step's status and message. Out of range step numbers are ignored.
func (s *Steps) Update(number int, status StepStatus, message string) {
	if number < 1 || number > len(s.Steps) {
		return
	}
	s.Steps[number-1].Status = status
	s.Steps[number-1].Message = message
	s.Current = number

	done := 0
	for _, step := range s.Steps {
		if step.Status == StepComplete || step.Status == StepSkipped {
			done++
		}
	}
	s.Percent = float64(done) / float64(len(s.Steps))
}

func (s *Steps) Start(number int, message string)    { s.Update(number, StepRunning, message) }
func (s *Steps) Complete(number int, message string) { s.Update(number, StepComplete, message) }
func (s *Steps) Fail(number int, message string)     { s.Update(number, StepFailed, message) }
func (s *Steps) Skip(number int, message string)     { s.Update(number, StepSkipped, message) }

// Failed reports whether any step failed.
func (s *Steps) Failed() bool {
	for _, step := range s.Steps {
		if step.Status == StepFailed {
			return true
		}
	}
	return false
}

// Render returns the styled progress display as a string
func (s *Steps) Render() string {
	var b strings.Builder

	if s.Label != "" {
		b.WriteString(ProgressLabelStyle.Render(s.Label))
		b.WriteString("\n\n")
	}
	if s.ShowBar {
		b.WriteString(s.renderBar())
		b.WriteString("\n\n")
	}
	if s.ShowSteps {
		lines := make([]string, len(s.Steps))
		for i, step := range s.Steps {
			lines[i] = s.renderStep(step)
		}
		b.WriteString(strings.Join(lines, "\n"))
	}
	return b.String()
}

func (s *Steps) renderBar() string {
	return lipgloss.NewStyle().
		PaddingLeft(2).
		Render(fmt.Sprintf("%s  %3.0f%%  [%d/%d]", s.bar.ViewAs(s.Percent), s.Percent*100, s.Current, len(s.Steps)))
}

func (s *Steps) renderStep(step Step) string {
	var (
		marker string
		style  lipgloss.Style
	)
	switch step.Status {
	case StepComplete:
		marker, style = StepMarkerComplete, StepCompleteStyle
	case StepRunning:
		marker, style = StepMarkerRunning, StepRunningStyle
	case StepFailed:
		marker, style = FailureMarker, ErrorTitleStyle
	case StepSkipped:
		marker, style = StepMarkerSkipped, StepPendingStyle
	default:
		marker, style = StepMarkerPending, StepPendingStyle
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  [%d/%d] ", step.Number, len(s.Steps))
	b.WriteString(style.Render(step.Name))
	// markers line up at column 45
	b.WriteString(strings.Repeat(" ", max(45-lipgloss.Width(step.Name), 1)))
	b.WriteString(style.Render(marker))
	if step.Message != "" {
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render("(" + step.Message + ")"))
	}
	return b.String()
}

// String implements fmt.Stringer
func (s *Steps) String() string {
	return s.Render()
}

// Plain renders one line per finished or running step, without styling.
func (s *Steps) Plain() string {
	var b strings.Builder
	for _, step := range s.Steps {
		var state string
		switch step.Status {
		case StepPending:
			continue
		case StepRunning:
			state = "running"
		case StepComplete:
			state = "ok"
		case StepFailed:
			state = "failed"
		case StepSkipped:
			state = "skipped"
		}
		fmt.Fprintf(&b, "[%d/%d] %s: %s", step.Number, len(s.Steps), step.Name, state)
		if step.Message != "" {
			fmt.Fprintf(&b, " (%s)", step.Message)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
