package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ConfirmPhrase is what the user must type to go ahead with an
// irreversible tag operation.
const ConfirmPhrase = "I AGREE"

// ConfirmDangerousOperation writes a warning box to out and reads one line
// from in. It returns true only if that line is ConfirmPhrase.
func ConfirmDangerousOperation(in io.Reader, out io.Writer, title string, warnings []string, disclaimer string) bool {
	width := GetTerminalWidth()

	lines := []string{
		"",
		lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true).
			Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, title)),
		"",
	}
	bullet := lipgloss.NewStyle().Foreground(TextColor)
	for _, warning := range warnings {
		lines = append(lines, bullet.Render("   • "+warning))
	}
	lines = append(lines, "")

	if disclaimer != "" {
		lines = append(lines, lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true).
			Width(width-12).
			PaddingLeft(3).
			Render(disclaimer), "")
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(WarningColor).
		Width(width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))

	fmt.Fprintln(out, box)
	fmt.Fprintln(out)
	fmt.Fprint(out, lipgloss.NewStyle().
		Foreground(WarningColor).
		Bold(true).
		Render(fmt.Sprintf("To proceed, type %q and press Enter: ", ConfirmPhrase)))

	input, err := bufio.NewReader(in).ReadString('\n')
	fmt.Fprintln(out)
	if err != nil && input == "" {
		return false
	}
	if strings.TrimSpace(input) == ConfirmPhrase {
		return true
	}

	fmt.Fprintln(out, lipgloss.NewStyle().Foreground(MutedColor).Render("  Operation cancelled."))
	fmt.Fprintln(out)
	return false
}

// KillConfirmation asks before permanently disabling a tag.
func KillConfirmation(in io.Reader, out io.Writer, epc string) bool {
	return ConfirmDangerousOperation(in, out,
		"KILL TAG "+epc,
		[]string{
			"A killed tag never responds to a reader again",
			"Only the tag matching this EPC is addressed, but any tag in the field with the same EPC is affected",
			"The kill password must be non-zero",
		},
		"This cannot be undone.",
	)
}

// LockConfirmation asks before a permanent lock action.
func LockConfirmation(in io.Reader, out io.Writer, epc, region string) bool {
	return ConfirmDangerousOperation(in, out,
		"PERMANENT LOCK ON "+epc,
		[]string{
			"The " + region + " lock state can never be changed again",
			"Keep the access password; it is still needed for locked memory",
		},
		"This cannot be undone.",
	)
}
