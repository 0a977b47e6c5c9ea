package ui

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Printer writes UI components to a writer. When the writer is not a
// terminal, components are written as plain text.
type Printer struct {
	out    io.Writer
	width  int
	styled bool
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	f, ok := w.(*os.File)
	return &Printer{
		out:    w,
		width:  GetTerminalWidth(),
		styled: ok && IsTerminal(f),
	}
}

// Styled reports whether components are rendered with lipgloss.
func (p *Printer) Styled() bool {
	return p.styled
}

// SetStyled overrides terminal detection.
func (p *Printer) SetStyled(styled bool) *Printer {
	p.styled = styled
	return p
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Print writes content to the output
func (p *Printer) Print(content string) {
	_, _ = fmt.Fprint(p.out, content)
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Printf writes formatted content
func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// Header prints a command header. It prints nothing on a plain writer.
func (p *Printer) Header(title, command string, params map[string]string) {
	if !p.styled {
		return
	}
	p.Println(NewHeader(title, command, params).SetWidth(p.width).Render())
	p.Newline()
}

// Success prints a success box with details.
func (p *Printer) Success(title string, details map[string]string) {
	p.result(NewSuccessResult(title, details))
}

// Failure prints a failure box with troubleshooting tips.
func (p *Printer) Failure(title string, err error, troubleshooting ...string) {
	p.result(NewFailureResult(title, err, troubleshooting))
}

// Warning prints a warning box with details.
func (p *Printer) Warning(title string, details map[string]string) {
	p.result(NewWarningResult(title, details))
}

func (p *Printer) result(r *Result) {
	if !p.styled {
		p.Print(r.Plain())
		return
	}
	p.Println(r.SetWidth(p.width).Render())
}

// Steps prints the current state of a step list.
func (p *Printer) Steps(s *Steps) {
	if !p.styled {
		p.Print(s.Plain())
		return
	}
	p.Println(s.SetWidth(p.width).Render())
	p.Newline()
}

// TagColumns are the tag table column titles.
var TagColumns = []string{"EPC", "COUNT", "RSSI", "ANT", "MHZ"}

// TagRow formats one tag for a table.
func TagRow(st TagStat) []string {
	return []string{
		st.EPC,
		strconv.Itoa(st.Count),
		strconv.Itoa(st.RSSI),
		strconv.Itoa(st.Antenna),
		strconv.FormatFloat(st.Frequency, 'f', 2, 64),
	}
}

// TagTable renders tags as a bordered table.
func TagTable(tags []TagStat) string {
	rows := make([][]string, len(tags))
	for i, st := range tags {
		rows[i] = TagRow(st)
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(PrimaryColor)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case col == 2 && tags[row].RSSI < WeakRSSI:
				return WeakSignalStyle
			default:
				return TableCellStyle
			}
		}).
		Headers(TagColumns...).
		Rows(rows...).
		Render()
}

// Tags prints a tag table followed by a one-line summary.
func (p *Printer) Tags(tags []TagStat) {
	reads := 0
	for _, st := range tags {
		reads += st.Count
	}
	if !p.styled {
		for _, st := range tags {
			p.Printf("%s\t%d\t%d\t%d\t%.2f\n", st.EPC, st.Count, st.RSSI, st.Antenna, st.Frequency)
		}
		return
	}
	if len(tags) > 0 {
		p.Println(TagTable(tags))
	}
	p.Println(HeaderCommandStyle.Render(fmt.Sprintf("%d tags, %d reads", len(tags), reads)))
}
