package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/muurk/r2k/internal/protocol"
)

func TestTallyStatsOrder(t *testing.T) {
	var tally Tally
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tally.Add(protocol.TagRecord{EPC: "BBBB", RSSI: -60, Antenna: 1, Frequency: 902.75}, t0)
	tally.Add(protocol.TagRecord{EPC: "AAAA", RSSI: -50, Antenna: 1}, t0)
	tally.Add(protocol.TagRecord{EPC: "CCCC", RSSI: -40, Antenna: 2}, t0)
	tally.Add(protocol.TagRecord{EPC: "CCCC", RSSI: -45, Antenna: 3, Frequency: 915.25}, t0.Add(time.Second))

	stats := tally.Stats()
	var epcs []string
	for _, st := range stats {
		epcs = append(epcs, st.EPC)
	}
	if got := strings.Join(epcs, ","); got != "CCCC,AAAA,BBBB" {
		t.Fatalf("order = %s, want CCCC,AAAA,BBBB", got)
	}

	c := stats[0]
	if c.Count != 2 || c.RSSI != -45 || c.PeakRSSI != -40 || c.Antenna != 3 {
		t.Errorf("CCCC = %+v", c)
	}
	if !c.FirstSeen.Equal(t0) || !c.LastSeen.Equal(t0.Add(time.Second)) {
		t.Errorf("CCCC seen %v..%v", c.FirstSeen, c.LastSeen)
	}
	if tally.Len() != 3 || tally.Reads() != 4 {
		t.Errorf("Len() = %d, Reads() = %d, want 3 and 4", tally.Len(), tally.Reads())
	}

	tally.Reset()
	if tally.Len() != 0 || tally.Reads() != 0 {
		t.Errorf("after Reset Len() = %d, Reads() = %d", tally.Len(), tally.Reads())
	}
}

func TestTallyAddBuffer(t *testing.T) {
	var tally Tally
	tally.AddBuffer([]protocol.BufferRecord{
		{EPC: "AAAA", RSSI: -55, Antenna: 1, Count: 5},
		{EPC: "BBBB", RSSI: -65, Antenna: 2, Count: 0},
	}, time.Now())

	stats := tally.Stats()
	if len(stats) != 2 || stats[0].EPC != "AAAA" || stats[0].Count != 5 || stats[1].Count != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
	if tally.Reads() != 6 {
		t.Errorf("Reads() = %d, want 6", tally.Reads())
	}
}

func TestStepsProgress(t *testing.T) {
	s := NewSteps("Applying profile", "region", "power", "antenna", "beeper")
	s.Complete(1, "FCC")
	s.Skip(2, "")
	s.Start(3, "")

	if s.Percent != 0.5 {
		t.Errorf("Percent = %v, want 0.5", s.Percent)
	}
	if s.Current != 3 {
		t.Errorf("Current = %d, want 3", s.Current)
	}
	if s.Failed() {
		t.Error("Failed() = true before any failure")
	}

	s.Fail(3, "timeout")
	s.Update(9, StepComplete, "") // ignored
	if !s.Failed() {
		t.Error("Failed() = false after Fail")
	}

	want := "[1/4] region: ok (FCC)\n[2/4] power: skipped\n[3/4] antenna: failed (timeout)\n"
	if got := s.Plain(); got != want {
		t.Errorf("Plain() =\n%s\nwant\n%s", got, want)
	}
	if !strings.Contains(s.Render(), "antenna") {
		t.Error("Render() is missing a step name")
	}
}

func TestResultPlain(t *testing.T) {
	r := NewFailureResult("Write failed", errors.New("tag not found"), []string{"move the tag closer"})
	r.AddDetail("EPC", "E200").AddDetail("Antenna", "1")

	want := "FAILED: Write failed\n  Antenna: 1\n  EPC: E200\n  error: tag not found\n  - move the tag closer\n"
	if got := r.Plain(); got != want {
		t.Errorf("Plain() =\n%s\nwant\n%s", got, want)
	}
	if !strings.Contains(r.Render(), "Write failed") {
		t.Error("Render() is missing the title")
	}
}

func TestConfirmDangerousOperation(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"I AGREE\n", true},
		{"  I AGREE  \n", true},
		{"I AGREE", true},
		{"yes\n", false},
		{"i agree\n", false},
		{"", false},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		got := KillConfirmation(strings.NewReader(tt.input), &out, "E2003412")
		if got != tt.want {
			t.Errorf("input %q: confirmed = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "E2003412") {
			t.Errorf("input %q: prompt does not name the tag", tt.input)
		}
	}
}

func TestPrinterPlain(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out)
	if p.Styled() {
		t.Fatal("Styled() = true for a buffer")
	}

	p.Header("Inventory", "r2k inventory", nil)
	p.Success("Power set", map[string]string{"Antenna 1": "30 dBm"})
	p.Tags([]TagStat{{EPC: "E200", Count: 3, RSSI: -61, Antenna: 2, Frequency: 902.75}})

	want := "OK: Power set\n  Antenna 1: 30 dBm\nE200\t3\t-61\t2\t902.75\n"
	if got := out.String(); got != want {
		t.Errorf("output =\n%q\nwant\n%q", got, want)
	}
}

func TestTagTable(t *testing.T) {
	out := TagTable([]TagStat{
		{EPC: "E2003412B802", Count: 7, RSSI: -48, Antenna: 1, Frequency: 915.25},
		{EPC: "300833B2DDD9", Count: 1, RSSI: -80, Antenna: 4, Frequency: 902.75},
	})
	for _, want := range []string{"EPC", "E2003412B802", "300833B2DDD9", "915.25", "-80"} {
		if !strings.Contains(out, want) {
			t.Errorf("TagTable() missing %q:\n%s", want, out)
		}
	}
}

func TestClampWidth(t *testing.T) {
	tests := []struct{ in, want int }{
		{10, MinTerminalWidth},
		{80, 80},
		{300, MaxContentWidth},
	}
	for _, tt := range tests {
		if got := clampWidth(tt.in); got != tt.want {
			t.Errorf("clampWidth(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
