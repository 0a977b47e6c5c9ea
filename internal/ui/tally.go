package ui

import (
	"sort"
	"time"

	"github.com/muurk/r2k/internal/protocol"
)

// TagStat is the running summary of one EPC across inventory rounds.
type TagStat struct {
	EPC       string    `json:"epc"`
	Count     int       `json:"count"`
	RSSI      int       `json:"rssi"` // most recent read
	PeakRSSI  int       `json:"peak_rssi"`
	Antenna   int       `json:"antenna"`
	Frequency float64   `json:"frequency_mhz"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Tally aggregates tag reads by EPC. The zero value is ready to use.
type Tally struct {
	tags  map[string]*TagStat
	reads int
}

// Add records one read.
func (t *Tally) Add(rec protocol.TagRecord, at time.Time) {
	if t.tags == nil {
		t.tags = make(map[string]*TagStat)
	}
	t.reads++
	st, ok := t.tags[rec.EPC]
	if !ok {
		t.tags[rec.EPC] = &TagStat{
			EPC:       rec.EPC,
			Count:     1,
			RSSI:      rec.RSSI,
			PeakRSSI:  rec.RSSI,
			Antenna:   rec.Antenna,
			Frequency: rec.Frequency,
			FirstSeen: at,
			LastSeen:  at,
		}
		return
	}
	st.Count++
	st.RSSI = rec.RSSI
	st.PeakRSSI = max(st.PeakRSSI, rec.RSSI)
	st.Antenna = rec.Antenna
	st.Frequency = rec.Frequency
	st.LastSeen = at
}

// AddBuffer records buffered inventory records, each with its own count.
func (t *Tally) AddBuffer(records []protocol.BufferRecord, at time.Time) {
	for _, r := range records {
		t.Add(protocol.TagRecord{EPC: r.EPC, RSSI: r.RSSI, Antenna: r.Antenna, PC: r.PC}, at)
		t.tags[r.EPC].Count += max(r.Count, 1) - 1
		t.reads += max(r.Count, 1) - 1
	}
}

// Len returns the number of distinct EPCs.
func (t *Tally) Len() int {
	return len(t.tags)
}

// Reads returns the total number of reads recorded.
func (t *Tally) Reads() int {
	return t.reads
}

// Reset forgets every tag.
func (t *Tally) Reset() {
	t.tags = nil
	t.reads = 0
}

// Stats returns a copy of every tag, most read first and then by EPC.
func (t *Tally) Stats() []TagStat {
	out := make([]TagStat, 0, len(t.tags))
	for _, st := range t.tags {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].EPC < out[j].EPC
	})
	return out
}
