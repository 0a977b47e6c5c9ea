package protocol

import (
	"errors"
	"strings"
	"testing"
)

func frameFor(t *testing.T, cmd Command, payload []byte) Frame {
	t.Helper()
	f, err := ParseFrame(mustEncode(t, cmd, payload, 0x01))
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	return *f
}

var sampleEPC = []byte{0xE2, 0x00, 0x34, 0x12, 0xB8, 0x02, 0x01, 0x23, 0x45, 0x67, 0x89, 0x0A}

func TestClassifyTagEvent(t *testing.T) {
	// Channel 10 (903.5 MHz) on antenna 2, PC 0x3000 (12 byte EPC), RSSI byte 0x41.
	payload := concat([]byte{10<<2 | 0x01, 0x30, 0x00}, sampleEPC, []byte{0x41})

	resp := Classify(frameFor(t, CmdRealTimeInventory, payload))
	ev, ok := resp.(*TagEvent)
	if !ok {
		t.Fatalf("Classify() = %T (%s), want *TagEvent", resp, Describe(resp))
	}

	tag := ev.Tag
	if tag.EPC != "E2003412B80201234567890A" {
		t.Errorf("EPC = %q, want E2003412B80201234567890A", tag.EPC)
	}
	if len(tag.EPC) != 24 {
		t.Errorf("len(EPC) = %d, want 24", len(tag.EPC))
	}
	if tag.RSSI != -64 {
		t.Errorf("RSSI = %d, want -64", tag.RSSI)
	}
	if tag.Antenna != 2 {
		t.Errorf("Antenna = %d, want 2", tag.Antenna)
	}
	if tag.Frequency != 903.5 {
		t.Errorf("Frequency = %v, want 903.5", tag.Frequency)
	}
	if tag.PC != 0x3000 {
		t.Errorf("PC = 0x%04X, want 0x3000", tag.PC)
	}
	if !resp.IsEvent() || resp.Kind() != KindTag {
		t.Errorf("Kind() = %s, IsEvent() = %v", resp.Kind(), resp.IsEvent())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		payload []byte
		check   func(t *testing.T, r Response)
	}{
		{
			name:    "plain reply",
			cmd:     CmdGetWorkAntenna,
			payload: []byte{0x02},
			check: func(t *testing.T, r Response) {
				reply, ok := r.(*Reply)
				if !ok {
					t.Fatalf("got %T, want *Reply", r)
				}
				if reply.IsEvent() || reply.Data[0] != 0x02 {
					t.Errorf("reply = %+v", reply)
				}
			},
		},
		{
			name:    "real-time round summary",
			cmd:     CmdRealTimeInventory,
			payload: []byte{0x00, 0x00, 0x64, 0x00, 0x00, 0x01, 0x2C},
			check: func(t *testing.T, r Response) {
				rc, ok := r.(*RoundComplete)
				if !ok {
					t.Fatalf("got %T, want *RoundComplete", r)
				}
				if rc.Antenna != 1 || rc.ReadRate != 100 || rc.TotalRead != 300 || rc.Duration != 0 {
					t.Errorf("RoundComplete = %+v, want antenna 1, rate 100, total 300", rc)
				}
			},
		},
		{
			name:    "session round summary",
			cmd:     CmdSessionTargetInventory,
			payload: []byte{0x03, 0x00, 0x0A, 0x00, 0x00, 0x00, 0x14},
			check: func(t *testing.T, r Response) {
				rc := r.(*RoundComplete)
				if rc.Antenna != 4 || rc.ReadRate != 10 || rc.TotalRead != 20 {
					t.Errorf("RoundComplete = %+v", rc)
				}
			},
		},
		{
			name:    "fast switch round summary",
			cmd:     CmdFastSwitchAntInventory,
			payload: []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x03, 0xE8},
			check: func(t *testing.T, r Response) {
				rc, ok := r.(*RoundComplete)
				if !ok {
					t.Fatalf("got %T, want *RoundComplete", r)
				}
				if rc.TotalRead != 256 || rc.Duration != 1000 || rc.ReadRate != 0 {
					t.Errorf("RoundComplete = %+v, want total 256, duration 1000", rc)
				}
			},
		},
		{
			name:    "ISO 6B round summary",
			cmd:     CmdISO6BInventory,
			payload: []byte{0x01, 0x00, 0x01, 0x00, 0x00, 0x00, 0x32},
			check: func(t *testing.T, r Response) {
				rc := r.(*RoundComplete)
				if rc.TotalRead != 65537 || rc.Duration != 50 {
					t.Errorf("RoundComplete = %+v, want total 65537, duration 50", rc)
				}
			},
		},
		{
			name:    "error summary",
			cmd:     CmdRealTimeInventory,
			payload: []byte{byte(ErrAntennaMissing)},
			check: func(t *testing.T, r Response) {
				ev, ok := r.(*ErrorEvent)
				if !ok {
					t.Fatalf("got %T, want *ErrorEvent", r)
				}
				if ev.Code != ErrAntennaMissing || ev.Text != ErrAntennaMissing.Text() {
					t.Errorf("ErrorEvent = %+v", ev)
				}
			},
		},
		{
			name:    "antenna disconnected",
			cmd:     CmdFastSwitchAntInventory,
			payload: []byte{0x02, byte(ErrAntennaMissing)},
			check: func(t *testing.T, r Response) {
				ev, ok := r.(*AntennaDisconnected)
				if !ok {
					t.Fatalf("got %T, want *AntennaDisconnected", r)
				}
				if ev.Antenna != 3 {
					t.Errorf("Antenna = %d, want 3", ev.Antenna)
				}
			},
		},
		{
			name:    "truncated PC word",
			cmd:     CmdRealTimeInventory,
			payload: []byte{0x02, 0x11},
			check: func(t *testing.T, r Response) {
				ev, ok := r.(*ErrorEvent)
				if !ok {
					t.Fatalf("got %T, want *ErrorEvent", r)
				}
				if ev.Code != 0 || !strings.Contains(ev.Text, "decode error") {
					t.Errorf("ErrorEvent = %+v, want a decode error", ev)
				}
			},
		},
		{
			name:    "empty read",
			cmd:     CmdRealTimeInventory,
			payload: []byte{0x01, 0x00, 0x00, 0x50},
			check: func(t *testing.T, r Response) {
				ev, ok := r.(*EmptyRead)
				if !ok {
					t.Fatalf("got %T, want *EmptyRead", r)
				}
				if ev.Antenna != 2 {
					t.Errorf("Antenna = %d, want 2", ev.Antenna)
				}
			},
		},
		{
			name:    "EPC overruns payload",
			cmd:     CmdRealTimeInventory,
			payload: []byte{0x00, 0x30, 0x00, 0x01, 0x02, 0x41},
			check: func(t *testing.T, r Response) {
				if _, ok := r.(*ErrorEvent); !ok {
					t.Fatalf("got %T, want *ErrorEvent", r)
				}
			},
		},
		{
			name:    "frequency index outside table",
			cmd:     CmdRealTimeInventory,
			payload: []byte{0xFC, 0x08, 0x00, 0xAA, 0xBB, 0x41},
			check: func(t *testing.T, r Response) {
				ev, ok := r.(*ErrorEvent)
				if !ok {
					t.Fatalf("got %T, want *ErrorEvent", r)
				}
				if !strings.Contains(ev.Text, "frequency index 63") {
					t.Errorf("Text = %q", ev.Text)
				}
			},
		},
		{
			name:    "empty event payload",
			cmd:     CmdRealTimeInventory,
			payload: nil,
			check: func(t *testing.T, r Response) {
				if _, ok := r.(*ErrorEvent); !ok {
					t.Fatalf("got %T, want *ErrorEvent", r)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Classify(frameFor(t, tt.cmd, tt.payload)))
		})
	}
}

func TestReplyErr(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		wantCode ErrorCode
		wantErr  bool
	}{
		{"success", []byte{byte(ErrSuccess)}, 0, false},
		{"failure", []byte{byte(ErrFail)}, ErrFail, true},
		{"data reply", []byte{0x01, 0x02}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Reply{Command: CmdSetWorkAntenna, Data: tt.data}).Err()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Err() = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			pe, ok := IsProtocolError(err)
			if !ok {
				t.Fatalf("IsProtocolError(%v) = false", err)
			}
			if pe.Code != tt.wantCode || pe.Command != CmdSetWorkAntenna {
				t.Errorf("ProtocolError = %+v", pe)
			}
		})
	}
}

func TestErrorCodeText(t *testing.T) {
	if got := ErrTagRead.Text(); got != "Tag read error" {
		t.Errorf("ErrTagRead.Text() = %q", got)
	}
	if got := ErrorCode(0x99).Text(); !strings.Contains(got, "0x99") {
		t.Errorf("unknown code text = %q, want hex value", got)
	}
	for code := ErrParameterInvalid; code <= ErrFrequencyRangeInvalid; code++ {
		if !code.Known() {
			t.Errorf("code 0x%02X has no text", byte(code))
		}
	}
	for code := ErrNoRN16FromTag; code <= ErrOutputPowerTooLow; code++ {
		if !code.Known() {
			t.Errorf("code 0x%02X has no text", byte(code))
		}
	}

	err := error(&ProtocolError{Command: CmdRead, Code: ErrNoTag})
	if !strings.Contains(err.Error(), "No tag") {
		t.Errorf("Error() = %q", err.Error())
	}
	if _, ok := IsProtocolError(errors.New("other")); ok {
		t.Error("IsProtocolError(plain error) = true")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		resp Response
		want string
	}{
		{&AntennaDisconnected{Antenna: 2}, "antenna 2 disconnected"},
		{&EmptyRead{Antenna: 1}, "empty read on antenna 1"},
		{&ErrorEvent{Code: ErrNoTag, Text: ErrNoTag.Text()}, "error 0x36: No tag in the field"},
		{&Reply{Command: CmdReset, Data: []byte{0x10}}, "Reset: Command succeeded"},
	}
	for _, tt := range tests {
		if got := Describe(tt.resp); got != tt.want {
			t.Errorf("Describe(%T) = %q, want %q", tt.resp, got, tt.want)
		}
	}
}
