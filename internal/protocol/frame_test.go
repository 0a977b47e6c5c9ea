package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		payload []byte
		address byte
		want    []byte
	}{
		{
			name:    "reset without payload",
			cmd:     CmdReset,
			address: 0x01,
			want:    []byte{0xA0, 0x03, 0x01, 0x70, 0xEC},
		},
		{
			name:    "set work antenna 0",
			cmd:     CmdSetWorkAntenna,
			payload: []byte{0x00},
			address: 0x01,
			want:    []byte{0xA0, 0x04, 0x01, 0x74, 0x00, 0xE7},
		},
		{
			name:    "broadcast address",
			cmd:     CmdGetFirmwareVersion,
			address: BroadcastAddress,
			want:    []byte{0xA0, 0x03, 0xFF, 0x72, LRC([]byte{0xA0, 0x03, 0xFF, 0x72})},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.cmd, tt.payload, tt.address)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode() = % X, want % X", got, tt.want)
			}
			if Sum8(got) != 0 {
				t.Errorf("Sum8(frame) = 0x%02X, want 0", Sum8(got))
			}
		})
	}
}

func TestEncodeRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		payload []byte
		field   string
	}{
		{"unknown command", Command(0x00), nil, "command"},
		{"payload too large", CmdWrite, make([]byte, MaxPayloadSize+1), "payload length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Encode(tt.cmd, tt.payload, 0x01)
			if raw != nil {
				t.Errorf("Encode() produced a frame: % X", raw)
			}
			var argErr *InvalidArgumentError
			if !errors.As(err, &argErr) {
				t.Fatalf("Encode() error = %v, want *InvalidArgumentError", err)
			}
			if argErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", argErr.Field, tt.field)
			}
		})
	}
}

func TestEncodeMaxPayload(t *testing.T) {
	raw, err := Encode(CmdWrite, make([]byte, MaxPayloadSize), 0x01)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if raw[1] != 0xFE {
		t.Errorf("LEN = 0x%02X, want 0xFE", raw[1])
	}
	if len(raw) != int(raw[1])+2 {
		t.Errorf("len(frame) = %d, want LEN+2 = %d", len(raw), int(raw[1])+2)
	}
}

func TestRoundTrip(t *testing.T) {
	build := func(r Request, err error) Request {
		t.Helper()
		if err != nil {
			t.Fatalf("builder error = %v", err)
		}
		return r
	}
	pwd := Password{0x00, 0x00, 0x00, 0x00}

	requests := []Request{
		Reset(),
		GetFirmwareVersion(),
		build(SetWorkAntenna(3)),
		build(SetRFPower(30, 30, 20, 0)),
		build(SetReaderAddress(0xFE)),
		build(SetReaderIdentifier("R2K-DOCK-01")),
		build(SessionInventory(SessionS1, TargetA, 1)),
		build(FastSwitchInventory(DefaultFastSwitchConfig())),
		build(ReadTag(BankTID, 0, 6, pwd)),
		build(WriteTag(BankUser, 0, []byte{0xDE, 0xAD, 0xBE, 0xEF}, pwd)),
		build(SetAccessEPCMatch(0, []byte{0xE2, 0x00, 0x34, 0x12})),
		build(SetUserFrequencyRegion(914920, 500, 10)),
		{Command: CmdWriteBlock, Payload: bytes.Repeat([]byte{0xA0}, MaxPayloadSize)},
	}

	for _, req := range requests {
		t.Run(req.Command.String(), func(t *testing.T) {
			raw, err := Encode(req.Command, req.Payload, 0x01)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !VerifyLRC(raw) {
				t.Errorf("VerifyLRC(% X) = false", raw)
			}

			f, err := ParseFrame(raw)
			if err != nil {
				t.Fatalf("ParseFrame() error = %v", err)
			}
			if f.Command != req.Command {
				t.Errorf("Command = %s, want %s", f.Command, req.Command)
			}
			if !bytes.Equal(f.Payload, req.Payload) {
				t.Errorf("Payload = % X, want % X", f.Payload, req.Payload)
			}
			if !bytes.Equal(f.Bytes(), raw) {
				t.Errorf("Bytes() = % X, want % X", f.Bytes(), raw)
			}
		})
	}
}

func TestParseFrameErrors(t *testing.T) {
	valid, _ := Encode(CmdGetWorkAntenna, nil, 0x01)

	tests := []struct {
		name string
		raw  []byte
	}{
		{"too short", []byte{0xA0, 0x03, 0x01}},
		{"wrong head", append([]byte{0xA1}, valid[1:]...)},
		{"length mismatch", append(append([]byte{}, valid...), 0x00)},
		{"bad checksum", append(append([]byte{}, valid[:len(valid)-1]...), valid[len(valid)-1]^0x01)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseFrame(tt.raw); err == nil {
				t.Errorf("ParseFrame(% X) succeeded, want error", tt.raw)
			}
		})
	}
}

func TestEncoderCommitsAddressAfterWrite(t *testing.T) {
	enc := NewEncoder(0x01)
	req, err := SetReaderAddress(0x05)
	if err != nil {
		t.Fatalf("SetReaderAddress() error = %v", err)
	}

	raw, err := enc.Encode(req.Command, req.Payload)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if raw[2] != 0x01 {
		t.Errorf("set-address frame ADDR = 0x%02X, want old address 0x01", raw[2])
	}
	if enc.Address() != 0x01 {
		t.Errorf("Address() before Commit = 0x%02X, want 0x01", enc.Address())
	}

	if !enc.Commit(req.Command, req.Payload) {
		t.Error("Commit() = false, want true")
	}

	next, _ := enc.Encode(CmdGetWorkAntenna, nil)
	if next[2] != 0x05 {
		t.Errorf("next frame ADDR = 0x%02X, want 0x05", next[2])
	}
	if enc.State().Address != 0x05 {
		t.Errorf("State().Address = 0x%02X, want 0x05", enc.State().Address)
	}
}

func TestEncoderCommitIgnoresOtherCommands(t *testing.T) {
	enc := NewEncoder(0x01)
	if enc.Commit(CmdSetWorkAntenna, []byte{0x02}) {
		t.Error("Commit(SetWorkAntenna) = true, want false")
	}
	if enc.Address() != 0x01 {
		t.Errorf("Address() = 0x%02X, want 0x01", enc.Address())
	}
}
