package protocol

import (
	"encoding/hex"
	"fmt"
)

// Frame layout constants
const (
	FrameHead        = 0xA0 // First byte of every frame
	BroadcastAddress = 0xFF // Address accepted by every reader
	MaxPayloadSize   = 251  // LEN is one byte and counts ADDR, CMD and CHK
	MinFrameSize     = 5    // Head, LEN, ADDR, CMD, CHK
	frameOverhead    = 3    // Bytes counted by LEN besides the payload
)

// Frame is one complete, validated protocol frame.
type Frame struct {
	Head     byte
	Length   byte // 3 + len(Payload)
	Address  byte
	Command  Command
	Payload  []byte
	Checksum byte
}

// Encode builds the wire bytes for cmd with the given payload and reader
// address: head, length, address, command, payload, then the LRC.
func Encode(cmd Command, payload []byte, address byte) ([]byte, error) {
	if !cmd.Known() {
		return nil, invalidArg("command", fmt.Sprintf("0x%02X", byte(cmd)), "unknown command code")
	}
	if len(payload) > MaxPayloadSize {
		return nil, invalidArg("payload length", len(payload), "must be at most %d bytes", MaxPayloadSize)
	}

	frame := make([]byte, 0, len(payload)+MinFrameSize)
	frame = append(frame, FrameHead, byte(len(payload)+frameOverhead), address, byte(cmd))
	frame = append(frame, payload...)
	frame = append(frame, LRC(frame))
	return frame, nil
}

// ParseFrame decodes exactly one frame from raw. It is the inverse of Encode
// and checks the head byte, the declared length and the checksum.
func ParseFrame(raw []byte) (*Frame, error) {
	if len(raw) < MinFrameSize {
		return nil, fmt.Errorf("frame too short: %d bytes (min %d)", len(raw), MinFrameSize)
	}
	if raw[0] != FrameHead {
		return nil, fmt.Errorf("invalid head byte: 0x%02X (expected 0x%02X)", raw[0], FrameHead)
	}
	if int(raw[1])+2 != len(raw) {
		return nil, fmt.Errorf("length mismatch: header declares %d, frame has %d bytes", int(raw[1])+2, len(raw))
	}
	if !VerifyLRC(raw) {
		return nil, fmt.Errorf("checksum mismatch: got 0x%02X, want 0x%02X", raw[len(raw)-1], LRC(raw[:len(raw)-1]))
	}
	return newFrame(raw), nil
}

// newFrame copies raw into a Frame so the caller may reuse its buffer.
func newFrame(raw []byte) *Frame {
	payload := make([]byte, len(raw)-MinFrameSize)
	copy(payload, raw[4:len(raw)-1])
	return &Frame{
		Head:     raw[0],
		Length:   raw[1],
		Address:  raw[2],
		Command:  Command(raw[3]),
		Payload:  payload,
		Checksum: raw[len(raw)-1],
	}
}

// Bytes re-serialises the frame exactly as it appeared on the wire.
func (f *Frame) Bytes() []byte {
	raw := make([]byte, 0, len(f.Payload)+MinFrameSize)
	raw = append(raw, f.Head, f.Length, f.Address, byte(f.Command))
	raw = append(raw, f.Payload...)
	return append(raw, f.Checksum)
}

// String returns a debug representation of the frame
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{Addr=0x%02X, Cmd=%s, Len=%d, Payload=%s}",
		f.Address, f.Command, f.Length, hex.EncodeToString(f.Payload))
}
