package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Kind identifies the variant of a Response.
type Kind int

const (
	KindReply Kind = iota
	KindRoundComplete
	KindError
	KindTag
	KindAntennaDisconnected
	KindEmptyRead
)

func (k Kind) String() string {
	switch k {
	case KindReply:
		return "reply"
	case KindRoundComplete:
		return "round_complete"
	case KindError:
		return "error"
	case KindTag:
		return "tag"
	case KindAntennaDisconnected:
		return "antenna_disconnected"
	case KindEmptyRead:
		return "empty_read"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Response is the classified form of one inbound frame. The concrete type
// is one of *Reply, *RoundComplete, *ErrorEvent, *TagEvent,
// *AntennaDisconnected or *EmptyRead.
type Response interface {
	Kind() Kind
	// IsEvent reports whether the response belongs on the asynchronous event
	// stream rather than answering a pending command.
	IsEvent() bool
	isResponse()
}

// Reply is the synchronous answer to the last command sent.
type Reply struct {
	Command Command `json:"command"`
	Data    []byte  `json:"data"`
}

// RoundComplete summarizes a finished inventory round.
type RoundComplete struct {
	Command   Command `json:"command"`
	Antenna   int     `json:"antenna,omitempty"`   // real-time and session inventories only
	ReadRate  uint16  `json:"read_rate,omitempty"` // tags per second, real-time and session inventories only
	TotalRead uint32  `json:"total_read"`
	Duration  uint32  `json:"duration_ms,omitempty"` // fast-switch and ISO 18000-6B inventories only
}

// ErrorEvent reports an inventory failure, or an event frame that could not
// be decoded. Decode failures carry a zero Code.
type ErrorEvent struct {
	Command Command   `json:"command"`
	Code    ErrorCode `json:"code"`
	Text    string    `json:"text"`
}

// TagEvent is one tag read reported during an inventory.
type TagEvent struct {
	Command Command   `json:"command"`
	Tag     TagRecord `json:"tag"`
}

// AntennaDisconnected reports that the antenna selected for an inventory is
// not connected.
type AntennaDisconnected struct {
	Command Command `json:"command"`
	Antenna int     `json:"antenna"`
}

// EmptyRead reports a tag response whose PC word declares no EPC.
type EmptyRead struct {
	Command Command `json:"command"`
	Antenna int     `json:"antenna"`
}

func (*Reply) Kind() Kind               { return KindReply }
func (*RoundComplete) Kind() Kind       { return KindRoundComplete }
func (*ErrorEvent) Kind() Kind          { return KindError }
func (*TagEvent) Kind() Kind            { return KindTag }
func (*AntennaDisconnected) Kind() Kind { return KindAntennaDisconnected }
func (*EmptyRead) Kind() Kind           { return KindEmptyRead }

func (*Reply) IsEvent() bool               { return false }
func (*RoundComplete) IsEvent() bool       { return true }
func (*ErrorEvent) IsEvent() bool          { return true }
func (*TagEvent) IsEvent() bool            { return true }
func (*AntennaDisconnected) IsEvent() bool { return true }
func (*EmptyRead) IsEvent() bool           { return true }

func (*Reply) isResponse()               {}
func (*RoundComplete) isResponse()       {}
func (*ErrorEvent) isResponse()          {}
func (*TagEvent) isResponse()            {}
func (*AntennaDisconnected) isResponse() {}
func (*EmptyRead) isResponse()           {}

// Status returns the reply as a single status byte. ok is false when the
// reply carries data instead.
func (r *Reply) Status() (code ErrorCode, ok bool) {
	if len(r.Data) != 1 {
		return 0, false
	}
	return ErrorCode(r.Data[0]), true
}

// Err returns a *ProtocolError when the reply is a single non-success status
// byte, and nil otherwise.
func (r *Reply) Err() error {
	if code, ok := r.Status(); ok && code != ErrSuccess {
		return &ProtocolError{Command: r.Command, Code: code}
	}
	return nil
}

// CRCStatus tells whether a tag record's CRC was checked and matched.
type CRCStatus int

const (
	CRCNotChecked CRCStatus = iota
	CRCValid
	CRCInvalid
)

func (s CRCStatus) String() string {
	switch s {
	case CRCValid:
		return "valid"
	case CRCInvalid:
		return "invalid"
	default:
		return "not_checked"
	}
}

// MarshalText renders the status by name in JSON and YAML output.
func (s CRCStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TagRecord is a decoded tag read.
type TagRecord struct {
	Antenna   int       `json:"antenna"` // 1-4
	Frequency float64   `json:"frequency_mhz"`
	RSSI      int       `json:"rssi"`
	EPC       string    `json:"epc"` // uppercase hex
	PC        uint16    `json:"pc"`
	CRC       CRCStatus `json:"crc"`
}

// EPCLength returns the EPC length in bytes encoded in the upper five bits of
// a PC word (a word count, so always even).
func EPCLength(pc uint16) int {
	return int(((pc & 0xF800) >> 10) & 0x3E)
}

// FormatEPC renders EPC bytes as the uppercase hex string used throughout
// the package.
func FormatEPC(b []byte) string {
	return strings.ToUpper(fmt.Sprintf("%x", b))
}

// Classify turns a validated frame into a Response. It never fails: frames
// for non-inventory commands are replies, and inventory frames that do not
// decode become ErrorEvents describing the problem.
func Classify(f Frame) Response {
	cmd, p := f.Command, f.Payload
	if !cmd.IsInventoryReport() {
		return &Reply{Command: cmd, Data: p}
	}

	switch {
	case len(p) == 0:
		return decodeFailure(cmd, "empty event payload")
	case len(p) == 1 || f.Length == 0x04:
		code := ErrorCode(p[0])
		return &ErrorEvent{Command: cmd, Code: code, Text: code.Text()}
	case f.Length == 0x0A:
		return decodeRoundComplete(cmd, p)
	default:
		return decodeTag(cmd, p)
	}
}

func decodeFailure(cmd Command, format string, args ...any) *ErrorEvent {
	return &ErrorEvent{Command: cmd, Text: "decode error: " + fmt.Sprintf(format, args...)}
}

// decodeRoundComplete handles the two summary layouts. Real-time and
// session inventories send [antenna][rate u16][total u32]; fast-switch and
// ISO 18000-6B inventories send [total u24][duration u32].
func decodeRoundComplete(cmd Command, p []byte) Response {
	if len(p) < 7 {
		return decodeFailure(cmd, "round summary is %d bytes, want 7", len(p))
	}
	switch cmd {
	case CmdRealTimeInventory, CmdSessionTargetInventory:
		return &RoundComplete{
			Command:   cmd,
			Antenna:   int(p[0]&0x03) + 1,
			ReadRate:  binary.BigEndian.Uint16(p[1:3]),
			TotalRead: binary.BigEndian.Uint32(p[3:7]),
		}
	default:
		return &RoundComplete{
			Command:   cmd,
			TotalRead: uint32(p[0])<<16 | uint32(p[1])<<8 | uint32(p[2]),
			Duration:  binary.BigEndian.Uint32(p[3:7]),
		}
	}
}

// decodeTag decodes [freq<<2|ant][PC u16][EPC][RSSI].
func decodeTag(cmd Command, p []byte) Response {
	antenna := int(p[0]&0x03) + 1

	if len(p) < 3 {
		if p[1] == byte(ErrAntennaMissing) {
			return &AntennaDisconnected{Command: cmd, Antenna: antenna}
		}
		return decodeFailure(cmd, "tag report too short for a PC word (%d bytes)", len(p))
	}

	pc := binary.BigEndian.Uint16(p[1:3])
	size := EPCLength(pc)
	if size == 0 {
		return &EmptyRead{Command: cmd, Antenna: antenna}
	}
	if 3+size >= len(p) {
		return decodeFailure(cmd, "EPC of %d bytes overruns %d byte tag report", size, len(p))
	}

	idx := int((p[0] >> 2) & 0x3F)
	freq, err := Frequency(idx)
	if err != nil {
		return decodeFailure(cmd, "frequency index %d outside table", idx)
	}

	return &TagEvent{
		Command: cmd,
		Tag: TagRecord{
			Antenna:   antenna,
			Frequency: freq,
			RSSI:      int(p[len(p)-1]) - 129,
			EPC:       FormatEPC(p[3 : 3+size]),
			PC:        pc,
		},
	}
}
