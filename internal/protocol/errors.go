package protocol

import (
	"errors"
	"fmt"
)

// ErrorCode is a status byte reported by the reader, either as the single
// payload byte of a command reply or inside an inventory error event.
type ErrorCode byte

const (
	ErrSuccess ErrorCode = 0x10
	ErrFail    ErrorCode = 0x11

	ErrMCUReset       ErrorCode = 0x20
	ErrCWOn           ErrorCode = 0x21
	ErrAntennaMissing ErrorCode = 0x22
	ErrWriteFlash     ErrorCode = 0x23
	ErrReadFlash      ErrorCode = 0x24
	ErrSetOutputPower ErrorCode = 0x25

	ErrTagInventory          ErrorCode = 0x31
	ErrTagRead               ErrorCode = 0x32
	ErrTagWrite              ErrorCode = 0x33
	ErrTagLock               ErrorCode = 0x34
	ErrTagKill               ErrorCode = 0x35
	ErrNoTag                 ErrorCode = 0x36
	ErrInventoryOKAccessFail ErrorCode = 0x37
	ErrBufferEmpty           ErrorCode = 0x38
	ErrNXPCustomCommandFail  ErrorCode = 0x3C

	ErrAccessOrPassword       ErrorCode = 0x40
	ErrParameterInvalid       ErrorCode = 0x41
	ErrWordCountTooLong       ErrorCode = 0x42
	ErrMemBankOutOfRange      ErrorCode = 0x43
	ErrLockRegionOutOfRange   ErrorCode = 0x44
	ErrLockActionOutOfRange   ErrorCode = 0x45
	ErrReaderAddressInvalid   ErrorCode = 0x46
	ErrAntennaIDOutOfRange    ErrorCode = 0x47
	ErrOutputPowerOutOfRange  ErrorCode = 0x48
	ErrFrequencyRegionInvalid ErrorCode = 0x49
	ErrBaudrateOutOfRange     ErrorCode = 0x4A
	ErrBeeperModeOutOfRange   ErrorCode = 0x4B
	ErrEPCMatchLenTooLong     ErrorCode = 0x4C
	ErrEPCMatchLenError       ErrorCode = 0x4D
	ErrEPCMatchModeInvalid    ErrorCode = 0x4E
	ErrFrequencyRangeInvalid  ErrorCode = 0x4F

	ErrNoRN16FromTag           ErrorCode = 0x50
	ErrDRMModeInvalid          ErrorCode = 0x51
	ErrPLLLockFail             ErrorCode = 0x52
	ErrRFChipNoResponse        ErrorCode = 0x53
	ErrDesiredOutputPower      ErrorCode = 0x54
	ErrCopyrightAuthentication ErrorCode = 0x55
	ErrSpectrumRegulation      ErrorCode = 0x56
	ErrOutputPowerTooLow       ErrorCode = 0x57

	ErrRFPortReturnLoss ErrorCode = 0xEE
)

var errorTexts = map[ErrorCode]string{
	ErrSuccess:                 "Command succeeded",
	ErrFail:                    "Command failed",
	ErrMCUReset:                "MCU reset error",
	ErrCWOn:                    "CW on error",
	ErrAntennaMissing:          "Antenna is missing",
	ErrWriteFlash:              "Write flash error",
	ErrReadFlash:               "Read flash error",
	ErrSetOutputPower:          "Set output power error",
	ErrTagInventory:            "Tag inventory error",
	ErrTagRead:                 "Tag read error",
	ErrTagWrite:                "Tag write error",
	ErrTagLock:                 "Tag lock error",
	ErrTagKill:                 "Tag kill error",
	ErrNoTag:                   "No tag in the field",
	ErrInventoryOKAccessFail:   "Inventory succeeded but access failed",
	ErrBufferEmpty:             "Inventory buffer is empty",
	ErrNXPCustomCommandFail:    "NXP custom command failed",
	ErrAccessOrPassword:        "Access failed or wrong password",
	ErrParameterInvalid:        "Invalid parameter",
	ErrWordCountTooLong:        "Word count too long",
	ErrMemBankOutOfRange:       "Memory bank out of range",
	ErrLockRegionOutOfRange:    "Lock region out of range",
	ErrLockActionOutOfRange:    "Lock action out of range",
	ErrReaderAddressInvalid:    "Invalid reader address",
	ErrAntennaIDOutOfRange:     "Antenna ID out of range",
	ErrOutputPowerOutOfRange:   "Output power out of range",
	ErrFrequencyRegionInvalid:  "Frequency region out of range",
	ErrBaudrateOutOfRange:      "Baudrate out of range",
	ErrBeeperModeOutOfRange:    "Beeper mode out of range",
	ErrEPCMatchLenTooLong:      "EPC match length too long",
	ErrEPCMatchLenError:        "EPC match length error",
	ErrEPCMatchModeInvalid:     "Invalid EPC match mode",
	ErrFrequencyRangeInvalid:   "Invalid frequency range",
	ErrNoRN16FromTag:           "Failed to receive RN16 from tag",
	ErrDRMModeInvalid:          "Invalid DRM mode",
	ErrPLLLockFail:             "PLL lock failed",
	ErrRFChipNoResponse:        "RF chip did not respond",
	ErrDesiredOutputPower:      "Failed to achieve desired output power",
	ErrCopyrightAuthentication: "Copyright authentication failed",
	ErrSpectrumRegulation:      "Spectrum regulation error",
	ErrOutputPowerTooLow:       "Output power too low",
	ErrRFPortReturnLoss:        "Failed to measure RF port return loss",
}

// Text returns the human readable description of the code. Unknown codes
// produce a generic description including the hex value.
func (c ErrorCode) Text() string {
	if text, ok := errorTexts[c]; ok {
		return text
	}
	return fmt.Sprintf("Unknown error 0x%02X", byte(c))
}

func (c ErrorCode) String() string {
	return fmt.Sprintf("0x%02X (%s)", byte(c), c.Text())
}

// Known reports whether c is one of the enumerated reader error codes.
func (c ErrorCode) Known() bool {
	_, ok := errorTexts[c]
	return ok
}

// ErrTagCRC is returned (wrapped) when a tag record's embedded CRC does not
// match the CRC computed over its PC and EPC. The record is still returned.
var ErrTagCRC = errors.New("tag CRC mismatch")

// ErrShortPayload is returned by the payload parsers when a reply is shorter
// than its documented layout.
var ErrShortPayload = errors.New("payload too short")

// InvalidArgumentError is returned by builders and the encoder when an input
// is outside its documented range. No frame is produced.
type InvalidArgumentError struct {
	Field  string // Argument name, e.g. "antenna"
	Value  any    // Offending value
	Reason string // Accepted range or rule
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func invalidArg(field string, value any, format string, args ...any) error {
	return &InvalidArgumentError{Field: field, Value: value, Reason: fmt.Sprintf(format, args...)}
}

// ProtocolError is a non-success status reported by the reader in reply to
// a command.
type ProtocolError struct {
	Command Command
	Code    ErrorCode
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s failed: reader reported %s", e.Command, e.Code)
}

// IsProtocolError reports whether err is (or wraps) a *ProtocolError, and
// returns it.
func IsProtocolError(err error) (*ProtocolError, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// DecodeError describes a payload that did not match the layout expected for
// its command.
type DecodeError struct {
	Command Command
	Reason  string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %s: %v", e.Command, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode %s: %s", e.Command, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
