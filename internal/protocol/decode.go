package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Payload decoders for synchronous replies. Each takes the reply data (the
// frame payload) of the command it is named after.

func short(cmd Command, data []byte, want int) error {
	return &DecodeError{
		Command: cmd,
		Reason:  fmt.Sprintf("got %d bytes, want %d", len(data), want),
		Err:     ErrShortPayload,
	}
}

// statusOnly converts a single-byte status reply into an error for commands
// whose successful reply carries data.
func statusOnly(cmd Command, data []byte) error {
	if len(data) == 1 {
		code := ErrorCode(data[0])
		if code != ErrSuccess {
			return &ProtocolError{Command: cmd, Code: code}
		}
	}
	return nil
}

// ParseStatus decodes a status reply. It returns nil for ErrSuccess and a
// *ProtocolError for any other code.
func ParseStatus(cmd Command, data []byte) error {
	if len(data) < 1 {
		return short(cmd, data, 1)
	}
	if code := ErrorCode(data[0]); code != ErrSuccess {
		return &ProtocolError{Command: cmd, Code: code}
	}
	return nil
}

// InventorySummary is the reply to a buffered inventory.
type InventorySummary struct {
	Antenna   int    `json:"antenna"` // 1-4
	TagCount  uint16 `json:"tag_count"`
	ReadRate  uint16 `json:"read_rate"`
	TotalRead uint32 `json:"total_read"`
}

// ParseInventorySummary decodes [antenna][tags u16][rate u16][total u32].
func ParseInventorySummary(data []byte) (*InventorySummary, error) {
	if err := statusOnly(CmdInventory, data); err != nil {
		return nil, err
	}
	if len(data) != 9 {
		return nil, short(CmdInventory, data, 9)
	}
	return &InventorySummary{
		Antenna:   int(data[0]) + 1,
		TagCount:  binary.BigEndian.Uint16(data[1:3]),
		ReadRate:  binary.BigEndian.Uint16(data[3:5]),
		TotalRead: binary.BigEndian.Uint32(data[5:9]),
	}, nil
}

// ParseTagCount decodes the inventory buffer tag count.
func ParseTagCount(data []byte) (int, error) {
	if err := statusOnly(CmdGetInventoryBufferTagCount, data); err != nil {
		return 0, err
	}
	if len(data) != 2 {
		return 0, short(CmdGetInventoryBufferTagCount, data, 2)
	}
	return int(binary.BigEndian.Uint16(data)), nil
}

// ParseTemperature decodes [sign][degrees]; a zero sign byte means below
// zero.
func ParseTemperature(data []byte) (int, error) {
	if err := statusOnly(CmdGetReaderTemp, data); err != nil {
		return 0, err
	}
	if len(data) != 2 {
		return 0, short(CmdGetReaderTemp, data, 2)
	}
	if data[0] == 0 {
		return -int(data[1]), nil
	}
	return int(data[1]), nil
}

// FrequencyRegion is the reader's hop table. System regions report table
// frequencies; the user region reports a start, spacing and channel count.
type FrequencyRegion struct {
	Region     Region  `json:"region"`
	StartMHz   float64 `json:"start_mhz,omitempty"`
	EndMHz     float64 `json:"end_mhz,omitempty"`
	StartKHz   int     `json:"start_khz,omitempty"`
	SpacingKHz int     `json:"spacing_khz,omitempty"`
	Quantity   int     `json:"quantity,omitempty"`
}

func (r FrequencyRegion) String() string {
	if r.Region == RegionUser {
		return fmt.Sprintf("USER %d kHz + n*%d kHz (%d channels)", r.StartKHz, r.SpacingKHz, r.Quantity)
	}
	return fmt.Sprintf("%s %.1f-%.1f MHz", r.Region, r.StartMHz, r.EndMHz)
}

// ParseFrequencyRegion decodes [region][start idx][end idx] for system
// regions and [4][spacing/10kHz][quantity][start kHz u24] for the user
// region.
func ParseFrequencyRegion(data []byte) (*FrequencyRegion, error) {
	const cmd = CmdGetFrequencyRegion
	if err := statusOnly(cmd, data); err != nil {
		return nil, err
	}
	if len(data) < 3 {
		return nil, short(cmd, data, 3)
	}
	region := Region(data[0])
	if region == RegionUser {
		if len(data) < 6 {
			return nil, short(cmd, data, 6)
		}
		return &FrequencyRegion{
			Region:     region,
			SpacingKHz: int(data[1]) * 10,
			Quantity:   int(data[2]),
			StartKHz:   int(data[3])<<16 | int(data[4])<<8 | int(data[5]),
		}, nil
	}
	start, err := Frequency(int(data[1]))
	if err != nil {
		return nil, &DecodeError{Command: cmd, Reason: "start channel", Err: err}
	}
	end, err := Frequency(int(data[2]))
	if err != nil {
		return nil, &DecodeError{Command: cmd, Reason: "end channel", Err: err}
	}
	return &FrequencyRegion{Region: region, StartMHz: start, EndMHz: end}, nil
}

// ParseRFPower decodes the per-antenna output power in dBm. Readers that
// report a single value for all ports are expanded to four entries. A
// one-byte ErrFail reply is a failure status, so a uniform 17 dBm setting
// cannot be reported in the one-byte form.
func ParseRFPower(data []byte) ([4]int, error) {
	var power [4]int
	switch len(data) {
	case 1:
		if ErrorCode(data[0]) == ErrFail || data[0] > MaxRFPower {
			return power, &ProtocolError{Command: CmdGetRFPower, Code: ErrorCode(data[0])}
		}
		for i := range power {
			power[i] = int(data[0])
		}
	case 4:
		for i := range power {
			power[i] = int(data[i])
		}
	default:
		return power, short(CmdGetRFPower, data, 4)
	}
	return power, nil
}

// ParseWorkAntenna decodes the selected antenna (0-3).
func ParseWorkAntenna(data []byte) (int, error) {
	if len(data) != 1 {
		return 0, short(CmdGetWorkAntenna, data, 1)
	}
	if data[0] > MaxAntenna {
		return 0, &ProtocolError{Command: CmdGetWorkAntenna, Code: ErrorCode(data[0])}
	}
	return int(data[0]), nil
}

// FirmwareVersion is the reader firmware version.
type FirmwareVersion struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

func (v FirmwareVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// ParseFirmwareVersion decodes [major][minor].
func ParseFirmwareVersion(data []byte) (*FirmwareVersion, error) {
	if err := statusOnly(CmdGetFirmwareVersion, data); err != nil {
		return nil, err
	}
	if len(data) != 2 {
		return nil, short(CmdGetFirmwareVersion, data, 2)
	}
	return &FirmwareVersion{Major: int(data[0]), Minor: int(data[1])}, nil
}

// ParseIdentifier decodes the 12 byte identifier, dropping 0xFF padding.
func ParseIdentifier(data []byte) (string, error) {
	if err := statusOnly(CmdGetReaderIdentifier, data); err != nil {
		return "", err
	}
	if len(data) != IdentifierLength {
		return "", short(CmdGetReaderIdentifier, data, IdentifierLength)
	}
	return string(bytes.TrimRight(data, "\xff")), nil
}

// GPIOLevels holds the input pin levels.
type GPIOLevels struct {
	GPIO1 bool `json:"gpio1"`
	GPIO2 bool `json:"gpio2"`
}

// Port returns the level of input port 1 or 2.
func (g GPIOLevels) Port(port int) bool {
	if port == 2 {
		return g.GPIO2
	}
	return g.GPIO1
}

// ParseGPIO decodes [gpio1][gpio2].
func ParseGPIO(data []byte) (*GPIOLevels, error) {
	if err := statusOnly(CmdGetGPIOValue, data); err != nil {
		return nil, err
	}
	if len(data) != 2 {
		return nil, short(CmdGetGPIOValue, data, 2)
	}
	return &GPIOLevels{GPIO1: data[0] != 0, GPIO2: data[1] != 0}, nil
}

// ParseReturnLoss decodes the port return loss in dB. 0xEE means the reader
// could not measure it.
func ParseReturnLoss(data []byte) (int, error) {
	if len(data) != 1 {
		return 0, short(CmdGetRFPortReturnLoss, data, 1)
	}
	if ErrorCode(data[0]) == ErrRFPortReturnLoss {
		return 0, &ProtocolError{Command: CmdGetRFPortReturnLoss, Code: ErrRFPortReturnLoss}
	}
	return int(data[0]), nil
}

// ParseAntennaDetector decodes the antenna detector threshold in dB; zero
// means detection is disabled.
func ParseAntennaDetector(data []byte) (int, error) {
	if len(data) != 1 {
		return 0, short(CmdGetAntConnectionDetector, data, 1)
	}
	return int(data[0]), nil
}

// ParseRFLinkProfile decodes the link profile (0xD0-0xD3).
func ParseRFLinkProfile(data []byte) (byte, error) {
	if len(data) != 1 {
		return 0, short(CmdGetRFLinkProfile, data, 1)
	}
	if data[0] < LinkProfile0 || data[0] > LinkProfile3 {
		return 0, &ProtocolError{Command: CmdGetRFLinkProfile, Code: ErrorCode(data[0])}
	}
	return data[0], nil
}

// ParseFastTID decodes the FastTID switch.
func ParseFastTID(data []byte) (bool, error) {
	if len(data) != 1 {
		return false, short(CmdGetImpinjFastTID, data, 1)
	}
	switch data[0] {
	case FastTIDOn:
		return true, nil
	case FastTIDOff:
		return false, nil
	}
	return false, &ProtocolError{Command: CmdGetImpinjFastTID, Code: ErrorCode(data[0])}
}

// EPCMatch is the access filter set by SetAccessEPCMatch.
type EPCMatch struct {
	Enabled bool   `json:"enabled"`
	EPC     string `json:"epc,omitempty"`
}

// ParseEPCMatch decodes [0x00][len][epc] (match active) or [0x01] (none).
func ParseEPCMatch(data []byte) (*EPCMatch, error) {
	const cmd = CmdGetAccessEPCMatch
	if len(data) < 1 {
		return nil, short(cmd, data, 1)
	}
	switch data[0] {
	case 0x01:
		return &EPCMatch{}, nil
	case 0x00:
		if len(data) < 2 || len(data) < 2+int(data[1]) {
			return nil, short(cmd, data, 2)
		}
		return &EPCMatch{Enabled: true, EPC: FormatEPC(data[2 : 2+int(data[1])])}, nil
	}
	return nil, &ProtocolError{Command: cmd, Code: ErrorCode(data[0])}
}

// BufferRecord is a tag record from the inventory buffer or from a tag
// access reply:
//
//	[serial u16][len u8][PC u16][EPC][CRC u16]...[x][antenna][count]
//
// The meaning of x and of any bytes before it depends on the command: RSSI
// for buffer reads, a data length for tag reads, a status for writes, locks
// and kills.
type BufferRecord struct {
	Serial   uint16    `json:"serial"` // total records in this reply sequence
	Length   int       `json:"length"`
	PC       uint16    `json:"pc"`
	EPC      string    `json:"epc"`
	CRC      uint16    `json:"crc"`
	CRCValid bool      `json:"crc_valid"`
	RSSI     int       `json:"rssi,omitempty"`
	Antenna  int       `json:"antenna"` // 1-4
	Count    int       `json:"count"`   // inventory or operation count
	Data     []byte    `json:"data,omitempty"`
	Status   ErrorCode `json:"status,omitempty"`
}

// Tag converts the record into a TagRecord.
func (r *BufferRecord) Tag() TagRecord {
	crc := CRCValid
	if !r.CRCValid {
		crc = CRCInvalid
	}
	return TagRecord{Antenna: r.Antenna, RSSI: r.RSSI, EPC: r.EPC, PC: r.PC, CRC: crc}
}

// parseRecord decodes the common header, EPC and CRC. A CRC mismatch is
// reported by returning the record together with an error wrapping
// ErrTagCRC. epcEnd is the offset just past the CRC.
func parseRecord(cmd Command, data []byte, checkLength bool) (rec *BufferRecord, epcEnd int, err error) {
	if err := statusOnly(cmd, data); err != nil {
		return nil, 0, err
	}
	if len(data) < 3 {
		return nil, 0, short(cmd, data, 3)
	}
	rec = &BufferRecord{
		Serial: binary.BigEndian.Uint16(data[0:2]),
		Length: int(data[2]),
	}
	if checkLength && rec.Length+6 != len(data) {
		return nil, 0, &DecodeError{Command: cmd, Reason: fmt.Sprintf("record declares %d bytes, has %d", rec.Length+6, len(data))}
	}
	if len(data) < 5 {
		return nil, 0, short(cmd, data, 5)
	}
	rec.PC = binary.BigEndian.Uint16(data[3:5])
	size := EPCLength(rec.PC)
	epcEnd = 5 + size + 2
	if epcEnd+3 > len(data) {
		return nil, 0, &DecodeError{Command: cmd, Reason: fmt.Sprintf("EPC of %d bytes overruns %d byte record", size, len(data))}
	}
	rec.EPC = FormatEPC(data[5 : 5+size])
	rec.CRC = binary.BigEndian.Uint16(data[5+size : epcEnd])
	rec.Antenna = int(data[len(data)-2]&0x03) + 1
	rec.Count = int(data[len(data)-1])

	want := TagCRC(data[3 : 5+size])
	rec.CRCValid = rec.CRC == want
	if !rec.CRCValid {
		return rec, epcEnd, fmt.Errorf("%s record %s: %w (got 0x%04X, want 0x%04X)", cmd, rec.EPC, ErrTagCRC, rec.CRC, want)
	}
	return rec, epcEnd, nil
}

// ParseBufferRecord decodes one inventory buffer record. The record length
// must satisfy len+6 == len(data). When the tag CRC does not match, the
// record is returned with CRCValid false alongside an error wrapping
// ErrTagCRC; the caller decides whether to keep it.
func ParseBufferRecord(data []byte) (*BufferRecord, error) {
	rec, _, err := parseRecord(CmdGetInventoryBuffer, data, true)
	if rec != nil {
		rec.RSSI = int(data[len(data)-3]) - 129
	}
	return rec, err
}

// ParseReadRecord decodes a tag read reply. The bytes after the CRC hold the
// data read, whose length is given by the byte before the antenna.
func ParseReadRecord(data []byte) (*BufferRecord, error) {
	rec, epcEnd, err := parseRecord(CmdRead, data, true)
	if rec == nil {
		return nil, err
	}
	size := int(data[len(data)-3])
	if epcEnd+size > len(data)-3 {
		return nil, &DecodeError{Command: CmdRead, Reason: fmt.Sprintf("%d data bytes overrun %d byte record", size, len(data))}
	}
	rec.Data = append([]byte(nil), data[epcEnd:epcEnd+size]...)
	return rec, err
}

// ParseOperationRecord decodes the reply to a write, block write, lock or
// kill. The status byte sits before the antenna; a non-success status is
// returned as a *ProtocolError together with the record.
func ParseOperationRecord(cmd Command, data []byte) (*BufferRecord, error) {
	rec, _, err := parseRecord(cmd, data, true)
	if rec == nil {
		return nil, err
	}
	rec.Status = ErrorCode(data[len(data)-3])
	if err == nil && rec.Status != ErrSuccess {
		err = &ProtocolError{Command: cmd, Code: rec.Status}
	}
	return rec, err
}
