package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// record builds [serial][len][PC][EPC][CRC][middle...][x][antenna][count]
// with a correct tag CRC.
func record(serial uint16, epc []byte, middle []byte, x, antenna, count byte) []byte {
	pc := uint16(len(epc)/2) << 11
	span := binary.BigEndian.AppendUint16(nil, pc)
	span = append(span, epc...)

	body := append([]byte{}, span...)
	body = binary.BigEndian.AppendUint16(body, TagCRC(span))
	body = append(body, middle...)
	body = append(body, x, antenna, count)

	out := binary.BigEndian.AppendUint16(nil, serial)
	out = append(out, byte(len(body)-3))
	return append(out, body...)
}

func TestRecordHelperLength(t *testing.T) {
	data := record(1, sampleEPC, nil, 0x41, 0x01, 0x03)
	if int(data[2])+6 != len(data) {
		t.Fatalf("record helper: len byte %d + 6 != %d", data[2], len(data))
	}
}

func TestParseBufferRecord(t *testing.T) {
	data := record(2, sampleEPC, nil, 0x41, 0x01, 0x03)

	rec, err := ParseBufferRecord(data)
	if err != nil {
		t.Fatalf("ParseBufferRecord() error = %v", err)
	}
	if rec.EPC != "E2003412B80201234567890A" {
		t.Errorf("EPC = %q", rec.EPC)
	}
	if rec.Serial != 2 || rec.RSSI != -64 || rec.Antenna != 2 || rec.Count != 3 {
		t.Errorf("record = %+v, want serial 2, rssi -64, antenna 2, count 3", rec)
	}
	if !rec.CRCValid {
		t.Error("CRCValid = false, want true")
	}
	if rec.Tag().CRC != CRCValid {
		t.Errorf("Tag().CRC = %s, want valid", rec.Tag().CRC)
	}
}

func TestParseBufferRecordCRCMismatch(t *testing.T) {
	data := record(1, sampleEPC, nil, 0x41, 0x00, 0x01)
	crcOffset := 5 + len(sampleEPC)
	data[crcOffset] ^= 0x80

	rec, err := ParseBufferRecord(data)
	if !errors.Is(err, ErrTagCRC) {
		t.Fatalf("ParseBufferRecord() error = %v, want ErrTagCRC", err)
	}
	if rec == nil {
		t.Fatal("record should still be returned on CRC mismatch")
	}
	if rec.CRCValid {
		t.Error("CRCValid = true, want false")
	}
	if rec.Tag().CRC != CRCInvalid {
		t.Errorf("Tag().CRC = %s, want invalid", rec.Tag().CRC)
	}
}

func TestParseBufferRecordErrors(t *testing.T) {
	valid := record(1, sampleEPC, nil, 0x41, 0x00, 0x01)

	tests := []struct {
		name string
		data []byte
	}{
		{"too short", []byte{0x00, 0x01}},
		{"declared length mismatch", append(append([]byte{}, valid...), 0x00)},
		{"status byte", []byte{byte(ErrBufferEmpty)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := ParseBufferRecord(tt.data)
			if err == nil {
				t.Fatalf("ParseBufferRecord() = %+v, want error", rec)
			}
			if rec != nil {
				t.Errorf("record = %+v, want nil", rec)
			}
		})
	}

	_, err := ParseBufferRecord([]byte{byte(ErrBufferEmpty)})
	if pe, ok := IsProtocolError(err); !ok || pe.Code != ErrBufferEmpty {
		t.Errorf("status reply error = %v, want ProtocolError 0x38", err)
	}
}

func TestParseReadRecord(t *testing.T) {
	tid := []byte{0xE2, 0x80, 0x11, 0x05, 0x20, 0x00}
	data := record(1, sampleEPC, tid, byte(len(tid)), 0x02, 0x01)

	rec, err := ParseReadRecord(data)
	if err != nil {
		t.Fatalf("ParseReadRecord() error = %v", err)
	}
	if !bytes.Equal(rec.Data, tid) {
		t.Errorf("Data = % X, want % X", rec.Data, tid)
	}
	if rec.Antenna != 3 {
		t.Errorf("Antenna = %d, want 3", rec.Antenna)
	}

	truncated := append([]byte{}, data[:len(data)-4]...)
	truncated = append(truncated, data[len(data)-3:]...)
	if rec, err := ParseReadRecord(truncated); err == nil {
		t.Errorf("ParseReadRecord() of a truncated reply = %+v, want error", rec)
	}

	data[len(data)-3] = 0x40 // data length beyond the record
	if _, err := ParseReadRecord(data); err == nil {
		t.Error("ParseReadRecord() with oversized data length succeeded")
	}
}

func TestParseOperationRecord(t *testing.T) {
	ok := record(1, sampleEPC, nil, byte(ErrSuccess), 0x00, 0x01)
	rec, err := ParseOperationRecord(CmdWriteBlock, ok)
	if err != nil {
		t.Fatalf("ParseOperationRecord() error = %v", err)
	}
	if rec.Status != ErrSuccess || rec.EPC != FormatEPC(sampleEPC) {
		t.Errorf("record = %+v", rec)
	}

	failed := record(1, sampleEPC, nil, byte(ErrTagWrite), 0x00, 0x01)
	rec, err = ParseOperationRecord(CmdWrite, failed)
	pe, isPE := IsProtocolError(err)
	if !isPE || pe.Code != ErrTagWrite {
		t.Fatalf("error = %v, want ProtocolError 0x33", err)
	}
	if rec == nil || rec.Status != ErrTagWrite {
		t.Errorf("record = %+v, want status 0x33", rec)
	}
}

func TestParseInventorySummary(t *testing.T) {
	s, err := ParseInventorySummary([]byte{0x00, 0x00, 0x05, 0x00, 0x32, 0x00, 0x00, 0x01, 0x00})
	if err != nil {
		t.Fatalf("ParseInventorySummary() error = %v", err)
	}
	want := InventorySummary{Antenna: 1, TagCount: 5, ReadRate: 50, TotalRead: 256}
	if *s != want {
		t.Errorf("summary = %+v, want %+v", *s, want)
	}

	if _, err := ParseInventorySummary([]byte{byte(ErrAntennaMissing)}); err == nil {
		t.Error("ParseInventorySummary(antenna missing) succeeded")
	}
}

func TestScalarReplies(t *testing.T) {
	tests := []struct {
		name    string
		parse   func([]byte) (int, error)
		data    []byte
		want    int
		wantErr bool
	}{
		{"tag count", ParseTagCount, []byte{0x01, 0x02}, 258, false},
		{"tag count status", ParseTagCount, []byte{byte(ErrFail)}, 0, true},
		{"temperature below zero", ParseTemperature, []byte{0x00, 0x05}, -5, false},
		{"temperature above zero", ParseTemperature, []byte{0x01, 0x28}, 40, false},
		{"work antenna", ParseWorkAntenna, []byte{0x03}, 3, false},
		{"work antenna status", ParseWorkAntenna, []byte{byte(ErrFail)}, 0, true},
		{"return loss", ParseReturnLoss, []byte{0x0F}, 15, false},
		{"return loss failure", ParseReturnLoss, []byte{0xEE}, 0, true},
		{"antenna detector", ParseAntennaDetector, []byte{0x03}, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.parse(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseFrequencyRegion(t *testing.T) {
	r, err := ParseFrequencyRegion([]byte{0x01, 0x07, 0x3B})
	if err != nil {
		t.Fatalf("ParseFrequencyRegion(FCC) error = %v", err)
	}
	if r.Region != RegionFCC || r.StartMHz != 902.0 || r.EndMHz != 928.0 {
		t.Errorf("region = %+v, want FCC 902-928", r)
	}

	u, err := ParseFrequencyRegion([]byte{0x04, 0x32, 0x0A, 0x0D, 0xF5, 0xE8})
	if err != nil {
		t.Fatalf("ParseFrequencyRegion(USER) error = %v", err)
	}
	if u.Region != RegionUser || u.SpacingKHz != 500 || u.Quantity != 10 || u.StartKHz != 914920 {
		t.Errorf("region = %+v, want USER 914920 kHz, 500 kHz x 10", u)
	}

	if _, err := ParseFrequencyRegion([]byte{0x01, 0x07, 0x40}); err == nil {
		t.Error("end index outside table accepted")
	}
}

func TestParseRFPower(t *testing.T) {
	got, err := ParseRFPower([]byte{30, 25, 20, 0})
	if err != nil || got != [4]int{30, 25, 20, 0} {
		t.Errorf("ParseRFPower(4 bytes) = %v, %v", got, err)
	}
	got, err = ParseRFPower([]byte{27})
	if err != nil || got != [4]int{27, 27, 27, 27} {
		t.Errorf("ParseRFPower(1 byte) = %v, %v", got, err)
	}

	tests := []struct {
		name string
		data []byte
		code ErrorCode
	}{
		{"fail status", []byte{byte(ErrFail)}, ErrFail},
		{"above max power", []byte{byte(ErrParameterInvalid)}, ErrParameterInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRFPower(tt.data)
			pe, ok := IsProtocolError(err)
			if !ok || pe.Code != tt.code {
				t.Fatalf("ParseRFPower(% X) = %v, %v; want ProtocolError %s", tt.data, got, err, tt.code)
			}
		})
	}
}

func TestParseIdentifierAndVersion(t *testing.T) {
	req, _ := SetReaderIdentifier("R2K-01")
	id, err := ParseIdentifier(req.Payload)
	if err != nil || id != "R2K-01" {
		t.Errorf("ParseIdentifier() = %q, %v; want R2K-01", id, err)
	}

	v, err := ParseFirmwareVersion([]byte{0x08, 0x01})
	if err != nil || v.String() != "8.1" {
		t.Errorf("ParseFirmwareVersion() = %v, %v", v, err)
	}
}

func TestParseGPIOAndMatch(t *testing.T) {
	g, err := ParseGPIO([]byte{0x00, 0x01})
	if err != nil {
		t.Fatalf("ParseGPIO() error = %v", err)
	}
	if g.Port(1) || !g.Port(2) {
		t.Errorf("levels = %+v, want gpio1 low, gpio2 high", g)
	}

	m, err := ParseEPCMatch([]byte{0x00, 0x02, 0xAB, 0xCD})
	if err != nil || !m.Enabled || m.EPC != "ABCD" {
		t.Errorf("ParseEPCMatch(active) = %+v, %v", m, err)
	}
	m, err = ParseEPCMatch([]byte{0x01})
	if err != nil || m.Enabled {
		t.Errorf("ParseEPCMatch(none) = %+v, %v", m, err)
	}
}
