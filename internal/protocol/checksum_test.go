package protocol

import "testing"

func TestLRC(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want byte
	}{
		{"empty", nil, 0x00},
		{"reset frame", []byte{0xA0, 0x03, 0x01, 0x70}, 0xEC},
		{"wraps", []byte{0xFF, 0xFF}, 0x02},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LRC(tt.data)
			if got != tt.want {
				t.Errorf("LRC() = 0x%02X, want 0x%02X", got, tt.want)
			}
			if Sum8(append(append([]byte{}, tt.data...), got)) != 0 {
				t.Error("data plus LRC does not sum to zero")
			}
		})
	}
}

func TestVerifyLRC(t *testing.T) {
	if VerifyLRC(nil) {
		t.Error("VerifyLRC(nil) = true")
	}
	if !VerifyLRC([]byte{0xA0, 0x03, 0x01, 0x70, 0xEC}) {
		t.Error("VerifyLRC(valid) = false")
	}
	if VerifyLRC([]byte{0xA0, 0x03, 0x01, 0x70, 0xED}) {
		t.Error("VerifyLRC(corrupt) = true")
	}
}

func TestTagCRC(t *testing.T) {
	// CRC-16/CCITT-FALSE("123456789") is 0x29B1; the tag CRC is its complement.
	if got := TagCRC([]byte("123456789")); got != 0xD64E {
		t.Errorf("TagCRC(123456789) = 0x%04X, want 0xD64E", got)
	}
}

func TestFrequencyTable(t *testing.T) {
	if len(FrequencyTable) != 60 {
		t.Fatalf("len(FrequencyTable) = %d, want 60", len(FrequencyTable))
	}

	tests := []struct {
		index int
		mhz   float64
	}{
		{0, 865.0},
		{6, 868.0},
		{7, 902.0},
		{59, 928.0},
	}
	for _, tt := range tests {
		if got, _ := Frequency(tt.index); got != tt.mhz {
			t.Errorf("Frequency(%d) = %v, want %v", tt.index, got, tt.mhz)
		}
		if got, err := FrequencyIndex(tt.mhz); err != nil || got != tt.index {
			t.Errorf("FrequencyIndex(%v) = %d, %v; want %d", tt.mhz, got, err, tt.index)
		}
	}

	for _, mhz := range []float64{868.5, 902.25, 864.5, 928.5} {
		if _, err := FrequencyIndex(mhz); err == nil {
			t.Errorf("FrequencyIndex(%v) succeeded, want error", mhz)
		}
	}
	if _, err := Frequency(60); err == nil {
		t.Error("Frequency(60) succeeded")
	}
}
