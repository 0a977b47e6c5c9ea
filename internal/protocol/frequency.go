package protocol

import "fmt"

// FrequencyTable maps the 6-bit frequency index carried in tag reports and
// region commands to a carrier frequency in MHz: seven 0.5 MHz steps from
// 865 MHz, then fifty-three 0.5 MHz steps from 902 MHz.
var FrequencyTable = buildFrequencyTable()

func buildFrequencyTable() []float64 {
	table := make([]float64, 0, 60)
	for i := 0; i < 7; i++ {
		table = append(table, 865+float64(i)*0.5)
	}
	for i := 0; i < 53; i++ {
		table = append(table, 902+float64(i)*0.5)
	}
	return table
}

// Frequency returns the carrier frequency for a table index.
func Frequency(index int) (float64, error) {
	if index < 0 || index >= len(FrequencyTable) {
		return 0, invalidArg("frequency index", index, "must be 0-%d", len(FrequencyTable)-1)
	}
	return FrequencyTable[index], nil
}

// FrequencyIndex returns the table index of mhz. Only exact table values are
// accepted; there is no rounding to the nearest channel.
func FrequencyIndex(mhz float64) (int, error) {
	for i, f := range FrequencyTable {
		if f == mhz {
			return i, nil
		}
	}
	return 0, invalidArg("frequency", mhz, "not a channel of the frequency table (%.1f-%.1f MHz, 0.5 MHz steps)",
		FrequencyTable[0], FrequencyTable[len(FrequencyTable)-1])
}

// Region is a regulatory frequency region code.
type Region byte

const (
	RegionFCC  Region = 0x01
	RegionETSI Region = 0x02
	RegionCHN  Region = 0x03
	RegionUser Region = 0x04
)

func (r Region) String() string {
	switch r {
	case RegionFCC:
		return "FCC"
	case RegionETSI:
		return "ETSI"
	case RegionCHN:
		return "CHN"
	case RegionUser:
		return "USER"
	default:
		return fmt.Sprintf("Region(0x%02X)", byte(r))
	}
}

// ParseRegion maps a region name (FCC, ETSI, CHN, USER) to its code.
func ParseRegion(name string) (Region, error) {
	for _, r := range []Region{RegionFCC, RegionETSI, RegionCHN, RegionUser} {
		if r.String() == name {
			return r, nil
		}
	}
	return 0, invalidArg("region", name, "must be one of FCC, ETSI, CHN, USER")
}
