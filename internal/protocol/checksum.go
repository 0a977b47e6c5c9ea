package protocol

import "github.com/sigurn/crc16"

// tagCRCTable uses the CCITT-FALSE parameters: the XMODEM polynomial
// 0x1021 seeded with 0xFFFF, unreflected.
var tagCRCTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// LRC returns the longitudinal redundancy check of b: the two's complement
// of the 8-bit sum of its bytes. Appending it to b makes the sum zero.
func LRC(b []byte) byte {
	return -Sum8(b)
}

// Sum8 returns the 8-bit wrapping sum of b.
func Sum8(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}

// VerifyLRC reports whether frame, including its trailing checksum byte,
// sums to zero.
func VerifyLRC(frame []byte) bool {
	return len(frame) > 0 && Sum8(frame) == 0
}

// TagCRC computes the EPC Gen2 CRC-16 over span (PC word followed by EPC)
// as reported in tag records: CRC16/XMODEM seeded with 0xFFFF, inverted.
func TagCRC(span []byte) uint16 {
	return crc16.Checksum(span, tagCRCTable) ^ 0xFFFF
}
