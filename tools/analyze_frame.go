//go:build ignore

package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/muurk/r2k/internal/protocol"
)

// analyze_frame dissects frames given as hex on the command line, one frame
// per argument. Useful when a vendor tool shows bytes the deframer rejects.
//
//	go run tools/analyze_frame.go "A0 04 01 72 E9"
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: analyze_frame <hex> [<hex>...]")
		os.Exit(1)
	}
	for i, arg := range os.Args[1:] {
		raw, err := hex.DecodeString(strings.ReplaceAll(arg, " ", ""))
		if err != nil {
			fmt.Printf("Argument %d: error decoding hex: %v\n", i+1, err)
			continue
		}
		analyzeFrame(i+1, raw)
	}
}

func analyzeFrame(n int, raw []byte) {
	fmt.Printf("========================================\n")
	fmt.Printf("Frame #%d - %d bytes\n", n, len(raw))
	fmt.Printf("========================================\n\n")

	if len(raw) < protocol.MinFrameSize {
		fmt.Printf("Too short for a frame (min %d bytes)\n\n", protocol.MinFrameSize)
		hexDump(raw)
		return
	}

	fmt.Println("Header:")
	fmt.Printf("  head     0x%02X", raw[0])
	if raw[0] != protocol.FrameHead {
		fmt.Printf("  (expected 0x%02X)", protocol.FrameHead)
	}
	fmt.Println()
	fmt.Printf("  length   %d  (frame should be %d bytes, is %d)\n", raw[1], int(raw[1])+2, len(raw))
	fmt.Printf("  address  0x%02X\n", raw[2])
	fmt.Printf("  command  0x%02X %s\n", raw[3], protocol.Command(raw[3]))
	fmt.Println()

	fmt.Println("Checksum Analysis:")
	testChecksums(raw)
	fmt.Println()

	if f, err := protocol.ParseFrame(raw); err != nil {
		fmt.Printf("Parse: %v\n\n", err)
	} else {
		fmt.Printf("Parse:    %s\n", f)
		fmt.Printf("Classify: %s\n\n", protocol.Describe(protocol.Classify(*f)))
	}

	fmt.Println("Hex Dump (16 bytes/line):")
	hexDump(raw)
	fmt.Println()
}

func testChecksums(raw []byte) {
	last := raw[len(raw)-1]
	body := raw[:len(raw)-1]

	fmt.Printf("  trailing byte        0x%02X\n", last)
	mark := func(ok bool) string {
		if ok {
			return "MATCH"
		}
		return "-"
	}

	lrc := protocol.LRC(body)
	fmt.Printf("  LRC over head..payload  0x%02X %s\n", lrc, mark(lrc == last))

	// Some captures start at LEN because the head byte was eaten by the
	// sniffer.
	if len(body) > 1 {
		tail := protocol.LRC(body[1:])
		fmt.Printf("  LRC without head        0x%02X %s\n", tail, mark(tail == last))
	}

	sum := protocol.Sum8(body)
	fmt.Printf("  plain 8-bit sum         0x%02X %s\n", sum, mark(sum == last))

	// A single-tag inventory record ends with PC+EPC followed by the tag's
	// CRC and then RSSI; check whether the two bytes before RSSI match.
	if len(raw) >= 12 {
		payload := raw[4 : len(raw)-1]
		if len(payload) >= 7 {
			span := payload[1 : len(payload)-3]
			got := uint16(payload[len(payload)-3])<<8 | uint16(payload[len(payload)-2])
			want := protocol.TagCRC(span)
			fmt.Printf("  tag CRC over PC+EPC     0x%04X %s\n", want, mark(want == got))
		}
	}
}

func hexDump(payload []byte) {
	for i := 0; i < len(payload); i += 16 {
		fmt.Printf("%04x  ", i)
		for j := 0; j < 16; j++ {
			if i+j < len(payload) {
				fmt.Printf("%02x ", payload[i+j])
			} else {
				fmt.Print("   ")
			}
			if j == 7 {
				fmt.Print(" ")
			}
		}
		fmt.Println()
	}
}
