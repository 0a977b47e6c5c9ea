//go:build ignore

package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/muurk/r2k/internal/protocol"
)

// A capture file holds the raw bytes read from a serial port as hex, one
// chunk per line. Spaces inside a line are ignored and lines starting with
// '#' are comments, so a logic analyser export can be pasted in directly:
//
//	# power on
//	A0 04 01 72 08 01 E6
//	A013017229

// Statistics tracks deframing results across all files
type Statistics struct {
	TotalFiles int
	TotalBytes int
	BadLines   int
	Kinds      map[string]int
	Commands   map[string]int
	Deframer   protocol.DeframerStats
}

func main() {
	address := flag.Uint("address", 0x01, "reader address to accept frames for")
	verbose := flag.Bool("v", false, "print every decoded frame")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: validate_capture [-address N] [-v] <directory-or-file>")
		fmt.Println("Example: validate_capture captures/")
		fmt.Println("         validate_capture -address 0xFF boot.hex")
		os.Exit(1)
	}

	path := flag.Arg(0)
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Error accessing path: %v\n", err)
		os.Exit(1)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = filepath.Glob(filepath.Join(path, "*.hex"))
		if err != nil {
			fmt.Printf("Error finding capture files: %v\n", err)
			os.Exit(1)
		}
		if len(files) == 0 {
			fmt.Printf("No .hex files found in %s\n", path)
			os.Exit(1)
		}
	}

	fmt.Printf("=== R2000 Capture Validator ===\n")
	fmt.Printf("Files to process: %d\n\n", len(files))

	stats := Statistics{
		Kinds:    make(map[string]int),
		Commands: make(map[string]int),
	}
	for _, file := range files {
		processFile(file, byte(*address), *verbose, &stats)
	}
	printStatistics(&stats)
}

func processFile(filename string, address byte, verbose bool, stats *Statistics) {
	f, err := os.Open(filename)
	if err != nil {
		fmt.Printf("Error reading file %s: %v\n", filename, err)
		return
	}
	defer f.Close()
	stats.TotalFiles++

	// Each file is its own stream; a frame cut off at the end of one
	// capture must not be completed by the next.
	d := protocol.NewDeframer(address)

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		chunk, err := hex.DecodeString(strings.ReplaceAll(line, " ", ""))
		if err != nil {
			fmt.Printf("%s:%d: %v\n", filename, lineNum, err)
			stats.BadLines++
			continue
		}
		stats.TotalBytes += len(chunk)

		for _, frame := range d.Feed(chunk) {
			resp := protocol.Classify(frame)
			stats.Kinds[resp.Kind().String()]++
			stats.Commands[frame.Command.String()]++
			if verbose {
				fmt.Printf("%s:%d: %s\n", filename, lineNum, protocol.Describe(resp))
			}
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Printf("Error scanning %s: %v\n", filename, err)
	}

	s := d.Stats()
	stats.Deframer.Frames += s.Frames
	stats.Deframer.AddressDrops += s.AddressDrops
	stats.Deframer.ChecksumDrops += s.ChecksumDrops
	stats.Deframer.MalformedDrops += s.MalformedDrops
	stats.Deframer.SkippedBytes += s.SkippedBytes
}

func printStatistics(stats *Statistics) {
	d := stats.Deframer
	fmt.Println("=== Results ===")
	fmt.Printf("Files:            %d\n", stats.TotalFiles)
	fmt.Printf("Bytes:            %d\n", stats.TotalBytes)
	fmt.Printf("Unreadable lines: %d\n", stats.BadLines)
	fmt.Printf("Frames:           %d\n", d.Frames)
	fmt.Printf("Address drops:    %d\n", d.AddressDrops)
	fmt.Printf("Checksum drops:   %d\n", d.ChecksumDrops)
	fmt.Printf("Malformed drops:  %d\n", d.MalformedDrops)
	fmt.Printf("Skipped bytes:    %d\n", d.SkippedBytes)

	fmt.Println("\nBy kind:")
	printCounts(stats.Kinds)
	fmt.Println("\nBy command:")
	printCounts(stats.Commands)

	if d.ChecksumDrops > 0 || d.MalformedDrops > 0 {
		os.Exit(2)
	}
}

func printCounts(counts map[string]int) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		fmt.Printf("  %-28s %d\n", name, counts[name])
	}
}
