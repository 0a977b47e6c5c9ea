package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/r2k/internal/logging"
	"github.com/muurk/r2k/internal/protocol"
	"github.com/muurk/r2k/internal/reader"
	"github.com/muurk/r2k/internal/server"
	"github.com/muurk/r2k/internal/ui"
)

// Inventory flags
var (
	repeatCount  int
	keepBuffer   bool
	roundLimit   int
	sessionName  string
	targetName   string
	fastSwitch   string
	roundTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(inventoryCmd)
	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(monitorCmd)

	inventoryCmd.Flags().IntVar(&repeatCount, "repeat", 1, "Inventory rounds per command (1-255)")
	inventoryCmd.Flags().BoolVar(&keepBuffer, "keep", false, "Leave the tags in the reader buffer")

	for _, cmd := range []*cobra.Command{streamCmd, monitorCmd} {
		cmd.Flags().IntVar(&repeatCount, "repeat", 1, "Inventory rounds per command (1-255)")
		cmd.Flags().StringVar(&sessionName, "session", "", "Gen2 session (S0-S3); uses the session inventory command")
		cmd.Flags().StringVar(&targetName, "target", "A", "Inventoried flag target with --session (A or B)")
		cmd.Flags().StringVar(&fastSwitch, "antennas", "", "Cycle through antennas, e.g. 0,1,2,3 (fast-switch inventory)")
		cmd.Flags().DurationVar(&roundTimeout, "round-timeout", ui.DefaultRoundTimeout, "Restart a round with no summary after this long")
	}
	streamCmd.Flags().IntVar(&roundLimit, "rounds", 0, "Stop after this many rounds (0 runs until interrupted)")
}

// InventoryResult is what 'r2k inventory --format json' prints.
type InventoryResult struct {
	Summary *protocol.InventorySummary `json:"summary"`
	Tags    []protocol.BufferRecord    `json:"tags"`
}

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Run a buffered inventory and list the tags",
	Long: `Inventory the work antenna, then read the tags from the reader's
buffer. Each tag is listed once with its read count and signal strength.
The buffer is cleared afterwards unless --keep is given.`,
	Example: `  r2k inventory
  r2k inventory --repeat 10 --format json`,
	Args: cobra.NoArgs,
	RunE: withSession(runInventory),
}

func runInventory(cmd *cobra.Command, args []string, s *session) error {
	ctx := cmd.Context()
	s.header(cmd, "Inventory", map[string]string{"Repeat": strconv.Itoa(repeatCount)})

	summary, err := s.client.Inventory(ctx, repeatCount)
	if err != nil {
		tips := connectTips
		if pe, ok := protocol.IsProtocolError(err); ok && pe.Code == protocol.ErrAntennaMissing {
			tips = []string{"Connect an antenna to the work antenna port", "Select another port with 'r2k antenna'"}
		}
		return s.fail("Inventory failed", err, tips...)
	}

	var records []protocol.BufferRecord
	if keepBuffer {
		records, err = s.client.InventoryBuffer(ctx)
	} else {
		records, err = s.client.GetAndResetInventoryBuffer(ctx)
	}
	if err != nil {
		return s.fail("Buffer read failed", err)
	}

	if outputFormat == formatJSON {
		return printJSON(InventoryResult{Summary: summary, Tags: records})
	}
	var tally ui.Tally
	tally.AddBuffer(records, time.Now())
	s.printer.Tags(tally.Stats())
	return nil
}

// roundStarter returns the trigger for the configured real-time inventory
// mode.
func roundStarter(ctx context.Context, client *reader.Client) (func() error, string, error) {
	switch {
	case fastSwitch != "":
		cfg, err := parseFastSwitch(fastSwitch, repeatCount)
		if err != nil {
			return nil, "", err
		}
		return func() error { return client.FastSwitchInventory(ctx, cfg) }, "fast switch " + fastSwitch, nil
	case sessionName != "":
		session, err := protocol.ParseSession(sessionName)
		if err != nil {
			return nil, "", err
		}
		target, err := protocol.ParseTarget(targetName)
		if err != nil {
			return nil, "", err
		}
		return func() error { return client.SessionInventory(ctx, session, target, repeatCount) },
			fmt.Sprintf("session %s target %s", strings.ToUpper(sessionName), strings.ToUpper(targetName)), nil
	default:
		if _, err := protocol.RealTimeInventory(repeatCount); err != nil {
			return nil, "", err
		}
		return func() error { return client.RealTimeInventory(ctx, repeatCount) }, "real time", nil
	}
}

// parseFastSwitch turns "0,2" into a fast-switch sequence visiting those
// antennas in order.
func parseFastSwitch(list string, repeat int) (protocol.FastSwitchConfig, error) {
	cfg := protocol.DefaultFastSwitchConfig()
	parts := strings.Split(list, ",")
	if len(parts) > len(cfg.Steps) {
		return cfg, fmt.Errorf("at most %d antennas can be cycled", len(cfg.Steps))
	}
	if repeat < 1 || repeat > 0xFF {
		return cfg, fmt.Errorf("invalid repeat %d: must be 1-255", repeat)
	}
	for i := range cfg.Steps {
		cfg.Steps[i] = protocol.FastSwitchStep{Antenna: protocol.AntennaDisabled, Loops: 1}
	}
	for i, p := range parts {
		ant, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || ant < 0 || ant > protocol.MaxAntenna {
			return cfg, fmt.Errorf("invalid antenna %q: must be 0-%d", p, protocol.MaxAntenna)
		}
		cfg.Steps[i].Antenna = byte(ant)
	}
	cfg.Repeat = byte(repeat)
	return cfg, nil
}

// endsRound reports whether ev finishes an inventory command. Error events
// without a code are undecodable reports and do not.
func endsRound(ev protocol.Response) bool {
	switch ev := ev.(type) {
	case *protocol.RoundComplete:
		return true
	case *protocol.ErrorEvent:
		return ev.Code != 0
	}
	return false
}

// scan keeps inventory rounds running back to back and hands every event
// to handle. It returns when ctx is cancelled, the connection closes,
// handle returns false or limit rounds have finished (0 for no limit).
func scan(ctx context.Context, conn *reader.Conn, start func() error, limit int, handle func(protocol.Response) bool) error {
	if err := start(); err != nil {
		return err
	}
	watchdog := time.NewTimer(roundTimeout)
	defer watchdog.Stop()

	rounds := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-watchdog.C:
			logging.Warn("Inventory round timed out, restarting", zap.Duration("timeout", roundTimeout))
			if err := start(); err != nil {
				return err
			}
			watchdog.Reset(roundTimeout)
		case ev, ok := <-conn.Events():
			if !ok {
				return conn.Err()
			}
			if !handle(ev) {
				return nil
			}
			if !endsRound(ev) {
				continue
			}
			rounds++
			if limit > 0 && rounds >= limit {
				return nil
			}
			if err := start(); err != nil {
				return err
			}
			watchdog.Reset(roundTimeout)
		}
	}
}

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Print tag reads as they arrive",
	Long: `Run real-time inventory rounds back to back and print every event.

Text output has one line per event. JSON output has one object per line
in the same format as the event server's WebSocket messages.`,
	Example: `  r2k stream
  r2k stream --rounds 5 --format json
  r2k stream --session S1 --target B
  r2k stream --antennas 0,1,2,3`,
	Args: cobra.NoArgs,
	RunE: withSession(runStream),
}

func runStream(cmd *cobra.Command, args []string, s *session) error {
	ctx := cmd.Context()
	start, mode, err := roundStarter(ctx, s.client)
	if err != nil {
		return err
	}
	s.header(cmd, "Stream", map[string]string{"Mode": mode})

	enc := json.NewEncoder(os.Stdout)
	err = scan(ctx, s.client.Conn(), start, roundLimit, func(ev protocol.Response) bool {
		if outputFormat == formatJSON {
			if err := enc.Encode(server.NewMessage(s.name, ev)); err != nil {
				logging.Warn("Failed to encode event", zap.Error(err))
			}
			return true
		}
		s.printer.Println(protocol.Describe(ev))
		return true
	})
	if err != nil && !errors.Is(err, reader.ErrClosed) {
		return s.fail("Stream stopped", err, connectTips...)
	}
	return err
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch tags live in a terminal dashboard",
	Long: `Run inventory rounds back to back and show every tag seen with its
read count, latest signal strength, antenna and channel.

Keys: p pauses, r clears the table, q quits.`,
	Example: `  r2k monitor
  r2k monitor --port sim://
  r2k monitor --antennas 0,1`,
	Args: cobra.NoArgs,
	RunE: withSession(runMonitor),
}

func runMonitor(cmd *cobra.Command, args []string, s *session) error {
	if !ui.IsTerminal(os.Stdout) {
		return fmt.Errorf("monitor needs a terminal; use 'r2k stream' instead")
	}
	start, mode, err := roundStarter(cmd.Context(), s.client)
	if err != nil {
		return err
	}

	final, err := ui.RunMonitor(ui.MonitorConfig{
		Title:        fmt.Sprintf("%s (%s)", s.name, mode),
		Events:       s.client.Events(),
		Trigger:      start,
		RoundTimeout: roundTimeout,
	})
	if err != nil {
		return err
	}

	stats := final.Tally.Stats()
	if outputFormat == formatJSON {
		return printJSON(stats)
	}
	s.printer.Tags(stats)
	return nil
}
