// R2k talks to Impinj R2000 based UHF RFID reader modules over a serial
// line, a TCP serial bridge or the built-in simulator.
//
// It covers module settings, buffered and real-time inventory, tag memory
// access, a live inventory monitor and a WebSocket server that streams
// reader events to other programs.
//
// Usage:
//
//	r2k [command] [flags]
//
// Readers are selected with --port or by name from the configuration file
// (see 'r2k config init'). See 'r2k --help' for available commands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/r2k/internal/logging"
	"github.com/muurk/r2k/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath   string
	readerName   string
	portFlag     string
	baudFlag     int
	addressFlag  int
	logLevel     string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "r2k",
	Short: "Impinj R2000 RFID reader utility",
	Long: `Configure and operate Impinj R2000 based UHF RFID reader modules.

The reader is reached through a serial port (/dev/ttyUSB0, COM3), a TCP
serial bridge (tcp://host:4001) or the built-in simulator (sim://).
Named readers and their settings live in the configuration file; see
'r2k config init'.`,
	Version: version.Version,
	Example: `  # List serial ports
  r2k ports

  # Show module information
  r2k info --port /dev/ttyUSB0

  # Run three buffered inventory rounds
  r2k inventory --repeat 3

  # Watch tags live
  r2k monitor --reader dock-door

  # Try everything without hardware
  r2k monitor --port sim://`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch outputFormat {
		case formatText, formatJSON:
		default:
			return fmt.Errorf("unknown --format %q (want text or json)", outputFormat)
		}
		// Silent unless --log-level or R2K_LOG_LEVEL is set.
		return logging.Initialize(logLevel)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Configuration file (default is the per-user r2k config)")
	flags.StringVarP(&readerName, "reader", "r", "", "Reader profile name from the configuration file")
	flags.StringVarP(&portFlag, "port", "p", "", "Reader target: serial device, tcp://host:port or sim://")
	flags.IntVar(&baudFlag, "baud", 0, "Serial line rate (38400 or 115200)")
	flags.IntVar(&addressFlag, "address", -1, "Reader address (0-254)")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&outputFormat, "format", formatText, "Output format (text, json)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputFormat == formatJSON {
			return printJSON(version.Get())
		}
		info := version.Get()
		fmt.Printf("r2k %s (commit: %s, go %s, %s)\n", info.Version, info.Commit, info.GoVersion, info.Platform)
		return nil
	},
}

const (
	formatText = "text"
	formatJSON = "json"
)

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
