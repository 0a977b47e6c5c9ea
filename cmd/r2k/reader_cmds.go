package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/r2k/internal/protocol"
)

func init() {
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(powerCmd)
	rootCmd.AddCommand(antennaCmd)
	rootCmd.AddCommand(regionCmd)
	rootCmd.AddCommand(gpioCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(returnLossCmd)
}

// ReaderInfo is what 'r2k info' reports.
type ReaderInfo struct {
	Reader      string                    `json:"reader"`
	Port        string                    `json:"port"`
	Address     int                       `json:"address"`
	Firmware    string                    `json:"firmware"`
	Identifier  string                    `json:"identifier,omitempty"`
	Temperature int                       `json:"temperature_c"`
	WorkAntenna int                       `json:"work_antenna"`
	RFPower     [4]int                    `json:"rf_power_dbm"`
	Region      *protocol.FrequencyRegion `json:"region"`
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show module firmware and settings",
	Long: `Query the firmware version, identifier, temperature, work antenna,
output power and frequency region of the reader.`,
	Example: `  r2k info --port /dev/ttyUSB0
  r2k info --reader dock-door --format json`,
	Args: cobra.NoArgs,
	RunE: withSession(runInfo),
}

func runInfo(cmd *cobra.Command, args []string, s *session) error {
	ctx := cmd.Context()
	s.header(cmd, "Reader Info", nil)

	fw, err := s.client.FirmwareVersion(ctx)
	if err != nil {
		return s.fail("Reader not responding", err, connectTips...)
	}
	info := ReaderInfo{
		Reader:   s.name,
		Port:     s.profile.Port,
		Address:  s.profile.Address,
		Firmware: fw.String(),
	}
	// Older firmware has no identifier command.
	if id, err := s.client.Identifier(ctx); err == nil {
		info.Identifier = id
	}
	if info.Temperature, err = s.client.Temperature(ctx); err != nil {
		return s.fail("Temperature query failed", err)
	}
	if info.WorkAntenna, err = s.client.WorkAntenna(ctx); err != nil {
		return s.fail("Antenna query failed", err)
	}
	if info.RFPower, err = s.client.RFPower(ctx); err != nil {
		return s.fail("Power query failed", err)
	}
	if info.Region, err = s.client.FrequencyRegion(ctx); err != nil {
		return s.fail("Region query failed", err)
	}

	if outputFormat == formatJSON {
		return printJSON(info)
	}
	details := map[string]string{
		"Firmware":     info.Firmware,
		"Temperature":  fmt.Sprintf("%d °C", info.Temperature),
		"Work antenna": strconv.Itoa(info.WorkAntenna),
		"RF power":     formatPower(info.RFPower),
		"Region":       info.Region.String(),
	}
	if info.Identifier != "" {
		details["Identifier"] = info.Identifier
	}
	s.printer.Success("Reader "+s.name, details)
	return nil
}

func formatPower(p [4]int) string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, "/") + " dBm"
}

var powerCmd = &cobra.Command{
	Use:   "power [dBm | ant0 ant1 ant2 ant3]",
	Short: "Show or set RF output power",
	Long: `Without arguments, print the output power of each antenna port.
With one value, set every port to it; with four, set each port.
Values are 0-33 dBm and are saved in the module.

--temporary sets one power level for all ports without saving it.`,
	Example: `  r2k power
  r2k power 30
  r2k power 30 30 26 26
  r2k power 20 --temporary`,
	Args: func(cmd *cobra.Command, args []string) error {
		if n := len(args); n != 0 && n != 1 && n != 4 {
			return fmt.Errorf("power takes 0, 1 or 4 values, got %d", n)
		}
		return nil
	},
	RunE: withSession(runPower),
}

var temporaryPower bool

func init() {
	powerCmd.Flags().BoolVar(&temporaryPower, "temporary", false, "Set power without saving it in the module")
}

func runPower(cmd *cobra.Command, args []string, s *session) error {
	ctx := cmd.Context()
	values := make([]int, len(args))
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("invalid power %q: %w", a, err)
		}
		values[i] = v
	}

	switch {
	case len(values) == 0:
		power, err := s.client.RFPower(ctx)
		if err != nil {
			return s.fail("Power query failed", err, connectTips...)
		}
		if outputFormat == formatJSON {
			return printJSON(map[string]any{"rf_power_dbm": power})
		}
		s.printer.Println(formatPower(power))
		return nil
	case temporaryPower:
		if len(values) != 1 {
			return fmt.Errorf("--temporary takes a single value")
		}
		if err := s.client.SetTemporaryPower(ctx, values[0]); err != nil {
			return s.fail("Power not set", err)
		}
	default:
		var power [4]int
		for i := range power {
			power[i] = values[min(i, len(values)-1)]
		}
		if err := s.client.SetRFPower(ctx, power); err != nil {
			return s.fail("Power not set", err)
		}
	}
	return done(s, "Power set", map[string]string{"Power": strings.Join(args, "/") + " dBm"})
}

// done reports a completed setting change.
func done(s *session, title string, details map[string]string) error {
	if outputFormat == formatJSON {
		return printJSON(map[string]any{"ok": true, "details": details})
	}
	s.printer.Success(title, details)
	return nil
}

var antennaCmd = &cobra.Command{
	Use:   "antenna [0-3]",
	Short: "Show or select the work antenna",
	Long: `Without arguments, print the work antenna port (0-3).
With an argument, select it for the following inventories and tag access.`,
	Args: cobra.MaximumNArgs(1),
	RunE: withSession(runAntenna),
}

func runAntenna(cmd *cobra.Command, args []string, s *session) error {
	ctx := cmd.Context()
	if len(args) == 0 {
		ant, err := s.client.WorkAntenna(ctx)
		if err != nil {
			return s.fail("Antenna query failed", err, connectTips...)
		}
		if outputFormat == formatJSON {
			return printJSON(map[string]int{"work_antenna": ant})
		}
		s.printer.Println(strconv.Itoa(ant))
		return nil
	}

	ant, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid antenna %q: %w", args[0], err)
	}
	if err := s.client.SetWorkAntenna(ctx, ant); err != nil {
		return s.fail("Antenna not selected", err)
	}
	return done(s, "Work antenna selected", map[string]string{"Antenna": args[0]})
}

var regionCmd = &cobra.Command{
	Use:   "region [FCC|ETSI|CHN start end | USER startKHz spacingKHz channels]",
	Short: "Show or set the frequency region",
	Long: `Without arguments, print the frequency region and hop range.

System regions take a start and end frequency in MHz, which must be
channels of the frequency table (865-868 MHz and 902-928 MHz in 0.5 MHz
steps). The USER region takes a start frequency and channel spacing in
kHz and a channel count.`,
	Example: `  r2k region
  r2k region FCC 902 928
  r2k region ETSI 865 867.5
  r2k region USER 915000 500 10`,
	Args: func(cmd *cobra.Command, args []string) error {
		if n := len(args); n != 0 && n != 3 && n != 4 {
			return fmt.Errorf("region takes no arguments or a region and its range")
		}
		return nil
	},
	RunE: withSession(runRegion),
}

func runRegion(cmd *cobra.Command, args []string, s *session) error {
	ctx := cmd.Context()
	if len(args) == 0 {
		region, err := s.client.FrequencyRegion(ctx)
		if err != nil {
			return s.fail("Region query failed", err, connectTips...)
		}
		if outputFormat == formatJSON {
			return printJSON(region)
		}
		s.printer.Println(region.String())
		return nil
	}

	region, err := protocol.ParseRegion(strings.ToUpper(args[0]))
	if err != nil {
		return err
	}
	if region == protocol.RegionUser {
		if len(args) != 4 {
			return fmt.Errorf("USER region takes startKHz spacingKHz channels")
		}
		var v [3]int
		for i, a := range args[1:] {
			if v[i], err = strconv.Atoi(a); err != nil {
				return fmt.Errorf("invalid value %q: %w", a, err)
			}
		}
		err = s.client.SetUserFrequencyRegion(ctx, v[0], v[1], v[2])
	} else {
		if len(args) != 3 {
			return fmt.Errorf("%s region takes start and end in MHz", region)
		}
		start, perr := strconv.ParseFloat(args[1], 64)
		if perr != nil {
			return fmt.Errorf("invalid start %q: %w", args[1], perr)
		}
		end, perr := strconv.ParseFloat(args[2], 64)
		if perr != nil {
			return fmt.Errorf("invalid end %q: %w", args[2], perr)
		}
		err = s.client.SetFrequencyRegion(ctx, region, start, end)
	}
	if err != nil {
		return s.fail("Region not set", err)
	}
	return done(s, "Region set", map[string]string{"Region": strings.Join(args, " ")})
}

var gpioCmd = &cobra.Command{
	Use:   "gpio <port> [high|low]",
	Short: "Read or drive a GPIO pin",
	Long:  `Read an input pin (1 or 2) or drive an output pin (3 or 4).`,
	Example: `  r2k gpio 1
  r2k gpio 3 high`,
	Args: cobra.RangeArgs(1, 2),
	RunE: withSession(runGPIO),
}

func runGPIO(cmd *cobra.Command, args []string, s *session) error {
	ctx := cmd.Context()
	port, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", args[0], err)
	}

	if len(args) == 1 {
		high, err := s.client.GPIORead(ctx, port)
		if err != nil {
			return s.fail("GPIO read failed", err)
		}
		if outputFormat == formatJSON {
			return printJSON(map[string]any{"port": port, "high": high})
		}
		s.printer.Println(levelName(high))
		return nil
	}

	var high bool
	switch strings.ToLower(args[1]) {
	case "high", "1", "on":
		high = true
	case "low", "0", "off":
	default:
		return fmt.Errorf("invalid level %q (want high or low)", args[1])
	}
	if err := s.client.GPIOWrite(ctx, port, high); err != nil {
		return s.fail("GPIO write failed", err)
	}
	return done(s, "GPIO set", map[string]string{"Port " + args[0]: levelName(high)})
}

func levelName(high bool) string {
	if high {
		return "high"
	}
	return "low"
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restart the reader module",
	Args:  cobra.NoArgs,
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		if err := s.client.Reset(cmd.Context()); err != nil {
			return s.fail("Reset not sent", err, connectTips...)
		}
		return done(s, "Reset sent", nil)
	}),
}

var returnLossCmd = &cobra.Command{
	Use:   "return-loss <MHz>",
	Short: "Measure the work antenna's return loss",
	Long: `Measure the return loss of the work antenna port at a channel of the
frequency table. Low values point to a missing or mismatched antenna.`,
	Example: `  r2k return-loss 915`,
	Args:    cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		mhz, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid frequency %q: %w", args[0], err)
		}
		loss, err := s.client.ReturnLoss(cmd.Context(), mhz)
		if err != nil {
			return s.fail("Measurement failed", err)
		}
		if outputFormat == formatJSON {
			return printJSON(map[string]any{"frequency_mhz": mhz, "return_loss_db": loss})
		}
		s.printer.Printf("%d dB\n", loss)
		return nil
	}),
}
