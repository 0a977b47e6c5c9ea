package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/r2k/internal/config"
	"github.com/muurk/r2k/internal/ui"
)

func init() {
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(applyCmd)

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configAddCmd)

	configShowCmd.Flags().BoolVar(&showTOML, "toml", false, "Print as TOML instead of YAML")
	configAddCmd.Flags().BoolVar(&makeDefault, "default", false, "Make this the default reader")
}

var (
	showTOML    bool
	makeDefault bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the r2k configuration file",
	Long: `The configuration file names readers and the settings 'r2k apply'
pushes to them. It is YAML, or TOML when the file name ends in .toml.`,
}

func configFile() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configFile()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example configuration file",
	Long: `Create a configuration file with one reader named "default". Edit its
port and settings, then run 'r2k apply'. An existing file is never
overwritten.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configFile()
		if err != nil {
			return err
		}
		if _, err := config.CreateDefaultConfig(path); err != nil {
			return err
		}
		ui.NewPrinter(os.Stdout).Success("Configuration created", map[string]string{"Path": path})
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if outputFormat == formatJSON {
			return printJSON(cfg)
		}
		data, err := cfg.Encode(showTOML)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

var configAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or replace a reader profile",
	Long: `Add a reader profile built from --port, --baud and --address. Settings
such as power and region are edited in the file afterwards.`,
	Example: `  r2k config add dock-door --port /dev/ttyUSB0
  r2k config add bench --port tcp://10.0.0.7:4001 --address 2 --default`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if portFlag == "" {
			return fmt.Errorf("--port is required")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		p := config.NewReaderProfile(portFlag)
		if baudFlag > 0 {
			p.Baud = baudFlag
		}
		if addressFlag >= 0 {
			p.Address = addressFlag
		}
		if err := p.Validate(); err != nil {
			return err
		}
		cfg.SetReader(args[0], p)
		if makeDefault {
			cfg.DefaultReader = args[0]
		}
		if err := saveConfig(cfg); err != nil {
			return err
		}
		ui.NewPrinter(os.Stdout).Success("Reader saved", map[string]string{
			"Name":    args[0],
			"Port":    p.Port,
			"Default": fmt.Sprint(cfg.DefaultReader == args[0]),
		})
		return nil
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Push a reader profile's settings to the module",
	Long: `Send the region, output power, work antenna, beeper mode and identifier
configured for the reader, in that order. Unset settings are left alone.
Stops at the first setting the module rejects.`,
	Example: `  r2k apply --reader dock-door`,
	Args:    cobra.NoArgs,
	RunE:    withSession(runApply),
}

func runApply(cmd *cobra.Command, args []string, s *session) error {
	reqs, err := s.profile.Requests()
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		s.printer.Warning("Nothing to apply", map[string]string{"Reader": s.name})
		return nil
	}

	names := make([]string, len(reqs))
	for i, req := range reqs {
		names[i] = req.Command.String()
	}
	steps := ui.NewSteps("Applying "+s.name, names...)
	s.header(cmd, "Apply Profile", nil)

	var failed error
	for i, req := range reqs {
		n := i + 1
		if failed != nil {
			steps.Skip(n, "")
			continue
		}
		steps.Start(n, "")
		if err := s.client.Apply(cmd.Context(), req); err != nil {
			steps.Fail(n, err.Error())
			failed = err
			continue
		}
		steps.Complete(n, "")
	}

	if outputFormat == formatJSON {
		return printJSON(map[string]any{"ok": failed == nil, "steps": steps.Steps})
	}
	s.printer.Steps(steps)
	if failed != nil {
		return s.fail("Profile not fully applied", failed, "Check the value against the module's limits", "Run 'r2k info' to see what was applied")
	}
	s.printer.Success("Profile applied", map[string]string{"Settings": fmt.Sprint(len(reqs))})
	return nil
}
