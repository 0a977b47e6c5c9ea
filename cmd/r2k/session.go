package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/r2k/internal/config"
	"github.com/muurk/r2k/internal/logging"
	"github.com/muurk/r2k/internal/reader"
	"github.com/muurk/r2k/internal/transport"
	"github.com/muurk/r2k/internal/ui"
)

// overrides are the connection flags given on the command line.
type overrides struct {
	port    string
	baud    int
	address int // -1 when unset
}

func flagOverrides() overrides {
	return overrides{port: portFlag, baud: baudFlag, address: addressFlag}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

func saveConfig(cfg *config.Config) error {
	if configPath != "" {
		return cfg.SaveFile(configPath)
	}
	return cfg.Save()
}

// resolveProfile picks the reader profile to use. --port alone needs no
// configuration; with --reader it replaces that profile's port.
func resolveProfile(cfg *config.Config, name string, o overrides) (string, *config.ReaderProfile, error) {
	var profile config.ReaderProfile
	p, err := cfg.Reader(name)
	switch {
	case err == nil:
		profile = *p
		if name == "" {
			name = cfg.DefaultReader
		}
	case o.port != "" && name == "":
		profile = *config.NewReaderProfile(o.port)
		name = o.port
	default:
		return "", nil, fmt.Errorf("%w (use --port, or add a reader with 'r2k config init')", err)
	}

	if o.port != "" {
		profile.Port = o.port
	}
	if o.baud > 0 {
		profile.Baud = o.baud
	}
	if o.address >= 0 {
		profile.Address = o.address
	}
	if name == "" {
		name = profile.Port
	}
	if err := profile.Validate(); err != nil {
		return "", nil, fmt.Errorf("reader %q: %w", name, err)
	}
	return name, &profile, nil
}

// session is an open connection to one reader.
type session struct {
	name    string
	profile *config.ReaderProfile
	client  *reader.Client
	printer *ui.Printer
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	name, profile, err := resolveProfile(cfg, readerName, flagOverrides())
	if err != nil {
		return nil, err
	}

	t, err := transport.Open(ctx, profile.Port, transport.Options{BaudRate: profile.Baud})
	if err != nil {
		return nil, err
	}
	conn := reader.NewConn(t, byte(profile.Address))
	conn.Start(ctx)
	logging.Debug("Reader session opened",
		zap.String("reader", name),
		zap.String("port", profile.Port),
		zap.Int("address", profile.Address))

	return &session{
		name:    name,
		profile: profile,
		client:  reader.NewClient(conn),
		printer: ui.NewPrinter(os.Stdout),
	}, nil
}

func (s *session) Close() {
	if err := s.client.Close(); err != nil {
		logging.Debug("Close reader", zap.Error(err))
	}
}

// header prints the command banner in text mode.
func (s *session) header(cmd *cobra.Command, title string, extra map[string]string) {
	if outputFormat != formatText {
		return
	}
	params := map[string]string{
		"Reader":  s.name,
		"Port":    s.profile.Port,
		"Address": strconv.Itoa(s.profile.Address),
	}
	for k, v := range extra {
		params[k] = v
	}
	s.printer.Header(title, cmd.CommandPath(), params)
}

// fail prints a failure box in text mode and returns err for cobra.
func (s *session) fail(title string, err error, tips ...string) error {
	if outputFormat == formatText {
		s.printer.Failure(title, err, tips...)
	}
	return err
}

// withSession runs fn against a freshly opened reader.
func withSession(fn func(cmd *cobra.Command, args []string, s *session) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(cmd, args, s)
	}
}

var connectTips = []string{
	"Check the cable and that the module is powered",
	"Confirm the line rate with --baud (38400 or 115200)",
	"Confirm the module address with --address",
	"List serial ports with 'r2k ports'",
}
