package config

import (
	"fmt"
	"time"

	"github.com/muurk/r2k/internal/protocol"
)

// CurrentVersion is the schema version written by Save.
const CurrentVersion = 1

// Config represents the entire configuration file.
type Config struct {
	Version       int                       `yaml:"version" toml:"version"`
	Readers       map[string]*ReaderProfile `yaml:"readers,omitempty" toml:"readers,omitempty"`
	DefaultReader string                    `yaml:"default_reader,omitempty" toml:"default_reader,omitempty"`
	Server        *ServerConfig             `yaml:"server,omitempty" toml:"server,omitempty"`
}

// ReaderProfile describes one attached reader module.
//
// Optional settings left unset are not pushed to the module.
type ReaderProfile struct {
	Port          string        `yaml:"port" toml:"port"`                                         // serial device, tcp://host:port or sim://
	Baud          int           `yaml:"baud,omitempty" toml:"baud,omitempty"`                     // host side line rate
	Address       int           `yaml:"address" toml:"address"`                                   // module bus address
	Timeout       Duration      `yaml:"timeout,omitempty" toml:"timeout,omitempty"`               // reply deadline for settings
	AccessTimeout Duration      `yaml:"access_timeout,omitempty" toml:"access_timeout,omitempty"` // reply deadline for tag access
	Antenna       *int          `yaml:"antenna,omitempty" toml:"antenna,omitempty"`
	RFPower       []int         `yaml:"rf_power,omitempty" toml:"rf_power,omitempty"` // dBm per antenna
	Region        *RegionConfig `yaml:"region,omitempty" toml:"region,omitempty"`
	Beeper        *int          `yaml:"beeper,omitempty" toml:"beeper,omitempty"`
	Identifier    string        `yaml:"identifier,omitempty" toml:"identifier,omitempty"`
}

// RegionConfig selects the frequency plan. System regions use Start and End
// in MHz; the USER region uses StartKHz, SpacingKHz and Channels.
type RegionConfig struct {
	Name       string  `yaml:"name" toml:"name"`
	Start      float64 `yaml:"start,omitempty" toml:"start,omitempty"`
	End        float64 `yaml:"end,omitempty" toml:"end,omitempty"`
	StartKHz   int     `yaml:"start_khz,omitempty" toml:"start_khz,omitempty"`
	SpacingKHz int     `yaml:"spacing_khz,omitempty" toml:"spacing_khz,omitempty"`
	Channels   int     `yaml:"channels,omitempty" toml:"channels,omitempty"`
}

// ServerConfig configures the event streaming server.
type ServerConfig struct {
	Listen    string `yaml:"listen" toml:"listen"`
	Advertise bool   `yaml:"advertise" toml:"advertise"` // publish over mDNS
	Instance  string `yaml:"instance,omitempty" toml:"instance,omitempty"`
}

// Duration is a time.Duration written as a string such as "3s".
type Duration struct {
	time.Duration
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// IsZero lets yaml omitempty skip unset durations.
func (d Duration) IsZero() bool {
	return d.Duration == 0
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Version: CurrentVersion,
		Readers: make(map[string]*ReaderProfile),
		Server:  defaultServer(),
	}
}

func defaultServer() *ServerConfig {
	return &ServerConfig{
		Listen:    ":8080",
		Advertise: true,
		Instance:  "r2k",
	}
}

// NewReaderProfile returns a profile for port with the module defaults.
func NewReaderProfile(port string) *ReaderProfile {
	return &ReaderProfile{
		Port:          port,
		Baud:          115200,
		Address:       0x01,
		Timeout:       Duration{protocol.DefaultTimeout},
		AccessTimeout: Duration{protocol.AccessTimeout},
	}
}

// Reader returns the named profile. An empty name selects DefaultReader,
// or the only profile when there is exactly one.
func (c *Config) Reader(name string) (*ReaderProfile, error) {
	if name == "" {
		name = c.DefaultReader
	}
	if name == "" {
		if len(c.Readers) == 1 {
			for _, p := range c.Readers {
				return p, nil
			}
		}
		return nil, fmt.Errorf("no reader selected and no default_reader configured")
	}

	p, ok := c.Readers[name]
	if !ok {
		return nil, fmt.Errorf("reader %q not found in config", name)
	}
	return p, nil
}

// SetReader adds or replaces a profile. The first profile added becomes the
// default.
func (c *Config) SetReader(name string, p *ReaderProfile) {
	if c.Readers == nil {
		c.Readers = make(map[string]*ReaderProfile)
	}
	c.Readers[name] = p
	if c.DefaultReader == "" {
		c.DefaultReader = name
	}
}

// Validate checks the whole file.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}
	if c.DefaultReader != "" {
		if _, ok := c.Readers[c.DefaultReader]; !ok {
			return fmt.Errorf("default_reader %q is not defined", c.DefaultReader)
		}
	}
	for name, p := range c.Readers {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("reader %q: %w", name, err)
		}
	}
	return nil
}

// Validate checks the profile by building its requests.
func (p *ReaderProfile) Validate() error {
	if p.Port == "" {
		return fmt.Errorf("port is required")
	}
	if p.Address < 0 || p.Address > protocol.MaxReaderAddress {
		return fmt.Errorf("address %d out of range 0-%d", p.Address, protocol.MaxReaderAddress)
	}
	if p.Baud < 0 {
		return fmt.Errorf("baud %d must be positive", p.Baud)
	}
	_, err := p.Requests()
	return err
}

// Requests returns the setting requests for the configured options, in the
// order they should be sent.
func (p *ReaderProfile) Requests() ([]protocol.Request, error) {
	var reqs []protocol.Request
	add := func(req protocol.Request, err error) error {
		if err != nil {
			return err
		}
		reqs = append(reqs, p.withTimeout(req))
		return nil
	}

	if r := p.Region; r != nil {
		if err := add(r.request()); err != nil {
			return nil, err
		}
	}
	if len(p.RFPower) > 0 {
		if len(p.RFPower) != 4 {
			return nil, fmt.Errorf("rf_power needs 4 values, got %d", len(p.RFPower))
		}
		if err := add(protocol.SetRFPower(p.RFPower[0], p.RFPower[1], p.RFPower[2], p.RFPower[3])); err != nil {
			return nil, err
		}
	}
	if p.Antenna != nil {
		if err := add(protocol.SetWorkAntenna(*p.Antenna)); err != nil {
			return nil, err
		}
	}
	if p.Beeper != nil {
		if err := add(protocol.SetBeeperMode(*p.Beeper)); err != nil {
			return nil, err
		}
	}
	if p.Identifier != "" {
		if err := add(protocol.SetReaderIdentifier(p.Identifier)); err != nil {
			return nil, err
		}
	}
	return reqs, nil
}

func (p *ReaderProfile) withTimeout(req protocol.Request) protocol.Request {
	if p.Timeout.Duration > 0 {
		req.Timeout = p.Timeout.Duration
	}
	return req
}

func (r *RegionConfig) request() (protocol.Request, error) {
	region, err := protocol.ParseRegion(r.Name)
	if err != nil {
		return protocol.Request{}, err
	}
	if region == protocol.RegionUser {
		return protocol.SetUserFrequencyRegion(r.StartKHz, r.SpacingKHz, r.Channels)
	}
	return protocol.SetFrequencyRegionMHz(region, r.Start, r.End)
}
