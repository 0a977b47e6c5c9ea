package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/muurk/r2k/internal/protocol"
)

const sampleYAML = `version: 1
readers:
  dock-door:
    port: /dev/ttyUSB0
    baud: 115200
    address: 1
    timeout: 2s
    antenna: 0
    rf_power: [30, 30, 28, 28]
    region: {name: FCC, start: 902.0, end: 928.0}
    beeper: 0
  bench:
    port: tcp://10.0.0.7:4001
    address: 2
default_reader: dock-door
server: {listen: ":9090", advertise: false, instance: lab}
`

const sampleTOML = `version = 1
default_reader = "bench"

[readers.bench]
port = "sim://"
address = 1
access_timeout = "8s"
identifier = "BENCH-01"

[readers.bench.region]
name = "USER"
start_khz = 915000
spacing_khz = 250
channels = 20
`

func TestGetConfigDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG layout is Linux only")
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	dir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if dir != filepath.Join("/tmp/xdg", "r2k") {
		t.Errorf("GetConfigDir() = %v, want /tmp/xdg/r2k", dir)
	}

	path, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", path)
	}
}

func TestParseYAML(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML), false)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	p, err := cfg.Reader("")
	if err != nil {
		t.Fatalf("Reader(\"\") error = %v", err)
	}
	if p.Port != "/dev/ttyUSB0" || p.Timeout.Duration != 2*time.Second {
		t.Errorf("default reader = %+v", p)
	}
	if p.Antenna == nil || *p.Antenna != 0 {
		t.Errorf("Antenna = %v, want 0", p.Antenna)
	}
	if cfg.Server.Listen != ":9090" || cfg.Server.Advertise || cfg.Server.Instance != "lab" {
		t.Errorf("Server = %+v", cfg.Server)
	}

	reqs, err := p.Requests()
	if err != nil {
		t.Fatalf("Requests() error = %v", err)
	}
	want := []protocol.Command{
		protocol.CmdSetFrequencyRegion,
		protocol.CmdSetRFPower,
		protocol.CmdSetWorkAntenna,
		protocol.CmdSetBeeperMode,
	}
	if len(reqs) != len(want) {
		t.Fatalf("Requests() returned %d requests, want %d", len(reqs), len(want))
	}
	for i, req := range reqs {
		if req.Command != want[i] {
			t.Errorf("request %d = %s, want %s", i, req.Command, want[i])
		}
		if req.Timeout != 2*time.Second {
			t.Errorf("request %d timeout = %v, want 2s", i, req.Timeout)
		}
	}

	bench, err := cfg.Reader("bench")
	if err != nil {
		t.Fatalf("Reader(bench) error = %v", err)
	}
	if reqs, _ := bench.Requests(); len(reqs) != 0 {
		t.Errorf("bench Requests() = %d, want none", len(reqs))
	}
}

func TestParseTOML(t *testing.T) {
	cfg, err := Parse([]byte(sampleTOML), true)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	p, err := cfg.Reader("")
	if err != nil {
		t.Fatalf("Reader(\"\") error = %v", err)
	}
	if p.AccessTimeout.Duration != 8*time.Second || p.Identifier != "BENCH-01" {
		t.Errorf("profile = %+v", p)
	}
	if cfg.Server == nil || cfg.Server.Listen != ":8080" {
		t.Errorf("Server = %+v, want defaults", cfg.Server)
	}

	reqs, err := p.Requests()
	if err != nil {
		t.Fatalf("Requests() error = %v", err)
	}
	if len(reqs) != 2 || reqs[0].Command != protocol.CmdSetFrequencyRegion || reqs[1].Command != protocol.CmdSetReaderIdentifier {
		t.Errorf("Requests() = %+v", reqs)
	}
}

func TestValidate(t *testing.T) {
	antenna := 5
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"version", func(c *Config) { c.Version = 2 }, "unsupported config version"},
		{"missing default", func(c *Config) { c.DefaultReader = "nope" }, "default_reader"},
		{"no port", func(c *Config) { c.Readers["a"].Port = "" }, "port is required"},
		{"address", func(c *Config) { c.Readers["a"].Address = 0xFF }, "address"},
		{"power count", func(c *Config) { c.Readers["a"].RFPower = []int{30} }, "rf_power"},
		{"power range", func(c *Config) { c.Readers["a"].RFPower = []int{30, 30, 30, 40} }, "power"},
		{"antenna", func(c *Config) { c.Readers["a"].Antenna = &antenna }, "antenna"},
		{"region", func(c *Config) { c.Readers["a"].Region = &RegionConfig{Name: "MARS"} }, "MARS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			cfg.SetReader("a", NewReaderProfile("/dev/ttyUSB0"))
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestReaderSelection(t *testing.T) {
	cfg := New()
	if _, err := cfg.Reader(""); err == nil {
		t.Error("Reader(\"\") on an empty config succeeded")
	}

	only := NewReaderProfile("COM3")
	cfg.Readers["only"] = only
	if p, err := cfg.Reader(""); err != nil || p != only {
		t.Errorf("Reader(\"\") = %v, %v; want the only profile", p, err)
	}

	cfg.SetReader("second", NewReaderProfile("COM4"))
	if p, err := cfg.Reader(""); err != nil || p.Port != "COM4" {
		t.Errorf("Reader(\"\") = %v, %v; want the first profile set as default", p, err)
	}
	if _, err := cfg.Reader("missing"); err == nil {
		t.Error("Reader(missing) succeeded")
	}
}

func TestSaveAndLoad(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)

			cfg, err := CreateDefaultConfig(path)
			if err != nil {
				t.Fatalf("CreateDefaultConfig() error = %v", err)
			}
			if _, err := CreateDefaultConfig(path); err == nil {
				t.Error("CreateDefaultConfig() overwrote an existing file")
			}

			info, err := os.Stat(path)
			if err != nil {
				t.Fatalf("Stat() error = %v", err)
			}
			if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
				t.Errorf("mode = %v, want 0600", info.Mode().Perm())
			}
			if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
				t.Error("temporary file left behind")
			}

			loaded, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile() error = %v", err)
			}
			want, _ := cfg.Reader("")
			got, err := loaded.Reader("")
			if err != nil {
				t.Fatalf("Reader() error = %v", err)
			}
			if got.Port != want.Port || got.Timeout != want.Timeout || *got.Antenna != 0 || got.Region.End != 928.0 {
				t.Errorf("loaded profile = %+v, want %+v", got, want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Version != CurrentVersion || len(cfg.Readers) != 0 {
		t.Errorf("LoadFile(missing) = %+v, want defaults", cfg)
	}
}

func TestLoadUsesXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG layout is Linux only")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := New()
	cfg.SetReader("sim", NewReaderProfile("sim://"))
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultReader != "sim" {
		t.Errorf("DefaultReader = %q, want sim", loaded.DefaultReader)
	}
}
