package transport

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/muurk/r2k/internal/protocol"
	"github.com/muurk/r2k/internal/simulator"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    Target
		wantErr bool
	}{
		{in: "/dev/ttyUSB0", want: Target{Kind: KindSerial, Path: "/dev/ttyUSB0"}},
		{in: "COM3", want: Target{Kind: KindSerial, Path: "COM3"}},
		{in: "serial:///dev/ttyS1", want: Target{Kind: KindSerial, Path: "/dev/ttyS1"}},
		{in: "TCP://10.0.0.7:4001", want: Target{Kind: KindTCP, Path: "10.0.0.7:4001"}},
		{in: "sim://", want: Target{Kind: KindSimulator}},
		{in: "", wantErr: true},
		{in: "serial://", wantErr: true},
		{in: "tcp://nohost", wantErr: true},
		{in: "udp://1.2.3.4:5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTarget(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTarget(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseTarget(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseTargetEmpty(t *testing.T) {
	if _, err := ParseTarget("  "); !errors.Is(err, ErrEmptyTarget) {
		t.Errorf("ParseTarget(blank) error = %v, want ErrEmptyTarget", err)
	}
}

func TestTargetString(t *testing.T) {
	if got := (Target{Kind: KindSerial, Path: "COM3"}).String(); got != "COM3" {
		t.Errorf("String() = %q, want COM3", got)
	}
	if got := (Target{Kind: KindTCP, Path: "h:1"}).String(); got != "tcp://h:1" {
		t.Errorf("String() = %q, want tcp://h:1", got)
	}
}

// roundTrip asks for the firmware version and returns the reply payload.
func roundTrip(t *testing.T, rw interface {
	Write([]byte) (int, error)
	Read([]byte) (int, error)
}) []byte {
	t.Helper()
	raw, err := protocol.Encode(protocol.CmdGetFirmwareVersion, nil, 0x01)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rw.Write(raw); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	for f, err := range protocol.NewDeframer(0x01).Frames(rw) {
		if err != nil {
			t.Fatalf("read error = %v", err)
		}
		return f.Payload
	}
	t.Fatal("stream ended without a reply")
	return nil
}

func TestOpenSimulator(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rw, err := Open(ctx, "sim://", Options{Simulator: []simulator.Option{simulator.WithFirmware(9, 3)}})
	if err != nil {
		t.Fatalf("Open(sim://) error = %v", err)
	}
	defer rw.Close()

	if got := roundTrip(t, rw); !bytes.Equal(got, []byte{9, 3}) {
		t.Errorf("firmware = % X, want 09 03", got)
	}
}

func TestOpenTCP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	go simulator.New().Listen(ctx, l)

	rw, err := Open(ctx, "tcp://"+l.Addr().String(), Options{DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("Open(tcp) error = %v", err)
	}
	defer rw.Close()
	rw.(net.Conn).SetDeadline(time.Now().Add(2 * time.Second))

	if got := roundTrip(t, rw); !bytes.Equal(got, []byte{8, 1}) {
		t.Errorf("firmware = % X, want 08 01", got)
	}
}

func TestOpenTCPRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	if _, err := Open(context.Background(), "tcp://"+addr, Options{DialTimeout: time.Second}); err == nil {
		t.Error("Open() on a closed port succeeded")
	}
}

func TestPortInfoMatches(t *testing.T) {
	p := PortInfo{Name: "/dev/ttyUSB0", USB: true, VID: "10C4", PID: "EA60", Product: "CP2102 USB to UART"}
	tests := []struct {
		filter string
		want   bool
	}{
		{"", true},
		{"usb0", true},
		{"cp2102", true},
		{"ACM", false},
	}
	for _, tt := range tests {
		if got := p.matches(tt.filter); got != tt.want {
			t.Errorf("matches(%q) = %v, want %v", tt.filter, got, tt.want)
		}
	}
	if got := p.Description(); got != "/dev/ttyUSB0 [10C4:EA60] CP2102 USB to UART" {
		t.Errorf("Description() = %q", got)
	}
}
