package simulator

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/muurk/r2k/internal/protocol"
)

func request(t *testing.T, cmd protocol.Command, address byte, payload ...byte) protocol.Frame {
	t.Helper()
	raw, err := protocol.Encode(cmd, payload, address)
	if err != nil {
		t.Fatalf("Encode(%s) error = %v", cmd, err)
	}
	f, err := protocol.ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	return *f
}

// classify parses the frames returned by Handle.
func classify(t *testing.T, frames [][]byte) []protocol.Response {
	t.Helper()
	var out []protocol.Response
	for _, raw := range frames {
		f, err := protocol.ParseFrame(raw)
		if err != nil {
			t.Fatalf("simulator sent an invalid frame % X: %v", raw, err)
		}
		out = append(out, protocol.Classify(*f))
	}
	return out
}

func TestHandleReplies(t *testing.T) {
	tests := []struct {
		name string
		cmd  protocol.Command
		in   []byte
		want []byte
	}{
		{"firmware", protocol.CmdGetFirmwareVersion, nil, []byte{8, 1}},
		{"rf power", protocol.CmdGetRFPower, nil, []byte{30, 30, 30, 30}},
		{"work antenna", protocol.CmdGetWorkAntenna, nil, []byte{0x00}},
		{"temperature", protocol.CmdGetReaderTemp, nil, []byte{0x01, 34}},
		{"region", protocol.CmdGetFrequencyRegion, nil, []byte{0x01, 7, 59}},
		{"buffer empty", protocol.CmdGetInventoryBuffer, nil, []byte{byte(protocol.ErrBufferEmpty)}},
		{"bad antenna", protocol.CmdSetWorkAntenna, []byte{0x04}, []byte{byte(protocol.ErrParameterInvalid)}},
		{"short payload", protocol.CmdSetBeeperMode, nil, []byte{byte(protocol.ErrParameterInvalid)}},
		{"unsupported", protocol.CmdISO6BRead, []byte{0x00}, []byte{byte(protocol.ErrFail)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := New()
			resp := classify(t, sim.Handle(request(t, tt.cmd, 0x01, tt.in...)))
			if len(resp) != 1 {
				t.Fatalf("Handle() returned %d frames, want 1", len(resp))
			}
			reply, ok := resp[0].(*protocol.Reply)
			if !ok {
				t.Fatalf("response = %T, want *Reply", resp[0])
			}
			if !bytes.Equal(reply.Data, tt.want) {
				t.Errorf("data = % X, want % X", reply.Data, tt.want)
			}
		})
	}
}

func TestHandleResetIsSilent(t *testing.T) {
	if frames := New().Handle(request(t, protocol.CmdReset, 0x01)); frames != nil {
		t.Errorf("Handle(Reset) = %d frames, want none", len(frames))
	}
}

func TestHandleRealTimeInventory(t *testing.T) {
	sim := New(WithTags([]Tag{
		{EPC: []byte{0x01, 0x02, 0x03, 0x04}, Antenna: 0, RSSI: -60},
		{EPC: []byte{0x05, 0x06, 0x07, 0x08}, Antenna: 1, RSSI: -60},
	}))

	resp := classify(t, sim.Handle(request(t, protocol.CmdRealTimeInventory, 0x01, 2)))
	// Two rounds, each one tag and a summary.
	if len(resp) != 4 {
		t.Fatalf("Handle() returned %d frames, want 4", len(resp))
	}
	tag, ok := resp[0].(*protocol.TagEvent)
	if !ok || tag.Tag.EPC != "01020304" || tag.Tag.RSSI != -60 {
		t.Errorf("first event = %s", protocol.Describe(resp[0]))
	}
	round, ok := resp[3].(*protocol.RoundComplete)
	if !ok || round.TotalRead != 2 {
		t.Errorf("last event = %s, want a round with 2 total reads", protocol.Describe(resp[3]))
	}
}

func TestHandleSetAddress(t *testing.T) {
	sim := New()
	frames := sim.Handle(request(t, protocol.CmdSetReaderAddress, 0x01, 0x09))
	if len(frames) != 1 || frames[0][2] != 0x09 {
		t.Fatalf("reply = % X, want one frame from address 0x09", frames)
	}
	if sim.Address() != 0x09 {
		t.Errorf("Address() = 0x%02X, want 0x09", sim.Address())
	}
}

func TestServeOverPipe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	host := Pipe(ctx, New())
	defer host.Close()

	raw, _ := protocol.Encode(protocol.CmdGetWorkAntenna, nil, 0x01)
	// A frame for another module must be ignored.
	other, _ := protocol.Encode(protocol.CmdGetWorkAntenna, nil, 0x02)
	if _, err := host.Write(append(other, raw...)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	d := protocol.NewDeframer(0x01)
	done := make(chan protocol.Frame, 1)
	go func() {
		for f, err := range d.Frames(host) {
			if err == nil {
				done <- f
			}
			return
		}
	}()

	select {
	case f := <-done:
		if f.Command != protocol.CmdGetWorkAntenna || !bytes.Equal(f.Payload, []byte{0x00}) {
			t.Errorf("reply = %s", f.String())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reply from simulator")
	}
}

func TestListenServesTCP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	go New().Listen(ctx, l)

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	raw, _ := protocol.Encode(protocol.CmdGetFirmwareVersion, nil, 0x01)
	if _, err := conn.Write(raw); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	for f, err := range protocol.NewDeframer(0x01).Frames(conn) {
		if err != nil {
			t.Fatalf("read error = %v", err)
		}
		if !bytes.Equal(f.Payload, []byte{8, 1}) {
			t.Errorf("firmware = % X, want 08 01", f.Payload)
		}
		break
	}
}
