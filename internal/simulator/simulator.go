// Package simulator implements a fake R2000 reader module that speaks the
// serial protocol. It backs the sim:// transport and the end-to-end tests of
// the reader package.
//
// The simulated module keeps its settings in memory, holds a fixed tag
// population and answers every command the protocol package can build. Tag
// reads are deterministic: each inventory round reports every tag in front
// of the antenna once.
package simulator

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/muurk/r2k/internal/logging"
	"github.com/muurk/r2k/internal/protocol"
	"go.uber.org/zap"
)

// Tag is a simulated transponder.
type Tag struct {
	EPC     []byte
	TID     []byte
	User    []byte
	Antenna int // 0-3
	RSSI    int // dBm

	AccessPassword protocol.Password
	KillPassword   protocol.Password

	killed bool
}

// pc returns the protocol control word for the tag's EPC length.
func (t *Tag) pc() uint16 {
	return uint16(len(t.EPC)/2) << 11
}

// crc returns the tag CRC over PC and EPC.
func (t *Tag) crc() uint16 {
	span := binary.BigEndian.AppendUint16(nil, t.pc())
	return protocol.TagCRC(append(span, t.EPC...))
}

// bank returns a copy of a memory bank. The EPC bank is [CRC][PC][EPC].
func (t *Tag) bank(b protocol.MemoryBank) []byte {
	switch b {
	case protocol.BankReserved:
		mem := append([]byte(nil), t.KillPassword[:]...)
		return append(mem, t.AccessPassword[:]...)
	case protocol.BankEPC:
		mem := binary.BigEndian.AppendUint16(nil, t.crc())
		mem = binary.BigEndian.AppendUint16(mem, t.pc())
		return append(mem, t.EPC...)
	case protocol.BankTID:
		return append([]byte(nil), t.TID...)
	default:
		return append([]byte(nil), t.User...)
	}
}

// setBank stores a memory bank written by a tag write.
func (t *Tag) setBank(b protocol.MemoryBank, mem []byte) {
	switch b {
	case protocol.BankReserved:
		copy(t.KillPassword[:], mem[0:4])
		copy(t.AccessPassword[:], mem[4:8])
	case protocol.BankEPC:
		// The CRC word is computed, and the PC word fixes the EPC length.
		pc := binary.BigEndian.Uint16(mem[2:4])
		size := min(protocol.EPCLength(pc), len(mem)-4)
		t.EPC = append([]byte(nil), mem[4:4+size]...)
	case protocol.BankTID:
		t.TID = mem
	default:
		t.User = mem
	}
}

// DefaultTags returns the tag population used by sim:// connections: two
// tags on antenna 1 and one on antenna 2.
func DefaultTags() []Tag {
	return []Tag{
		{
			EPC:     []byte{0xE2, 0x00, 0x34, 0x12, 0xB8, 0x02, 0x01, 0x23, 0x45, 0x67, 0x89, 0x0A},
			TID:     []byte{0xE2, 0x80, 0x11, 0x05, 0x20, 0x00, 0x7A, 0x31, 0x00, 0x00, 0x00, 0x01},
			User:    make([]byte, 16),
			Antenna: 0,
			RSSI:    -58,
		},
		{
			EPC:     []byte{0x30, 0x08, 0x33, 0xB2, 0xDD, 0xD9, 0x01, 0x40, 0x00, 0x00, 0x00, 0x2A},
			TID:     []byte{0xE2, 0x80, 0x11, 0x05, 0x20, 0x00, 0x7A, 0x31, 0x00, 0x00, 0x00, 0x02},
			User:    make([]byte, 16),
			Antenna: 0,
			RSSI:    -64,
		},
		{
			EPC:     []byte{0xAD, 0xA1, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			TID:     []byte{0xE2, 0x00, 0x68, 0x10, 0x00, 0x00, 0x00, 0x03},
			User:    make([]byte, 16),
			Antenna: 1,
			RSSI:    -71,
		},
	}
}

// Option configures a Reader.
type Option func(*Reader)

// WithAddress sets the module address (default 1).
func WithAddress(address byte) Option {
	return func(r *Reader) { r.address = address }
}

// WithTags replaces the tag population.
func WithTags(tags []Tag) Option {
	return func(r *Reader) {
		r.tags = make([]*Tag, len(tags))
		for i := range tags {
			t := tags[i]
			r.tags[i] = &t
		}
	}
}

// WithDisconnectedAntenna marks antenna (0-3) as having nothing attached.
func WithDisconnectedAntenna(antenna int) Option {
	return func(r *Reader) { r.disconnected[antenna] = true }
}

// WithFirmware sets the reported firmware version.
func WithFirmware(major, minor byte) Option {
	return func(r *Reader) { r.firmware = [2]byte{major, minor} }
}

// WithTemperature sets the reported module temperature in degrees Celsius.
func WithTemperature(celsius int) Option {
	return func(r *Reader) { r.temperature = celsius }
}

// Reader is a simulated reader module. Its state is shared by every
// connection it serves.
type Reader struct {
	mu sync.Mutex

	address      byte
	firmware     [2]byte
	temperature  int
	workAntenna  byte
	power        [4]byte
	beeper       byte
	detector     byte
	identifier   [protocol.IdentifierLength]byte
	linkProfile  byte
	fastTID      byte
	region       []byte
	gpio         [4]bool // ports 1-4
	match        []byte  // EPC selected by SetAccessEPCMatch
	disconnected [4]bool

	tags   []*Tag
	buffer []*bufferedRead
	total  uint32 // tag reads since power-up
}

type bufferedRead struct {
	tag     *Tag
	antenna byte
	count   byte
}

// New creates a simulated reader with DefaultTags.
func New(opts ...Option) *Reader {
	r := &Reader{
		address:     0x01,
		firmware:    [2]byte{8, 1},
		temperature: 34,
		power:       [4]byte{30, 30, 30, 30},
		linkProfile: protocol.LinkProfile1,
		fastTID:     protocol.FastTIDOff,
		region:      []byte{byte(protocol.RegionFCC), 7, 59},
	}
	for i := range r.identifier {
		r.identifier[i] = 0xFF
	}
	WithTags(DefaultTags())(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Address returns the current module address.
func (r *Reader) Address() byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.address
}

// GPIO returns the level of port 1-4.
func (r *Reader) GPIO(port int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gpio[port-1]
}

// SetInput drives input port 1 or 2.
func (r *Reader) SetInput(port int, high bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gpio[port-1] = high
}

// Tag returns a copy of the tag with the given EPC.
func (r *Reader) Tag(epc []byte) (Tag, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tags {
		if string(t.EPC) == string(epc) {
			return *t, true
		}
	}
	return Tag{}, false
}

// Serve answers requests read from conn until it fails or ctx is
// cancelled. io.EOF and a closed pipe end Serve without an error.
func (r *Reader) Serve(ctx context.Context, conn io.ReadWriter) error {
	if closer, ok := conn.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { closer.Close() })
		defer stop()
	}

	d := protocol.NewDeframer(r.Address())
	for f, err := range d.Frames(conn) {
		if err != nil {
			if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		for _, raw := range r.Handle(f) {
			if _, err := conn.Write(raw); err != nil {
				if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
					return nil
				}
				return err
			}
		}
		d.SetAddress(r.Address())
	}
	return ctx.Err()
}

// Pipe returns the host end of an in-memory connection to r. Closing it
// stops the simulator goroutine.
func Pipe(ctx context.Context, r *Reader) io.ReadWriteCloser {
	host, module := net.Pipe()
	go func() {
		defer module.Close()
		if err := r.Serve(ctx, module); err != nil {
			logging.Warn("Simulator stopped", zap.Error(err))
		}
	}()
	return host
}

// Listen serves every connection accepted on l until ctx is cancelled. It
// lets TCP clients exercise the tcp:// transport against the simulator.
func (r *Reader) Listen(ctx context.Context, l net.Listener) error {
	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		logging.LogConnection(conn.RemoteAddr().String(), "simulator client connected")
		go func() {
			defer conn.Close()
			if err := r.Serve(ctx, conn); err != nil {
				logging.Warn("Simulator connection failed", zap.Error(err))
			}
		}()
	}
}
