package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/muurk/r2k/internal/logging"
	"github.com/muurk/r2k/internal/simulator"
)

// Default link settings for R2000 modules.
const (
	DefaultBaudRate    = 115200
	DefaultDialTimeout = 5 * time.Second
)

// Kind identifies the transport a target resolves to.
type Kind string

const (
	KindSerial    Kind = "serial"
	KindTCP       Kind = "tcp"
	KindSimulator Kind = "sim"
)

// Transport is the byte stream between host and module. Close must unblock
// a pending Read.
type Transport interface {
	io.ReadWriteCloser
}

// ErrEmptyTarget is returned when no port or address was configured.
var ErrEmptyTarget = errors.New("no reader target configured")

// Options tune how a target is opened.
type Options struct {
	BaudRate    int
	DialTimeout time.Duration

	// Simulator options apply to sim:// targets only.
	Simulator []simulator.Option
}

// Target is a parsed reader location.
type Target struct {
	Kind Kind
	Path string
}

func (t Target) String() string {
	if t.Kind == KindSerial {
		return t.Path
	}
	return string(t.Kind) + "://" + t.Path
}

// ParseTarget resolves a target string. Strings without a scheme are
// treated as serial device names.
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Target{}, ErrEmptyTarget
	}

	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return Target{Kind: KindSerial, Path: s}, nil
	}

	switch Kind(strings.ToLower(scheme)) {
	case KindSerial:
		if rest == "" {
			return Target{}, fmt.Errorf("serial target %q has no device", s)
		}
		return Target{Kind: KindSerial, Path: rest}, nil
	case KindTCP:
		if _, _, err := net.SplitHostPort(rest); err != nil {
			return Target{}, fmt.Errorf("invalid tcp target %q: %w", s, err)
		}
		return Target{Kind: KindTCP, Path: rest}, nil
	case KindSimulator:
		return Target{Kind: KindSimulator, Path: rest}, nil
	default:
		return Target{}, fmt.Errorf("unsupported transport scheme %q", scheme)
	}
}

// Open parses target and opens it. The returned stream must be closed by
// the caller.
func Open(ctx context.Context, target string, opts Options) (Transport, error) {
	t, err := ParseTarget(target)
	if err != nil {
		return nil, err
	}
	return OpenTarget(ctx, t, opts)
}

// OpenTarget opens an already parsed target.
func OpenTarget(ctx context.Context, t Target, opts Options) (Transport, error) {
	var (
		rw  Transport
		err error
	)
	switch t.Kind {
	case KindSerial:
		rw, err = openSerial(t.Path, opts.BaudRate)
	case KindTCP:
		rw, err = dial(ctx, t.Path, opts.DialTimeout)
	case KindSimulator:
		rw = simulator.Pipe(ctx, simulator.New(opts.Simulator...))
	default:
		err = fmt.Errorf("unsupported transport %q", t.Kind)
	}
	if err != nil {
		return nil, err
	}

	logging.LogConnection(t.String(), "opened")
	return rw, nil
}

func dial(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}
	return conn, nil
}
