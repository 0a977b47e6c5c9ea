package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/muurk/r2k/internal/logging"
	"github.com/muurk/r2k/internal/protocol"
	"go.uber.org/zap"
)

// QueueSize is the capacity of the reply and event channels.
const QueueSize = 1024

var (
	// ErrTimeout is returned when no reply arrives before the request's
	// timeout. The connection stays usable.
	ErrTimeout = errors.New("timed out waiting for reply")

	// ErrClosed is returned once the transport has gone away. When the
	// reader flow stopped on a transport error, that error is wrapped too.
	ErrClosed = errors.New("connection closed")

	// ErrNoReply is returned by SendAndWait for inventory-report commands,
	// which the reader answers with events only.
	ErrNoReply = errors.New("command has no synchronous reply")
)

// Stats is a snapshot of a connection's counters.
type Stats struct {
	FramesOut    uint64                 `json:"frames_out"`
	Replies      uint64                 `json:"replies"`
	Events       uint64                 `json:"events"`
	StaleReplies uint64                 `json:"stale_replies"`
	Timeouts     uint64                 `json:"timeouts"`
	Deframer     protocol.DeframerStats `json:"deframer"`
}

// Conn correlates requests with replies on one transport.
//
// A single reader flow feeds received bytes through a Deframer, classifies
// each frame and pushes it onto one of two bounded channels: synchronous
// replies, consumed by SendAndWait, and asynchronous events, consumed by
// whoever ranges over Events. The flow is either the goroutine started by
// Start or the caller of Ingest.
//
// Replies are correlated by position only. Only one request may be
// outstanding; Conn enforces this for its own callers with a mutex.
//
// The event channel must be drained during inventory. When it is full the
// reader flow blocks and the transport's receive buffer can overflow.
type Conn struct {
	transport io.ReadWriter

	mu  sync.Mutex // one outstanding request; guards enc
	enc *protocol.Encoder

	// address is the reader address replies must carry. It is stored by
	// the sending side and applied to the deframer by the reader flow.
	address atomic.Uint32

	feedMu   sync.Mutex // guards deframer, closed and sends on the channels
	deframer *protocol.Deframer
	closed   bool

	replies chan *protocol.Reply
	events  chan protocol.Response
	done    chan struct{}

	doneOnce sync.Once
	errMu    sync.Mutex
	err      error

	statsMu       sync.Mutex
	deframerStats protocol.DeframerStats

	framesOut    atomic.Uint64
	replyCount   atomic.Uint64
	eventCount   atomic.Uint64
	staleReplies atomic.Uint64
	timeouts     atomic.Uint64
}

// NewConn creates a connection to the reader at address over transport.
// Nothing is read until Start is called or bytes are pushed with Ingest.
func NewConn(transport io.ReadWriter, address byte) *Conn {
	c := &Conn{
		transport: transport,
		enc:       protocol.NewEncoder(address),
		deframer:  protocol.NewDeframer(address),
		replies:   make(chan *protocol.Reply, QueueSize),
		events:    make(chan protocol.Response, QueueSize),
		done:      make(chan struct{}),
	}
	c.address.Store(uint32(address))
	return c
}

// Start launches the reader flow, which reads the transport until it
// returns an error or ctx is cancelled. Either way the connection is closed
// and both channels are released.
func (c *Conn) Start(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() {
		c.shutdown(ctx.Err())
		if closer, ok := c.transport.(io.Closer); ok {
			closer.Close()
		}
	})
	go func() {
		defer stop()
		c.readLoop()
	}()
}

func (c *Conn) readLoop() {
	buf := make([]byte, 512)
	for {
		n, err := c.transport.Read(buf)
		if n > 0 {
			if c.Ingest(buf[:n]) != nil {
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				logging.Debug("Transport reached end of stream")
			} else {
				logging.Warn("Transport read failed", zap.Error(err))
			}
			c.shutdown(err)
			return
		}
	}
}

// Ingest feeds bytes received from the transport into the reader flow. It
// is the entry point for push-style transports; Start calls it for pull
// transports. Ingest blocks while the event channel is full.
func (c *Conn) Ingest(p []byte) error {
	c.feedMu.Lock()
	defer c.feedMu.Unlock()
	if c.closed {
		return c.closedErr()
	}

	if addr := byte(c.address.Load()); addr != c.deframer.Address() {
		c.deframer.SetAddress(addr)
	}
	for _, b := range p {
		f, ok := c.deframer.FeedByte(b)
		if !ok {
			continue
		}
		logging.LogFrame("rx", f.Command.String(), f.Bytes())
		if !c.dispatch(protocol.Classify(f)) {
			break
		}
	}

	c.statsMu.Lock()
	c.deframerStats = c.deframer.Stats()
	c.statsMu.Unlock()
	return nil
}

// dispatch routes one response to its channel. It reports false when the
// connection closed while waiting for room.
func (c *Conn) dispatch(r protocol.Response) bool {
	protocol.LogResponse(r)
	if reply, ok := r.(*protocol.Reply); ok {
		select {
		case c.replies <- reply:
			c.replyCount.Add(1)
			return true
		case <-c.done:
			return false
		}
	}
	select {
	case c.events <- r:
		c.eventCount.Add(1)
		return true
	case <-c.done:
		return false
	}
}

// shutdown records the terminal error and closes both channels. Only the
// first call has any effect.
func (c *Conn) shutdown(cause error) {
	c.doneOnce.Do(func() {
		c.errMu.Lock()
		if cause == nil || errors.Is(cause, ErrClosed) {
			c.err = ErrClosed
		} else {
			c.err = fmt.Errorf("%w: %w", ErrClosed, cause)
		}
		c.errMu.Unlock()
		close(c.done)
	})

	c.feedMu.Lock()
	defer c.feedMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.replies)
	close(c.events)
}

func (c *Conn) closedErr() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		return ErrClosed
	}
	return c.err
}

// Err returns the terminal error once the connection has closed, and nil
// before that.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.closedErr()
	default:
		return nil
	}
}

// Done is closed when the connection shuts down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close shuts the connection down and closes the transport if it is an
// io.Closer. Consumers of Events see the channel close.
func (c *Conn) Close() error {
	c.shutdown(nil)
	if closer, ok := c.transport.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Events returns the asynchronous event channel. It is closed when the
// connection shuts down.
func (c *Conn) Events() <-chan protocol.Response {
	return c.events
}

// Address returns the address placed in outgoing frames.
func (c *Conn) Address() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enc.Address()
}

// Stats returns a snapshot of the connection counters.
func (c *Conn) Stats() Stats {
	c.statsMu.Lock()
	ds := c.deframerStats
	c.statsMu.Unlock()
	return Stats{
		FramesOut:    c.framesOut.Load(),
		Replies:      c.replyCount.Load(),
		Events:       c.eventCount.Load(),
		StaleReplies: c.staleReplies.Load(),
		Timeouts:     c.timeouts.Load(),
		Deframer:     ds,
	}
}

// Send writes req without waiting for a reply. Transport errors are
// returned to the caller and never retried.
func (c *Conn) Send(ctx context.Context, req protocol.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(ctx, req)
}

func (c *Conn) send(ctx context.Context, req protocol.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.Err(); err != nil {
		return err
	}

	raw, err := c.enc.Encode(req.Command, req.Payload)
	if err != nil {
		return err
	}

	// The reader answers a set-address request from its new address, so
	// replies are accepted from it before the write completes.
	prev := c.enc.Address()
	if req.Command == protocol.CmdSetReaderAddress && len(req.Payload) > 0 {
		c.address.Store(uint32(req.Payload[0]))
	}

	logging.LogFrame("tx", req.Command.String(), raw)
	if _, err := c.transport.Write(raw); err != nil {
		c.address.Store(uint32(prev))
		return fmt.Errorf("failed to write %s frame: %w", req.Command, err)
	}
	c.framesOut.Add(1)

	if c.enc.Commit(req.Command, req.Payload) {
		logging.Info("Reader address changed",
			zap.String("from", fmt.Sprintf("0x%02X", prev)),
			zap.String("to", fmt.Sprintf("0x%02X", c.enc.Address())),
		)
	}
	return nil
}

// SendAndWait writes req and waits for its reply. It returns ErrTimeout
// once req.Timeout has elapsed, ctx.Err() when ctx ends first, and an error
// wrapping ErrClosed when the connection shuts down. A reply carrying a
// failure status is returned as-is; see protocol.Reply.Err.
//
// Replies left over from earlier requests that timed out are discarded
// before the write. A late reply that arrives after the write cannot be
// told apart from the real one when both carry the same command.
func (c *Conn) SendAndWait(ctx context.Context, req protocol.Request) (*protocol.Reply, error) {
	var reply *protocol.Reply
	err := c.Transact(ctx, req, func(r *protocol.Reply) (bool, error) {
		reply = r
		return false, nil
	})
	return reply, err
}

// Transact writes req and hands each reply to collect until collect
// returns false or an error. Every reply is awaited for up to req.Timeout.
// It serves commands the reader answers with several frames, such as the
// inventory buffer reads.
func (c *Conn) Transact(ctx context.Context, req protocol.Request, collect func(*protocol.Reply) (more bool, err error)) error {
	if !req.ExpectsReply() {
		return fmt.Errorf("%s: %w", req.Command, ErrNoReply)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.drain()
	if err := c.send(ctx, req); err != nil {
		return err
	}
	for {
		reply, err := c.await(ctx, req)
		if err != nil {
			return err
		}
		more, err := collect(reply)
		if err != nil || !more {
			return err
		}
	}
}

// await waits for the next reply to req. Replies for a different command
// are stale answers to an earlier request and are skipped.
func (c *Conn) await(ctx context.Context, req protocol.Request) (*protocol.Reply, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = protocol.DefaultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case reply, ok := <-c.replies:
			if !ok {
				return nil, c.closedErr()
			}
			if reply.Command != req.Command {
				c.discard(reply)
				continue
			}
			return reply, nil
		case <-timer.C:
			c.timeouts.Add(1)
			logging.Debug("Reply wait expired",
				zap.String("command", req.Command.String()),
				zap.Duration("timeout", timeout),
			)
			return nil, fmt.Errorf("%s: %w after %s", req.Command, ErrTimeout, timeout)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// DrainReplies discards every reply waiting in the reply channel and
// returns how many there were. SendAndWait already does this before each
// write.
func (c *Conn) DrainReplies() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drain()
}

func (c *Conn) drain() int {
	n := 0
	for {
		select {
		case reply, ok := <-c.replies:
			if !ok {
				return n
			}
			c.discard(reply)
			n++
		default:
			return n
		}
	}
}

func (c *Conn) discard(reply *protocol.Reply) {
	c.staleReplies.Add(1)
	logging.Debug("Discarded stale reply",
		zap.String("command", reply.Command.String()),
		zap.Binary("data", reply.Data),
	)
}
