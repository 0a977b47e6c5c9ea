package protocol

import (
	"errors"
	"io"
	"iter"

	"github.com/muurk/r2k/internal/logging"
	"go.uber.org/zap"
)

// DeframerStats counts what a Deframer has seen since it was created.
type DeframerStats struct {
	Frames         uint64 // valid frames emitted
	AddressDrops   uint64 // complete frames for another reader address
	ChecksumDrops  uint64 // complete frames failing the LRC check
	MalformedDrops uint64 // complete frames shorter than the minimum frame
	SkippedBytes   uint64 // bytes discarded while hunting for a head byte
}

// Deframer reassembles frames from an unbounded byte stream.
//
// While idle it discards bytes until it sees FrameHead. It then accumulates
// bytes until LEN+2 are buffered, so a head byte inside a payload is never
// mistaken for a new frame. A complete frame addressed to another reader is
// dropped silently; one with a bad checksum is dropped and logged. Either
// way the buffer is cleared and the deframer returns to idle, which recovers
// from a corrupted frame without an explicit resync.
//
// A Deframer is owned by a single goroutine.
type Deframer struct {
	address      byte
	buf          []byte
	accumulating bool
	stats        DeframerStats
}

// NewDeframer creates a deframer accepting frames for address.
func NewDeframer(address byte) *Deframer {
	return &Deframer{
		address: address,
		buf:     make([]byte, 0, MaxPayloadSize+MinFrameSize),
	}
}

// SetAddress changes the accepted address. It takes effect for the next
// completed frame.
func (d *Deframer) SetAddress(address byte) {
	d.address = address
}

// Address returns the accepted address.
func (d *Deframer) Address() byte {
	return d.address
}

// Reset discards any partial frame and returns to idle.
func (d *Deframer) Reset() {
	d.buf = d.buf[:0]
	d.accumulating = false
}

// Stats returns a snapshot of the counters.
func (d *Deframer) Stats() DeframerStats {
	return d.stats
}

// FeedByte advances the state machine by one byte and returns a frame when b
// completes a valid one.
func (d *Deframer) FeedByte(b byte) (Frame, bool) {
	if !d.accumulating {
		if b != FrameHead {
			d.stats.SkippedBytes++
			return Frame{}, false
		}
		d.accumulating = true
		d.buf = append(d.buf[:0], b)
		return Frame{}, false
	}

	d.buf = append(d.buf, b)
	if len(d.buf) < 2 || len(d.buf) != int(d.buf[1])+2 {
		return Frame{}, false
	}

	f, ok := d.complete()
	d.Reset()
	return f, ok
}

// complete validates the buffered frame. The buffer holds exactly LEN+2
// bytes when it is called.
func (d *Deframer) complete() (Frame, bool) {
	raw := d.buf
	if len(raw) < MinFrameSize {
		d.stats.MalformedDrops++
		logging.LogRawBytes("Dropped malformed frame", raw)
		return Frame{}, false
	}
	if raw[2] != d.address {
		d.stats.AddressDrops++
		return Frame{}, false
	}
	if !VerifyLRC(raw) {
		d.stats.ChecksumDrops++
		logging.Debug("Dropped frame with bad checksum",
			zap.String("command", Command(raw[3]).String()),
			zap.Binary("frame", raw),
			zap.Uint8("sum", Sum8(raw)),
		)
		return Frame{}, false
	}
	d.stats.Frames++
	return *newFrame(raw), true
}

// Feed pushes p through the state machine and returns the frames it
// completed, in order. Partial frames carry over to the next call.
func (d *Deframer) Feed(p []byte) []Frame {
	var frames []Frame
	for _, b := range p {
		if f, ok := d.FeedByte(b); ok {
			frames = append(frames, f)
		}
	}
	return frames
}

// Frames returns a sequence of the frames read from r. The sequence ends at
// io.EOF; any other read error is yielded once and ends it. Because the
// deframer keeps its state, ranging over the sequence again resumes where
// the previous iteration stopped.
func (d *Deframer) Frames(r io.Reader) iter.Seq2[Frame, error] {
	chunk := make([]byte, 256)
	var pending []byte // read but not yet fed when the consumer stopped early
	var readErr error
	return func(yield func(Frame, error) bool) {
		for {
			for len(pending) > 0 {
				b := pending[0]
				pending = pending[1:]
				if f, ok := d.FeedByte(b); ok {
					if !yield(f, nil) {
						return
					}
				}
			}
			if readErr != nil {
				if !errors.Is(readErr, io.EOF) {
					yield(Frame{}, readErr)
				}
				return
			}
			var n int
			n, readErr = r.Read(chunk)
			pending = chunk[:n]
		}
	}
}
