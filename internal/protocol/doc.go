// Package protocol implements the Impinj R2000 reader module serial protocol.
//
// This package handles encoding, stream reassembly, validation and decoding of
// the binary command/response frames spoken by R2000-based UHF RFID reader
// modules. It performs no I/O of its own and starts no goroutines; the
// internal/reader package drives it from a transport.
//
// # Wire Format
//
// Every frame, in both directions, has this structure:
//
//	[0]      0xA0           Head marker (FrameHead)
//	[1]      LEN            3 + len(payload)
//	[2]      ADDR           Reader address, 0x00-0xFE, 0xFF = broadcast
//	[3]      CMD            Command code
//	[4..n]   PAYLOAD        0-251 bytes, command specific
//	[n+1]    CHK            LRC: two's complement of the sum of bytes [0..n]
//
// The LEN field does not count the head byte or itself, so a complete frame
// is always LEN+2 bytes long, and the 8-bit sum of all of its bytes is zero.
//
// # Usage Example - Encoding
//
//	req, err := protocol.SetRFPower(30, 30, 30, 30)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	enc := protocol.NewEncoder(0x01)
//	raw, err := enc.Encode(req.Command, req.Payload)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_, err = port.Write(raw)
//
// # Usage Example - Decoding
//
//	d := protocol.NewDeframer(0x01)
//	for _, f := range d.Feed(chunk) {
//	    switch r := protocol.Classify(f).(type) {
//	    case *protocol.Reply:
//	        fmt.Printf("reply to %s: % X\n", r.Command, r.Data)
//	    case *protocol.TagEvent:
//	        fmt.Printf("tag %s on antenna %d (%d dBm)\n", r.Tag.EPC, r.Tag.Antenna, r.Tag.RSSI)
//	    }
//	}
//
// # Responses
//
// Frames for the four inventory-report commands (real-time, ISO 18000-6B,
// fast-switch antenna and session/target inventory) carry asynchronous
// events: a tag read, a round summary, an error, an antenna disconnect or an
// empty read. Every other frame is the synchronous reply to the last command
// sent. Classify returns one variant of the Response union for each frame.
//
// # Error Handling
//
// The package distinguishes between:
//   - Argument errors: a builder or the encoder refused its input (*InvalidArgumentError)
//   - Protocol errors: the reader reported an ErrorCode (*ProtocolError)
//   - Decode errors: a payload did not match its documented layout
//
// Framing errors (wrong address, bad checksum) are never returned; the
// Deframer drops the frame and counts it in its statistics.
//
// # Thread Safety
//
// Builders, Encode, Classify and the payload parsers are stateless and safe
// for concurrent use. Encoder and Deframer carry per-connection state and must
// be owned by a single goroutine.
package protocol
