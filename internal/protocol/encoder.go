package protocol

// ConnState is the per-connection state that outlives a single frame: the
// reader address placed in outgoing frames.
type ConnState struct {
	Address byte
}

// Encoder produces frames for one connection. Encode never mutates state;
// Commit applies the side effects of a frame once it has actually been
// written to the transport.
type Encoder struct {
	state ConnState
}

// NewEncoder creates an encoder addressing the given reader.
func NewEncoder(address byte) *Encoder {
	return &Encoder{state: ConnState{Address: address}}
}

// Address returns the address placed in outgoing frames.
func (e *Encoder) Address() byte {
	return e.state.Address
}

// State returns a copy of the connection state.
func (e *Encoder) State() ConnState {
	return e.state
}

// Encode builds a frame for cmd using the current address.
func (e *Encoder) Encode(cmd Command, payload []byte) ([]byte, error) {
	return Encode(cmd, payload, e.state.Address)
}

// Commit records that a frame for cmd was written successfully. A
// set-reader-address frame is still sent with the old address; every frame
// after it uses the new one. Commit reports whether the address changed.
func (e *Encoder) Commit(cmd Command, payload []byte) bool {
	if cmd != CmdSetReaderAddress || len(payload) == 0 {
		return false
	}
	if e.state.Address == payload[0] {
		return false
	}
	e.state.Address = payload[0]
	return true
}
