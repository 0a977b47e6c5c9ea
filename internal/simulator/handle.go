package simulator

import (
	"bytes"
	"encoding/binary"

	"github.com/muurk/r2k/internal/logging"
	"github.com/muurk/r2k/internal/protocol"
	"go.uber.org/zap"
)

// Nominal figures reported in inventory summaries
const (
	readRate      = 120 // tags per second
	roundDuration = 25  // ms
	returnLoss    = 15  // dB
)

// minPayload is the shortest request payload each command accepts.
var minPayload = map[protocol.Command]int{
	protocol.CmdSetReaderAddress:         1,
	protocol.CmdSetWorkAntenna:           1,
	protocol.CmdSetTemporaryOutputPower:  1,
	protocol.CmdSetBeeperMode:            1,
	protocol.CmdSetAntConnectionDetector: 1,
	protocol.CmdSetRFLinkProfile:         1,
	protocol.CmdSetImpinjFastTID:         1,
	protocol.CmdSetAndSaveImpinjFastTID:  1,
	protocol.CmdSetGPIOValue:             2,
	protocol.CmdSetFrequencyRegion:       3,
	protocol.CmdGetRFPortReturnLoss:      1,
	protocol.CmdInventory:                1,
	protocol.CmdRealTimeInventory:        1,
	protocol.CmdSessionTargetInventory:   3,
	protocol.CmdFastSwitchAntInventory:   10,
	protocol.CmdSetAccessEPCMatch:        2,
	protocol.CmdRead:                     8,
	protocol.CmdWrite:                    8,
	protocol.CmdWriteBlock:               8,
	protocol.CmdLock:                     6,
	protocol.CmdKill:                     4,
}

// reply accumulates the frames answering one request.
type reply struct {
	address byte
	frames  [][]byte
}

func (rp *reply) add(cmd protocol.Command, payload ...byte) {
	raw, err := protocol.Encode(cmd, payload, rp.address)
	if err != nil {
		logging.Error("Simulator built an invalid frame", zap.String("command", cmd.String()), zap.Error(err))
		return
	}
	rp.frames = append(rp.frames, raw)
}

func (rp *reply) status(cmd protocol.Command, code protocol.ErrorCode) {
	rp.add(cmd, byte(code))
}

// Handle executes one request frame and returns the raw frames the module
// sends back, in order. Commands the module does not answer return nil.
func (r *Reader) Handle(f protocol.Frame) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	logging.Debug("Simulator request", zap.String("command", f.Command.String()), zap.Binary("payload", f.Payload))

	p := f.Payload
	rp := &reply{address: r.address}
	ok := protocol.ErrSuccess
	cmd := f.Command
	if n, known := minPayload[cmd]; known && len(p) < n {
		rp.status(cmd, protocol.ErrParameterInvalid)
		return rp.frames
	}

	switch cmd {
	case protocol.CmdReset, protocol.CmdSetUartBaudrate:
		return nil

	case protocol.CmdSetReaderAddress:
		if len(p) != 1 || p[0] > protocol.MaxReaderAddress {
			rp.status(cmd, protocol.ErrParameterInvalid)
			break
		}
		r.address = p[0]
		rp.address = p[0]
		rp.status(cmd, ok)

	case protocol.CmdGetFirmwareVersion:
		rp.add(cmd, r.firmware[:]...)

	case protocol.CmdSetWorkAntenna:
		if len(p) != 1 || p[0] > protocol.MaxAntenna {
			rp.status(cmd, protocol.ErrParameterInvalid)
			break
		}
		r.workAntenna = p[0]
		rp.status(cmd, ok)

	case protocol.CmdGetWorkAntenna:
		rp.add(cmd, r.workAntenna)

	case protocol.CmdSetRFPower:
		switch len(p) {
		case 1:
			r.power = [4]byte{p[0], p[0], p[0], p[0]}
		case 4:
			copy(r.power[:], p)
		default:
			rp.status(cmd, protocol.ErrParameterInvalid)
			return rp.frames
		}
		rp.status(cmd, ok)

	case protocol.CmdGetRFPower:
		rp.add(cmd, r.power[:]...)

	case protocol.CmdSetTemporaryOutputPower:
		if len(p) != 1 || p[0] < protocol.MinTemporaryPower || p[0] > protocol.MaxRFPower {
			rp.status(cmd, protocol.ErrOutputPowerOutOfRange)
			break
		}
		r.power = [4]byte{p[0], p[0], p[0], p[0]}
		rp.status(cmd, ok)

	case protocol.CmdSetBeeperMode:
		r.beeper = p[0]
		rp.status(cmd, ok)

	case protocol.CmdSetAntConnectionDetector:
		r.detector = p[0]
		rp.status(cmd, ok)

	case protocol.CmdGetAntConnectionDetector:
		rp.add(cmd, r.detector)

	case protocol.CmdSetReaderIdentifier:
		copy(r.identifier[:], p)
		rp.status(cmd, ok)

	case protocol.CmdGetReaderIdentifier:
		rp.add(cmd, r.identifier[:]...)

	case protocol.CmdSetRFLinkProfile:
		r.linkProfile = p[0]
		rp.status(cmd, ok)

	case protocol.CmdGetRFLinkProfile:
		rp.add(cmd, r.linkProfile)

	case protocol.CmdSetImpinjFastTID, protocol.CmdSetAndSaveImpinjFastTID:
		r.fastTID = p[0]
		rp.status(cmd, ok)

	case protocol.CmdGetImpinjFastTID:
		rp.add(cmd, r.fastTID)

	case protocol.CmdGetReaderTemp:
		if r.temperature < 0 {
			rp.add(cmd, 0x00, byte(-r.temperature))
		} else {
			rp.add(cmd, 0x01, byte(r.temperature))
		}

	case protocol.CmdGetGPIOValue:
		rp.add(cmd, boolByte(r.gpio[0]), boolByte(r.gpio[1]))

	case protocol.CmdSetGPIOValue:
		if len(p) != 2 || (p[0] != 3 && p[0] != 4) {
			rp.status(cmd, protocol.ErrParameterInvalid)
			break
		}
		r.gpio[p[0]-1] = p[1] != 0
		rp.status(cmd, ok)

	case protocol.CmdSetFrequencyRegion:
		r.region = append([]byte(nil), p...)
		rp.status(cmd, ok)

	case protocol.CmdGetFrequencyRegion:
		rp.add(cmd, r.region...)

	case protocol.CmdGetRFPortReturnLoss:
		if r.disconnected[r.workAntenna] {
			rp.add(cmd, byte(protocol.ErrRFPortReturnLoss))
			break
		}
		rp.add(cmd, returnLoss)

	case protocol.CmdInventory:
		r.inventory(rp, cmd, int(p[0]))

	case protocol.CmdGetInventoryBufferTagCount:
		rp.add(cmd, byte(len(r.buffer)>>8), byte(len(r.buffer)))

	case protocol.CmdGetInventoryBuffer, protocol.CmdGetAndResetInventoryBuffer:
		r.readBuffer(rp, cmd)

	case protocol.CmdResetInventoryBuffer:
		r.buffer = nil
		rp.status(cmd, ok)

	case protocol.CmdRealTimeInventory, protocol.CmdSessionTargetInventory:
		repeat := int(p[len(p)-1])
		for range repeat {
			r.realTimeRound(rp, cmd)
		}

	case protocol.CmdFastSwitchAntInventory:
		r.fastSwitch(rp, p)

	case protocol.CmdISO6BInventory:
		rp.add(cmd, 0, 0, 0, 0, 0, 0, roundDuration)

	case protocol.CmdSetAccessEPCMatch:
		switch {
		case p[0] == 0x01:
			r.match = nil
		case len(p) < 2+int(p[1]):
			rp.status(cmd, protocol.ErrEPCMatchLenError)
			return rp.frames
		default:
			r.match = append([]byte(nil), p[2:2+int(p[1])]...)
		}
		rp.status(cmd, ok)

	case protocol.CmdGetAccessEPCMatch:
		if r.match == nil {
			rp.add(cmd, 0x01)
			break
		}
		rp.add(cmd, append([]byte{0x00, byte(len(r.match))}, r.match...)...)

	case protocol.CmdRead:
		r.read(rp, p)

	case protocol.CmdWrite, protocol.CmdWriteBlock:
		r.write(rp, cmd, p)

	case protocol.CmdLock:
		r.lock(rp, p)

	case protocol.CmdKill:
		r.kill(rp, p)

	default:
		rp.status(cmd, protocol.ErrFail)
	}
	return rp.frames
}

func boolByte(b bool) byte {
	if b {
		return 0x01
	}
	return 0x00
}

// visible returns the live tags in front of antenna.
func (r *Reader) visible(antenna byte) []*Tag {
	var tags []*Tag
	for _, t := range r.tags {
		if !t.killed && t.Antenna == int(antenna) {
			tags = append(tags, t)
		}
	}
	return tags
}

// channel returns the first hop channel of the configured region.
func (r *Reader) channel() byte {
	if len(r.region) == 3 {
		return r.region[1]
	}
	return 0
}

func (r *Reader) inventory(rp *reply, cmd protocol.Command, repeat int) {
	ant := r.workAntenna
	if r.disconnected[ant] {
		rp.status(cmd, protocol.ErrAntennaMissing)
		return
	}
	tags := r.visible(ant)
	for _, t := range tags {
		r.remember(t, ant, byte(repeat))
	}
	r.total += uint32(len(tags) * repeat)

	payload := []byte{ant}
	payload = binary.BigEndian.AppendUint16(payload, uint16(len(tags)))
	payload = binary.BigEndian.AppendUint16(payload, readRate)
	payload = binary.BigEndian.AppendUint32(payload, r.total)
	rp.add(cmd, payload...)
}

// remember adds a read to the inventory buffer, merging repeat reads of a
// tag on the same antenna.
func (r *Reader) remember(t *Tag, antenna, count byte) {
	for _, b := range r.buffer {
		if b.tag == t && b.antenna == antenna {
			b.count += count
			return
		}
	}
	r.buffer = append(r.buffer, &bufferedRead{tag: t, antenna: antenna, count: count})
}

// record builds [serial][len][PC][EPC][CRC][middle][x][antenna][count].
func record(serial int, t *Tag, middle []byte, x, antenna, count byte) []byte {
	body := binary.BigEndian.AppendUint16(nil, t.pc())
	body = append(body, t.EPC...)
	body = binary.BigEndian.AppendUint16(body, t.crc())
	body = append(body, middle...)
	body = append(body, x, antenna, count)

	out := binary.BigEndian.AppendUint16(nil, uint16(serial))
	out = append(out, byte(len(body)-3))
	return append(out, body...)
}

func (r *Reader) readBuffer(rp *reply, cmd protocol.Command) {
	if len(r.buffer) == 0 {
		rp.status(cmd, protocol.ErrBufferEmpty)
		return
	}
	for _, b := range r.buffer {
		rssi := byte(b.tag.RSSI + 129)
		rp.add(cmd, record(len(r.buffer), b.tag, nil, rssi, b.antenna, b.count)...)
	}
	if cmd == protocol.CmdGetAndResetInventoryBuffer {
		r.buffer = nil
		rp.status(cmd, protocol.ErrSuccess)
	}
}

func (r *Reader) tagEvent(rp *reply, cmd protocol.Command, t *Tag, antenna byte) {
	payload := []byte{r.channel()<<2 | antenna&0x03}
	payload = binary.BigEndian.AppendUint16(payload, t.pc())
	payload = append(payload, t.EPC...)
	payload = append(payload, byte(t.RSSI+129))
	rp.add(cmd, payload...)
}

func (r *Reader) realTimeRound(rp *reply, cmd protocol.Command) {
	ant := r.workAntenna
	if r.disconnected[ant] {
		rp.status(cmd, protocol.ErrAntennaMissing)
		return
	}
	tags := r.visible(ant)
	for _, t := range tags {
		r.tagEvent(rp, cmd, t, ant)
	}
	r.total += uint32(len(tags))

	payload := []byte{ant}
	payload = binary.BigEndian.AppendUint16(payload, readRate)
	payload = binary.BigEndian.AppendUint32(payload, r.total)
	rp.add(cmd, payload...)
}

func (r *Reader) fastSwitch(rp *reply, p []byte) {
	const cmd = protocol.CmdFastSwitchAntInventory
	repeat := int(p[len(p)-1])
	var reads uint32
	for range repeat {
		for slot := range 4 {
			ant := p[slot*2]
			if ant == protocol.AntennaDisabled {
				continue
			}
			if r.disconnected[ant] {
				rp.add(cmd, ant, byte(protocol.ErrAntennaMissing))
				continue
			}
			for range int(p[slot*2+1]) {
				for _, t := range r.visible(ant) {
					r.tagEvent(rp, cmd, t, ant)
					reads++
				}
			}
		}
	}
	r.total += reads

	payload := []byte{byte(reads >> 16), byte(reads >> 8), byte(reads)}
	payload = binary.BigEndian.AppendUint32(payload, uint32(roundDuration*repeat))
	rp.add(cmd, payload...)
}

// selected returns the tag addressed by an access command: the matched
// tag, or the first tag in front of the work antenna.
func (r *Reader) selected() *Tag {
	for _, t := range r.visible(r.workAntenna) {
		if r.match == nil || bytes.Equal(t.EPC, r.match) {
			return t
		}
	}
	return nil
}

func (r *Reader) read(rp *reply, p []byte) {
	const cmd = protocol.CmdRead
	t := r.selected()
	if t == nil {
		rp.status(cmd, protocol.ErrNoTag)
		return
	}
	bank := protocol.MemoryBank(p[0])
	start := int(p[1]) * 2
	end := start + int(binary.BigEndian.Uint16(p[2:4]))*2
	mem := t.bank(bank)
	if end > len(mem) {
		rp.status(cmd, protocol.ErrTagRead)
		return
	}
	data := mem[start:end]
	rp.add(cmd, record(1, t, data, byte(len(data)), r.workAntenna, 1)...)
}

func (r *Reader) write(rp *reply, cmd protocol.Command, p []byte) {
	t := r.selected()
	if t == nil {
		rp.status(cmd, protocol.ErrNoTag)
		return
	}
	bank := protocol.MemoryBank(p[4])
	start := int(p[5]) * 2
	data := p[8:]
	mem := t.bank(bank)
	if start+len(data) > len(mem) {
		mem = append(mem, make([]byte, start+len(data)-len(mem))...)
	}
	copy(mem[start:], data)
	t.setBank(bank, mem)
	rp.add(cmd, record(1, t, nil, byte(protocol.ErrSuccess), r.workAntenna, 1)...)
}

func (r *Reader) lock(rp *reply, p []byte) {
	const cmd = protocol.CmdLock
	t := r.selected()
	if t == nil {
		rp.status(cmd, protocol.ErrNoTag)
		return
	}
	status := protocol.ErrSuccess
	if !bytes.Equal(p[0:4], t.AccessPassword[:]) {
		status = protocol.ErrAccessOrPassword
	}
	rp.add(cmd, record(1, t, nil, byte(status), r.workAntenna, 1)...)
}

func (r *Reader) kill(rp *reply, p []byte) {
	const cmd = protocol.CmdKill
	t := r.selected()
	if t == nil {
		rp.status(cmd, protocol.ErrNoTag)
		return
	}
	status := protocol.ErrSuccess
	if !bytes.Equal(p[0:4], t.KillPassword[:]) {
		status = protocol.ErrAccessOrPassword
	}
	rp.add(cmd, record(1, t, nil, byte(status), r.workAntenna, 1)...)
	if status == protocol.ErrSuccess {
		t.killed = true
	}
}
