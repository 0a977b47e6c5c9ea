package reader

import (
	"context"
	"errors"
	"fmt"

	"github.com/muurk/r2k/internal/logging"
	"github.com/muurk/r2k/internal/protocol"
	"go.uber.org/zap"
)

// Client exposes the reader commands as typed methods over a Conn.
//
// Methods returning only an error map a failure status to a
// *protocol.ProtocolError. Inventory-report methods return once the
// command is written; their results arrive on Events.
type Client struct {
	conn *Conn
}

// NewClient wraps conn.
func NewClient(conn *Conn) *Client {
	return &Client{conn: conn}
}

// Conn returns the underlying connection.
func (c *Client) Conn() *Conn {
	return c.conn
}

// Events returns the asynchronous event channel of the connection.
func (c *Client) Events() <-chan protocol.Response {
	return c.conn.Events()
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// build unwraps a builder result so call sites stay one line.
func build(req protocol.Request, err error) func() (protocol.Request, error) {
	return func() (protocol.Request, error) { return req, err }
}

// exec sends req and returns the reply data.
func (c *Client) exec(ctx context.Context, b func() (protocol.Request, error)) ([]byte, error) {
	req, err := b()
	if err != nil {
		return nil, err
	}
	reply, err := c.conn.SendAndWait(ctx, req)
	if err != nil {
		return nil, err
	}
	return reply.Data, nil
}

// status sends req and decodes a status reply.
func (c *Client) status(ctx context.Context, b func() (protocol.Request, error)) error {
	req, err := b()
	if err != nil {
		return err
	}
	reply, err := c.conn.SendAndWait(ctx, req)
	if err != nil {
		return err
	}
	return protocol.ParseStatus(req.Command, reply.Data)
}

func plain(req protocol.Request) func() (protocol.Request, error) {
	return build(req, nil)
}

// Reset restarts the module. It does not wait for a reply.
func (c *Client) Reset(ctx context.Context) error {
	return c.conn.Send(ctx, protocol.Reset())
}

// SetBaudrate switches the reader's UART to baud. The reader changes rate
// straight away, so the transport must be reopened at the new rate
// afterwards.
func (c *Client) SetBaudrate(ctx context.Context, baud int) error {
	req, err := protocol.SetBaudrate(baud)
	if err != nil {
		return err
	}
	return c.conn.Send(ctx, req)
}

// SetAddress changes the reader address. Later requests use the new
// address.
func (c *Client) SetAddress(ctx context.Context, address int) error {
	return c.status(ctx, build(protocol.SetReaderAddress(address)))
}

// FirmwareVersion reads the reader firmware version.
func (c *Client) FirmwareVersion(ctx context.Context) (*protocol.FirmwareVersion, error) {
	data, err := c.exec(ctx, plain(protocol.GetFirmwareVersion()))
	if err != nil {
		return nil, err
	}
	return protocol.ParseFirmwareVersion(data)
}

// SetWorkAntenna selects the antenna (0-3) used by single-antenna commands.
func (c *Client) SetWorkAntenna(ctx context.Context, antenna int) error {
	return c.status(ctx, build(protocol.SetWorkAntenna(antenna)))
}

// WorkAntenna returns the selected antenna (0-3).
func (c *Client) WorkAntenna(ctx context.Context) (int, error) {
	data, err := c.exec(ctx, plain(protocol.GetWorkAntenna()))
	if err != nil {
		return 0, err
	}
	return protocol.ParseWorkAntenna(data)
}

// SetRFPower sets the output power of each antenna port in dBm.
func (c *Client) SetRFPower(ctx context.Context, power [4]int) error {
	return c.status(ctx, build(protocol.SetRFPower(power[0], power[1], power[2], power[3])))
}

// RFPower returns the output power of each antenna port in dBm.
func (c *Client) RFPower(ctx context.Context) ([4]int, error) {
	data, err := c.exec(ctx, plain(protocol.GetRFPower()))
	if err != nil {
		return [4]int{}, err
	}
	return protocol.ParseRFPower(data)
}

// SetTemporaryPower changes the output power without saving it to flash.
func (c *Client) SetTemporaryPower(ctx context.Context, dbm int) error {
	return c.status(ctx, build(protocol.SetTemporaryPower(dbm)))
}

// SetBeeper sets the beeper mode: 0 quiet, 1 after each round, 2 per tag.
func (c *Client) SetBeeper(ctx context.Context, mode int) error {
	return c.status(ctx, build(protocol.SetBeeperMode(mode)))
}

// SetAntennaDetector sets the return loss threshold in dB; 0 disables detection.
func (c *Client) SetAntennaDetector(ctx context.Context, lossDB int) error {
	return c.status(ctx, build(protocol.SetAntConnectionDetector(lossDB)))
}

// AntennaDetector returns the antenna detection threshold in dB.
func (c *Client) AntennaDetector(ctx context.Context) (int, error) {
	data, err := c.exec(ctx, plain(protocol.GetAntConnectionDetector()))
	if err != nil {
		return 0, err
	}
	return protocol.ParseAntennaDetector(data)
}

// SetIdentifier stores an identifier of up to 12 bytes.
func (c *Client) SetIdentifier(ctx context.Context, id string) error {
	return c.status(ctx, build(protocol.SetReaderIdentifier(id)))
}

// Identifier returns the stored identifier with its padding trimmed.
func (c *Client) Identifier(ctx context.Context) (string, error) {
	data, err := c.exec(ctx, plain(protocol.GetReaderIdentifier()))
	if err != nil {
		return "", err
	}
	return protocol.ParseIdentifier(data)
}

// SetLinkProfile selects the RF link profile.
func (c *Client) SetLinkProfile(ctx context.Context, profile byte) error {
	return c.status(ctx, build(protocol.SetRFLinkProfile(profile)))
}

// LinkProfile returns the active RF link profile.
func (c *Client) LinkProfile(ctx context.Context) (byte, error) {
	data, err := c.exec(ctx, plain(protocol.GetRFLinkProfile()))
	if err != nil {
		return 0, err
	}
	return protocol.ParseRFLinkProfile(data)
}

// SetFastTID turns Impinj FastTID on or off, optionally saving it to flash.
func (c *Client) SetFastTID(ctx context.Context, enable, save bool) error {
	return c.status(ctx, plain(protocol.SetImpinjFastTID(enable, save)))
}

// FastTID reports whether Impinj FastTID is enabled.
func (c *Client) FastTID(ctx context.Context) (bool, error) {
	data, err := c.exec(ctx, plain(protocol.GetImpinjFastTID()))
	if err != nil {
		return false, err
	}
	return protocol.ParseFastTID(data)
}

// Temperature returns the module temperature in degrees Celsius.
func (c *Client) Temperature(ctx context.Context) (int, error) {
	data, err := c.exec(ctx, plain(protocol.GetReaderTemperature()))
	if err != nil {
		return 0, err
	}
	return protocol.ParseTemperature(data)
}

// GPIORead returns the level of input port 1 or 2.
func (c *Client) GPIORead(ctx context.Context, port int) (bool, error) {
	data, err := c.exec(ctx, build(protocol.GPIORead(port)))
	if err != nil {
		return false, err
	}
	levels, err := protocol.ParseGPIO(data)
	if err != nil {
		return false, err
	}
	return levels.Port(port), nil
}

// GPIOWrite drives output port 3 or 4.
func (c *Client) GPIOWrite(ctx context.Context, port int, high bool) error {
	return c.status(ctx, build(protocol.GPIOWrite(port, high)))
}

// Inventory runs a buffered inventory and returns its summary. A missing
// antenna is reported as a *protocol.ProtocolError.
func (c *Client) Inventory(ctx context.Context, repeat int) (*protocol.InventorySummary, error) {
	data, err := c.exec(ctx, build(protocol.Inventory(repeat)))
	if err != nil {
		return nil, err
	}
	return protocol.ParseInventorySummary(data)
}

// BufferTagCount returns the number of tags in the inventory buffer.
func (c *Client) BufferTagCount(ctx context.Context) (int, error) {
	data, err := c.exec(ctx, plain(protocol.GetInventoryBufferTagCount()))
	if err != nil {
		return 0, err
	}
	return protocol.ParseTagCount(data)
}

// InventoryBuffer reads the inventory buffer without clearing it. The
// reader sends one reply per tag, each carrying the total number of
// records. An empty buffer returns no records and no error. Records with a
// bad tag CRC are kept with CRCValid false.
func (c *Client) InventoryBuffer(ctx context.Context) ([]protocol.BufferRecord, error) {
	return c.readBuffer(ctx, protocol.GetInventoryBuffer(), false)
}

// GetAndResetInventoryBuffer reads the inventory buffer and clears it. The
// reader follows the records with a status reply.
func (c *Client) GetAndResetInventoryBuffer(ctx context.Context) ([]protocol.BufferRecord, error) {
	return c.readBuffer(ctx, protocol.GetAndResetInventoryBuffer(), true)
}

func (c *Client) readBuffer(ctx context.Context, req protocol.Request, trailer bool) ([]protocol.BufferRecord, error) {
	var records []protocol.BufferRecord
	total := -1
	err := c.conn.Transact(ctx, req, func(r *protocol.Reply) (bool, error) {
		if code, ok := r.Status(); ok {
			if code == protocol.ErrBufferEmpty || (code == protocol.ErrSuccess && trailer) {
				return false, nil
			}
			return false, &protocol.ProtocolError{Command: r.Command, Code: code}
		}

		rec, err := protocol.ParseBufferRecord(r.Data)
		if rec == nil {
			return false, err
		}
		if err != nil {
			logging.Warn("Buffer record failed tag CRC check", zap.String("epc", rec.EPC), zap.Error(err))
		}
		if total < 0 {
			total = int(rec.Serial)
		}
		records = append(records, *rec)
		return len(records) < total || trailer, nil
	})
	return records, err
}

// ResetInventoryBuffer clears the inventory buffer.
func (c *Client) ResetInventoryBuffer(ctx context.Context) error {
	return c.status(ctx, plain(protocol.ResetInventoryBuffer()))
}

// send writes an inventory-report request. Its results arrive as events.
func (c *Client) send(ctx context.Context, req protocol.Request, err error) error {
	if err != nil {
		return err
	}
	return c.conn.Send(ctx, req)
}

// RealTimeInventory inventories the work antenna, reporting each tag as a
// TagEvent and each round as a RoundComplete.
func (c *Client) RealTimeInventory(ctx context.Context, repeat int) error {
	req, err := protocol.RealTimeInventory(repeat)
	return c.send(ctx, req, err)
}

// SessionInventory is RealTimeInventory with an explicit Gen2 session and
// inventoried flag target.
func (c *Client) SessionInventory(ctx context.Context, session protocol.Session, target protocol.Target, repeat int) error {
	req, err := protocol.SessionInventory(session, target, repeat)
	return c.send(ctx, req, err)
}

// FastSwitchInventory cycles through the antennas in cfg.
func (c *Client) FastSwitchInventory(ctx context.Context, cfg protocol.FastSwitchConfig) error {
	req, err := protocol.FastSwitchInventory(cfg)
	return c.send(ctx, req, err)
}

// ISO6BInventory runs an ISO 18000-6B inventory.
func (c *Client) ISO6BInventory(ctx context.Context) error {
	return c.send(ctx, protocol.ISO6BInventory(), nil)
}

// Round collects events until an inventory round ends. It returns the tags
// seen, the round summary and, when the round ended with an error event,
// that error as a *protocol.ProtocolError. Disconnect and empty-read events
// are logged and skipped.
func (c *Client) Round(ctx context.Context) ([]protocol.TagRecord, *protocol.RoundComplete, error) {
	var tags []protocol.TagRecord
	for {
		select {
		case ev, ok := <-c.conn.Events():
			if !ok {
				return tags, nil, c.conn.closedErr()
			}
			switch v := ev.(type) {
			case *protocol.TagEvent:
				tags = append(tags, v.Tag)
			case *protocol.RoundComplete:
				return tags, v, nil
			case *protocol.ErrorEvent:
				if v.Code == 0 {
					logging.Warn("Skipped undecodable event", zap.String("text", v.Text))
					continue
				}
				return tags, nil, &protocol.ProtocolError{Command: v.Command, Code: v.Code}
			default:
				logging.Debug("Round event", zap.String("event", protocol.Describe(ev)))
			}
		case <-ctx.Done():
			return tags, nil, ctx.Err()
		}
	}
}

// SetAccessEPCMatch restricts access commands to the tag with epc. A nil
// epc clears the match.
func (c *Client) SetAccessEPCMatch(ctx context.Context, epc []byte) error {
	mode := 0
	if len(epc) == 0 {
		mode = 1
	}
	return c.status(ctx, build(protocol.SetAccessEPCMatch(mode, epc)))
}

// AccessEPCMatch returns the EPC that tag access commands are matched against.
func (c *Client) AccessEPCMatch(ctx context.Context) (*protocol.EPCMatch, error) {
	data, err := c.exec(ctx, plain(protocol.GetAccessEPCMatch()))
	if err != nil {
		return nil, err
	}
	return protocol.ParseEPCMatch(data)
}

// match selects epc for the next access command when one is given.
func (c *Client) match(ctx context.Context, epc []byte) error {
	if len(epc) == 0 {
		return nil
	}
	if err := c.SetAccessEPCMatch(ctx, epc); err != nil {
		return fmt.Errorf("failed to select tag %s: %w", protocol.FormatEPC(epc), err)
	}
	return nil
}

// ReadTag reads words 16-bit words from bank at word address addr. When epc
// is set the tag is selected first; otherwise the reader uses the existing
// match or the first tag it singulates.
func (c *Client) ReadTag(ctx context.Context, epc []byte, bank protocol.MemoryBank, addr byte, words int, pwd protocol.Password) (*protocol.BufferRecord, error) {
	req, err := protocol.ReadTag(bank, addr, words, pwd)
	if err != nil {
		return nil, err
	}
	if err := c.match(ctx, epc); err != nil {
		return nil, err
	}
	reply, err := c.conn.SendAndWait(ctx, req)
	if err != nil {
		return nil, err
	}
	return protocol.ParseReadRecord(reply.Data)
}

// WriteTag writes data to bank at word address addr with the block-write
// command, selecting epc first when it is set.
func (c *Client) WriteTag(ctx context.Context, epc []byte, bank protocol.MemoryBank, addr byte, data []byte, pwd protocol.Password) (*protocol.BufferRecord, error) {
	req, err := protocol.WriteBlock(bank, addr, data, pwd)
	if err != nil {
		return nil, err
	}
	return c.operate(ctx, epc, req)
}

// LockTag changes the lock state of region on the selected tag.
func (c *Client) LockTag(ctx context.Context, epc []byte, region protocol.LockRegion, action protocol.LockAction, pwd protocol.Password) (*protocol.BufferRecord, error) {
	req, err := protocol.LockTag(region, action, pwd)
	if err != nil {
		return nil, err
	}
	return c.operate(ctx, epc, req)
}

// KillTag permanently disables the selected tag.
func (c *Client) KillTag(ctx context.Context, epc []byte, pwd protocol.Password) (*protocol.BufferRecord, error) {
	return c.operate(ctx, epc, protocol.KillTag(pwd))
}

func (c *Client) operate(ctx context.Context, epc []byte, req protocol.Request) (*protocol.BufferRecord, error) {
	if err := c.match(ctx, epc); err != nil {
		return nil, err
	}
	reply, err := c.conn.SendAndWait(ctx, req)
	if err != nil {
		return nil, err
	}
	rec, err := protocol.ParseOperationRecord(req.Command, reply.Data)
	if errors.Is(err, protocol.ErrTagCRC) {
		logging.Warn("Operation record failed tag CRC check", zap.String("command", req.Command.String()), zap.Error(err))
		return rec, nil
	}
	return rec, err
}

// SetFrequencyRegion selects a system region hopping between two table
// frequencies.
func (c *Client) SetFrequencyRegion(ctx context.Context, region protocol.Region, startMHz, endMHz float64) error {
	return c.status(ctx, build(protocol.SetFrequencyRegionMHz(region, startMHz, endMHz)))
}

// SetUserFrequencyRegion defines a custom hop table.
func (c *Client) SetUserFrequencyRegion(ctx context.Context, startKHz, spacingKHz, quantity int) error {
	return c.status(ctx, build(protocol.SetUserFrequencyRegion(startKHz, spacingKHz, quantity)))
}

// FrequencyRegion reads the configured frequency region.
func (c *Client) FrequencyRegion(ctx context.Context) (*protocol.FrequencyRegion, error) {
	data, err := c.exec(ctx, plain(protocol.GetFrequencyRegion()))
	if err != nil {
		return nil, err
	}
	return protocol.ParseFrequencyRegion(data)
}

// ReturnLoss measures the work antenna's return loss in dB at mhz.
func (c *Client) ReturnLoss(ctx context.Context, mhz float64) (int, error) {
	data, err := c.exec(ctx, build(protocol.GetRFPortReturnLoss(mhz)))
	if err != nil {
		return 0, err
	}
	return protocol.ParseReturnLoss(data)
}

// Apply sends setting requests in order and stops at the first failure.
// Every request must be answered by a status reply.
func (c *Client) Apply(ctx context.Context, reqs ...protocol.Request) error {
	for _, req := range reqs {
		if err := c.status(ctx, plain(req)); err != nil {
			return fmt.Errorf("%s: %w", req.Command, err)
		}
	}
	return nil
}
