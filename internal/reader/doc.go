// Package reader talks to an R2000 reader module over a byte transport.
//
// Conn runs the reader flow: it deframes and classifies everything the
// module sends and routes synchronous replies and asynchronous events onto
// two bounded channels. Requests are written with Send or SendAndWait; the
// protocol has no sequence numbers, so a reply is matched to the request
// that is waiting when it arrives.
//
// Client layers typed methods over a Conn:
//
//	conn := reader.NewConn(port, 0x01)
//	conn.Start(ctx)
//	client := reader.NewClient(conn)
//
//	power, err := client.RFPower(ctx)
//	if err := client.RealTimeInventory(ctx, 1); err != nil {
//		return err
//	}
//	tags, round, err := client.Round(ctx)
//
// A reply carrying a failure status surfaces as *protocol.ProtocolError. A
// missing reply surfaces as ErrTimeout, after which the connection can be
// used again. When the transport fails, both channels are closed and every
// call returns an error wrapping ErrClosed.
package reader
