package protocol

import (
	"encoding/hex"
	"fmt"

	"github.com/muurk/r2k/internal/logging"
	"go.uber.org/zap"
)

// LogResponse writes one classified frame to the debug log with fields
// suited to its variant.
func LogResponse(r Response) {
	switch v := r.(type) {
	case *Reply:
		logging.Debug("Reply received",
			zap.String("command", v.Command.String()),
			zap.Int("length", len(v.Data)),
			zap.String("hex", hex.EncodeToString(v.Data)),
		)
	case *TagEvent:
		logging.LogTagEvent(v.Tag.EPC, v.Tag.Antenna, v.Tag.RSSI, v.Tag.Frequency)
	case *RoundComplete:
		logging.Debug("Inventory round complete",
			zap.String("command", v.Command.String()),
			zap.Int("antenna", v.Antenna),
			zap.Uint16("read_rate", v.ReadRate),
			zap.Uint32("total_read", v.TotalRead),
			zap.Uint32("duration_ms", v.Duration),
		)
	case *ErrorEvent:
		logging.Debug("Inventory error",
			zap.String("command", v.Command.String()),
			zap.String("code", fmt.Sprintf("0x%02X", byte(v.Code))),
			zap.String("text", v.Text),
		)
	case *AntennaDisconnected:
		logging.Warn("Antenna disconnected",
			zap.String("command", v.Command.String()),
			zap.Int("antenna", v.Antenna),
		)
	case *EmptyRead:
		logging.Debug("Empty tag read",
			zap.String("command", v.Command.String()),
			zap.Int("antenna", v.Antenna),
		)
	}
}

// Describe renders a response as a single human readable line.
func Describe(r Response) string {
	switch v := r.(type) {
	case *Reply:
		if code, ok := v.Status(); ok {
			return fmt.Sprintf("%s: %s", v.Command, code.Text())
		}
		return fmt.Sprintf("%s: % X", v.Command, v.Data)
	case *TagEvent:
		return fmt.Sprintf("tag %s ant=%d rssi=%d dBm freq=%.1f MHz",
			v.Tag.EPC, v.Tag.Antenna, v.Tag.RSSI, v.Tag.Frequency)
	case *RoundComplete:
		if v.Command == CmdRealTimeInventory || v.Command == CmdSessionTargetInventory {
			return fmt.Sprintf("round complete ant=%d rate=%d/s total=%d", v.Antenna, v.ReadRate, v.TotalRead)
		}
		return fmt.Sprintf("round complete total=%d duration=%dms", v.TotalRead, v.Duration)
	case *ErrorEvent:
		if v.Code == 0 {
			return v.Text
		}
		return fmt.Sprintf("error 0x%02X: %s", byte(v.Code), v.Text)
	case *AntennaDisconnected:
		return fmt.Sprintf("antenna %d disconnected", v.Antenna)
	case *EmptyRead:
		return fmt.Sprintf("empty read on antenna %d", v.Antenna)
	default:
		return fmt.Sprintf("%v", r)
	}
}
