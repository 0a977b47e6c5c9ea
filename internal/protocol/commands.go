package protocol

import "fmt"

// Command is a single-byte R2000 command code. Values are fixed by the
// reader firmware and must not change.
type Command byte

// Reader configuration commands
const (
	CmdGetGPIOValue             Command = 0x60
	CmdSetGPIOValue             Command = 0x61
	CmdSetAntConnectionDetector Command = 0x62
	CmdGetAntConnectionDetector Command = 0x63
	CmdSetTemporaryOutputPower  Command = 0x66
	CmdSetReaderIdentifier      Command = 0x67
	CmdGetReaderIdentifier      Command = 0x68
	CmdSetRFLinkProfile         Command = 0x69
	CmdGetRFLinkProfile         Command = 0x6A

	CmdReset               Command = 0x70
	CmdSetUartBaudrate     Command = 0x71
	CmdGetFirmwareVersion  Command = 0x72
	CmdSetReaderAddress    Command = 0x73
	CmdSetWorkAntenna      Command = 0x74
	CmdGetWorkAntenna      Command = 0x75
	CmdSetRFPower          Command = 0x76
	CmdGetRFPower          Command = 0x77
	CmdSetFrequencyRegion  Command = 0x78
	CmdGetFrequencyRegion  Command = 0x79
	CmdSetBeeperMode       Command = 0x7A
	CmdGetReaderTemp       Command = 0x7B
	CmdGetRFPortReturnLoss Command = 0x7E
)

// ISO 18000-6C commands
const (
	CmdInventory               Command = 0x80
	CmdRead                    Command = 0x81
	CmdWrite                   Command = 0x82
	CmdLock                    Command = 0x83
	CmdKill                    Command = 0x84
	CmdSetAccessEPCMatch       Command = 0x85
	CmdGetAccessEPCMatch       Command = 0x86
	CmdRealTimeInventory       Command = 0x89
	CmdFastSwitchAntInventory  Command = 0x8A
	CmdSessionTargetInventory  Command = 0x8B
	CmdSetImpinjFastTID        Command = 0x8C
	CmdSetAndSaveImpinjFastTID Command = 0x8D
	CmdGetImpinjFastTID        Command = 0x8E
)

// Inventory buffer commands
const (
	CmdGetInventoryBuffer         Command = 0x90
	CmdGetAndResetInventoryBuffer Command = 0x91
	CmdGetInventoryBufferTagCount Command = 0x92
	CmdResetInventoryBuffer       Command = 0x93
	CmdWriteBlock                 Command = 0x94
)

// ISO 18000-6B commands
const (
	CmdISO6BInventory Command = 0xB0
	CmdISO6BRead      Command = 0xB1
	CmdISO6BWrite     Command = 0xB2
	CmdISO6BLock      Command = 0xB3
	CmdISO6BQueryLock Command = 0xB4
)

var commandNames = map[Command]string{
	CmdGetGPIOValue:               "GetGPIOValue",
	CmdSetGPIOValue:               "SetGPIOValue",
	CmdSetAntConnectionDetector:   "SetAntConnectionDetector",
	CmdGetAntConnectionDetector:   "GetAntConnectionDetector",
	CmdSetTemporaryOutputPower:    "SetTemporaryOutputPower",
	CmdSetReaderIdentifier:        "SetReaderIdentifier",
	CmdGetReaderIdentifier:        "GetReaderIdentifier",
	CmdSetRFLinkProfile:           "SetRFLinkProfile",
	CmdGetRFLinkProfile:           "GetRFLinkProfile",
	CmdReset:                      "Reset",
	CmdSetUartBaudrate:            "SetUartBaudrate",
	CmdGetFirmwareVersion:         "GetFirmwareVersion",
	CmdSetReaderAddress:           "SetReaderAddress",
	CmdSetWorkAntenna:             "SetWorkAntenna",
	CmdGetWorkAntenna:             "GetWorkAntenna",
	CmdSetRFPower:                 "SetRFPower",
	CmdGetRFPower:                 "GetRFPower",
	CmdSetFrequencyRegion:         "SetFrequencyRegion",
	CmdGetFrequencyRegion:         "GetFrequencyRegion",
	CmdSetBeeperMode:              "SetBeeperMode",
	CmdGetReaderTemp:              "GetReaderTemperature",
	CmdGetRFPortReturnLoss:        "GetRFPortReturnLoss",
	CmdInventory:                  "Inventory",
	CmdRead:                       "Read",
	CmdWrite:                      "Write",
	CmdLock:                       "Lock",
	CmdKill:                       "Kill",
	CmdSetAccessEPCMatch:          "SetAccessEPCMatch",
	CmdGetAccessEPCMatch:          "GetAccessEPCMatch",
	CmdRealTimeInventory:          "RealTimeInventory",
	CmdFastSwitchAntInventory:     "FastSwitchAntInventory",
	CmdSessionTargetInventory:     "SessionTargetInventory",
	CmdSetImpinjFastTID:           "SetImpinjFastTID",
	CmdSetAndSaveImpinjFastTID:    "SetAndSaveImpinjFastTID",
	CmdGetImpinjFastTID:           "GetImpinjFastTID",
	CmdGetInventoryBuffer:         "GetInventoryBuffer",
	CmdGetAndResetInventoryBuffer: "GetAndResetInventoryBuffer",
	CmdGetInventoryBufferTagCount: "GetInventoryBufferTagCount",
	CmdResetInventoryBuffer:       "ResetInventoryBuffer",
	CmdWriteBlock:                 "WriteBlock",
	CmdISO6BInventory:             "ISO18000-6B Inventory",
	CmdISO6BRead:                  "ISO18000-6B Read",
	CmdISO6BWrite:                 "ISO18000-6B Write",
	CmdISO6BLock:                  "ISO18000-6B Lock",
	CmdISO6BQueryLock:             "ISO18000-6B QueryLock",
}

// String returns the command name, or its hex value when unknown.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%02X)", byte(c))
}

// Known reports whether c is part of the command enumeration.
func (c Command) Known() bool {
	_, ok := commandNames[c]
	return ok
}

// IsInventoryReport reports whether frames carrying this command are
// asynchronous inventory events rather than synchronous replies.
func (c Command) IsInventoryReport() bool {
	switch c {
	case CmdRealTimeInventory, CmdISO6BInventory, CmdFastSwitchAntInventory, CmdSessionTargetInventory:
		return true
	default:
		return false
	}
}

// MarshalText renders the command by name in JSON and YAML output.
func (c Command) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
