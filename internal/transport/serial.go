package transport

import (
	"errors"
	"fmt"

	"go.bug.st/serial"
)

// BaudRates are the rates the module accepts in a set-baudrate request.
var BaudRates = []int{38400, 115200}

func openSerial(name string, baud int) (serial.Port, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		var perr *serial.PortError
		if errors.As(err, &perr) && perr.Code() == serial.PortNotFound {
			return nil, fmt.Errorf("serial port %s not found: %w", name, err)
		}
		return nil, fmt.Errorf("failed to open port %s: %w", name, err)
	}
	return port, nil
}
