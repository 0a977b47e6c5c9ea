// Package transport opens the byte stream a reader.Conn runs over.
//
// A target selects the transport:
//
//	/dev/ttyUSB0, COM3, serial:///dev/ttyS1   serial port (8N1)
//	tcp://192.168.1.116:4001                  TCP bridge or network module
//	sim://                                    in-process simulated reader
//
// ListPorts enumerates the serial ports present on the host.
package transport
