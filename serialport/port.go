package serialport

import (
	"time"

	"go.bug.st/serial"
)

// Parity is the serial parity mode.
type Parity = serial.Parity

// StopBits is the number of serial stop bits.
type StopBits = serial.StopBits

const (
	NoParity    = serial.NoParity
	OddParity   = serial.OddParity
	EvenParity  = serial.EvenParity
	MarkParity  = serial.MarkParity
	SpaceParity = serial.SpaceParity

	OneStopBit           = serial.OneStopBit
	OnePointFiveStopBits = serial.OnePointFiveStopBits
	TwoStopBits          = serial.TwoStopBits
)

// Port is the subset of go.bug.st/serial.Port the transport relies on.
//
// Read must honour SetReadTimeout and return (0, nil) when the timeout
// expires without data.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	Close() error
}

// bufferResetter is implemented by ports that can purge their OS buffers.
type bufferResetter interface {
	ResetInputBuffer() error
	ResetOutputBuffer() error
}

// Opener opens the named port with the given line parameters.
type Opener func(portName string, mode *serial.Mode) (Port, error)

// OpenSerial opens a real serial device through go.bug.st/serial.
func OpenSerial(portName string, mode *serial.Mode) (Port, error) {
	return serial.Open(portName, mode)
}

// ListPorts returns the serial ports present on the system.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
