package protocol

import (
	"strings"
	"time"

	"github.com/arloliu/go-agilis/serialport"
)

// Profile is a named set of line parameters for one kind of Agilis link.
type Profile struct {
	Name     string
	BaudRate int
	DataBits int
	StopBits serialport.StopBits
	Parity   serialport.Parity

	HandshakeSend    string
	HandshakeExpect  string
	HandshakeTimeout time.Duration
}

var (
	// USBProfile is the virtual COM port of the AG-UC2/AG-UC8 USB interface.
	USBProfile = Profile{
		Name:             "usb",
		BaudRate:         921600,
		DataBits:         8,
		StopBits:         serialport.OneStopBit,
		Parity:           serialport.NoParity,
		HandshakeSend:    "VE\r\n",
		HandshakeExpect:  "\r\n",
		HandshakeTimeout: 1000 * time.Millisecond,
	}

	// RS232Profile is the DB-9 RS-232 interface.
	RS232Profile = Profile{
		Name:             "rs232",
		BaudRate:         115200,
		DataBits:         8,
		StopBits:         serialport.OneStopBit,
		Parity:           serialport.NoParity,
		HandshakeSend:    "VE\r\n",
		HandshakeExpect:  "\r\n",
		HandshakeTimeout: 1000 * time.Millisecond,
	}
)

// ProfileByName returns the profile called name ("usb" or "rs232", case
// insensitive).
func ProfileByName(name string) (Profile, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case USBProfile.Name:
		return USBProfile, true
	case RS232Profile.Name, "rs-232":
		return RS232Profile, true
	default:
		return Profile{}, false
	}
}

func (p Profile) transportOptions() []serialport.ConnOption {
	opts := []serialport.ConnOption{
		serialport.WithBaudRate(p.BaudRate),
		serialport.WithDataBits(p.DataBits),
		serialport.WithStopBits(p.StopBits),
		serialport.WithParity(p.Parity),
	}
	if p.HandshakeExpect != "" {
		opts = append(opts, serialport.WithHandshake(p.HandshakeSend, p.HandshakeExpect, p.HandshakeTimeout))
	}

	return opts
}
