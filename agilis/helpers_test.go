package agilis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-agilis/internal/simdevice"
	"github.com/arloliu/go-agilis/protocol"
	"github.com/arloliu/go-agilis/serialport"
)

const testPortName = "/dev/ttyAGILIS0"

// newTestController returns a controller connected to dev over USB.
func newTestController(t *testing.T, dev *simdevice.Device, opts ...protocol.ConfigOption) *Controller {
	t.Helper()

	defaults := []protocol.ConfigOption{
		protocol.WithCommandTerm(0),
		protocol.WithReplyTimeout(500 * time.Millisecond),
		protocol.WithTransportOptions(
			serialport.WithOpener(dev.Opener()),
			serialport.WithSettleDelay(0),
			serialport.WithPollInterval(2*time.Millisecond),
		),
	}

	cfg, err := protocol.NewConfig(append(defaults, opts...)...)
	require.NoError(t, err)

	c, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.ConnectUSB(context.Background(), testPortName))

	return c
}

// remoteController returns a connected controller in front of a device
// that starts in remote mode.
func remoteController(t *testing.T, devOpts ...simdevice.Option) (*Controller, *simdevice.Device) {
	t.Helper()

	dev := simdevice.New(append([]simdevice.Option{simdevice.WithRemoteMode()}, devOpts...)...)

	return newTestController(t, dev), dev
}
