package serialport

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.bug.st/serial"

	"github.com/arloliu/go-agilis/internal/fakeport"
	"github.com/arloliu/go-agilis/logger"
)

const testPortName = "/dev/ttyAGILIS0"

// openerFor returns an Opener that hands out port and records the mode it
// was asked for.
func openerFor(port Port, gotMode **serial.Mode) Opener {
	return func(_ string, mode *serial.Mode) (Port, error) {
		if gotMode != nil {
			*gotMode = mode
		}

		return port, nil
	}
}

// newTestTransport creates a Transport backed by port with a short poll
// interval and no settle delay.
func newTestTransport(t *testing.T, port Port, opts ...ConnOption) *Transport {
	t.Helper()

	defaults := []ConnOption{
		WithOpener(openerFor(port, nil)),
		WithPollInterval(5 * time.Millisecond),
		WithSettleDelay(0),
	}

	cfg, err := NewConfig(testPortName, append(defaults, opts...)...)
	if err != nil {
		t.Fatalf("newTestTransport: %v", err)
	}

	tr, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newTestTransport: %v", err)
	}
	t.Cleanup(func() { _ = tr.Disconnect() })

	return tr
}

// connectedTransport returns a connected Transport without handshake and
// the fake port behind it.
func connectedTransport(t *testing.T, h fakeport.Handler, opts ...ConnOption) (*Transport, *fakeport.Port) {
	t.Helper()

	port := fakeport.New(h)
	tr := newTestTransport(t, port, opts...)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connectedTransport: %v", err)
	}

	return tr, port
}

// versionResponder answers "VE" with a version banner.
func versionResponder(p *fakeport.Port, line string) {
	if line == "VE" {
		p.DeliverString("AG-UC2 v2.2.1\r\n")
	}
}

// logCapture collects the lines emitted through a sink logger.
type logCapture struct {
	mu    sync.Mutex
	lines []string
}

func newLogCapture(level logger.Level) (*logCapture, logger.Logger) {
	c := &logCapture{}
	return c, logger.NewSinkLogger(level, logger.SinkFunc(func(lvl logger.Level, text string) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.lines = append(c.lines, lvl.String()+" "+text)
	}))
}

func (c *logCapture) contains(substr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, line := range c.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}

	return false
}
