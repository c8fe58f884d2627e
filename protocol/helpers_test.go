package protocol

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.bug.st/serial"

	"github.com/arloliu/go-agilis/internal/fakeport"
	"github.com/arloliu/go-agilis/logger"
	"github.com/arloliu/go-agilis/serialport"
)

const testPortName = "/dev/ttyAGILIS0"

// replyTable answers each listed command line with the mapped reply and
// answers "VE" with a version banner.
func replyTable(replies map[string]string) fakeport.Handler {
	return func(p *fakeport.Port, line string) {
		if reply, ok := replies[line]; ok {
			p.DeliverString(reply)
			return
		}
		if line == "VE" {
			p.DeliverString("AG-UC2 v2.2.1\r\n")
		}
	}
}

// newTestEngine creates an engine whose transport opens port instead of a
// real device. The pacer is disabled unless opts set a command term.
func newTestEngine(t *testing.T, port serialport.Port, opts ...ConfigOption) *Engine {
	t.Helper()

	opener := func(string, *serial.Mode) (serialport.Port, error) { return port, nil }
	defaults := []ConfigOption{
		WithCommandTerm(0),
		WithTransportOptions(
			serialport.WithOpener(opener),
			serialport.WithSettleDelay(0),
			serialport.WithPollInterval(2*time.Millisecond),
		),
	}

	cfg, err := NewConfig(append(defaults, opts...)...)
	if err != nil {
		t.Fatalf("newTestEngine: %v", err)
	}

	e, err := NewEngine(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newTestEngine: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })

	return e
}

// connectedEngine returns a connected engine in front of a fake device
// driven by h.
func connectedEngine(t *testing.T, h fakeport.Handler, opts ...ConfigOption) (*Engine, *fakeport.Port) {
	t.Helper()

	port := fakeport.New(h)
	e := newTestEngine(t, port, opts...)
	if err := e.Connect(context.Background(), testPortName, USBProfile); err != nil {
		t.Fatalf("connectedEngine: %v", err)
	}

	return e, port
}

type logCapture struct {
	mu    sync.Mutex
	lines []string
}

func newLogCapture(level logger.Level) (*logCapture, *logger.SinkLogger) {
	c := &logCapture{}
	return c, logger.NewSinkLogger(level, logger.SinkFunc(func(lvl logger.Level, text string) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.lines = append(c.lines, lvl.String()+" "+text)
	}))
}

func (c *logCapture) count(substr string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, line := range c.lines {
		if strings.Contains(line, substr) {
			n++
		}
	}

	return n
}
