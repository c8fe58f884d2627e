package protocol

import (
	"context"
	"errors"
	"sync"
)

// ErrPending is returned by Pending.Result before the reply has arrived.
var ErrPending = errors.New("protocol: reply still pending")

// Pending is the future result of a deferred command.
//
// It is resolved exactly once by the engine goroutine that waits for the
// reply. Once resolved, every call to Wait or Result returns the same value.
type Pending struct {
	cmd  string
	once sync.Once
	done chan struct{}

	value int
	reply string
	err   error
}

func newPending(cmd string) *Pending {
	return &Pending{cmd: cmd, done: make(chan struct{})}
}

// Command returns the command that produced this result.
func (p *Pending) Command() string { return p.cmd }

// Done returns a channel that is closed when the result is available.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the result is available or ctx is done. Cancelling ctx
// only stops waiting; the engine keeps reading until its own timeout.
func (p *Pending) Wait(ctx context.Context) (int, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Result returns the result without blocking, or ErrPending.
func (p *Pending) Result() (int, error) {
	select {
	case <-p.done:
		return p.value, p.err
	default:
		return 0, ErrPending
	}
}

// Reply returns the raw reply line once resolved. It is empty when the
// read failed.
func (p *Pending) Reply() string {
	select {
	case <-p.done:
		return p.reply
	default:
		return ""
	}
}

func (p *Pending) resolve(value int, reply string, err error) {
	p.once.Do(func() {
		p.value = value
		p.reply = reply
		p.err = err
		close(p.done)
	})
}
