package protocol

import (
	"time"

	"github.com/arloliu/go-agilis/internal/pool"
)

// Pacer tracks the time of the last send attempt and delays the next one
// until the command term has passed.
//
// Pacer is not safe for concurrent use; the engine guards it with its lock.
type Pacer struct {
	now   func() time.Time
	sleep func(time.Duration)
	last  time.Time
}

// NewPacer creates a Pacer started at the current time.
func NewPacer() *Pacer {
	return NewPacerWithClock(time.Now, pool.Sleep)
}

// NewPacerWithClock creates a Pacer that reads time from now and waits with sleep.
func NewPacerWithClock(now func() time.Time, sleep func(time.Duration)) *Pacer {
	p := &Pacer{now: now, sleep: sleep}
	p.Start()

	return p
}

// Start records the current time as the last send attempt.
func (p *Pacer) Start() {
	p.last = p.now()
}

// Elapsed returns the time since the last Start.
func (p *Pacer) Elapsed() time.Duration {
	return p.now().Sub(p.last)
}

// ElapsedMillis returns Elapsed in whole milliseconds.
func (p *Pacer) ElapsedMillis() int64 {
	return p.Elapsed().Milliseconds()
}

// Wait sleeps until term has passed since the last Start and returns how
// long it slept. The sleep cannot be interrupted.
func (p *Pacer) Wait(term time.Duration) time.Duration {
	remaining := term - p.Elapsed()
	if remaining <= 0 {
		return 0
	}
	p.sleep(remaining)

	return remaining
}
