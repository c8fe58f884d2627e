// Package pool holds the reusable timers and buffers shared by the transport
// and the protocol engine.
package pool

import (
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a timer armed to fire after d.
//
// Return it with PutTimer once the wait is over.
func GetTimer(d time.Duration) *time.Timer {
	v := timerPool.Get()
	if v == nil {
		return time.NewTimer(d)
	}

	t, _ := v.(*time.Timer) // only *time.Timer is ever put into the pool
	if t.Reset(d) {
		select {
		case <-t.C:
		default:
		}
	}

	return t
}

// PutTimer stops t and returns it to the pool.
//
// t must not be used after PutTimer returns.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}

// Sleep blocks for d using a pooled timer. Non-positive durations return at once.
func Sleep(d time.Duration) {
	if d <= 0 {
		return
	}

	t := GetTimer(d)
	<-t.C
	timerPool.Put(t)
}
