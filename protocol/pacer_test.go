package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestPacer_Wait(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	p := NewPacerWithClock(clock.Now, clock.Sleep)

	clock.Advance(20 * time.Millisecond)
	assert.Equal(t, 20*time.Millisecond, p.Elapsed())
	assert.Equal(t, int64(20), p.ElapsedMillis())

	waited := p.Wait(50 * time.Millisecond)
	assert.Equal(t, 30*time.Millisecond, waited)
	assert.Equal(t, []time.Duration{30 * time.Millisecond}, clock.sleeps)
	assert.Equal(t, 50*time.Millisecond, p.Elapsed())
}

func TestPacer_NoWaitWhenTermPassed(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	p := NewPacerWithClock(clock.Now, clock.Sleep)

	clock.Advance(80 * time.Millisecond)
	assert.Zero(t, p.Wait(50*time.Millisecond))
	assert.Empty(t, clock.sleeps)
}

func TestPacer_ZeroTermDisablesPacing(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	p := NewPacerWithClock(clock.Now, clock.Sleep)

	assert.Zero(t, p.Wait(0))
	assert.Empty(t, clock.sleeps)
}

func TestPacer_StartResets(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	p := NewPacerWithClock(clock.Now, clock.Sleep)

	clock.Advance(time.Second)
	p.Start()
	assert.Zero(t, p.Elapsed())

	clock.Advance(10 * time.Millisecond)
	assert.Equal(t, 40*time.Millisecond, p.Wait(50*time.Millisecond))
}

func TestPacer_RealClock(t *testing.T) {
	p := NewPacer()

	begin := time.Now()
	p.Wait(15 * time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(begin), 10*time.Millisecond)
}
