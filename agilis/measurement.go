package agilis

import (
	"context"
	"fmt"

	"github.com/arloliu/go-agilis/protocol"
)

// Measurement is an outstanding MA position measurement.
type Measurement struct {
	axis    int
	pending *protocol.Pending
}

// Axis returns the measured axis.
func (m *Measurement) Axis() int { return m.axis }

// Done returns a channel closed once the measurement resolves.
func (m *Measurement) Done() <-chan struct{} { return m.pending.Done() }

// Wait blocks until the position is known or ctx is done. The position is
// the distance to the reverse limit in 1/1000 of the total travel.
func (m *Measurement) Wait(ctx context.Context) (int, error) {
	return m.pending.Wait(ctx)
}

// Result returns the position without blocking, or protocol.ErrPending.
func (m *Measurement) Result() (int, error) {
	return m.pending.Result()
}

// MeasurePosition starts the MA sequence on axis: the axis moves to both
// limits and back, which can take up to two minutes. The call returns once
// the command is written; the controller rejects other commands until the
// returned Measurement resolves.
func (c *Controller) MeasurePosition(ctx context.Context, axis int) (*Measurement, error) {
	if err := validateAxis(axis); err != nil {
		return nil, err
	}

	// exclusive: no other command may be in flight when MA goes out
	c.measureMu.Lock()
	defer c.measureMu.Unlock()

	if err := c.busy(); err != nil {
		return nil, err
	}

	cmd := axisCmd(axis, "MA")
	c.logger.Info("agilis: measure position", "axis", axis)

	p, err := c.engine.SendDeferred(ctx, cmd, cmd, 0)
	if err != nil {
		return nil, err
	}

	m := &Measurement{axis: axis, pending: p}
	c.measurements.Store(axis, m)

	go func() {
		<-p.Done()
		c.forget(m)

		if v, err := p.Result(); err != nil {
			c.logger.Error("agilis: position measurement failed", "axis", axis, "error", err)
		} else {
			c.logger.Info("agilis: position measured", "axis", axis, "position", v)
		}
	}()

	return m, nil
}

// PendingMeasurement returns the outstanding measurement on axis, if any.
// A measurement stops being outstanding as soon as its Done channel closes.
func (c *Controller) PendingMeasurement(axis int) (*Measurement, bool) {
	m, ok := c.measurements.Load(axis)
	if !ok || m.resolved() {
		return nil, false
	}

	return m, true
}

func (m *Measurement) resolved() bool {
	select {
	case <-m.pending.Done():
		return true
	default:
		return false
	}
}

// forget removes m from the outstanding set unless a newer measurement has
// already taken its axis.
func (c *Controller) forget(m *Measurement) {
	c.measurements.Compute(m.axis, func(old *Measurement, loaded bool) (*Measurement, bool) {
		return old, !loaded || old == m
	})
}

// String implements fmt.Stringer.
func (m *Measurement) String() string {
	return fmt.Sprintf("measurement(axis=%d)", m.axis)
}
