package agilis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
)

const (
	// DefaultPollInterval is the status polling period of WaitReady.
	DefaultPollInterval = 100 * time.Millisecond

	// maxMotionTime bounds the longest motion, an MA measurement.
	maxMotionTime = 150 * time.Second
)

var errStillMoving = errors.New("agilis: axis still moving")

// WaitReady polls TS until axis reports AxisReady. It gives up once ctx is
// done or after the longest motion the controller can perform. A failed
// status query ends the wait immediately.
func (c *Controller) WaitReady(ctx context.Context, axis int, interval time.Duration) error {
	if err := validateAxis(axis); err != nil {
		return err
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	attempts := uint(maxMotionTime/interval) + 1

	err := retry.Do(func() error {
		status, err := c.AxisStatus(ctx, axis)
		if err != nil {
			return retry.Unrecoverable(err)
		}
		if status != AxisReady {
			return fmt.Errorf("%w: %s", errStillMoving, status)
		}

		return nil
	},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			if n%10 == 9 {
				c.logger.Debug("agilis: waiting for axis", "axis", axis, "attempt", n+1, "reason", err)
			}
		}),
	)
	if err != nil {
		return err
	}

	c.logger.Debug("agilis: axis ready", "axis", axis)

	return nil
}

// MoveRelativeAndWait runs RelativeMove and waits for the axis to settle.
func (c *Controller) MoveRelativeAndWait(ctx context.Context, axis, steps int) error {
	if err := c.RelativeMove(ctx, axis, steps); err != nil {
		return err
	}

	return c.WaitReady(ctx, axis, 0)
}
