package protocol

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPending_ResolveOnce(t *testing.T) {
	p := newPending("1MA")
	assert.Equal(t, "1MA", p.Command())

	_, err := p.Result()
	assert.ErrorIs(t, err, ErrPending)
	assert.Empty(t, p.Reply())

	p.resolve(42, "1MA42\r\n", nil)
	p.resolve(7, "", errors.New("ignored"))

	v, err := p.Wait(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, "1MA42\r\n", p.Reply())

	v, err = p.Result()
	assert.NoError(t, err)
	assert.Equal(t, 42, v)

	select {
	case <-p.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestPending_WaitContext(t *testing.T) {
	p := newPending("2MA")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// resolving later still works
	p.resolve(0, "", ErrTimeout)
	_, err = p.Wait(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
}
