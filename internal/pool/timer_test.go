package pool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerPool(t *testing.T) {
	assert := assert.New(t)

	t.Run("Get and Put", func(t *testing.T) {
		timer1 := GetTimer(time.Second)
		assert.NotNil(timer1)
		PutTimer(timer1)

		timer2 := GetTimer(20 * time.Millisecond)
		assert.NotNil(timer2)
		<-timer2.C
	})

	t.Run("Put Active Timer", func(t *testing.T) {
		timer1 := GetTimer(50 * time.Millisecond)
		time.Sleep(10 * time.Millisecond)
		PutTimer(timer1)

		begin := time.Now()
		timer2 := GetTimer(150 * time.Millisecond)

		select {
		case fired := <-timer2.C:
			assert.GreaterOrEqual(fired.Sub(begin), 140*time.Millisecond)
		case <-time.After(400 * time.Millisecond):
			t.Error("timer2 should have fired")
		}
	})

	t.Run("Concurrency", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				timer := GetTimer(5 * time.Millisecond)
				defer PutTimer(timer)
				<-timer.C
			}()
		}
		wg.Wait()
	})
}

func TestSleep(t *testing.T) {
	begin := time.Now()
	Sleep(30 * time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(begin), 30*time.Millisecond)

	begin = time.Now()
	Sleep(0)
	Sleep(-time.Second)
	assert.Less(t, time.Since(begin), 10*time.Millisecond)
}

func TestBufferPool(t *testing.T) {
	buf := GetBuffer()
	assert.Zero(t, buf.Len())
	buf.WriteString("1TP-42\r\n")
	PutBuffer(buf)

	again := GetBuffer()
	assert.Zero(t, again.Len())
	PutBuffer(again)

	assert.NotPanics(t, func() { PutBuffer(nil) })
}
