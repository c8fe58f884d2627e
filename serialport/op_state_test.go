package serialport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-agilis/internal/fakeport"
	"github.com/arloliu/go-agilis/logger"
)

func TestAtomicState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{ClosedState, "Closed"},
		{OpeningState, "Opening"},
		{OpenedState, "Opened"},
		{ClosingState, "Closing"},
		{State(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			st := &atomicState{}
			st.Set(tt.state)
			assert.Equal(t, tt.want, st.String())
		})
	}
}

func TestAtomicState_Transitions(t *testing.T) {
	st := &atomicState{}

	assert.False(t, st.ToOpened(), "Closed cannot jump to Opened")
	assert.False(t, st.ToClosing())
	assert.True(t, st.ToClosed(), "already closed")

	require.True(t, st.ToOpening())
	assert.False(t, st.ToOpening())
	assert.False(t, st.ToClosed(), "Opening must pass through Closing")

	require.True(t, st.ToOpened())
	assert.True(t, st.ToOpened(), "already opened")
	require.True(t, st.ToClosing())
	require.True(t, st.ToClosed())
	assert.True(t, st.IsClosed())

	// failed handshake path
	require.True(t, st.ToOpening())
	require.True(t, st.ToClosing())
	require.True(t, st.ToClosed())
}

func TestTransport_CloseFollowsStateMachine(t *testing.T) {
	logs, l := newLogCapture(logger.WarnLevel)
	tr := newTestTransport(t, fakeport.New(nil), WithLogger(l))

	require.NoError(t, tr.Connect(context.Background()))
	assert.Equal(t, OpenedState, tr.State())
	require.NoError(t, tr.Disconnect())
	assert.Equal(t, ClosedState, tr.State())

	// handshake failure closes a transport that never reached Opened
	silent := newTestTransport(t, fakeport.New(nil), WithLogger(l), WithHandshake("VE\r\n", "\r\n", 20*time.Millisecond))
	require.ErrorIs(t, silent.Connect(context.Background()), ErrHandshake)
	assert.Equal(t, ClosedState, silent.State())

	assert.False(t, logs.contains("unexpected state on close"))
}
