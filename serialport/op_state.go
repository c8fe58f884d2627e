package serialport

import "sync/atomic"

// State is the lifecycle state of a Transport.
type State uint32

const (
	ClosedState State = iota
	OpeningState
	OpenedState
	ClosingState
)

func (s State) String() string {
	switch s {
	case ClosedState:
		return "Closed"
	case OpeningState:
		return "Opening"
	case OpenedState:
		return "Opened"
	case ClosingState:
		return "Closing"
	default:
		return "Unknown"
	}
}

// atomicState holds a State and only allows the legal transitions
// Closed → Opening → Opened → Closing → Closed.
type atomicState struct {
	state atomic.Uint32
}

func (st *atomicState) Get() State {
	return State(st.state.Load())
}

func (st *atomicState) Set(s State) {
	st.state.Store(uint32(s))
}

func (st *atomicState) String() string {
	return st.Get().String()
}

func (st *atomicState) IsClosed() bool {
	return st.Get() == ClosedState
}

func (st *atomicState) IsOpened() bool {
	return st.Get() == OpenedState
}

func (st *atomicState) ToOpening() bool {
	return st.state.CompareAndSwap(uint32(ClosedState), uint32(OpeningState))
}

func (st *atomicState) ToOpened() bool {
	if st.IsOpened() {
		return true
	}

	return st.state.CompareAndSwap(uint32(OpeningState), uint32(OpenedState))
}

// ToClosing accepts both Opened and Opening; a failed handshake closes a
// transport that never reached Opened.
func (st *atomicState) ToClosing() bool {
	if st.state.CompareAndSwap(uint32(OpenedState), uint32(ClosingState)) {
		return true
	}

	return st.state.CompareAndSwap(uint32(OpeningState), uint32(ClosingState))
}

func (st *atomicState) ToClosed() bool {
	if st.IsClosed() {
		return true
	}

	return st.state.CompareAndSwap(uint32(ClosingState), uint32(ClosedState))
}
