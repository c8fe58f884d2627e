package protocol

import "sync/atomic"

// Metrics contains atomic counters for an Engine.
type Metrics struct {
	CommandCount      atomic.Uint64
	SendFailureCount  atomic.Uint64
	ReplyCount        atomic.Uint64
	ReplyFailureCount atomic.Uint64
	ParseFailureCount atomic.Uint64
	DeferredCount     atomic.Uint64
	// PacingWaitCount is the number of sends that had to wait for the command term.
	PacingWaitCount atomic.Uint64
}

func (m *Metrics) incCommandCount()      { m.CommandCount.Add(1) }
func (m *Metrics) incSendFailureCount()  { m.SendFailureCount.Add(1) }
func (m *Metrics) incReplyCount()        { m.ReplyCount.Add(1) }
func (m *Metrics) incReplyFailureCount() { m.ReplyFailureCount.Add(1) }
func (m *Metrics) incParseFailureCount() { m.ParseFailureCount.Add(1) }
func (m *Metrics) incDeferredCount()     { m.DeferredCount.Add(1) }
func (m *Metrics) incPacingWaitCount()   { m.PacingWaitCount.Add(1) }
