// Package serialport implements the byte-level transport used to talk to an
// Agilis controller: one serial device, opened with fixed line parameters,
// carrying newline-terminated ASCII.
//
// # Operations
//
// A [Transport] offers the primitives the protocol engine is composed from:
//
//   - Connect opens the port and, when a handshake is configured, waits the
//     settle delay, writes the probe and requires the expected suffix within
//     the handshake timeout. Any failure leaves the port closed.
//   - Send performs a single write and reports how many bytes went out.
//   - ListenUntil accumulates input until a delimiter is seen or the timeout
//     expires.
//   - FlushListen and FlushSend purge the OS input and output buffers.
//   - Disconnect cancels a pending read and closes the port. It is idempotent.
//
// # Cancellation
//
// Reads are issued with a short per-read timeout (the poll interval), so
// ListenUntil never leaves a read in flight when it returns. A read that
// times out, is cancelled by its context, or is interrupted by Disconnect
// drops whatever it had accumulated; bytes arriving afterwards stay in the OS
// buffer until the next FlushListen.
//
// # Concurrency
//
// Transport is safe to call from multiple goroutines, but it only permits one
// ListenUntil at a time (ErrReadInProgress). Ordering of whole
// command/response cycles is the protocol engine's job.
package serialport
