// Package protocol implements the Agilis command/response cycle on top of a
// serialport.Transport.
//
// Every command goes through the same pipeline under the engine lock:
//
//	pace → flush output → write "cmd\r\n" → restart pacer → [read "\r\n" → flush input → parse]
//
// Fast commands use the reply timeout (3 s by default). The position
// measurement can take up to 130 s, so [Engine.SendDeferred] performs the
// send synchronously and hands the read to a background goroutine whose
// outcome is collected from a [Pending].
//
// The engine never retries. A failed send, a missing reply and an
// unparsable reply are each reported to the caller as an error.
package protocol
