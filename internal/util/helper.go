package util

import (
	"bytes"
	"strconv"
)

var crlf = []byte("\r\n")

// CloneSlice clones slice with cloneSize.
// This function will use src length as the clone size if cloneSize is 0.
func CloneSlice[T any](src []T, cloneSize int) []T {
	if cloneSize == 0 {
		cloneSize = len(src)
	}
	clone := make([]T, cloneSize)
	copy(clone, src)

	return clone
}

// TrimCRLF removes every trailing "\r\n" pair from b.
func TrimCRLF(b []byte) []byte {
	for bytes.HasSuffix(b, crlf) {
		b = b[:len(b)-len(crlf)]
	}

	return b
}

// TrimCRLFString is TrimCRLF for strings.
func TrimCRLFString(s string) string {
	return string(TrimCRLF([]byte(s)))
}

// Printable renders wire bytes for logs, escaping control characters so
// that "1PR10\r\n" is logged as `1PR10\r\n` rather than breaking the line.
func Printable(b []byte) string {
	q := strconv.Quote(string(b))
	return q[1 : len(q)-1]
}
