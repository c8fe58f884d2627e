package pool

import (
	"bytes"
	"sync"
)

// maxPooledBufferSize keeps one oversized reply from pinning memory in the pool.
const maxPooledBufferSize = 64 * 1024

var bufferPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// GetBuffer returns an empty buffer from the pool.
func GetBuffer() *bytes.Buffer {
	buf, _ := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	return buf
}

// PutBuffer returns buf to the pool. Bytes previously obtained from buf.Bytes()
// must not be used afterwards.
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledBufferSize {
		return
	}
	bufferPool.Put(buf)
}
