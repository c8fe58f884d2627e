package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneSlice(t *testing.T) {
	src := []byte("1TP5\r\n")
	clone := CloneSlice(src, 0)
	assert.Equal(t, src, clone)

	clone[0] = '2'
	assert.Equal(t, byte('1'), src[0])

	assert.Len(t, CloneSlice(src, 3), 3)
}

func TestTrimCRLF(t *testing.T) {
	assert.Equal(t, []byte("AG-UC2 v2.2.1"), TrimCRLF([]byte("AG-UC2 v2.2.1\r\n")))
	assert.Equal(t, []byte("x"), TrimCRLF([]byte("x\r\n\r\n")))
	assert.Equal(t, []byte("x\n"), TrimCRLF([]byte("x\n")))
	assert.Empty(t, TrimCRLF([]byte("\r\n")))
	assert.Equal(t, "VE", TrimCRLFString("VE\r\n"))
}

func TestPrintable(t *testing.T) {
	assert.Equal(t, `1PR10\r\n`, Printable([]byte("1PR10\r\n")))
	assert.Equal(t, `a\"b`, Printable([]byte(`a"b`)))
	assert.Equal(t, "", Printable(nil))
}
