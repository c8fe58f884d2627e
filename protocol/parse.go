package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrParse             = errors.New("protocol: cannot parse reply")
	ErrMnemonicNotFound  = fmt.Errorf("%w: mnemonic not found", ErrParse)
	ErrDelimiterNotFound = fmt.Errorf("%w: delimiter not found", ErrParse)
	ErrInvalidPayload    = fmt.Errorf("%w: payload is not an integer", ErrParse)
)

// ParseIntegerReply extracts the signed decimal that follows mnemonic in
// reply and precedes the "\r\n" delimiter.
//
//	ParseIntegerReply("1TP-42\r\n", "1TP") // -42, nil
//
// Blanks between the mnemonic and the number are skipped; trailing
// characters before the delimiter make the payload invalid.
//
// The three failure modes are reported as ErrMnemonicNotFound,
// ErrDelimiterNotFound and ErrInvalidPayload, all of which match ErrParse.
func ParseIntegerReply(reply, mnemonic string) (int, error) {
	if mnemonic == "" {
		return 0, fmt.Errorf("%w: empty mnemonic", ErrMnemonicNotFound)
	}

	begin := strings.Index(reply, mnemonic)
	if begin < 0 {
		return 0, fmt.Errorf("%w: %q in %q", ErrMnemonicNotFound, mnemonic, reply)
	}

	rest := reply[begin+len(mnemonic):]
	end := strings.Index(rest, crlf)
	if end < 0 {
		return 0, fmt.Errorf("%w: %q", ErrDelimiterNotFound, reply)
	}

	// leading blanks are tolerated, anything after the digits is not
	payload := strings.TrimLeft(rest[:end], " \t")
	v, err := strconv.Atoi(payload)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPayload, payload)
	}

	return v, nil
}
