package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntegerReply(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		mnemonic string
		want     int
		wantErr  error
	}{
		{"negative", "1TP-42\r\n", "1TP", -42, nil},
		{"positive", "2TP1234\r\n", "2TP", 1234, nil},
		{"explicit plus", "1SU+16\r\n", "1SU", 16, nil},
		{"status", "1TS0\r\n", "1TS", 0, nil},
		{"leading noise", "\x001DL25\r\n", "1DL", 25, nil},
		{"padded", "TE 0\r\n", "TE", 0, nil},
		{"leading blanks", "1TP \t42\r\n", "1TP", 42, nil},
		{"trailing blank", "1TP42 \r\n", "1TP", 0, ErrInvalidPayload},
		{"blank inside sign", "1TP- 42\r\n", "1TP", 0, ErrInvalidPayload},
		{"channel", "CC2\r\n", "CC", 2, nil},
		{"garbage", "garbage\r\n", "1TP", 0, ErrMnemonicNotFound},
		{"wrong axis", "2TP5\r\n", "1TP", 0, ErrMnemonicNotFound},
		{"no delimiter", "1TP5", "1TP", 0, ErrDelimiterNotFound},
		{"letters", "1TPxx\r\n", "1TP", 0, ErrInvalidPayload},
		{"empty payload", "1TP\r\n", "1TP", 0, ErrInvalidPayload},
		{"trailing junk", "1TP12ab\r\n", "1TP", 0, ErrInvalidPayload},
		{"empty mnemonic", "1TP5\r\n", "", 0, ErrMnemonicNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIntegerReply(tt.reply, tt.mnemonic)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrParse)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseIntegerReply_DistinctErrors(t *testing.T) {
	_, errMnemonic := ParseIntegerReply("garbage\r\n", "1TP")
	_, errDelim := ParseIntegerReply("1TP5", "1TP")
	_, errPayload := ParseIntegerReply("1TPxx\r\n", "1TP")

	assert.NotErrorIs(t, errMnemonic, ErrDelimiterNotFound)
	assert.NotErrorIs(t, errDelim, ErrInvalidPayload)
	assert.NotErrorIs(t, errPayload, ErrMnemonicNotFound)
}
