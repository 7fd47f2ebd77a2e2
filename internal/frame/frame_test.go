package frame

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormdrive/stormdrive/internal/common"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		index      uint32
		nonce      []byte
		tag        []byte
		ciphertext []byte
	}{
		{"typical", 7, make([]byte, 12), make([]byte, 16), []byte("encrypted bytes")},
		{"index zero", 0, []byte{1}, []byte{2}, []byte{3}},
		{"empty ciphertext", 42, make([]byte, 12), make([]byte, 32), nil},
		{"max index", 0xFFFFFFFF, make([]byte, 24), make([]byte, 16), make([]byte, 1000)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			blob, err := Encode(tc.index, tc.nonce, tc.tag, tc.ciphertext)
			require.NoError(t, err)

			got, err := Decode(blob)
			require.NoError(t, err)
			assert.Equal(t, tc.index, got.Index)
			assert.Equal(t, tc.nonce, got.Nonce)
			assert.Equal(t, tc.tag, got.Tag)
			assert.Equal(t, tc.ciphertext, []byte(got.Ciphertext))
		})
	}
}

func TestEncode_Invalid(t *testing.T) {
	_, err := Encode(0, nil, []byte{1}, nil)
	require.True(t, errors.Is(err, common.ErrInvalid))

	_, err = Encode(0, []byte{1}, nil, nil)
	require.True(t, errors.Is(err, common.ErrInvalid))
}

func TestDecode_RejectsMalformed(t *testing.T) {
	valid, err := Encode(3, make([]byte, 12), make([]byte, 16), []byte("payload"))
	require.NoError(t, err)

	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte(nil), valid...)
		bad[0] = 'X'
		_, err := Decode(bad)
		require.True(t, errors.Is(err, common.ErrCorruption))
	})

	t.Run("too small", func(t *testing.T) {
		_, err := Decode([]byte("SDC1"))
		require.True(t, errors.Is(err, common.ErrCorruption))
	})

	t.Run("nonce length beyond buffer", func(t *testing.T) {
		bad := append([]byte(nil), valid...)
		bad[8] = 0xFF // nonce length prefix high byte
		bad[9] = 0xFF
		_, err := Decode(bad)
		require.True(t, errors.Is(err, common.ErrCorruption))
	})

	t.Run("every truncation fails closed", func(t *testing.T) {
		for i := 0; i < len(valid); i++ {
			if _, err := Decode(valid[:i]); err == nil {
				t.Fatalf("truncation at %d decoded successfully", i)
			}
		}
	})
}
