package crypto

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipherRoundTrip(t *testing.T) {
	key := hex.EncodeToString([]byte(strings.Repeat("k", 32)))
	c, err := NewCipher(key)
	require.NoError(t, err)
	require.True(t, c.Enabled())

	sealed, err := c.Seal([]byte(`{"schema":1}`))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "schema")

	plain, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"schema":1}`, string(plain))
}

func TestCipherRejectsTamperedData(t *testing.T) {
	c, err := NewCipher(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("a", 32))))
	require.NoError(t, err)

	sealed, err := c.Seal([]byte("payload"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = c.Open(sealed)
	assert.Error(t, err)

	_, err = c.Open([]byte{1, 2})
	assert.ErrorIs(t, err, ErrCiphertextShort)
}

func TestCipherWithoutKeyPassesThrough(t *testing.T) {
	c, err := NewCipher("")
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	out, err := c.Seal([]byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, "plain", string(out))
}

func TestDecodeKeyLength(t *testing.T) {
	_, err := DecodeKey("short")
	assert.ErrorIs(t, err, ErrKeyLength)

	_, err = NewCipher("dG9vIHNob3J0")
	assert.ErrorIs(t, err, ErrKeyLength)
}
