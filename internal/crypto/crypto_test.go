package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCrypto(t *testing.T) *AccountCrypto {
	t.Helper()
	key, err := GenerateAccountKey()
	require.NoError(t, err)
	c, err := NewAccountCrypto(key)
	require.NoError(t, err)
	return c
}

func TestNewAccountCryptoRejectsShortKey(t *testing.T) {
	_, err := NewAccountCrypto([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestNameHMACIsStable(t *testing.T) {
	c := newTestCrypto(t)

	a, err := c.EncryptName("notes.md")
	require.NoError(t, err)
	b, err := c.EncryptName("notes.md")
	require.NoError(t, err)
	other, err := c.EncryptName("todo.md")
	require.NoError(t, err)

	assert.NotEqual(t, a.Encrypted, b.Encrypted, "nonce must differ per encryption")
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(other))

	name, err := c.DecryptName(b)
	require.NoError(t, err)
	assert.Equal(t, "notes.md", name)
}

func TestDecryptNameAcrossInstances(t *testing.T) {
	key, err := GenerateAccountKey()
	require.NoError(t, err)
	first, err := NewAccountCrypto(key)
	require.NoError(t, err)
	second, err := NewAccountCrypto(key)
	require.NoError(t, err)

	secret, err := first.EncryptName("photo.png")
	require.NoError(t, err)

	name, err := second.DecryptName(secret)
	require.NoError(t, err)
	assert.Equal(t, "photo.png", name)
	assert.Equal(t, first.nameHMAC("photo.png"), second.nameHMAC("photo.png"))
}

func TestDecryptNameTampered(t *testing.T) {
	c := newTestCrypto(t)
	fresh := newTestCrypto(t)

	secret, err := c.EncryptName("a.txt")
	require.NoError(t, err)
	forged, err := c.EncryptName("b.txt")
	require.NoError(t, err)
	secret.HMAC = forged.HMAC

	// a fresh instance has nothing cached
	_, err = fresh.DecryptName(secret)
	assert.ErrorIs(t, err, ErrDecrypt)

	c.names.Purge()
	_, err = c.DecryptName(secret)
	assert.ErrorIs(t, err, ErrNameTampered)
}

func TestDocumentRoundTrip(t *testing.T) {
	c := newTestCrypto(t)

	cases := map[string][]byte{
		"empty":        {},
		"small":        []byte("a\nb\nc"),
		"compressible": bytes.Repeat([]byte("syftvault "), 1000),
	}
	for name, plain := range cases {
		t.Run(name, func(t *testing.T) {
			sealed, err := c.EncryptDocument(plain)
			require.NoError(t, err)

			got, err := c.DecryptDocument(sealed)
			require.NoError(t, err)
			assert.Equal(t, plain, got)
		})
	}
}

func TestCompressionShrinksRepetitiveContent(t *testing.T) {
	plain := bytes.Repeat([]byte("0123456789"), 500)
	framed := compress(plain)

	assert.Equal(t, frameZstd, framed[0])
	assert.Less(t, len(framed), len(plain))

	small := compress([]byte("tiny"))
	assert.Equal(t, frameRaw, small[0])

	_, err := decompress([]byte{9, 1, 2})
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestDecryptDocumentWrongKey(t *testing.T) {
	sealed, err := newTestCrypto(t).EncryptDocument([]byte("secret"))
	require.NoError(t, err)

	_, err = newTestCrypto(t).DecryptDocument(sealed)
	assert.ErrorIs(t, err, ErrDecrypt)
}
