package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	encrypted, err := Encrypt("ya29.oauth-token-value", "short-key")
	require.NoError(t, err)
	assert.NotEqual(t, "ya29.oauth-token-value", encrypted)

	decrypted, err := Decrypt(encrypted, "short-key")
	require.NoError(t, err)
	assert.Equal(t, "ya29.oauth-token-value", decrypted)
}

func TestDecryptWithWrongKeyDoesNotRecoverPlaintext(t *testing.T) {
	encrypted, err := Encrypt("secret-data", "key-one")
	require.NoError(t, err)

	decrypted, _ := Decrypt(encrypted, "key-two")
	assert.NotEqual(t, "secret-data", decrypted)
}

func TestFixEncryptionKey(t *testing.T) {
	assert.Len(t, FixEncryptionKey("abc"), 32)
	assert.Len(t, FixEncryptionKey(""), 32)

	long := FixEncryptionKey("0123456789012345678901234567890123456789")
	assert.Len(t, long, 32)
	assert.Equal(t, "01234567890123456789012345678901", long)
}
