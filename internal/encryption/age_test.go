package encryption

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pfs-go/internal/config"
)

func newTestAgeEncryptor(t *testing.T) (*AgeEncryptor, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	cfg := config.EncryptionConfig{
		PublicKeyPath:  "/pfs/keys/pfs.pub",
		PrivateKeyPath: "/pfs/keys/pfs.key",
	}
	return NewAgeEncryptor(fsys, cfg), fsys
}

func TestAgeEncryptor_IsConfigured(t *testing.T) {
	t.Parallel()
	e, _ := newTestAgeEncryptor(t)
	assert.False(t, e.IsConfigured(), "before Setup")

	require.NoError(t, e.Setup("test-passphrase"))
	assert.True(t, e.IsConfigured(), "after Setup")
}

func TestAgeEncryptor_Setup(t *testing.T) {
	t.Parallel()

	t.Run("rejects empty passphrase", func(t *testing.T) {
		e, _ := newTestAgeEncryptor(t)
		assert.Error(t, e.Setup(""))
	})

	t.Run("private key is sealed", func(t *testing.T) {
		e, fsys := newTestAgeEncryptor(t)
		require.NoError(t, e.Setup("test-passphrase"))

		pub, err := afero.ReadFile(fsys, "/pfs/keys/pfs.pub")
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(pub, []byte("age1")), "public key = %q", pub)

		priv, err := afero.ReadFile(fsys, "/pfs/keys/pfs.key")
		require.NoError(t, err)
		assert.NotContains(t, string(priv), "AGE-SECRET-KEY")
	})
}

func TestAgeEncryptor_EncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "po file", input: []byte("msgid \"Hello\"\nmsgstr \"Bonjour\"\n")},
		{name: "empty", input: []byte{}},
		{name: "large data", input: bytes.Repeat([]byte("abcdef"), 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			passphrase := "test-passphrase"
			e, _ := newTestAgeEncryptor(t)
			require.NoError(t, e.Setup(passphrase))

			var encrypted bytes.Buffer
			require.NoError(t, e.Encrypt(bytes.NewReader(tt.input), &encrypted))
			if len(tt.input) > 0 {
				assert.NotEqual(t, tt.input, encrypted.Bytes())
			}

			dc, err := e.Unlock(passphrase)
			require.NoError(t, err)

			var decrypted bytes.Buffer
			require.NoError(t, dc.Decrypt(bytes.NewReader(encrypted.Bytes()), &decrypted))
			assert.Equal(t, len(tt.input), decrypted.Len())
			assert.True(t, bytes.Equal(tt.input, decrypted.Bytes()))
		})
	}
}

func TestAgeEncryptor_ReloadsPublicKey(t *testing.T) {
	t.Parallel()
	e, fsys := newTestAgeEncryptor(t)
	require.NoError(t, e.Setup("pw"))

	fresh := NewAgeEncryptor(fsys, config.EncryptionConfig{
		PublicKeyPath:  "/pfs/keys/pfs.pub",
		PrivateKeyPath: "/pfs/keys/pfs.key",
	})
	var encrypted bytes.Buffer
	require.NoError(t, fresh.Encrypt(bytes.NewReader([]byte("data")), &encrypted))

	dc, err := e.Unlock("pw")
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, dc.Decrypt(&encrypted, &out))
	assert.Equal(t, "data", out.String())
}

func TestAgeEncryptor_Errors(t *testing.T) {
	t.Parallel()

	t.Run("wrong passphrase", func(t *testing.T) {
		e, _ := newTestAgeEncryptor(t)
		require.NoError(t, e.Setup("correct-passphrase"))
		_, err := e.Unlock("wrong-passphrase")
		assert.Error(t, err)
	})

	t.Run("encrypt before setup", func(t *testing.T) {
		e, _ := newTestAgeEncryptor(t)
		var buf bytes.Buffer
		assert.Error(t, e.Encrypt(bytes.NewReader([]byte("data")), &buf))
	})

	t.Run("unlock before setup", func(t *testing.T) {
		e, _ := newTestAgeEncryptor(t)
		_, err := e.Unlock("passphrase")
		assert.Error(t, err)
	})
}
