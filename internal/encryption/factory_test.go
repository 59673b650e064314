package encryption

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pfs-go/internal/config"
)

func TestNewEncryptorFromConfig(t *testing.T) {
	t.Parallel()
	fsys := afero.NewMemMapFs()
	keys := config.EncryptionConfig{PublicKeyPath: "/keys/pfs.pub", PrivateKeyPath: "/keys/pfs.key"}

	tests := []struct {
		name    string
		cfg     config.EncryptionConfig
		want    any
		wantErr string
	}{
		{"age", config.EncryptionConfig{Type: "age", PublicKeyPath: keys.PublicKeyPath, PrivateKeyPath: keys.PrivateKeyPath}, &AgeEncryptor{}, ""},
		{"empty type is age", keys, &AgeEncryptor{}, ""},
		{"test", config.EncryptionConfig{Type: "test"}, &TestEncryptor{}, ""},
		{"age without keys", config.EncryptionConfig{Type: "age"}, nil, "public_key_path and private_key_path required"},
		{"unknown", config.EncryptionConfig{Type: "rot13"}, nil, `unknown encryption type "rot13"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewEncryptorFromConfig(fsys, tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}

	assert.Equal(t, []string{"age", "test"}, Types())
}
