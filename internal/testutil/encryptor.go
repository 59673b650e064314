package testutil

import (
	"pfs-go/internal/encryption"
	"pfs-go/internal/pfs"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() pfs.Encryptor {
	return encryption.NewTestEncryptor()
}
