package pfs

import "io"

// Encryptor protects translation files stored by remote transports.
// Encryption needs only the public key; decryption needs the private key,
// which is unlocked with a passphrase into a DecryptionContext.
type Encryptor interface {
	// Setup generates the key pair and protects the private key with
	// passphrase. Called by `pfs encryption init`.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key. It fails on a wrong passphrase.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key for one command.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
