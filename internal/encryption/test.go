package encryption

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"pfs-go/internal/pfs"
)

// testMagic opens every stream written by TestEncryptor.
var testMagic = []byte("PFSTEST\n")

// testMask is XORed over the payload so stored bytes never equal the
// translation file they hold.
const testMask = 0x5a

var errTestPassphrase = errors.New("test encryptor: wrong passphrase")

// TestEncryptor is a deterministic, reversible Encryptor for tests. It is
// selected by encryption type "test".
type TestEncryptor struct {
	setupCalled bool
	passphrase  string
}

var _ pfs.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

// Setup records the passphrase. Unlock rejects any other passphrase once
// Setup ran.
func (e *TestEncryptor) Setup(passphrase string) error {
	e.setupCalled = true
	e.passphrase = passphrase
	return nil
}

func (e *TestEncryptor) IsConfigured() bool { return true }

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testMagic); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	return mask(r, w)
}

func (e *TestEncryptor) Unlock(passphrase string) (pfs.DecryptionContext, error) {
	if e.setupCalled && passphrase != e.passphrase {
		return nil, errTestPassphrase
	}
	return &TestDecryptionContext{}, nil
}

// TestDecryptionContext reverses TestEncryptor.Encrypt.
type TestDecryptionContext struct{}

var _ pfs.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testMagic))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testMagic) {
		return fmt.Errorf("not a test-encrypted stream")
	}
	return mask(r, w)
}

func mask(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)
	for {
		b, err := br.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading payload: %w", err)
		}
		if err := bw.WriteByte(b ^ testMask); err != nil {
			return fmt.Errorf("writing payload: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing payload: %w", err)
	}
	return nil
}
