package encryption

import (
	"bytes"
	"fmt"
	"io"

	"cdmkn-go/internal/cdmkn"
)

// stubMagic marks output of StubEncryptor so sealed and plain bundles get
// different checksums.
var stubMagic = []byte("CDMKNSTB")

// StubEncryptor is a reversible, keyless encryptor for tests and the
// "test" encryption type.
type StubEncryptor struct {
	setup bool
}

var _ cdmkn.Encryptor = (*StubEncryptor)(nil)

func NewStubEncryptor() *StubEncryptor {
	return &StubEncryptor{}
}

func (e *StubEncryptor) Setup(passphrase string) error {
	e.setup = true
	return nil
}

func (e *StubEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(stubMagic); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	_, err := io.Copy(w, r)
	return err
}

func (e *StubEncryptor) Unlock(passphrase string) (cdmkn.DecryptionContext, error) {
	return stubDecryption{}, nil
}

func (e *StubEncryptor) IsConfigured() bool { return true }

type stubDecryption struct{}

func (stubDecryption) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(stubMagic))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if !bytes.Equal(header, stubMagic) {
		return fmt.Errorf("not a stub-sealed bundle")
	}
	_, err := io.Copy(w, r)
	return err
}
