package testutil

import (
	"cdmkn-go/internal/cdmkn"
	"cdmkn-go/internal/encryption"
)

// NewTestEncryptor returns a keyless reversible encryptor.
func NewTestEncryptor() cdmkn.Encryptor {
	return encryption.NewStubEncryptor()
}
