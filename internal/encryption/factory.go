package encryption

import (
	"fmt"

	"cdmkn-go/internal/cdmkn"
	"cdmkn-go/internal/config"
)

// NewEncryptorFromConfig returns the configured Encryptor. For type "none"
// it returns a nil Encryptor and bundles are pushed in plaintext.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (cdmkn.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewStubEncryptor(), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
