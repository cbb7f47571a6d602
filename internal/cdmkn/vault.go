package cdmkn

import "io"

// Vault is remote storage for pushed history. Content is addressed by
// checksum; metadata items are named per installation and carry a version
// that the sync client uses as its push cursor.
type Vault interface {
	// PutContent stores content under its checksum. Storing the same
	// checksum twice is safe. size is the number of bytes read from r.
	PutContent(checksum string, r io.Reader, size int64) error

	// GetContent writes the content stored under checksum to w.
	GetContent(checksum string, w io.Writer) error

	// PutMetadata stores a named item for an installation together with its version.
	PutMetadata(installID, name string, r io.Reader, size int64, version int64) error

	// GetMetadata writes a named item for an installation to w.
	GetMetadata(installID, name string, w io.Writer) error

	// GetMetadataVersion returns the stored version of a named item, or 0
	// when nothing has been stored.
	GetMetadataVersion(installID, name string) (int64, error)

	// ValidateSetup verifies that the vault is reachable and usable.
	ValidateSetup() error
}

// Encryptor seals bundles before they leave the machine. Encrypting needs
// only the public key; decrypting needs the passphrase-protected private key.
type Encryptor interface {
	// Setup generates a key pair and protects the private key with passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock opens the private key for the rest of the session.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether the key pair exists.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory only.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
