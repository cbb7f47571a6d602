package sync

import (
	"fmt"
	"io"

	"cdmkn-go/internal/cdmkn"
)

// Fetch downloads and decodes the bundle stored under checksum. Encrypted
// bundles need an unlocked decryption context.
func (p *Pusher) Fetch(checksum string, decryptCtx cdmkn.DecryptionContext) (*Bundle, error) {
	manifest, err := p.Manifest()
	if err != nil {
		return nil, err
	}
	entry := manifest.Find(checksum)
	if entry == nil {
		return nil, fmt.Errorf("%w: no pushed bundle with checksum %s", cdmkn.ErrInvalidInput, checksum)
	}

	pr, pw := io.Pipe()
	vaultErrCh := make(chan error, 1)
	go func() {
		err := p.vault.GetContent(checksum, pw)
		pw.CloseWithError(err)
		vaultErrCh <- err
	}()

	var bundle Bundle
	var readErr error
	if entry.Encrypted {
		if decryptCtx == nil {
			pr.Close()
			<-vaultErrCh
			return nil, fmt.Errorf("bundle is encrypted but no passphrase was provided")
		}
		plainR, plainW := io.Pipe()
		go func() {
			plainW.CloseWithError(decryptCtx.Decrypt(pr, plainW))
		}()
		readErr = decodeJSON(plainR, &bundle, "bundle")
		plainR.CloseWithError(readErr)
	} else {
		readErr = decodeJSON(pr, &bundle, "bundle")
	}
	pr.CloseWithError(readErr)
	vaultErr := <-vaultErrCh

	if vaultErr != nil && readErr != nil {
		return nil, fmt.Errorf("retrieving bundle from vault: %w", vaultErr)
	}
	if readErr != nil {
		return nil, readErr
	}
	return &bundle, nil
}
