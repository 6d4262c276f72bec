package verify

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

// ErrBadSignature is returned when a detached signature does not verify.
var ErrBadSignature = errors.New("signature verification failed")

// SignatureVerifier checks detached OpenPGP signatures against a keyring.
type SignatureVerifier struct {
	keyring openpgp.EntityList
}

// NewSignatureVerifier loads an armored or binary keyring from keyringPath.
func NewSignatureVerifier(keyringPath string) (*SignatureVerifier, error) {
	keyringFile, err := os.Open(keyringPath)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	defer keyringFile.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(keyringFile)
	if err != nil {
		// Try reading as non-armored keyring
		if _, serr := keyringFile.Seek(0, io.SeekStart); serr != nil {
			return nil, fmt.Errorf("rewind keyring: %w", serr)
		}
		keyring, err = openpgp.ReadKeyRing(keyringFile)
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}

	return &SignatureVerifier{keyring: keyring}, nil
}

// NewSignatureVerifierFromKeyring wraps an already parsed keyring.
func NewSignatureVerifierFromKeyring(keyring openpgp.EntityList) *SignatureVerifier {
	return &SignatureVerifier{keyring: keyring}
}

// Verify checks that signaturePath is a valid detached signature of filePath.
// Armored signatures are tried first, then binary ones.
func (v *SignatureVerifier) Verify(filePath, signaturePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%w: open file: %v", ErrIO, err)
	}
	defer file.Close()

	sigFile, err := os.Open(signaturePath)
	if err != nil {
		return fmt.Errorf("%w: open signature: %v", ErrIO, err)
	}
	defer sigFile.Close()

	_, err = openpgp.CheckArmoredDetachedSignature(v.keyring, file, sigFile, nil)
	if err == nil {
		return nil
	}

	if _, serr := file.Seek(0, io.SeekStart); serr != nil {
		return fmt.Errorf("%w: rewind file: %v", ErrIO, serr)
	}
	if _, serr := sigFile.Seek(0, io.SeekStart); serr != nil {
		return fmt.Errorf("%w: rewind signature: %v", ErrIO, serr)
	}

	if _, err = openpgp.CheckDetachedSignature(v.keyring, file, sigFile, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	return nil
}
