// Package verify computes and compares content digests of downloaded archives
// and checks optional OpenPGP detached signatures.
package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// chunkSize is the read buffer used while streaming a file through the hash.
const chunkSize = 8192

// ErrIO marks local read failures while hashing.
var ErrIO = errors.New("i/o error")

// Digest returns the lowercase hex sha256 of the file at path.
// The file is streamed in fixed-size chunks and never loaded whole.
func Digest(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
	}
	defer file.Close()

	hasher := sha256.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(hasher, file, buf); err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrIO, path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Matches reports whether the file at path hashes to expected.
// A missing file or an empty expectation is never a match.
func Matches(path, expected string) bool {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return false
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}

	actual, err := Digest(path)
	if err != nil {
		return false
	}

	return Equal(actual, expected)
}

// Equal compares two hex digests case-insensitively.
func Equal(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(a, b)
}
