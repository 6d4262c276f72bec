// Package archive inspects and extracts the archive formats depfetch sources
// are published in: zip containers and tar streams compressed with gzip or xz.
//
// The format is chosen purely from the file name suffix (.zip, .gz, .xz);
// contents are never sniffed.
package archive

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies a supported archive container.
type Format int

const (
	// FormatUnknown is the zero value and never returned with a nil error.
	FormatUnknown Format = iota
	// FormatZip is a zip container.
	FormatZip
	// FormatTarGz is a gzip-compressed tar stream.
	FormatTarGz
	// FormatTarXz is an xz-compressed tar stream.
	FormatTarXz
)

// String returns the string representation of the format
func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatTarGz:
		return "tar.gz"
	case FormatTarXz:
		return "tar.xz"
	default:
		return "unknown"
	}
}

var (
	// ErrUnsupportedFormat is returned for archive names with an unknown suffix.
	ErrUnsupportedFormat = errors.New("unsupported archive type")
	// ErrExtraction marks failures while unpacking an archive.
	ErrExtraction = errors.New("extraction failed")
)

// FormatOf maps an archive file name to its Format by suffix.
func FormatOf(path string) (Format, error) {
	suffix := strings.ToLower(filepath.Ext(path))
	switch suffix {
	case ".zip":
		return FormatZip, nil
	case ".gz":
		return FormatTarGz, nil
	case ".xz":
		return FormatTarXz, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: %q (%s)", ErrUnsupportedFormat, suffix, filepath.Base(path))
	}
}

// ExtractionError wraps an I/O or decoding failure during extraction.
type ExtractionError struct {
	Archive string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", filepath.Base(e.Archive), e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrExtraction) match any ExtractionError.
func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtraction
}

// stem returns the base name without its final extension.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// firstComponent returns the first meaningful path segment of an entry name,
// ignoring leading "/" and "." segments. It returns "" when there is none.
func firstComponent(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." {
			continue
		}
		return part
	}
	return ""
}
