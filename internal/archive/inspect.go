package archive

import (
	"archive/tar"
	"archive/zip"
	"fmt"
	"io"
)

// TopLevelEntry predicts the directory name extraction of archivePath will
// produce: the first path component of the first entry in the listing.
// Payload bytes of zip entries are not read. An empty listing falls back to
// the archive stem so callers never get an empty name.
func TopLevelEntry(archivePath string) (string, error) {
	format, err := FormatOf(archivePath)
	if err != nil {
		return "", err
	}

	var name string
	switch format {
	case FormatZip:
		name, err = zipTopLevel(archivePath)
	case FormatTarGz, FormatTarXz:
		name, err = tarTopLevel(archivePath, format)
	}
	if err != nil {
		return "", err
	}

	if name == "" {
		return stem(archivePath), nil
	}
	return name, nil
}

func zipTopLevel(archivePath string) (string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("open zip listing: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if part := firstComponent(f.Name); part != "" {
			return part, nil
		}
	}
	return "", nil
}

func tarTopLevel(archivePath string, format Format) (string, error) {
	stream, err := openTar(archivePath, format)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	for {
		header, err := stream.tr.Next()
		if err == io.EOF {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("read tar header: %w", err)
		}
		if header.Typeflag == tar.TypeXGlobalHeader {
			continue
		}
		if part := firstComponent(header.Name); part != "" {
			return part, nil
		}
	}
}
