package archive

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// Extract unpacks every entry of archivePath into destDir, creating destDir
// if needed. Entries that would land outside destDir are rejected. A failure
// part way through leaves whatever was written in place.
func Extract(archivePath, destDir string) error {
	format, err := FormatOf(archivePath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return &ExtractionError{Archive: archivePath, Err: fmt.Errorf("create dest dir: %w", err)}
	}

	switch format {
	case FormatZip:
		err = extractZip(archivePath, destDir)
	default:
		err = extractTar(archivePath, destDir, format)
	}
	if err != nil {
		return &ExtractionError{Archive: archivePath, Err: err}
	}
	return nil
}

// tarStream bundles the readers stacked over an archive file.
type tarStream struct {
	file    *os.File
	closers []io.Closer
	tr      *tar.Reader
}

func (s *tarStream) Close() error {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i].Close()
	}
	return s.file.Close()
}

func openTar(archivePath string, format Format) (*tarStream, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	stream := &tarStream{file: file}
	var r io.Reader
	switch format {
	case FormatTarGz:
		gzipReader, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		stream.closers = append(stream.closers, gzipReader)
		r = gzipReader
	case FormatTarXz:
		xzReader, err := xz.NewReader(bufio.NewReader(file))
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create xz reader: %w", err)
		}
		r = xzReader
	default:
		file.Close()
		return nil, fmt.Errorf("%w: %s is not a tar stream", ErrUnsupportedFormat, format)
	}

	stream.tr = tar.NewReader(r)
	return stream, nil
}

// safeJoin joins name onto destDir and refuses paths escaping destDir,
// either textually or through a symlink already on disk.
func safeJoin(destDir, name string) (string, error) {
	cleanDest := filepath.Clean(destDir)
	target := filepath.Join(cleanDest, name)
	if !within(cleanDest, target) {
		return "", fmt.Errorf("illegal file path: %s", name)
	}
	if err := noSymlinkParents(cleanDest, target); err != nil {
		return "", err
	}
	return target, nil
}

func within(root, path string) bool {
	return path == root || strings.HasPrefix(path, root+string(os.PathSeparator))
}

// noSymlinkParents fails if any directory between root and target is a
// symlink.
func noSymlinkParents(root, target string) error {
	rel, err := filepath.Rel(root, filepath.Dir(target))
	if err != nil || rel == "." {
		return nil
	}
	cur := root
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		cur = filepath.Join(cur, part)
		fi, err := os.Lstat(cur)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("inspect %s: %w", cur, err)
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("illegal file path: %s passes through symlink %s", target, cur)
		}
	}
	return nil
}

// makeSymlink creates target -> linkname, refusing links that point outside
// destDir.
func makeSymlink(destDir, target, linkname string) error {
	cleanDest := filepath.Clean(destDir)
	if filepath.IsAbs(linkname) || !within(cleanDest, filepath.Join(filepath.Dir(target), linkname)) {
		return fmt.Errorf("illegal symlink: %s -> %s", target, linkname)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}
	os.Remove(target)
	if err := os.Symlink(linkname, target); err != nil {
		return fmt.Errorf("create symlink %s: %w", target, err)
	}
	return nil
}

func extractTar(archivePath, destDir string, format Format) error {
	stream, err := openTar(archivePath, format)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		header, err := stream.tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		target, err := safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}

		case tar.TypeReg:
			mode := os.FileMode(header.Mode).Perm()
			if mode == 0 {
				mode = 0644
			}
			if err := writeFile(target, stream.tr, mode); err != nil {
				return err
			}

		case tar.TypeSymlink:
			if err := makeSymlink(destDir, target, header.Linkname); err != nil {
				return err
			}

		case tar.TypeLink:
			source, err := safeJoin(destDir, header.Linkname)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("create parent dir for %s: %w", target, err)
			}
			os.Remove(target)
			if err := os.Link(source, target); err != nil {
				return fmt.Errorf("create hard link %s: %w", target, err)
			}

		default:
			// Skip other types (char devices, block devices, etc.)
			continue
		}
	}
}

func extractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}
			continue
		}

		if f.Mode()&os.ModeSymlink != 0 {
			if err := extractZipSymlink(f, destDir, target); err != nil {
				return err
			}
			continue
		}

		if err := extractZipFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractZipFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	return writeFile(target, rc, mode)
}

// extractZipSymlink recreates a symlink entry; zip stores the link target
// as the entry body.
func extractZipSymlink(f *zip.File, destDir, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	linkname, err := io.ReadAll(io.LimitReader(rc, 4096))
	if err != nil {
		return fmt.Errorf("read zip symlink %s: %w", f.Name, err)
	}
	return makeSymlink(destDir, target, string(linkname))
}

// writeFile copies r into target, creating parent directories.
func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}

	// An earlier entry may have left a symlink here; replace it, never follow it.
	if fi, err := os.Lstat(target); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("replace symlink %s: %w", target, err)
		}
	}

	outFile, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, r); err != nil {
		return fmt.Errorf("write file %s: %w", target, err)
	}

	if err := outFile.Close(); err != nil {
		return fmt.Errorf("close file %s: %w", target, err)
	}

	// Restore permissions (especially execute bit)
	if mode&0111 != 0 {
		if err := os.Chmod(target, mode); err != nil {
			return fmt.Errorf("chmod %s: %w", target, err)
		}
	}
	return nil
}
