package testutil

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ulikunitz/xz"
)

// Entry is one member of a fixture archive. Names ending in "/" are directories.
// Symlink makes the entry a symbolic link to that target. HardLink makes it a
// hard link to another member (tar only).
type Entry struct {
	Name     string
	Body     string
	Mode     int64
	Symlink  string
	HardLink string
}

func (e Entry) isLink() bool {
	return e.Symlink != "" || e.HardLink != ""
}

func (e Entry) isDir() bool {
	return strings.HasSuffix(e.Name, "/")
}

func (e Entry) mode() int64 {
	if e.Mode != 0 {
		return e.Mode
	}
	if e.isDir() {
		return 0755
	}
	return 0644
}

// FFmpegTree is a small archive layout shaped like a static FFmpeg build.
func FFmpegTree(root string) []Entry {
	return []Entry{
		{Name: root + "/"},
		{Name: root + "/bin/"},
		{Name: root + "/bin/ffmpeg", Body: "#!/bin/sh\necho ffmpeg\n", Mode: 0755},
		{Name: root + "/LICENSE", Body: "GPL"},
	}
}

// WriteArchive writes entries to path, picking the container from the suffix
// (.zip, .tar.gz/.gz or .tar.xz/.xz). Entry order is preserved.
func WriteArchive(t *testing.T, path string, entries []Entry) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create archive dir: %v", err)
	}

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	defer func() { _ = file.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		writeZip(t, file, entries)
	case ".gz":
		gzipWriter := gzip.NewWriter(file)
		writeTar(t, gzipWriter, entries)
		if err := gzipWriter.Close(); err != nil {
			t.Fatalf("failed to close gzip writer: %v", err)
		}
	case ".xz":
		xzWriter, err := xz.NewWriter(file)
		if err != nil {
			t.Fatalf("failed to create xz writer: %v", err)
		}
		writeTar(t, xzWriter, entries)
		if err := xzWriter.Close(); err != nil {
			t.Fatalf("failed to close xz writer: %v", err)
		}
	default:
		t.Fatalf("unsupported fixture archive suffix: %s", path)
	}

	return path
}

// ArchiveBytes builds an archive like WriteArchive and returns its contents.
func ArchiveBytes(t *testing.T, name string, entries []Entry) []byte {
	t.Helper()
	path := WriteArchive(t, filepath.Join(t.TempDir(), name), entries)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture archive: %v", err)
	}
	return data
}

func writeTar(t *testing.T, w io.Writer, entries []Entry) {
	t.Helper()

	tarWriter := tar.NewWriter(w)
	for _, entry := range entries {
		header := &tar.Header{
			Name: entry.Name,
			Mode: entry.mode(),
		}
		switch {
		case entry.Symlink != "":
			header.Typeflag = tar.TypeSymlink
			header.Linkname = entry.Symlink
		case entry.HardLink != "":
			header.Typeflag = tar.TypeLink
			header.Linkname = entry.HardLink
		case entry.isDir():
			header.Typeflag = tar.TypeDir
		default:
			header.Typeflag = tar.TypeReg
			header.Size = int64(len(entry.Body))
		}

		if err := tarWriter.WriteHeader(header); err != nil {
			t.Fatalf("failed to write header for %s: %v", entry.Name, err)
		}
		if !entry.isDir() && !entry.isLink() {
			if _, err := tarWriter.Write([]byte(entry.Body)); err != nil {
				t.Fatalf("failed to write content for %s: %v", entry.Name, err)
			}
		}
	}

	if err := tarWriter.Close(); err != nil {
		t.Fatalf("failed to close tar writer: %v", err)
	}
}

func writeZip(t *testing.T, w io.Writer, entries []Entry) {
	t.Helper()

	zipWriter := zip.NewWriter(w)
	for _, entry := range entries {
		if entry.HardLink != "" {
			t.Fatalf("zip fixtures cannot hold hard link %s", entry.Name)
		}
		header := &zip.FileHeader{Name: entry.Name, Method: zip.Deflate}
		mode := os.FileMode(entry.mode())
		body := entry.Body
		switch {
		case entry.Symlink != "":
			mode = 0777 | os.ModeSymlink
			body = entry.Symlink
		case entry.isDir():
			mode |= os.ModeDir
			header.Method = zip.Store
		}
		header.SetMode(mode)

		fw, err := zipWriter.CreateHeader(header)
		if err != nil {
			t.Fatalf("failed to write zip header for %s: %v", entry.Name, err)
		}
		if !entry.isDir() {
			if _, err := io.WriteString(fw, body); err != nil {
				t.Fatalf("failed to write zip content for %s: %v", entry.Name, err)
			}
		}
	}

	if err := zipWriter.Close(); err != nil {
		t.Fatalf("failed to close zip writer: %v", err)
	}
}
