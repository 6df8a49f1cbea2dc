// Package archive unpacks the artifact formats the provisioner downloads:
// zip archives, tarballs (plain, gzip, xz, zstd), and Debian packages.
// All extraction is guarded against path traversal: entries that would
// escape the destination directory fail the extraction.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxFileSize caps a single extracted file (2 GB). A Chrome install is well
// under this; anything larger indicates a corrupt or hostile archive.
const maxFileSize = 2 << 30

// securePath joins name onto dst and rejects entries that escape it.
func securePath(dst, name string) (string, error) {
	p := filepath.Join(dst, filepath.FromSlash(name))
	if p != dst && !strings.HasPrefix(p, dst+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive: entry %q escapes destination", name)
	}
	return p, nil
}

func writeFile(path string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	n, err := io.Copy(f, io.LimitReader(r, maxFileSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n > maxFileSize {
		return fmt.Errorf("archive: %s exceeds size limit", path)
	}
	return nil
}

// ExtractZip unpacks the zip archive at src into dst, preserving file
// permission bits (Chrome's executables rely on them).
func ExtractZip(src, dst string) error {
	zr, err := zip.OpenReader(src)
	// ErrInsecurePath still yields a usable reader; securePath below is
	// the guard that decides what escapes.
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return fmt.Errorf("archive: opening zip: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		path, err := securePath(dst, f.Name)
		if err != nil {
			return err
		}
		info := f.FileInfo()
		if info.IsDir() {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("archive: reading %s: %w", f.Name, err)
		}
		mode := info.Mode()
		if mode.Perm() == 0 {
			mode = 0o644
		}
		err = writeFile(path, rc, mode)
		rc.Close()
		if err != nil {
			return fmt.Errorf("archive: extracting %s: %w", f.Name, err)
		}
	}
	return nil
}
