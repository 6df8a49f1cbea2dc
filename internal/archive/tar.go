package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression identifies the outer compression of a tarball.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionXZ
	CompressionZstd
)

// CompressionForName guesses the compression from a file name such as
// "data.tar.xz". Unknown suffixes map to CompressionNone.
func CompressionForName(name string) Compression {
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return CompressionGzip
	case strings.HasSuffix(name, ".tar.xz"):
		return CompressionXZ
	case strings.HasSuffix(name, ".tar.zst"):
		return CompressionZstd
	default:
		return CompressionNone
	}
}

func decompress(r io.Reader, c Compression) (io.Reader, func(), error) {
	switch c {
	case CompressionGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("archive: gzip: %w", err)
		}
		return gr, func() { gr.Close() }, nil
	case CompressionXZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("archive: xz: %w", err)
		}
		return xr, func() {}, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("archive: zstd: %w", err)
		}
		return zr, zr.Close, nil
	default:
		return r, func() {}, nil
	}
}

// ExtractTar unpacks a tar stream with the given compression into dst.
// Regular files, directories, and in-tree symlinks are materialized;
// other entry types (devices, FIFOs) are skipped.
func ExtractTar(r io.Reader, c Compression, dst string) error {
	raw, closeFn, err := decompress(r, c)
	if err != nil {
		return err
	}
	defer closeFn()

	tr := tar.NewReader(raw)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("archive: reading tar: %w", err)
		}

		path, err := securePath(dst, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			mode := os.FileMode(hdr.Mode).Perm()
			if mode == 0 {
				mode = 0o644
			}
			if err := writeFile(path, tr, mode); err != nil {
				return fmt.Errorf("archive: extracting %s: %w", hdr.Name, err)
			}
		case tar.TypeSymlink:
			// Only links that stay inside the destination are kept.
			target := hdr.Linkname
			if !filepath.IsAbs(target) {
				if _, err := securePath(filepath.Dir(path), target); err != nil {
					continue
				}
			} else {
				continue
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			os.Remove(path)
			if err := os.Symlink(target, path); err != nil {
				return fmt.Errorf("archive: symlink %s: %w", hdr.Name, err)
			}
		}
	}
}
