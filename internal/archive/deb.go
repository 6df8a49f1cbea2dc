package archive

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Debian packages are ar(5) containers holding three members; the installed
// tree lives in data.tar.{gz,xz,zst}. The ar format is a magic line plus
// fixed 60-byte member headers, so it is parsed inline here rather than
// through a dependency.

const (
	arMagic      = "!<arch>\n"
	arHeaderSize = 60
)

// ExtractDeb unpacks the data payload of the Debian package at src into
// dst, reproducing the package's filesystem tree (opt/, usr/, ...).
func ExtractDeb(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("archive: opening deb: %w", err)
	}
	defer f.Close()

	magic := make([]byte, len(arMagic))
	if _, err := io.ReadFull(f, magic); err != nil || string(magic) != arMagic {
		return fmt.Errorf("archive: %s is not an ar archive", src)
	}

	hdr := make([]byte, arHeaderSize)
	for {
		if _, err := io.ReadFull(f, hdr); err != nil {
			if err == io.EOF {
				return fmt.Errorf("archive: deb has no data.tar member")
			}
			return fmt.Errorf("archive: reading ar header: %w", err)
		}
		if hdr[58] != 0x60 || hdr[59] != '\n' {
			return fmt.Errorf("archive: corrupt ar header in %s", src)
		}

		name := strings.TrimRight(string(hdr[0:16]), " /")
		size, err := strconv.ParseInt(strings.TrimSpace(string(hdr[48:58])), 10, 64)
		if err != nil {
			return fmt.Errorf("archive: corrupt ar member size: %w", err)
		}

		if strings.HasPrefix(name, "data.tar") {
			body := io.LimitReader(f, size)
			return ExtractTar(body, CompressionForName(name), dst)
		}

		// Skip this member; bodies are 2-byte aligned.
		skip := size
		if size%2 == 1 {
			skip++
		}
		if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
			return fmt.Errorf("archive: seeking past ar member %s: %w", name, err)
		}
	}
}
