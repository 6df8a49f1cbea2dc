package chromeprov

import (
	"fmt"
	"os"
	"strings"
)

// Locate finds the entry-point binary for an installed artifact kind by a
// recursive name-based search under its install root. The search is layout
// agnostic on purpose: the consumer must not need to know which fallback
// strategy produced the tree. A satisfied presence marker with no locatable
// binary is an *IntegrityError.
func (c *Cache) Locate(kind Kind) (string, error) {
	root := c.InstallRoot(kind)
	bin, err := findBinary(root, kind.binaryName())
	if err != nil {
		return "", &IntegrityError{Kind: kind, Root: root}
	}
	return bin, nil
}

// publish writes the absolute browser binary path as the sole content of
// the pointer record. The record is overwritten every run and has no
// cross-run meaning.
func (c *Cache) publish(entryPoint string) error {
	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(c.PointerPath(), []byte(entryPoint+"\n"), 0o644); err != nil {
		return fmt.Errorf("chromeprov: writing pointer record: %w", err)
	}
	return nil
}

// ResolvedBrowserPath reads the pointer record left by the last successful
// run. It returns ErrNoPointer if no run has published a path yet.
func (c *Cache) ResolvedBrowserPath() (string, error) {
	data, err := os.ReadFile(c.PointerPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoPointer
		}
		return "", fmt.Errorf("chromeprov: reading pointer record: %w", err)
	}
	path := strings.TrimSpace(string(data))
	if path == "" {
		return "", ErrNoPointer
	}
	return path, nil
}
