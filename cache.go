package chromeprov

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// On-disk names under the cache root.
const (
	browserDirName = "chrome"
	driverDirName  = "chromedriver"
	pointerName    = ".resolved-browser-path"
	stagingPattern = ".staging-*"
)

// Cache is the persistent directory the artifact pair is provisioned into.
// Presence of an artifact is judged by a disjunction of layout markers, one
// per strategy that can produce it, so a cache warmed by any strategy skips
// all fetch and extract work on later runs.
//
// The cache assumes a single writer; concurrent provisioning runs against
// the same root must be serialized externally.
type Cache struct {
	root string
}

// NewCache returns a Cache rooted at dir. The directory is created on the
// first staging or commit operation, not here.
func NewCache(dir string) *Cache {
	return &Cache{root: dir}
}

// Root returns the cache root directory.
func (c *Cache) Root() string { return c.root }

// InstallRoot returns the directory an artifact kind installs under.
func (c *Cache) InstallRoot(kind Kind) string {
	if kind == KindDriver {
		return filepath.Join(c.root, driverDirName)
	}
	return filepath.Join(c.root, browserDirName)
}

// PointerPath returns the location of the pointer record.
func (c *Cache) PointerPath() string {
	return filepath.Join(c.root, pointerName)
}

// marker is a single filesystem predicate evidencing a completed install.
type marker struct {
	path string
	dir  bool
}

func (m marker) satisfied() bool {
	info, err := os.Stat(m.path)
	if err != nil {
		return false
	}
	return info.IsDir() == m.dir
}

// markers returns every layout recognized for the kind. The browser has one
// marker per strategy family (zip archive, Debian package, managed
// download); the driver is a single flattened executable.
func (c *Cache) markers(kind Kind) []marker {
	if kind == KindDriver {
		return []marker{
			{path: filepath.Join(c.InstallRoot(KindDriver), "chromedriver"), dir: false},
		}
	}
	root := c.InstallRoot(KindBrowser)
	return []marker{
		{path: filepath.Join(root, "chrome-"+Linux64.Slug), dir: true},
		{path: filepath.Join(root, "opt", "google", "chrome"), dir: true},
		{path: filepath.Join(root, "rod"), dir: true},
	}
}

// Present reports whether any recognized layout marker for the kind is
// satisfied. A satisfied marker must imply a locatable binary; Locate
// turns a violation of that into an IntegrityError.
func (c *Cache) Present(kind Kind) bool {
	for _, m := range c.markers(kind) {
		if m.satisfied() {
			return true
		}
	}
	return false
}

// stage creates a fresh staging directory under the cache root. Staging on
// the same filesystem keeps the final commit a single atomic rename, so a
// run interrupted mid-extraction never leaves a satisfied marker behind.
func (c *Cache) stage() (string, error) {
	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return "", fmt.Errorf("chromeprov: creating cache root: %w", err)
	}
	dir, err := os.MkdirTemp(c.root, stagingPattern)
	if err != nil {
		return "", fmt.Errorf("chromeprov: creating staging dir: %w", err)
	}
	return dir, nil
}

// commit moves a fully staged tree into its final install root. For the
// browser the whole staging directory becomes the install root in one
// rename. For the driver the single executable is found in the staged tree
// and renamed into place.
func (c *Cache) commit(kind Kind, staged string) error {
	final := c.InstallRoot(kind)

	if kind == KindDriver {
		bin, err := findBinary(staged, KindDriver.binaryName())
		if err != nil {
			return fmt.Errorf("chromeprov: staged driver tree has no executable: %w", err)
		}
		if err := os.MkdirAll(final, 0o755); err != nil {
			return err
		}
		dst := filepath.Join(final, KindDriver.binaryName())
		if err := os.Rename(bin, dst); err != nil {
			return fmt.Errorf("chromeprov: installing driver: %w", err)
		}
		return os.RemoveAll(staged)
	}

	// A leftover tree without a satisfied marker is residue from an
	// interrupted run, not an install; clear it so the rename lands.
	if _, err := os.Stat(final); err == nil && !c.Present(kind) {
		if err := os.RemoveAll(final); err != nil {
			return fmt.Errorf("chromeprov: clearing stale install root: %w", err)
		}
	}
	if err := os.Rename(staged, final); err != nil {
		return fmt.Errorf("chromeprov: installing %s: %w", kind, err)
	}
	return nil
}

// discard removes a staging directory after a failed attempt so that no
// residue crosses into the next attempt.
func (c *Cache) discard(staged string) {
	if staged != "" {
		os.RemoveAll(staged)
	}
}

// findBinary walks root for an executable regular file named name and
// returns the shallowest match.
func findBinary(root, name string) (string, error) {
	var best string
	var bestDepth int

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != name {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if !info.Mode().IsRegular() || info.Mode().Perm()&0o111 == 0 {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		depth := strings.Count(rel, string(os.PathSeparator))
		if best == "" || depth < bestDepth {
			best, bestDepth = path, depth
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if best == "" {
		return "", fmt.Errorf("no executable named %q under %s", name, root)
	}
	return filepath.Abs(best)
}
