package chromeprov

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/utils"
)

// managedDirName is the subtree the rod launcher downloads into; it doubles
// as the presence marker for the managed layout.
const managedDirName = "rod"

// rodDownload fetches a known-good Chromium snapshot through the go-rod
// launcher, rooted at staged/rod (the launcher nests a chromium-<revision>
// subtree under it). It is the last-resort browser strategy: it
// needs no version and no Google download endpoint, only one of rod's
// mirror hosts.
func rodDownload(ctx context.Context, staged string, client *http.Client) error {
	dir := filepath.Join(staged, managedDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	b := launcher.NewBrowser()
	b.Context = ctx
	b.RootDir = dir
	b.Logger = utils.LoggerQuiet
	if client != nil {
		b.HTTPClient = client
	}

	if _, err := b.Get(); err != nil {
		return fmt.Errorf("managed chromium download: %w", err)
	}
	return nil
}
