package chromeprov

import (
	"context"
	"fmt"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
)

// Verify launches the browser binary at binPath headless, opens a blank
// page over the DevTools protocol, and returns the product string the
// browser reports (e.g. "Chrome/140.0.7339.185"). It is the smoke test the
// consuming launcher runs after provisioning: if Verify succeeds, the
// published path is a working browser.
func Verify(ctx context.Context, binPath string) (string, error) {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(binPath),
		chromedp.Flag("headless", "new"),
		chromedp.NoSandbox,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var product string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, p, _, _, _, err := cdpbrowser.GetVersion().Do(ctx)
			product = p
			return err
		}),
	)
	if err != nil {
		return "", fmt.Errorf("chromeprov: launching %s: %w", binPath, err)
	}
	return product, nil
}

// VerifyPointer runs [Verify] against the path in the cache's pointer
// record.
func VerifyPointer(ctx context.Context, cache *Cache) (string, error) {
	path, err := cache.ResolvedBrowserPath()
	if err != nil {
		return "", err
	}
	return Verify(ctx, path)
}
