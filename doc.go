// Package chromeprov provisions a matched headless Chrome / chromedriver
// pair into a persistent cache directory ahead of application startup, so
// that a downstream process can launch a browser-automation session without
// a runtime network dependency or a version mismatch between the two
// binaries.
//
// # Provisioning
//
// Create a [Provisioner] and run it once per deployment:
//
//	p, err := chromeprov.New(
//	    chromeprov.WithCacheRoot("/var/cache/chromeprov"),
//	    chromeprov.WithChannel(chromeprov.DefaultVersionEndpoint, "Stable"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report, err := p.Run(ctx)
//
// The browser binary is required: if every fallback strategy fails, the run
// returns an [*ExhaustedError]. The driver is optional: a driver failure is
// recorded on the [Report] but does not fail the run, on the assumption
// that the consuming application can provision its own driver on demand.
//
// Repeated runs over a warm cache perform no network or extraction work;
// presence is detected through any of the recognized install layouts.
//
// # Fallback strategies
//
// Each artifact kind is provisioned through an ordered list of [Attempt]
// values. The defaults for 64-bit Linux try, in order:
//
//   - the Chrome-for-Testing zip archive for the resolved version
//   - the google-chrome-stable Debian package (unversioned)
//   - a managed Chromium download via the go-rod launcher (unversioned)
//
// Attempts whose URL template requires a version are skipped, not failed,
// when no concrete version could be resolved. Custom chains can be supplied
// with [WithBrowserAttempts] and [WithDriverAttempts].
//
// # Path publication
//
// After a successful run the absolute path of the discovered browser binary
// is written to a pointer record at {cacheRoot}/.resolved-browser-path.
// The consuming launcher reads that single file; it never needs to know
// which fallback strategy produced the install layout. [Verify] launches
// the published binary headless over the DevTools protocol as a smoke test.
package chromeprov
