package chromeprov

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Provisioner provisions the browser/driver artifact pair into a cache
// directory. Construct one with [New]; zero values are not usable.
//
// A run is a single sequential pass: the version is resolved once and the
// identical value is threaded into both kinds' fallback chains, so the two
// binaries can never be templated with different versions. Cancellation is
// external only, via the context passed to [Provisioner.Run].
type Provisioner struct {
	cacheRoot       string
	platform        Platform
	spec            VersionSpec
	client          *http.Client
	log             zerolog.Logger
	browserAttempts []Attempt
	driverAttempts  []Attempt
	skipDriver      bool
	managed         managedFunc
}

// New builds a Provisioner from the given options.
func New(opts ...Option) (*Provisioner, error) {
	p := &Provisioner{
		platform: Linux64,
		client:   &http.Client{Timeout: 5 * time.Minute},
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(p)
	}

	if p.cacheRoot == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("chromeprov: no cache root configured and no user cache dir: %w", err)
		}
		p.cacheRoot = filepath.Join(dir, "chromeprov")
	}
	if p.browserAttempts == nil {
		p.browserAttempts = DefaultBrowserAttempts(p.platform)
	}
	if p.driverAttempts == nil {
		p.driverAttempts = DefaultDriverAttempts(p.platform)
	}
	if p.managed == nil {
		p.managed = func(ctx context.Context, staged string) error {
			return rodDownload(ctx, staged, p.client)
		}
	}
	return p, nil
}

// Cache returns a view over the provisioner's cache directory.
func (p *Provisioner) Cache() *Cache {
	return NewCache(p.cacheRoot)
}

// Run provisions both artifact kinds and publishes the browser path.
//
// The browser is required: its error (including *ExhaustedError after all
// fallbacks) is returned and the report's Browser entry carries the
// per-attempt reasons. The driver is optional in one narrow sense: when
// every eligible driver attempt fails (*ExhaustedError), the run logs a
// warning, records the error on the report, and still succeeds. Any other
// driver error, an *IntegrityError over an inconsistent cache included,
// fails the run.
func (p *Provisioner) Run(ctx context.Context) (*Report, error) {
	cache := NewCache(p.cacheRoot)
	rep := &Report{
		Pointer: cache.PointerPath(),
		Browser: KindReport{Kind: KindBrowser, InstallRoot: cache.InstallRoot(KindBrowser)},
		Driver:  KindReport{Kind: KindDriver, InstallRoot: cache.InstallRoot(KindDriver)},
	}

	res := &resolver{client: p.client, log: p.log}
	version, err := res.resolve(ctx, p.spec)
	if err != nil {
		return rep, err
	}
	rep.Version = version
	p.log.Info().Stringer("version", version).Str("cache", p.cacheRoot).Msg("provisioning artifact pair")

	rep.Browser, err = p.provisionKind(ctx, cache, KindBrowser, p.browserAttempts, version)
	if err != nil {
		return rep, err
	}

	entry, err := cache.Locate(KindBrowser)
	if err != nil {
		rep.Browser.Err = err
		return rep, err
	}
	if err := cache.publish(entry); err != nil {
		rep.Browser.Err = err
		return rep, err
	}
	rep.Browser.EntryPoint = entry
	rep.Browser.State = StatePublished
	p.log.Info().Str("path", entry).Msg("browser path published")

	if p.skipDriver {
		return rep, nil
	}

	rep.Driver, err = p.provisionKind(ctx, cache, KindDriver, p.driverAttempts, version)
	if err != nil {
		var ex *ExhaustedError
		if !errors.As(err, &ex) {
			return rep, err
		}
		// The consumer can provision its own driver at runtime, so an
		// exhausted driver chain degrades to a warning. Anything else,
		// an inconsistent cache in particular, still fails the run.
		p.log.Warn().Err(err).Msg("driver provisioning failed; continuing without a cached driver")
		rep.Driver.Err = err
		return rep, nil
	}
	entry, err = cache.Locate(KindDriver)
	if err != nil {
		rep.Driver.Err = err
		return rep, err
	}
	rep.Driver.EntryPoint = entry
	rep.Driver.State = StatePublished
	return rep, nil
}

// provisionKind provisions a single artifact kind: cache check first, then
// the fallback chain.
func (p *Provisioner) provisionKind(ctx context.Context, cache *Cache, kind Kind, attempts []Attempt, v Version) (KindReport, error) {
	start := time.Now()
	kr := KindReport{
		Kind:        kind,
		InstallRoot: cache.InstallRoot(kind),
	}

	if cache.Present(kind) {
		kr.State = StateCachedHit
		kr.Elapsed = time.Since(start)
		p.log.Info().Str("kind", kind.String()).Msg("already installed, skipping fetch")
		return kr, nil
	}

	f := &fetcher{
		client:   p.client,
		cache:    cache,
		platform: p.platform,
		managed:  p.managed,
		log:      p.log,
	}
	failures, err := f.provision(ctx, kind, attempts, v)
	kr.Attempts = failures
	kr.Elapsed = time.Since(start)
	if err != nil {
		var ex *ExhaustedError
		if errors.As(err, &ex) {
			kr.State = StateExhausted
		}
		kr.Err = err
		return kr, err
	}
	kr.State = StateExtracted
	return kr, nil
}
