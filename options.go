package chromeprov

import (
	"net/http"

	"github.com/rs/zerolog"
)

// Option configures a [Provisioner].
type Option func(*Provisioner)

// WithCacheRoot sets the persistent directory artifacts are provisioned
// into. Defaults to {user cache dir}/chromeprov.
func WithCacheRoot(dir string) Option {
	return func(p *Provisioner) {
		p.cacheRoot = dir
	}
}

// WithPinnedVersion pins the exact version to provision. A malformed value
// fails the run immediately.
func WithPinnedVersion(version string) Option {
	return func(p *Provisioner) {
		p.spec.Pinned = version
	}
}

// WithChannel resolves the version dynamically from a metadata endpoint
// mapping release channels to versions. Resolution failures degrade to an
// unversioned run rather than failing. Pass [DefaultVersionEndpoint] and
// [DefaultChannel] for the standard Chrome-for-Testing document.
func WithChannel(endpoint, channel string) Option {
	return func(p *Provisioner) {
		p.spec.Endpoint = endpoint
		p.spec.Channel = channel
	}
}

// WithPlatform sets the target platform embedded in source templates.
// Defaults to [Linux64].
func WithPlatform(platform Platform) Option {
	return func(p *Provisioner) {
		p.platform = platform
	}
}

// WithHTTPClient sets the client used for metadata queries and downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provisioner) {
		p.client = client
	}
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Provisioner) {
		p.log = log
	}
}

// WithBrowserAttempts replaces the browser fallback chain.
func WithBrowserAttempts(attempts []Attempt) Option {
	return func(p *Provisioner) {
		p.browserAttempts = attempts
	}
}

// WithDriverAttempts replaces the driver fallback chain.
func WithDriverAttempts(attempts []Attempt) Option {
	return func(p *Provisioner) {
		p.driverAttempts = attempts
	}
}

// WithoutDriver skips driver provisioning entirely.
func WithoutDriver() Option {
	return func(p *Provisioner) {
		p.skipDriver = true
	}
}
