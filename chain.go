package chromeprov

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/porticus-lab/go-chrome-provision/internal/archive"
)

// managedFunc performs a managed (delegated) browser download into dir.
// It is a field so tests can substitute the network-bound rod launcher.
type managedFunc func(ctx context.Context, dir string) error

// fetcher executes one fallback chain: attempts in declared order, first
// success wins, every failure cleaned up before the next attempt runs.
type fetcher struct {
	client   *http.Client
	cache    *Cache
	platform Platform
	managed  managedFunc
	log      zerolog.Logger
}

// provision runs the chain for kind. On success the artifact is committed
// under the cache's install root; the returned failures are the attempts
// tried before the winning one. If every eligible attempt fails, the error
// is an *ExhaustedError carrying those same failures.
func (f *fetcher) provision(ctx context.Context, kind Kind, attempts []Attempt, v Version) ([]*AttemptError, error) {
	var failures []*AttemptError

	for _, a := range attempts {
		if !a.eligible(v) {
			f.log.Debug().
				Str("kind", kind.String()).
				Str("attempt", a.Name).
				Msg("skipping version-templated attempt on unversioned run")
			continue
		}

		src := a.source(v, f.platform)
		label := src
		if label == "" {
			label = a.Name
		}

		staged, err := f.cache.stage()
		if err != nil {
			return failures, err
		}

		f.log.Info().
			Str("kind", kind.String()).
			Str("attempt", a.Name).
			Str("source", label).
			Msg("fetching artifact")

		if err := f.runAttempt(ctx, a, src, staged); err != nil {
			f.cache.discard(staged)
			failures = append(failures, &AttemptError{Source: label, Err: err})
			f.log.Warn().
				Str("kind", kind.String()).
				Str("attempt", a.Name).
				Err(err).
				Msg("attempt failed, advancing to next fallback")
			continue
		}

		if err := f.cache.commit(kind, staged); err != nil {
			f.cache.discard(staged)
			return failures, err
		}
		return failures, nil
	}

	return failures, &ExhaustedError{Kind: kind, Attempts: failures}
}

// runAttempt performs a single fetch+extract into the staging directory.
func (f *fetcher) runAttempt(ctx context.Context, a Attempt, src, staged string) error {
	if a.Fetch == FetchManaged {
		return f.managed(ctx, staged)
	}

	file, err := f.download(ctx, src)
	if err != nil {
		return err
	}
	defer os.Remove(file)

	switch a.Extract {
	case ExtractZip:
		return archive.ExtractZip(file, staged)
	case ExtractDeb:
		return archive.ExtractDeb(file, staged)
	default:
		return nil
	}
}

// download fetches src into a temporary file next to the cache root (same
// filesystem, removed by the caller) and returns its path.
func (f *fetcher) download(ctx context.Context, src string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching: unexpected status %s", resp.Status)
	}

	if err := os.MkdirAll(f.cache.Root(), 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(f.cache.Root(), ".fetch-*")
	if err != nil {
		return "", fmt.Errorf("creating download file: %w", err)
	}
	name := tmp.Name()

	_, err = io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(name)
		return "", fmt.Errorf("writing download: %w", err)
	}
	return filepath.Clean(name), nil
}
