package chromeprov_test

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	chromeprov "github.com/porticus-lab/go-chrome-provision"
)

// zipFixture builds an in-memory zip whose entries all carry the exec bit,
// the way Chrome-for-Testing archives do.
func zipFixture(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
		hdr.SetMode(0o755)
		w, err := zw.CreateHeader(hdr)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// debFixture builds a minimal Debian package: ar container with
// debian-binary, control.tar.gz, and a data.tar.xz holding the given tree.
func debFixture(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	var data bytes.Buffer
	xw, err := xz.NewWriter(&data)
	require.NoError(t, err)
	tw := tar.NewWriter(xw)
	for name, content := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o755,
			Size: int64(len(content)),
		}))
		_, err = tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, xw.Close())

	var control bytes.Buffer
	gw := gzip.NewWriter(&control)
	ctw := tar.NewWriter(gw)
	require.NoError(t, ctw.WriteHeader(&tar.Header{Name: "control", Mode: 0o644, Size: 0}))
	require.NoError(t, ctw.Close())
	require.NoError(t, gw.Close())

	var deb bytes.Buffer
	deb.WriteString("!<arch>\n")
	arMember := func(name string, body []byte) {
		fmt.Fprintf(&deb, "%-16s%-12d%-6d%-6d%-8s%-10d`\n", name, 0, 0, 0, "100644", len(body))
		deb.Write(body)
		if len(body)%2 == 1 {
			deb.WriteByte('\n')
		}
	}
	arMember("debian-binary", []byte("2.0\n"))
	arMember("control.tar.gz", control.Bytes())
	arMember("data.tar.xz", data.Bytes())
	return deb.Bytes()
}

// requestLog records the paths a test server was asked for.
type requestLog struct {
	mu    sync.Mutex
	paths []string
}

func (l *requestLog) add(p string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, p)
}

func (l *requestLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.paths...)
}

func (l *requestLog) count() int { return len(l.all()) }

func zipAttempt(base, artifact string) chromeprov.Attempt {
	return chromeprov.Attempt{
		Name:        artifact + "-zip",
		URLTemplate: base + "/{version}/{platform}/" + artifact + "-{platform}.zip",
		Fetch:       chromeprov.FetchArchive,
		Extract:     chromeprov.ExtractZip,
	}
}

func TestRun_PinnedScenario(t *testing.T) {
	browserZip := zipFixture(t, map[string]string{"chrome-linux64/chrome": "#!/bin/sh\necho chrome\n"})
	driverZip := zipFixture(t, map[string]string{"chromedriver-linux64/chromedriver": "#!/bin/sh\necho driver\n"})

	var reqs requestLog
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs.add(r.URL.Path)
		switch {
		case strings.HasSuffix(r.URL.Path, "chrome-linux64.zip"):
			w.Write(browserZip)
		case strings.HasSuffix(r.URL.Path, "chromedriver-linux64.zip"):
			w.Write(driverZip)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	root := t.TempDir()
	p, err := chromeprov.New(
		chromeprov.WithCacheRoot(root),
		chromeprov.WithPinnedVersion("140.0.7339.185"),
		chromeprov.WithBrowserAttempts([]chromeprov.Attempt{zipAttempt(srv.URL, "chrome")}),
		chromeprov.WithDriverAttempts([]chromeprov.Attempt{zipAttempt(srv.URL, "chromedriver")}),
	)
	require.NoError(t, err)

	rep, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, chromeprov.Version("140.0.7339.185"), rep.Version)
	require.Equal(t, chromeprov.StatePublished, rep.Browser.State)
	require.Equal(t, chromeprov.StatePublished, rep.Driver.State)
	require.False(t, rep.DriverDegraded())

	// The resolved version templates the actual fetches.
	for _, path := range reqs.all() {
		require.Contains(t, path, "/140.0.7339.185/linux64/")
	}

	// The install root contains the entry point and the pointer record
	// matches it exactly.
	require.FileExists(t, rep.Browser.EntryPoint)
	got, err := p.Cache().ResolvedBrowserPath()
	require.NoError(t, err)
	require.Equal(t, rep.Browser.EntryPoint, got)
}

func TestRun_DynamicChannelScenario(t *testing.T) {
	meta := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"channels":{"Stable":{"version":"141.0.0.1"}}}`))
	}))
	defer meta.Close()

	browserZip := zipFixture(t, map[string]string{"chrome-linux64/chrome": "bin"})
	driverZip := zipFixture(t, map[string]string{"chromedriver-linux64/chromedriver": "bin"})

	var reqs requestLog
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs.add(r.URL.Path)
		if strings.Contains(r.URL.Path, "chromedriver") {
			w.Write(driverZip)
			return
		}
		w.Write(browserZip)
	}))
	defer srv.Close()

	root := t.TempDir()
	p, err := chromeprov.New(
		chromeprov.WithCacheRoot(root),
		chromeprov.WithChannel(meta.URL, "Stable"),
		chromeprov.WithBrowserAttempts([]chromeprov.Attempt{zipAttempt(srv.URL, "chrome")}),
		chromeprov.WithDriverAttempts([]chromeprov.Attempt{zipAttempt(srv.URL, "chromedriver")}),
	)
	require.NoError(t, err)

	rep, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, chromeprov.Version("141.0.0.1"), rep.Version)

	// The identical resolved version templates both artifact kinds.
	paths := reqs.all()
	require.Len(t, paths, 2)
	for _, path := range paths {
		require.Contains(t, path, "/141.0.0.1/linux64/")
	}

	// Driver install root ends up holding the single driver executable.
	entries, err := os.ReadDir(filepath.Join(root, "chromedriver"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "chromedriver", entries[0].Name())
}

func TestRun_ExhaustionScenario(t *testing.T) {
	var reqs requestLog
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs.add(r.URL.Path)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	root := t.TempDir()
	p, err := chromeprov.New(
		chromeprov.WithCacheRoot(root),
		chromeprov.WithPinnedVersion("140.0.7339.185"),
		chromeprov.WithBrowserAttempts([]chromeprov.Attempt{
			zipAttempt(srv.URL, "chrome"),
			{
				Name:        "mirror-zip",
				URLTemplate: srv.URL + "/mirror/{version}/chrome.zip",
				Fetch:       chromeprov.FetchArchive,
				Extract:     chromeprov.ExtractZip,
			},
		}),
	)
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	var ex *chromeprov.ExhaustedError
	require.ErrorAs(t, err, &ex)
	require.Equal(t, chromeprov.KindBrowser, ex.Kind)
	require.Len(t, ex.Attempts, 2, "failure reasons must be recorded per attempt, in order")
	require.Contains(t, ex.Attempts[0].Source, "chrome-linux64.zip")
	require.Contains(t, ex.Attempts[1].Source, "/mirror/")

	// Exhaustion cleanliness: no install root, no staging residue, no
	// pointer record.
	require.NoDirExists(t, filepath.Join(root, "chrome"))
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasPrefix(e.Name(), ".staging-"), "staging residue: %s", e.Name())
		require.False(t, strings.HasPrefix(e.Name(), ".fetch-"), "download residue: %s", e.Name())
	}
	_, err = p.Cache().ResolvedBrowserPath()
	require.ErrorIs(t, err, chromeprov.ErrNoPointer)
}

// A warm cache performs zero network and extraction work and still produces
// a valid pointer record.
func TestRun_IdempotentOnWarmCache(t *testing.T) {
	var reqs requestLog
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs.add(r.URL.Path)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	root := t.TempDir()
	for _, path := range []string{
		filepath.Join(root, "chrome", "chrome-linux64", "chrome"),
		filepath.Join(root, "chromedriver", "chromedriver"),
	} {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("bin"), 0o755))
	}

	p, err := chromeprov.New(
		chromeprov.WithCacheRoot(root),
		chromeprov.WithPinnedVersion("140.0.7339.185"),
		chromeprov.WithBrowserAttempts([]chromeprov.Attempt{zipAttempt(srv.URL, "chrome")}),
		chromeprov.WithDriverAttempts([]chromeprov.Attempt{zipAttempt(srv.URL, "chromedriver")}),
	)
	require.NoError(t, err)

	rep, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, reqs.count(), "warm cache must not touch the network")
	require.Equal(t, chromeprov.StatePublished, rep.Browser.State)
	require.Empty(t, rep.Browser.Attempts)

	got, err := p.Cache().ResolvedBrowserPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "chrome", "chrome-linux64", "chrome"), got)
}

func TestRun_FallbackShortCircuit(t *testing.T) {
	browserZip := zipFixture(t, map[string]string{"chrome-linux64/chrome": "bin"})

	var reqs requestLog
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs.add(r.URL.Path)
		w.Write(browserZip)
	}))
	defer srv.Close()

	p, err := chromeprov.New(
		chromeprov.WithCacheRoot(t.TempDir()),
		chromeprov.WithPinnedVersion("140.0.7339.185"),
		chromeprov.WithBrowserAttempts([]chromeprov.Attempt{
			zipAttempt(srv.URL, "chrome"),
			{
				Name:        "never-reached",
				URLTemplate: srv.URL + "/secondary/{version}/chrome.zip",
				Fetch:       chromeprov.FetchArchive,
				Extract:     chromeprov.ExtractZip,
			},
		}),
		chromeprov.WithoutDriver(),
	)
	require.NoError(t, err)

	rep, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, rep.Browser.Attempts)

	for _, path := range reqs.all() {
		require.NotContains(t, path, "/secondary/", "attempt 2 must never run after attempt 1 succeeds")
	}
}

func TestRun_FallbackAdvancesPastFailure(t *testing.T) {
	deb := debFixture(t, map[string]string{"opt/google/chrome/chrome": "bin"})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".zip") {
			http.NotFound(w, r)
			return
		}
		w.Write(deb)
	}))
	defer srv.Close()

	root := t.TempDir()
	p, err := chromeprov.New(
		chromeprov.WithCacheRoot(root),
		chromeprov.WithPinnedVersion("140.0.7339.185"),
		chromeprov.WithBrowserAttempts([]chromeprov.Attempt{
			zipAttempt(srv.URL, "chrome"),
			{
				Name:        "deb",
				URLTemplate: srv.URL + "/google-chrome-stable_current_amd64.deb",
				Fetch:       chromeprov.FetchPackage,
				Extract:     chromeprov.ExtractDeb,
			},
		}),
		chromeprov.WithoutDriver(),
	)
	require.NoError(t, err)

	rep, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, chromeprov.StatePublished, rep.Browser.State)
	require.Len(t, rep.Browser.Attempts, 1, "the zip failure must be recorded")

	// The package layout is a recognized presence marker.
	require.DirExists(t, filepath.Join(root, "chrome", "opt", "google", "chrome"))
	require.True(t, p.Cache().Present(chromeprov.KindBrowser))
}

// With no resolvable version, versioned attempts are skipped rather than
// tried: the browser falls through to its unversioned strategy and the
// driver (versioned only) degrades to a warning.
func TestRun_UnversionedSkipsVersionedAttempts(t *testing.T) {
	meta := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	meta.Close() // unreachable endpoint

	deb := debFixture(t, map[string]string{"opt/google/chrome/chrome": "bin"})

	var reqs requestLog
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs.add(r.URL.Path)
		if strings.HasSuffix(r.URL.Path, ".deb") {
			w.Write(deb)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	root := t.TempDir()
	p, err := chromeprov.New(
		chromeprov.WithCacheRoot(root),
		chromeprov.WithChannel(meta.URL, "Stable"),
		chromeprov.WithBrowserAttempts([]chromeprov.Attempt{
			zipAttempt(srv.URL, "chrome"), // versioned: must be skipped, not tried
			{
				Name:        "deb",
				URLTemplate: srv.URL + "/google-chrome-stable_current_amd64.deb",
				Fetch:       chromeprov.FetchPackage,
				Extract:     chromeprov.ExtractDeb,
			},
		}),
		chromeprov.WithDriverAttempts([]chromeprov.Attempt{zipAttempt(srv.URL, "chromedriver")}),
	)
	require.NoError(t, err)

	rep, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, chromeprov.Unversioned, rep.Version)
	require.Equal(t, chromeprov.StatePublished, rep.Browser.State)
	require.Empty(t, rep.Browser.Attempts, "skipped attempts are not failures")

	// Only the deb was fetched; the versioned zip URLs were never hit.
	paths := reqs.all()
	require.Len(t, paths, 1)
	require.Contains(t, paths[0], ".deb")

	// The driver degrades: no eligible attempts, run still succeeds.
	require.True(t, rep.DriverDegraded())
	var ex *chromeprov.ExhaustedError
	require.ErrorAs(t, rep.Driver.Err, &ex)
	require.Empty(t, ex.Attempts)
	require.NoDirExists(t, filepath.Join(root, "chromedriver"))
}

// A satisfied driver marker with no locatable binary is an inconsistent
// cache. Unlike chain exhaustion, that must fail the whole run: nothing can
// be safely reasoned about on top of it.
func TestRun_DriverCacheInconsistencyIsFatal(t *testing.T) {
	var reqs requestLog
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs.add(r.URL.Path)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	root := t.TempDir()
	browserBin := filepath.Join(root, "chrome", "chrome-linux64", "chrome")
	require.NoError(t, os.MkdirAll(filepath.Dir(browserBin), 0o755))
	require.NoError(t, os.WriteFile(browserBin, []byte("bin"), 0o755))

	// The driver file exists, so the presence marker is satisfied, but it
	// is not executable, so the binary search cannot accept it.
	driverBin := filepath.Join(root, "chromedriver", "chromedriver")
	require.NoError(t, os.MkdirAll(filepath.Dir(driverBin), 0o755))
	require.NoError(t, os.WriteFile(driverBin, []byte("bin"), 0o644))

	p, err := chromeprov.New(
		chromeprov.WithCacheRoot(root),
		chromeprov.WithPinnedVersion("140.0.7339.185"),
		chromeprov.WithBrowserAttempts([]chromeprov.Attempt{zipAttempt(srv.URL, "chrome")}),
		chromeprov.WithDriverAttempts([]chromeprov.Attempt{zipAttempt(srv.URL, "chromedriver")}),
	)
	require.NoError(t, err)

	rep, err := p.Run(context.Background())
	var ie *chromeprov.IntegrityError
	require.ErrorAs(t, err, &ie)
	require.Equal(t, chromeprov.KindDriver, ie.Kind)
	require.Error(t, rep.Driver.Err)
	require.Zero(t, reqs.count(), "satisfied markers must not trigger any fetch")
}

func TestRun_MalformedPinIsFatal(t *testing.T) {
	p, err := chromeprov.New(
		chromeprov.WithCacheRoot(t.TempDir()),
		chromeprov.WithPinnedVersion("not-a-version"),
	)
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.ErrorIs(t, err, chromeprov.ErrBadVersion)
}
