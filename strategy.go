package chromeprov

import "strings"

// Kind identifies one of the two artifacts in the provisioned pair.
type Kind int

const (
	// KindBrowser is the headless browser runtime. It is required:
	// provisioning fails if no fallback attempt can supply it.
	KindBrowser Kind = iota

	// KindDriver is the matching automation driver. It is optional:
	// a driver failure degrades to a warning.
	KindDriver
)

func (k Kind) String() string {
	switch k {
	case KindBrowser:
		return "browser"
	case KindDriver:
		return "driver"
	default:
		return "unknown"
	}
}

// binaryName is the basename the entry-point search looks for.
func (k Kind) binaryName() string {
	switch k {
	case KindDriver:
		return "chromedriver"
	default:
		return "chrome"
	}
}

// Platform identifies the target OS/architecture in the terms the artifact
// sources use.
type Platform struct {
	// Slug is the Chrome-for-Testing platform directory, e.g. "linux64".
	Slug string
	// DebArch is the Debian architecture suffix, e.g. "amd64".
	DebArch string
}

// Linux64 is the default platform: 64-bit x86 Linux.
var Linux64 = Platform{Slug: "linux64", DebArch: "amd64"}

// FetchMethod selects how an attempt retrieves its artifact.
type FetchMethod int

const (
	// FetchArchive downloads a plain archive over HTTP.
	FetchArchive FetchMethod = iota
	// FetchPackage downloads an OS package (Debian .deb) over HTTP.
	FetchPackage
	// FetchManaged delegates the download to the go-rod launcher, which
	// retrieves a known-good Chromium snapshot into the cache.
	FetchManaged
)

// ExtractMethod selects how a fetched artifact is unpacked.
type ExtractMethod int

const (
	// ExtractZip unpacks a zip archive.
	ExtractZip ExtractMethod = iota
	// ExtractDeb unpacks the data payload of a Debian package.
	ExtractDeb
	// ExtractNone leaves the fetched tree as-is (managed downloads
	// arrive already unpacked).
	ExtractNone
)

// Template placeholders substituted when building a concrete source locator.
const (
	placeholderVersion  = "{version}"
	placeholderPlatform = "{platform}"
)

// Attempt is one entry in a fallback chain: a parameterized source plus the
// fetch and extract methods that realize it. Attempts are tried strictly in
// declared order; the first one to complete without error wins.
type Attempt struct {
	// Name labels the attempt in logs and failure reasons.
	Name string
	// URLTemplate is the source locator, parameterized by {version} and
	// {platform}. Empty for managed attempts.
	URLTemplate string
	Fetch       FetchMethod
	Extract     ExtractMethod
}

// needsVersion reports whether the attempt can only run with a concrete
// resolved version.
func (a Attempt) needsVersion() bool {
	return strings.Contains(a.URLTemplate, placeholderVersion)
}

// eligible reports whether the attempt may run for the given version.
// Version-templated attempts are skipped, not failed, when the run is
// unversioned.
func (a Attempt) eligible(v Version) bool {
	return !a.needsVersion() || v.IsConcrete()
}

// source builds the concrete locator for the attempt.
func (a Attempt) source(v Version, p Platform) string {
	s := strings.ReplaceAll(a.URLTemplate, placeholderVersion, string(v))
	return strings.ReplaceAll(s, placeholderPlatform, p.Slug)
}

const ctfBucket = "https://storage.googleapis.com/chrome-for-testing-public"

// DefaultBrowserAttempts returns the standard browser fallback chain for
// the platform: the Chrome-for-Testing archive for the resolved version,
// then the current stable Debian package, then a managed Chromium download.
func DefaultBrowserAttempts(p Platform) []Attempt {
	return []Attempt{
		{
			Name:        "chrome-for-testing-zip",
			URLTemplate: ctfBucket + "/{version}/{platform}/chrome-{platform}.zip",
			Fetch:       FetchArchive,
			Extract:     ExtractZip,
		},
		{
			Name:        "google-chrome-stable-deb",
			URLTemplate: "https://dl.google.com/linux/direct/google-chrome-stable_current_" + p.DebArch + ".deb",
			Fetch:       FetchPackage,
			Extract:     ExtractDeb,
		},
		{
			Name:    "rod-managed-chromium",
			Fetch:   FetchManaged,
			Extract: ExtractNone,
		},
	}
}

// DefaultDriverAttempts returns the standard driver fallback chain. Only a
// versioned source exists for chromedriver, so an unversioned run has no
// eligible driver attempts and the driver is skipped with a warning.
func DefaultDriverAttempts(p Platform) []Attempt {
	return []Attempt{
		{
			Name:        "chromedriver-zip",
			URLTemplate: ctfBucket + "/{version}/{platform}/chromedriver-{platform}.zip",
			Fetch:       FetchArchive,
			Extract:     ExtractZip,
		},
	}
}
