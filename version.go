package chromeprov

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/rs/zerolog"
)

// DefaultVersionEndpoint is the Chrome-for-Testing metadata document that
// maps release channels to version strings.
const DefaultVersionEndpoint = "https://googlechromelabs.github.io/chrome-for-testing/last-known-good-versions.json"

// DefaultChannel is the release channel resolved when none is configured.
const DefaultChannel = "Stable"

// Version is a concrete Chrome version string such as "140.0.7339.185".
// The zero value is [Unversioned].
type Version string

// Unversioned marks a run where no concrete version could be resolved.
// Version-templated fetch attempts are skipped for such runs, and no
// browser/driver version matching is attempted.
const Unversioned Version = ""

// IsConcrete reports whether v carries a real version string.
func (v Version) IsConcrete() bool { return v != Unversioned }

func (v Version) String() string {
	if v == Unversioned {
		return "unversioned"
	}
	return string(v)
}

// VersionSpec selects the version to provision: either an exact pinned
// string, or a channel name resolved dynamically against a metadata
// endpoint. A pinned value takes precedence when both are set.
type VersionSpec struct {
	Pinned   string
	Endpoint string
	Channel  string
}

var pinnedVersionRe = regexp.MustCompile(`^\d+(\.\d+)+$`)

// channelDoc mirrors the wire shape of the metadata endpoint:
// {"channels":{"Stable":{"version":"141.0.0.1"}}}.
type channelDoc struct {
	Channels map[string]struct {
		Version string `json:"version"`
	} `json:"channels"`
}

// resolver turns a VersionSpec into a Version. Dynamic resolution degrades
// to Unversioned on any failure; only a malformed pinned spec is an error.
type resolver struct {
	client *http.Client
	log    zerolog.Logger
}

func (r *resolver) resolve(ctx context.Context, spec VersionSpec) (Version, error) {
	if spec.Pinned != "" {
		if !pinnedVersionRe.MatchString(spec.Pinned) {
			return Unversioned, fmt.Errorf("%w: %q", ErrBadVersion, spec.Pinned)
		}
		return Version(spec.Pinned), nil
	}

	endpoint := spec.Endpoint
	if endpoint == "" {
		endpoint = DefaultVersionEndpoint
	}
	channel := spec.Channel
	if channel == "" {
		channel = DefaultChannel
	}

	version := r.lookupChannel(ctx, endpoint, channel)
	if !version.IsConcrete() {
		r.log.Warn().
			Str("endpoint", endpoint).
			Str("channel", channel).
			Msg("version resolution failed, falling back to unversioned strategies")
	}
	return version, nil
}

// lookupChannel performs the single metadata query. Every failure mode
// (unreachable endpoint, non-200 status, unparsable body, absent channel
// key) collapses to Unversioned.
func (r *resolver) lookupChannel(ctx context.Context, endpoint, channel string) Version {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Unversioned
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return Unversioned
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Unversioned
	}

	var doc channelDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return Unversioned
	}
	entry, ok := doc.Channels[channel]
	if !ok || entry.Version == "" {
		return Unversioned
	}

	r.log.Debug().Str("channel", channel).Str("version", entry.Version).Msg("resolved channel version")
	return Version(entry.Version)
}
