package chromeprov

import "time"

// State is the provisioning state an artifact kind reached.
type State int

const (
	// StateUnresolved means provisioning has not been attempted.
	StateUnresolved State = iota
	// StateCachedHit means a presence marker was already satisfied and
	// all fetch/extract work was skipped.
	StateCachedHit
	// StateExtracted means a fallback attempt completed fetch+extract
	// and the tree was committed to the install root.
	StateExtracted
	// StatePublished means the entry point was located (and, for the
	// browser, written to the pointer record).
	StatePublished
	// StateExhausted means every eligible attempt failed.
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateCachedHit:
		return "cached"
	case StateExtracted:
		return "extracted"
	case StatePublished:
		return "published"
	case StateExhausted:
		return "exhausted"
	default:
		return "unresolved"
	}
}

// KindReport is the outcome of provisioning one artifact kind.
type KindReport struct {
	Kind        Kind
	State       State
	InstallRoot string
	// EntryPoint is the discovered binary path; empty unless State is
	// StatePublished.
	EntryPoint string
	// Attempts holds the failures recorded before the run succeeded or
	// exhausted the chain.
	Attempts []*AttemptError
	// Err is the terminal error for this kind, if any. A driver
	// *ExhaustedError does not fail the overall run; every other error
	// does.
	Err     error
	Elapsed time.Duration
}

// Report is the outcome of a full provisioning run.
type Report struct {
	// Version the run resolved; Unversioned when dynamic resolution
	// degraded and only versionless strategies were eligible.
	Version Version
	// Pointer is the pointer-record path the launcher should read.
	Pointer string
	Browser KindReport
	Driver  KindReport
}

// DriverDegraded reports whether the driver could not be provisioned while
// the run as a whole still succeeded.
func (r *Report) DriverDegraded() bool {
	return r.Driver.Err != nil
}
