package chromeprov

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by the package.
var (
	// ErrBadVersion is returned when a pinned version string is malformed.
	ErrBadVersion = errors.New("chromeprov: malformed pinned version")

	// ErrNoPointer is returned when the pointer record does not exist.
	ErrNoPointer = errors.New("chromeprov: pointer record not found")
)

// AttemptError records the failure of a single fetch/extract attempt.
type AttemptError struct {
	// Source is the concrete locator the attempt fetched from, or the
	// attempt name for strategies without a URL.
	Source string
	Err    error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

// ExhaustedError is returned when every eligible fallback attempt for an
// artifact kind failed. Attempts holds the per-attempt failures in the
// order they were tried; it is empty when no attempt was eligible at all.
type ExhaustedError struct {
	Kind     Kind
	Attempts []*AttemptError
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("chromeprov: no eligible fetch attempts for %s", e.Kind)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "chromeprov: all %d fetch attempts for %s failed:", len(e.Attempts), e.Kind)
	for i, a := range e.Attempts {
		fmt.Fprintf(&b, " [%d] %v;", i+1, a)
	}
	return strings.TrimSuffix(b.String(), ";")
}

// IntegrityError is returned when a presence marker for an artifact kind is
// satisfied but no binary can be located under the install root. It always
// aborts the run: a cache in this state cannot be reasoned about safely.
type IntegrityError struct {
	Kind Kind
	Root string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("chromeprov: %s marked installed under %s but no %s binary found",
		e.Kind, e.Root, e.Kind.binaryName())
}
