package session

import (
	"errors"
	"fmt"

	"github.com/plectr/reconcile/pkg/fetcher"
	"github.com/plectr/reconcile/pkg/ledger"
)

var (
	// ErrUnreachableDependency means the commit service could not supply the
	// head or a tree. The session is failed and must be replaced.
	ErrUnreachableDependency = errors.New("unreachable dependency")
	// ErrMergeRejected means submission did not produce an acknowledged
	// merge. Decisions are kept so the caller can Rebase and retry.
	ErrMergeRejected = errors.New("merge rejected")

	ErrBlobUnavailable = fetcher.ErrBlobUnavailable
	ErrInvalidPath     = ledger.ErrInvalidPath
	ErrEmptyHash       = ledger.ErrEmptyHash
	// ErrUnknownConflict is returned by the helpers that look a conflict up
	// by path.
	ErrUnknownConflict = ErrInvalidPath

	ErrIncomplete   = errors.New("conflicts remain unresolved")
	ErrInvalidState = errors.New("operation not allowed in current state")
)

type Outcome int

const (
	// OutcomeRejected means the service answered and refused the merge.
	OutcomeRejected Outcome = iota
	// OutcomeUnknown means the merge may or may not have been applied; the
	// caller must re-query the repository head.
	OutcomeUnknown
)

func (o Outcome) String() string {
	if o == OutcomeUnknown {
		return "unknown"
	}
	return "rejected"
}

// MergeError describes a failed submission. It matches ErrMergeRejected and
// the underlying cause.
type MergeError struct {
	Outcome Outcome
	Err     error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("%s (outcome %s): %v", ErrMergeRejected, e.Outcome, e.Err)
}

func (e *MergeError) Unwrap() []error {
	return []error{ErrMergeRejected, e.Err}
}
