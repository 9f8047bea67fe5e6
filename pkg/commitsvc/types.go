// Package commitsvc is the boundary to the commit/tree service that owns
// repository history.
package commitsvc

import (
	"context"
	"errors"
	"fmt"

	"github.com/plectr/reconcile/pkg/snapshot"
)

// ErrRejected is matched by errors returned from SubmitMerge when the service
// answered but refused the merge.
var ErrRejected = errors.New("merge rejected by commit service")

// Head is the current non-divergent head of a repository. Empty is true for a
// repository with no commits, in which case CommitID is "".
type Head struct {
	CommitID string
	Message  string
	Empty    bool
}

type MergeRequest struct {
	Repo              string
	DivergentCommitID string
	RemoteCommitID    string
	// Decisions maps conflicted paths to the hash chosen for the merged tree.
	Decisions map[string]string
}

type MergeResult struct {
	CommitID string
}

// Service is what a reconciliation needs from the commit service.
type Service interface {
	GetHead(ctx context.Context, repo string) (Head, error)
	GetTree(ctx context.Context, repo, commitID string) ([]snapshot.FileRecord, error)
	SubmitMerge(ctx context.Context, req MergeRequest) (MergeResult, error)
}

// StatusError is returned for any non-2xx response. Only a 4xx answer to a
// merge matches ErrRejected.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	rejected   bool
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return e.rejected && target == ErrRejected
}
