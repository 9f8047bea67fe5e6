// Package session drives one reconciliation of a divergent commit against the
// current remote head: classification, per-path decisions and the final merge.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/plectr/reconcile/pkg/blobstore"
	"github.com/plectr/reconcile/pkg/classifier"
	"github.com/plectr/reconcile/pkg/commitsvc"
	"github.com/plectr/reconcile/pkg/fetcher"
	"github.com/plectr/reconcile/pkg/ledger"
	"github.com/plectr/reconcile/pkg/logger"
	"github.com/plectr/reconcile/pkg/snapshot"
)

// ResolveFunc turns both sides of a conflict into the merged content.
type ResolveFunc func(ctx context.Context, pair *fetcher.Pair) ([]byte, error)

type Config struct {
	Repo          string
	LocalCommitID string
	Service       commitsvc.Service
	Blobs         blobstore.Store
	// Hasher, when set, is used to verify fetched blobs against their hash.
	Hasher blobstore.Hasher
	Logger logger.Logger
}

type Session struct {
	id      string
	cfg     Config
	fetcher *fetcher.Fetcher
	log     logger.Logger

	mu             sync.Mutex
	state          State
	err            error
	started        bool
	localTree      *snapshot.Snapshot
	remoteCommitID string
	class          classifier.Classification
	conflictPaths  []string
	ledger         *ledger.Ledger
	mergedCommitID string
}

func New(cfg Config) (*Session, error) {
	switch {
	case cfg.Repo == "":
		return nil, errors.New("session: repository name is required")
	case cfg.LocalCommitID == "":
		return nil, errors.New("session: divergent commit id is required")
	case cfg.Service == nil:
		return nil, errors.New("session: commit service is required")
	case cfg.Blobs == nil:
		return nil, errors.New("session: blob store is required")
	}

	if cfg.Logger == nil {
		cfg.Logger = &logger.NullLogger{}
	}

	var opts []fetcher.Option
	if cfg.Hasher != nil {
		opts = append(opts, fetcher.WithVerification(cfg.Hasher))
	}

	return &Session{
		id:      uuid.NewString(),
		cfg:     cfg,
		fetcher: fetcher.New(cfg.Blobs, opts...),
		log:     cfg.Logger,
		state:   Initializing,
	}, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) LocalCommitID() string {
	return s.cfg.LocalCommitID
}

func (s *Session) RemoteCommitID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteCommitID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that moved the session to Failed, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) Classification() classifier.Classification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.class
}

// Decisions returns a copy of the recorded resolutions.
func (s *Session) Decisions() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger == nil {
		return map[string]string{}
	}
	return s.ledger.Snapshot()
}

func (s *Session) MergedCommitID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mergedCommitID
}

// setState must be called with s.mu held.
func (s *Session) setState(to State) {
	if s.state == to {
		return
	}
	s.log.Transition(s.id, s.state.String(), to.String())
	s.state = to
}

// fail must be called with s.mu held.
func (s *Session) fail(operation string, err error) error {
	s.err = err
	s.setState(Failed)
	s.log.Error(operation, "", err)
	return err
}

// Initialize fetches the remote head and both trees and classifies them. It
// may only be called once; on failure the session must be discarded.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.state != Initializing {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: initialize called in state %s", ErrInvalidState, state)
	}
	s.started = true
	s.mu.Unlock()

	remoteCommitID, err := s.fetchHead(ctx)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.fail("initialize", err)
	}

	var local, remote *snapshot.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		local, err = s.fetchTree(gctx, s.cfg.LocalCommitID)
		return err
	})
	g.Go(func() error {
		var err error
		remote, err = s.fetchTree(gctx, remoteCommitID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.fail("initialize", err)
	}

	// Every differing path must be decided, so no exclude patterns apply here.
	class := classifier.Classify(local, remote)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.localTree = local
	s.remoteCommitID = remoteCommitID
	s.class = class
	s.conflictPaths = class.ConflictPaths()
	s.ledger = ledger.New(s.conflictPaths)
	s.setState(Ready)
	s.log.Debug("session %s: %d conflicts, %d additions, %d remote additions, %d unchanged",
		s.id, len(class.Conflicts), len(class.Additions), len(class.RemoteAdditions), class.Unchanged)
	return nil
}

func (s *Session) fetchHead(ctx context.Context) (string, error) {
	head, err := s.cfg.Service.GetHead(ctx, s.cfg.Repo)
	if err != nil {
		return "", fmt.Errorf("%w: head of %s: %w", ErrUnreachableDependency, s.cfg.Repo, err)
	}
	if head.Empty || head.CommitID == "" {
		return "", fmt.Errorf("%w: repository %s has no head commit", ErrUnreachableDependency, s.cfg.Repo)
	}
	return head.CommitID, nil
}

func (s *Session) fetchTree(ctx context.Context, commitID string) (*snapshot.Snapshot, error) {
	records, err := s.cfg.Service.GetTree(ctx, s.cfg.Repo, commitID)
	if err != nil {
		return nil, fmt.Errorf("%w: tree %s: %w", ErrUnreachableDependency, commitID, err)
	}
	snap, err := snapshot.New(commitID, records)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachableDependency, err)
	}
	return snap, nil
}

func (s *Session) conflict(path string) (classifier.Conflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.acceptsDecisions() {
		return classifier.Conflict{}, fmt.Errorf("%w: %s", ErrInvalidState, s.state)
	}
	c, ok := s.class.Conflict(path)
	if !ok {
		return classifier.Conflict{}, fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	return c, nil
}

// Record stores hash as the resolution for a conflicted path. Recording the
// same path again overwrites the earlier decision.
func (s *Session) Record(path, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.acceptsDecisions() {
		return fmt.Errorf("%w: record in state %s", ErrInvalidState, s.state)
	}
	return s.record(path, hash)
}

// record must be called with s.mu held.
func (s *Session) record(path, hash string) error {
	if err := s.ledger.Record(path, hash); err != nil {
		return err
	}
	s.setState(Resolving)
	s.log.Resolved(s.id, path, hash)
	return nil
}

// take records one side of the current conflict for path. The lookup and the
// record share the lock so a concurrent Rebase cannot slip in between.
func (s *Session) take(path string, side func(classifier.Conflict) string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.acceptsDecisions() {
		return fmt.Errorf("%w: record in state %s", ErrInvalidState, s.state)
	}
	c, ok := s.class.Conflict(path)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	return s.record(path, side(c))
}

// TakeLocal resolves path to the divergent commit's content.
func (s *Session) TakeLocal(path string) error {
	return s.take(path, func(c classifier.Conflict) string { return c.LocalHash })
}

// TakeRemote resolves path to the remote head's content.
func (s *Session) TakeRemote(path string) error {
	return s.take(path, func(c classifier.Conflict) string { return c.RemoteHash })
}

// RecordContent stores data in the blob store and records its hash for path.
func (s *Session) RecordContent(ctx context.Context, path string, data []byte) (string, error) {
	if _, err := s.conflict(path); err != nil {
		return "", err
	}
	hash, err := s.cfg.Blobs.Put(ctx, data)
	if err != nil {
		s.log.Error("put blob", path, err)
		return "", fmt.Errorf("failed to store resolution for %s: %w", path, err)
	}
	if err := s.Record(path, hash); err != nil {
		return "", err
	}
	return hash, nil
}

// FetchPair retrieves both sides of a conflicted path.
func (s *Session) FetchPair(ctx context.Context, path string) (*fetcher.Pair, error) {
	c, err := s.conflict(path)
	if err != nil {
		return nil, err
	}
	pair, err := s.fetcher.FetchPair(ctx, path, c.LocalHash, c.RemoteHash)
	if err != nil {
		s.log.Error("fetch pair", path, err)
		return nil, err
	}
	return pair, nil
}

// Resolve fetches both sides of path, hands them to resolve and records the
// result. A result identical to one side reuses that side's hash.
func (s *Session) Resolve(ctx context.Context, path string, resolve ResolveFunc) (string, error) {
	pair, err := s.FetchPair(ctx, path)
	if err != nil {
		return "", err
	}

	merged, err := resolve(ctx, pair)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	var hash string
	switch {
	case bytes.Equal(merged, pair.Local):
		hash = pair.LocalHash
	case bytes.Equal(merged, pair.Remote):
		hash = pair.RemoteHash
	default:
		return s.RecordContent(ctx, path, merged)
	}
	if err := s.Record(path, hash); err != nil {
		return "", err
	}
	return hash, nil
}

// NextUnresolved returns the first unresolved conflict after the given path,
// wrapping around. after may be "" to start from the beginning.
func (s *Session) NextUnresolved(after string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger == nil {
		return "", false
	}
	return s.ledger.NextUnresolved(s.conflictPaths, after)
}

func (s *Session) Unresolved() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger == nil {
		return nil
	}
	return s.ledger.Unresolved(s.conflictPaths)
}

// IsComplete reports whether every conflict has a recorded resolution.
func (s *Session) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger != nil && s.ledger.IsComplete(s.conflictPaths)
}

// Submit sends the merge to the commit service exactly once. Any failure
// moves the session to Failed with ErrMergeRejected and keeps the decisions.
func (s *Session) Submit(ctx context.Context) (string, error) {
	s.mu.Lock()
	if !s.state.acceptsDecisions() {
		state := s.state
		s.mu.Unlock()
		return "", fmt.Errorf("%w: submit in state %s", ErrInvalidState, state)
	}
	if !s.ledger.IsComplete(s.conflictPaths) {
		unresolved := len(s.ledger.Unresolved(s.conflictPaths))
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %d of %d", ErrIncomplete, unresolved, len(s.conflictPaths))
	}
	req := commitsvc.MergeRequest{
		Repo:              s.cfg.Repo,
		DivergentCommitID: s.cfg.LocalCommitID,
		RemoteCommitID:    s.remoteCommitID,
		Decisions:         s.ledger.Snapshot(),
	}
	s.setState(Submitting)
	s.mu.Unlock()

	res, err := s.cfg.Service.SubmitMerge(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		outcome := OutcomeUnknown
		if errors.Is(err, commitsvc.ErrRejected) && ctx.Err() == nil {
			outcome = OutcomeRejected
		}
		return "", s.fail("submit", &MergeError{Outcome: outcome, Err: err})
	}
	if res.CommitID == "" {
		return "", s.fail("submit", &MergeError{
			Outcome: OutcomeUnknown,
			Err:     errors.New("commit service did not return a commit id"),
		})
	}

	s.mergedCommitID = res.CommitID
	s.err = nil
	s.setState(Merged)
	s.log.Submitted(s.id, res.CommitID, len(req.Decisions))
	return res.CommitID, nil
}

// Rebase re-reads the remote head and reclassifies the same local tree
// against it. Decisions for paths that still conflict are kept; the paths
// whose decisions were dropped are returned.
func (s *Session) Rebase(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	switch {
	case s.localTree == nil:
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: rebase before a successful initialize", ErrInvalidState)
	case s.state == Submitting || s.state == Merged:
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: rebase in state %s", ErrInvalidState, state)
	}
	local := s.localTree
	s.mu.Unlock()

	remoteCommitID, err := s.fetchHead(ctx)
	var remote *snapshot.Snapshot
	if err == nil {
		remote, err = s.fetchTree(ctx, remoteCommitID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		return nil, s.fail("rebase", err)
	}

	class := classifier.Classify(local, remote)
	paths := class.ConflictPaths()
	retained, dropped := s.ledger.Retain(paths)

	s.remoteCommitID = remoteCommitID
	s.class = class
	s.conflictPaths = paths
	s.ledger = retained
	s.err = nil
	if retained.Len() > 0 {
		s.setState(Resolving)
	} else {
		s.setState(Ready)
	}
	s.log.Debug("session %s rebased onto %s: %d conflicts, %d decisions dropped",
		s.id, remoteCommitID, len(paths), len(dropped))
	return dropped, nil
}
