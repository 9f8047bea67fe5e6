package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/plectr/reconcile/pkg/commitsvc"
	"github.com/plectr/reconcile/pkg/snapshot"
)

// fakeService is an in-memory commit service. It rejects merges whose remote
// commit id is not the current head, like the real service does when the
// head moves during resolution.
type fakeService struct {
	mu      sync.Mutex
	head    string
	trees   map[string][]snapshot.FileRecord
	merges  []commitsvc.MergeRequest
	headErr error
	treeErr map[string]error

	submitFunc func(ctx context.Context, req commitsvc.MergeRequest) (commitsvc.MergeResult, error)
}

func newFakeService(head string, trees map[string][]snapshot.FileRecord) *fakeService {
	return &fakeService{head: head, trees: trees, treeErr: map[string]error{}}
}

func (f *fakeService) advance(head string, tree []snapshot.FileRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head = head
	f.trees[head] = tree
}

func (f *fakeService) GetHead(ctx context.Context, repo string) (commitsvc.Head, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headErr != nil {
		return commitsvc.Head{}, f.headErr
	}
	if f.head == "" {
		return commitsvc.Head{Empty: true}, nil
	}
	return commitsvc.Head{CommitID: f.head}, nil
}

func (f *fakeService) GetTree(ctx context.Context, repo, commitID string) ([]snapshot.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.treeErr[commitID]; err != nil {
		return nil, err
	}
	tree, ok := f.trees[commitID]
	if !ok {
		return nil, fmt.Errorf("commit %s not found", commitID)
	}
	return append([]snapshot.FileRecord(nil), tree...), nil
}

func (f *fakeService) SubmitMerge(ctx context.Context, req commitsvc.MergeRequest) (commitsvc.MergeResult, error) {
	f.mu.Lock()
	f.merges = append(f.merges, req)
	submit := f.submitFunc
	head := f.head
	f.mu.Unlock()

	if submit != nil {
		return submit(ctx, req)
	}
	if req.RemoteCommitID != head {
		return commitsvc.MergeResult{}, fmt.Errorf("%w: head is %s", commitsvc.ErrRejected, head)
	}
	return commitsvc.MergeResult{CommitID: "merged-" + req.DivergentCommitID}, nil
}

func (f *fakeService) submitted() []commitsvc.MergeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]commitsvc.MergeRequest(nil), f.merges...)
}

type transitionCall struct {
	from string
	to   string
}

// mockLogger is a mock implementation of logger.Logger for testing
type mockLogger struct {
	mu          sync.Mutex
	transitions []transitionCall
	resolved    []string
	submitted   []string
	errorCalls  []string
	// events holds resolutions and debug lines in the order they happened.
	events []string
}

func (m *mockLogger) Transition(session, from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, transitionCall{from: from, to: to})
}

func (m *mockLogger) Resolved(session, path, hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved = append(m.resolved, path)
	m.events = append(m.events, "resolved "+path+" "+hash)
}

func (m *mockLogger) Submitted(session, commitID string, decisions int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, commitID)
}

func (m *mockLogger) Error(operation, path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCalls = append(m.errorCalls, operation)
}

func (m *mockLogger) Debug(format string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, fmt.Sprintf(format, args...))
}

func (m *mockLogger) trail() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

func (m *mockLogger) states() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.transitions))
	for _, t := range m.transitions {
		out = append(out, t.to)
	}
	return out
}
