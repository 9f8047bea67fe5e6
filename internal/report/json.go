package report

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/plectr/reconcile/pkg/classifier"
)

// PlanResult is the JSON form of a classification.
type PlanResult struct {
	LocalCommitID  string      `json:"local_commit_id"`
	RemoteCommitID string      `json:"remote_commit_id"`
	Files          []PlanFile  `json:"files"`
	Summary        PlanSummary `json:"summary"`
}

type PlanFile struct {
	Action     string `json:"action"` // "conflict", "add", "remote-add"
	Path       string `json:"path"`
	LocalHash  string `json:"local_hash,omitempty"`
	RemoteHash string `json:"remote_hash,omitempty"`
	Size       uint64 `json:"size"`
}

type PlanSummary struct {
	Conflicts       int `json:"conflicts"`
	Additions       int `json:"additions"`
	RemoteAdditions int `json:"remote_additions"`
	Unchanged       int `json:"unchanged"`
}

// MergeResult is the JSON form of a merge attempt.
type MergeResult struct {
	Status         string     `json:"status"` // "merged", "dryrun", "incomplete", "failed"
	CommitID       string     `json:"commit_id,omitempty"`
	RemoteCommitID string     `json:"remote_commit_id"`
	Decisions      []Decision `json:"decisions"`
	Unresolved     []string   `json:"unresolved"`
	Dropped        []string   `json:"dropped"`
	Error          string     `json:"error,omitempty"`
}

type Decision struct {
	Path   string `json:"path"`
	Hash   string `json:"hash"`
	Source string `json:"source"` // "local", "remote", "content"
}

// NewPlanResult converts a classification into its JSON form.
func NewPlanResult(c classifier.Classification) PlanResult {
	plan := PlanResult{
		LocalCommitID:  c.LocalCommitID,
		RemoteCommitID: c.RemoteCommitID,
		Files:          []PlanFile{},
	}

	for _, conflict := range c.Conflicts {
		plan.Files = append(plan.Files, PlanFile{
			Action:     "conflict",
			Path:       conflict.Path,
			LocalHash:  conflict.LocalHash,
			RemoteHash: conflict.RemoteHash,
			Size:       conflict.Size,
		})
	}
	for _, add := range c.Additions {
		plan.Files = append(plan.Files, PlanFile{Action: "add", Path: add.Path, LocalHash: add.Hash, Size: add.Size})
	}
	for _, add := range c.RemoteAdditions {
		plan.Files = append(plan.Files, PlanFile{Action: "remote-add", Path: add.Path, RemoteHash: add.Hash, Size: add.Size})
	}

	plan.Summary = PlanSummary{
		Conflicts:       len(c.Conflicts),
		Additions:       len(c.Additions),
		RemoteAdditions: len(c.RemoteAdditions),
		Unchanged:       c.Unchanged,
	}
	return plan
}

// NewDecisions labels each decision with the side it came from.
func NewDecisions(c classifier.Classification, decisions map[string]string) []Decision {
	out := []Decision{}
	for _, conflict := range c.Conflicts {
		hash, ok := decisions[conflict.Path]
		if !ok {
			continue
		}
		source := "content"
		switch hash {
		case conflict.LocalHash:
			source = "local"
		case conflict.RemoteHash:
			source = "remote"
		}
		out = append(out, Decision{Path: conflict.Path, Hash: hash, Source: source})
	}
	return out
}

// WriteJSON writes v as indented JSON to path.
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}
