package classifier

import (
	"fmt"
	"sort"

	"github.com/plectr/reconcile/pkg/snapshot"
)

// Classify diffs the local tree against the remote tree. It performs no I/O.
func Classify(local, remote *snapshot.Snapshot) Classification {
	remoteRecords := remote.Records()
	remoteMap := make(map[string]snapshot.FileRecord, len(remoteRecords))
	for _, rec := range remoteRecords {
		remoteMap[rec.Path] = rec
	}

	result := Classification{
		LocalCommitID:   local.CommitID(),
		RemoteCommitID:  remote.CommitID(),
		Conflicts:       []Conflict{},
		Additions:       []Addition{},
		RemoteAdditions: []Addition{},
	}

	for _, localRec := range local.Records() {
		remoteRec, exists := remoteMap[localRec.Path]
		if !exists {
			result.Additions = append(result.Additions, Addition{
				Path: localRec.Path,
				Hash: localRec.Hash,
				Size: localRec.Size,
			})
			continue
		}

		if localRec.Hash != remoteRec.Hash {
			result.Conflicts = append(result.Conflicts, Conflict{
				Path:       localRec.Path,
				LocalHash:  localRec.Hash,
				RemoteHash: remoteRec.Hash,
				Size:       localRec.Size,
				RemoteSize: remoteRec.Size,
			})
		} else {
			result.Unchanged++
		}
	}

	for _, remoteRec := range remoteRecords {
		if !local.Has(remoteRec.Path) {
			result.RemoteAdditions = append(result.RemoteAdditions, Addition{
				Path: remoteRec.Path,
				Hash: remoteRec.Hash,
				Size: remoteRec.Size,
			})
		}
	}

	sortClassification(&result)
	return result
}

// ClassifyWithOptions drops excluded paths from both trees before classifying.
func ClassifyWithOptions(local, remote *snapshot.Snapshot, opts Options) (Classification, error) {
	filteredLocal, err := local.Exclude(opts.Excludes)
	if err != nil {
		return Classification{}, fmt.Errorf("failed to filter local tree: %w", err)
	}
	filteredRemote, err := remote.Exclude(opts.Excludes)
	if err != nil {
		return Classification{}, fmt.Errorf("failed to filter remote tree: %w", err)
	}
	return Classify(filteredLocal, filteredRemote), nil
}

// ConflictPaths returns the conflicting paths in display order.
func (c Classification) ConflictPaths() []string {
	paths := make([]string, len(c.Conflicts))
	for i, conflict := range c.Conflicts {
		paths[i] = conflict.Path
	}
	return paths
}

func (c Classification) Conflict(path string) (Conflict, bool) {
	for _, conflict := range c.Conflicts {
		if conflict.Path == path {
			return conflict, true
		}
	}
	return Conflict{}, false
}

// IsEmpty reports whether the local tree brings nothing the remote lacks.
func (c Classification) IsEmpty() bool {
	return len(c.Conflicts) == 0 && len(c.Additions) == 0
}

func (c Classification) Summary() Summary {
	s := Summary{
		Conflicts:       len(c.Conflicts),
		Additions:       len(c.Additions),
		RemoteAdditions: len(c.RemoteAdditions),
		Unchanged:       c.Unchanged,
	}
	for _, conflict := range c.Conflicts {
		s.ConflictBytes += conflict.Size
	}
	for _, addition := range c.Additions {
		s.AdditionBytes += addition.Size
	}
	return s
}

func sortClassification(result *Classification) {
	sort.Slice(result.Conflicts, func(i, j int) bool {
		return result.Conflicts[i].Path < result.Conflicts[j].Path
	})
	sortAdditions := func(items []Addition) {
		sort.Slice(items, func(i, j int) bool {
			return items[i].Path < items[j].Path
		})
	}
	sortAdditions(result.Additions)
	sortAdditions(result.RemoteAdditions)
}
