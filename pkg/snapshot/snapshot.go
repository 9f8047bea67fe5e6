package snapshot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// New builds a Snapshot from a flat listing. Every invalid record is reported,
// not only the first one.
func New(commitID string, records []FileRecord) (*Snapshot, error) {
	var result *multierror.Error

	index := make(map[string]FileRecord, len(records))
	for i, rec := range records {
		if err := validateRecord(rec); err != nil {
			result = multierror.Append(result, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		if _, exists := index[rec.Path]; exists {
			result = multierror.Append(result, fmt.Errorf("record %d: duplicate path %q", i, rec.Path))
			continue
		}
		index[rec.Path] = rec
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("invalid tree for commit %s: %w", commitID, err)
	}

	return &Snapshot{
		commitID: commitID,
		records:  index,
	}, nil
}

func validateRecord(rec FileRecord) error {
	if err := ValidatePath(rec.Path); err != nil {
		return err
	}
	if rec.Hash == "" {
		return fmt.Errorf("empty hash for %q", rec.Path)
	}
	return nil
}

// ValidatePath checks that p is a non-empty, relative, forward-slash path.
func ValidatePath(p string) error {
	if p == "" {
		return fmt.Errorf("empty path")
	}
	if strings.Contains(p, "\\") {
		return fmt.Errorf("path %q must use forward slashes", p)
	}
	if strings.HasPrefix(p, "/") {
		return fmt.Errorf("path %q must be relative", p)
	}
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "":
			return fmt.Errorf("path %q has an empty segment", p)
		case ".", "..":
			return fmt.Errorf("path %q has a relative segment", p)
		}
	}
	return nil
}

func (s *Snapshot) CommitID() string {
	return s.commitID
}

func (s *Snapshot) Len() int {
	return len(s.records)
}

func (s *Snapshot) Get(path string) (FileRecord, bool) {
	rec, ok := s.records[path]
	return rec, ok
}

func (s *Snapshot) Has(path string) bool {
	_, ok := s.records[path]
	return ok
}

// Records returns a copy of the listing sorted by path.
func (s *Snapshot) Records() []FileRecord {
	out := make([]FileRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Path < out[j].Path
	})
	return out
}

// Paths returns the sorted list of paths.
func (s *Snapshot) Paths() []string {
	out := make([]string, 0, len(s.records))
	for p := range s.records {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Exclude returns a new Snapshot without the paths matching any of patterns.
// The receiver is left untouched.
func (s *Snapshot) Exclude(patterns []string) (*Snapshot, error) {
	if len(patterns) == 0 {
		return s, nil
	}

	kept := make(map[string]FileRecord, len(s.records))
	for p, rec := range s.records {
		excluded, err := IsExcluded(p, patterns)
		if err != nil {
			return nil, fmt.Errorf("failed to check exclude pattern for %s: %w", p, err)
		}
		if !excluded {
			kept[p] = rec
		}
	}

	return &Snapshot{
		commitID: s.commitID,
		records:  kept,
	}, nil
}
