package snapshot

// FileRecord is one entry of a commit's file listing.
type FileRecord struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
	Size uint64 `json:"size"`
}

// Snapshot is an immutable path-indexed view of a commit's file listing.
type Snapshot struct {
	commitID string
	records  map[string]FileRecord
}
