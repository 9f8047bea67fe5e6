package classifier

// Conflict is a path present in both trees with differing content hashes.
type Conflict struct {
	Path       string `json:"path"`
	LocalHash  string `json:"local_hash"`
	RemoteHash string `json:"remote_hash"`
	Size       uint64 `json:"size"`
	RemoteSize uint64 `json:"remote_size"`
}

// Addition is a path present in exactly one of the two trees.
type Addition struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
	Size uint64 `json:"size"`
}

// Classification is the read-only result of comparing a local and a remote tree.
//
// RemoteAdditions are informational: the commit service carries remote-only
// paths into the merged tree, so they never need a decision.
type Classification struct {
	LocalCommitID   string     `json:"local_commit_id"`
	RemoteCommitID  string     `json:"remote_commit_id"`
	Conflicts       []Conflict `json:"conflicts"`
	Additions       []Addition `json:"additions"`
	RemoteAdditions []Addition `json:"remote_additions"`
	Unchanged       int        `json:"unchanged"`
}

type Options struct {
	Excludes []string
}

type Summary struct {
	Conflicts       int
	Additions       int
	RemoteAdditions int
	Unchanged       int
	ConflictBytes   uint64
	AdditionBytes   uint64
}
