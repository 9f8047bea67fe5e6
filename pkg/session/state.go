package session

type State int

const (
	Initializing State = iota
	Ready
	Resolving
	Submitting
	Merged
	Failed
)

var stateNames = map[State]string{
	Initializing: "initializing",
	Ready:        "ready",
	Resolving:    "resolving",
	Submitting:   "submitting",
	Merged:       "merged",
	Failed:       "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// acceptsDecisions reports whether resolutions may be recorded in s.
func (s State) acceptsDecisions() bool {
	return s == Ready || s == Resolving
}
