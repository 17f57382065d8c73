package ingest

// State is where one image is in the pipeline
type State int

const (
	StateDiscovered State = iota
	StateHashed
	StateCacheHit
	StateClassifying
	StateClassified
	StateClassificationFailed
	StateFallbackClassified
	StateDryRunRecorded
	StatePublishing
	StatePublished
	StatePublishFailed
	StateReadFailed
)

var stateNames = map[State]string{
	StateDiscovered:           "discovered",
	StateHashed:               "hashed",
	StateCacheHit:             "cache_hit",
	StateClassifying:          "classifying",
	StateClassified:           "classified",
	StateClassificationFailed: "classification_failed",
	StateFallbackClassified:   "fallback_classified",
	StateDryRunRecorded:       "dry_run_recorded",
	StatePublishing:           "publishing",
	StatePublished:            "published",
	StatePublishFailed:        "publish_failed",
	StateReadFailed:           "read_failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal states carry a ledger entry
func (s State) Terminal() bool {
	switch s {
	case StateDryRunRecorded, StatePublished, StatePublishFailed, StateReadFailed:
		return true
	}
	return false
}

// Failed reports whether the terminal state produces a FailureRecord
func (s State) Failed() bool {
	return s == StatePublishFailed || s == StateReadFailed
}
