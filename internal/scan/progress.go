package scan

// Phase names a pipeline stage reported to a ProgressSink.
type Phase string

const (
	PhaseEnumerating Phase = "enumerating"
	PhaseBucketing   Phase = "bucketing"
	PhaseHashing     Phase = "hashing"
	PhaseGrouping    Phase = "grouping"
	PhaseComplete    Phase = "complete"
)

// ProgressSink observes phase transitions. count is the number of items
// entering the phase (for complete, the number of duplicate groups).
type ProgressSink interface {
	Phase(phase Phase, count int)
}

// ProgressReporter is optionally implemented by a sink that wants per-file
// hashing progress.
type ProgressReporter interface {
	Progress(done, total int)
}

// warner is optionally implemented by a sink that accepts diagnostics.
type warner interface {
	LogWarn(message string)
}

type nopSink struct{}

func (nopSink) Phase(Phase, int) {}
