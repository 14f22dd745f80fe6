package pixtype

// ProgressEvent reports a step of loading one image or of a prefetch batch.
type ProgressEvent struct {
	// Stage identifies the step.
	Stage ProgressStage

	// Index is the logical index concerned. Zero for StagePrefetch.
	Index int

	// Bytes is the payload size, once known.
	Bytes int

	// Done and Total count finished and requested loads during a prefetch.
	Done, Total int

	// Err is set for StageFailed.
	Err error
}

// ProgressStage identifies a step of a load.
type ProgressStage uint8

// Load stages.
const (
	// StageFetching indicates the payload transfer started.
	StageFetching ProgressStage = iota

	// StageDecoding indicates the payload arrived and is being decoded.
	StageDecoding

	// StageCached indicates the image is in the cache.
	StageCached

	// StageFailed indicates the load failed.
	StageFailed

	// StagePrefetch indicates one more prefetch load finished.
	StagePrefetch
)

func (s ProgressStage) String() string {
	switch s {
	case StageFetching:
		return "fetching"
	case StageDecoding:
		return "decoding"
	case StageCached:
		return "cached"
	case StageFailed:
		return "failed"
	case StagePrefetch:
		return "prefetch"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates.
// Implementations must be safe for concurrent calls.
type ProgressFunc func(ProgressEvent)
