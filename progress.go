package pixgrid

import "github.com/meigma/pixgrid/internal/pixtype"

// Re-export progress types from the shared types package.
type (
	// ProgressEvent reports a step of loading one image or of a prefetch batch.
	ProgressEvent = pixtype.ProgressEvent

	// ProgressStage identifies a step of a load.
	ProgressStage = pixtype.ProgressStage

	// ProgressFunc receives progress updates.
	// Implementations must be safe for concurrent calls.
	ProgressFunc = pixtype.ProgressFunc
)

// Re-export progress stage constants.
const (
	// StageFetching indicates the payload transfer started.
	StageFetching = pixtype.StageFetching

	// StageDecoding indicates the payload arrived and is being decoded.
	StageDecoding = pixtype.StageDecoding

	// StageCached indicates the image is in the cache.
	StageCached = pixtype.StageCached

	// StageFailed indicates the load failed.
	StageFailed = pixtype.StageFailed

	// StagePrefetch indicates one more prefetch load finished.
	StagePrefetch = pixtype.StagePrefetch
)
