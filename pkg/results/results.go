package results

type Reason string

const (
	// ReasonUnknown is default reason. Occurrences of this reason indicate a
	// failure to identify the reason for an error somewhere.
	ReasonUnknown Reason = "unknown"

	// ReasonNoSnapshot means nothing was downloaded into the data directory yet.
	ReasonNoSnapshot Reason = "no_snapshot"
	// ReasonLoadingSnapshot covers reading or decoding a snapshot file.
	ReasonLoadingSnapshot Reason = "loading_snapshot"
	// ReasonFetchingSnapshot covers requesting the build tree from Jenkins.
	ReasonFetchingSnapshot Reason = "fetching_snapshot"
	// ReasonParsingDuration marks durations in neither supported format.
	ReasonParsingDuration Reason = "parsing_duration"
	// ReasonReadingArtifact covers I/O errors on present artifacts.
	ReasonReadingArtifact Reason = "reading_artifact"
	// ReasonWritingArtifact covers persisting snapshots and artifacts.
	ReasonWritingArtifact Reason = "writing_artifact"
	// ReasonLoadingRules covers user supplied classification rules.
	ReasonLoadingRules Reason = "loading_rules"
)
