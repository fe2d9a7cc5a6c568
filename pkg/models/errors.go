package models

import "errors"

// Error taxonomy shared across the pipeline. Callers match with errors.Is;
// wrap with fmt.Errorf("...: %w", Err...) to attach detail.
var (
	// ErrInvalidDistribution: an axis has negative/NaN weights, or is empty
	// with no platform default to fall back to.
	ErrInvalidDistribution = errors.New("INVALID_DISTRIBUTION")

	// ErrNoPersonas: a focus group resolves to an empty persona set.
	ErrNoPersonas = errors.New("NO_PERSONAS")

	// ErrIllegalState: run invoked on a focus group that is not pending.
	ErrIllegalState = errors.New("ILLEGAL_STATE")

	// ErrSynthesisFailed: the persona model returned unparseable or
	// incomplete output. Retryable with a fresh seed.
	ErrSynthesisFailed = errors.New("SYNTHESIS_FAILED")

	// ErrExtractionFailed: the concept-extraction model returned unusable
	// output. Retryable; the graph builder falls back to keyword extraction.
	ErrExtractionFailed = errors.New("EXTRACTION_FAILED")

	// ErrEmbeddingUnavailable: the embedding backend is down. Appends still
	// succeed with a null embedding; retrieval degrades to empty context.
	ErrEmbeddingUnavailable = errors.New("EMBEDDING_UNAVAILABLE")

	// ErrPersistenceFailed: a write batch could not be committed.
	ErrPersistenceFailed = errors.New("PERSISTENCE_FAILED")

	// ErrNotFound: entity lookup miss.
	ErrNotFound = errors.New("NOT_FOUND")
)
