package domain

import "errors"

// Sentinel errors, one per collaborator. Adapters wrap the underlying cause
// with one of these so callers can decide between degrading and aborting.
var (
	ErrTranslation = errors.New("translation failed")
	ErrRecognition = errors.New("speech recognition failed")
	ErrSynthesis   = errors.New("speech synthesis failed")
	ErrModel       = errors.New("model call failed")
	ErrIndex       = errors.New("vector index failed")
	ErrStorage     = errors.New("storage failed")
	ErrIngestion   = errors.New("document ingestion failed")
	ErrValidation  = errors.New("validation error")
)
