package models

import "errors"

// Error kinds surfaced by the indexing and retrieval core. Callers match them
// with errors.Is; the concrete cause stays wrapped underneath.
var (
	ErrDocumentOpen    = errors.New("document open error")
	ErrEmbedding       = errors.New("embedding error")
	ErrStorage         = errors.New("storage error")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrRetrieval       = errors.New("retrieval error")
)
