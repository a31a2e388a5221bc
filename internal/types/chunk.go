package types

import (
	"github.com/google/uuid"
)

// Chunk is one overlapping window of a document's text, the unit of
// embedding and retrieval. Chunks live in the vector scope, not in the
// relational store; they are written and purged only as a unit with
// their Document.
type Chunk struct {
	DocumentID uuid.UUID
	OwnerScope string
	Ordinal    int
	Text       string
	Embedding  []float32
}
