package types

import (
	"time"

	"github.com/google/uuid"
)

// Document is the relational record of one ingested file. The pair
// (owner_scope, content_hash) is unique so re-uploading identical bytes
// never creates a second index entry.
type Document struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OwnerScope  string     `gorm:"column:owner_scope;not null;index;uniqueIndex:idx_document_scope_hash" json:"owner_scope"`
	FileName    string     `gorm:"column:file_name;not null" json:"file_name"`
	ContentHash string     `gorm:"column:content_hash;not null;uniqueIndex:idx_document_scope_hash" json:"content_hash"`
	SizeBytes   int64      `gorm:"column:size_bytes;not null" json:"size_bytes"`
	ChunkCount  int        `gorm:"column:chunk_count;not null;default:0" json:"chunk_count"`
	UploadedAt  time.Time  `gorm:"column:uploaded_at;not null" json:"uploaded_at"`
	IndexedAt   *time.Time `gorm:"column:indexed_at" json:"indexed_at,omitempty"`
}

func (Document) TableName() string {
	return "document"
}
