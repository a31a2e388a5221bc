package types

import (
	"time"

	"github.com/google/uuid"
)

// ArchiveRecord is the immutable blob-storage snapshot of a deleted
// conversation. It is decoupled from the relational rows once those are
// gone; re-archiving the same conversation overwrites the same key.
type ArchiveRecord struct {
	Conversation Conversation    `json:"conversation"`
	Messages     []Message       `json:"messages"`
	Metadata     ArchiveMetadata `json:"archive_metadata"`
}

type ArchiveMetadata struct {
	OwnerScope   string    `json:"owner_scope"`
	ArchivedAt   time.Time `json:"archived_at"`
	MessageCount int       `json:"message_count"`
}

// ArchiveIndex is the mutable per-owner listing of archived conversations,
// kept so listing never has to read every record object.
type ArchiveIndex struct {
	OwnerScope            string              `json:"owner_scope"`
	ArchivedConversations []ArchiveIndexEntry `json:"archived_conversations"`
}

type ArchiveIndexEntry struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"created_at"`
	ArchivedAt     time.Time `json:"archived_at"`
	MessageCount   int       `json:"message_count"`
}
