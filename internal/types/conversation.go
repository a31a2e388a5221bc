package types

import (
	"time"

	"github.com/google/uuid"
)

// ConversationState is the durable archive-then-delete state machine column.
// A crash between "archived" and "deleted" is recovered by resuming from the
// persisted state instead of guessing.
type ConversationState string

const (
	ConversationActive        ConversationState = "active"
	ConversationArchiving     ConversationState = "archiving"
	ConversationArchived      ConversationState = "archived"
	ConversationDeleted       ConversationState = "deleted"
	ConversationArchiveFailed ConversationState = "archive_failed"
)

type Conversation struct {
	ID        uuid.UUID         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Owner     string            `gorm:"column:owner;not null;index" json:"owner"`
	Title     string            `gorm:"column:title;not null" json:"title"`
	State     ConversationState `gorm:"column:state;not null;default:'active';index" json:"state"`
	CreatedAt time.Time         `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt time.Time         `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversation"
}
