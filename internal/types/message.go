package types

import (
	"time"

	"github.com/google/uuid"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type Feedback string

const (
	FeedbackGood    Feedback = "good"
	FeedbackNeutral Feedback = "neutral"
	FeedbackBad     Feedback = "bad"
)

func (f Feedback) Valid() bool {
	switch f {
	case FeedbackGood, FeedbackNeutral, FeedbackBad:
		return true
	}
	return false
}

type Message struct {
	ID             uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ConversationID uuid.UUID   `gorm:"type:uuid;column:conversation_id;not null;index" json:"conversation_id"`
	Role           MessageRole `gorm:"column:role;not null" json:"role"`
	Content        string      `gorm:"column:content;not null" json:"content"`
	Feedback       *Feedback   `gorm:"column:feedback" json:"feedback,omitempty"`
	CreatedAt      time.Time   `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (Message) TableName() string {
	return "message"
}
