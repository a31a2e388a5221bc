package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/sevanet-labs/sevabot-backend/internal/apperr"
	"github.com/sevanet-labs/sevabot-backend/internal/clients/openai"
	"github.com/sevanet-labs/sevabot-backend/internal/config"
	"github.com/sevanet-labs/sevabot-backend/internal/logger"
	"github.com/sevanet-labs/sevabot-backend/internal/rag"
	"github.com/sevanet-labs/sevabot-backend/internal/repos"
	"github.com/sevanet-labs/sevabot-backend/internal/types"
)

const defaultTitle = "New Chat"

const titleSystemPrompt = "Generate a concise 2-4 word title for this conversation. " +
	"Focus on the main topic. Examples: 'Document Analysis', 'Project Planning', 'Research Query'. " +
	"No quotes or punctuation."

// AskResult is one answered turn. Citations come from the chunks that were
// actually in the model's context, not from the model's own text.
type AskResult struct {
	Answer             string
	Citations          []string
	UserMessageID      uuid.UUID
	AssistantMessageID uuid.UUID
}

type ChatService interface {
	// CreateConversation opens a new conversation, titling it from the first
	// message when one is given. Enforces the per-owner active cap.
	CreateConversation(ctx context.Context, owner, firstMessage string) (*types.Conversation, error)
	ListConversations(ctx context.Context, owner string) ([]*types.Conversation, error)
	GetConversation(ctx context.Context, owner string, id uuid.UUID) (*types.Conversation, []*types.Message, error)
	// Ask runs one retrieval-augmented turn and persists both sides of it.
	Ask(ctx context.Context, owner string, conversationID uuid.UUID, query string) (*AskResult, error)
	SetFeedback(ctx context.Context, messageID uuid.UUID, feedback types.Feedback) error
}

type chatService struct {
	log       *logger.Logger
	cfg       *config.Config
	convs     repos.ConversationRepo
	msgs      repos.MessageRepo
	retriever rag.Retriever
	ai        openai.Client
}

func NewChatService(log *logger.Logger, cfg *config.Config, convs repos.ConversationRepo, msgs repos.MessageRepo, retriever rag.Retriever, ai openai.Client) (ChatService, error) {
	if log == nil || cfg == nil {
		return nil, fmt.Errorf("logger and config required")
	}
	if convs == nil || msgs == nil || retriever == nil || ai == nil {
		return nil, fmt.Errorf("conversation repo, message repo, retriever and model client required")
	}
	return &chatService{
		log:       log.With("service", "ChatService"),
		cfg:       cfg,
		convs:     convs,
		msgs:      msgs,
		retriever: retriever,
		ai:        ai,
	}, nil
}

func (s *chatService) CreateConversation(ctx context.Context, owner, firstMessage string) (*types.Conversation, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, apperr.Errorf(apperr.KindValidation, "owner is required")
	}

	now := time.Now().UTC()
	conv := &types.Conversation{
		ID:        uuid.New(),
		Owner:     owner,
		Title:     s.generateTitle(ctx, firstMessage),
		State:     types.ConversationActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := s.convs.CreateWithCap(ctx, nil, conv, s.cfg.MaxActiveConversations)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	if !created {
		return nil, apperr.Errorf(apperr.KindSessionLimit,
			"you have reached the maximum limit of %d conversations, delete one before creating a new one",
			s.cfg.MaxActiveConversations)
	}

	s.log.Info("Created conversation", "owner", owner, "conversation_id", conv.ID, "title", conv.Title)
	return conv, nil
}

func (s *chatService) ListConversations(ctx context.Context, owner string) ([]*types.Conversation, error) {
	if owner == "" {
		return nil, apperr.Errorf(apperr.KindValidation, "owner is required")
	}
	return s.convs.ListActiveByOwner(ctx, nil, owner)
}

func (s *chatService) GetConversation(ctx context.Context, owner string, id uuid.UUID) (*types.Conversation, []*types.Message, error) {
	conv, err := s.loadOwned(ctx, owner, id)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.msgs.ListByConversation(ctx, nil, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list messages: %w", err)
	}
	return conv, msgs, nil
}

func (s *chatService) Ask(ctx context.Context, owner string, conversationID uuid.UUID, query string) (*AskResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Errorf(apperr.KindValidation, "message is empty")
	}

	conv, err := s.loadOwned(ctx, owner, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.State != types.ConversationActive {
		return nil, apperr.Errorf(apperr.KindConflict,
			"conversation %s is %s and cannot accept messages", conv.ID, conv.State)
	}

	history, err := s.msgs.ListRecent(ctx, nil, conv.ID, s.cfg.MaxHistoryMessages)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	results, err := s.retriever.Retrieve(ctx, owner, query)
	if err != nil {
		return nil, err
	}

	var answer string
	var citations []string
	if len(results) == 0 {
		// Nothing to ground an answer on. Skip the model entirely rather
		// than let it answer from general knowledge.
		answer = rag.NoDocumentsReply
	} else {
		prompt := rag.BuildPrompt(query, history, results)
		answer, err = s.ai.GenerateText(ctx, prompt.System, prompt.User)
		if err != nil {
			return nil, apperr.New(apperr.KindLLMProvider, fmt.Errorf("generate answer: %w", err))
		}
		answer = cleanAnswer(answer)
		citations = prompt.DocumentNames
	}

	now := time.Now().UTC()
	userMsg := &types.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Role:           types.RoleUser,
		Content:        query,
		CreatedAt:      now,
	}
	assistantMsg := &types.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Role:           types.RoleAssistant,
		Content:        answer,
		// Strictly after the user message so chronological ordering is
		// stable even within the same turn.
		CreatedAt: now.Add(time.Millisecond),
	}
	if err := s.msgs.Create(ctx, nil, userMsg); err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}
	if err := s.msgs.Create(ctx, nil, assistantMsg); err != nil {
		return nil, fmt.Errorf("store assistant message: %w", err)
	}
	if err := s.convs.Touch(ctx, nil, conv.ID, assistantMsg.CreatedAt); err != nil {
		s.log.Warn("Failed to bump conversation timestamp", "conversation_id", conv.ID, "error", err)
	}

	return &AskResult{
		Answer:             answer,
		Citations:          citations,
		UserMessageID:      userMsg.ID,
		AssistantMessageID: assistantMsg.ID,
	}, nil
}

func (s *chatService) SetFeedback(ctx context.Context, messageID uuid.UUID, feedback types.Feedback) error {
	if !feedback.Valid() {
		return apperr.Errorf(apperr.KindValidation, "invalid feedback value: %s", feedback)
	}
	matched, err := s.msgs.SetFeedback(ctx, nil, messageID, feedback)
	if err != nil {
		return fmt.Errorf("set feedback: %w", err)
	}
	if !matched {
		return apperr.Errorf(apperr.KindNotFound, "message %s not found", messageID)
	}
	return nil
}

func (s *chatService) loadOwned(ctx context.Context, owner string, id uuid.UUID) (*types.Conversation, error) {
	if owner == "" {
		return nil, apperr.Errorf(apperr.KindValidation, "owner is required")
	}
	conv, err := s.convs.GetByID(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	// Cross-owner access reads as not-found so conversation IDs leak nothing.
	if conv == nil || conv.Owner != owner {
		return nil, apperr.Errorf(apperr.KindNotFound, "conversation %s not found", id)
	}
	return conv, nil
}

// generateTitle asks the model for a short title and falls back to the first
// words of the message. Title failures never fail conversation creation.
func (s *chatService) generateTitle(ctx context.Context, firstMessage string) string {
	firstMessage = strings.TrimSpace(firstMessage)
	if len(firstMessage) < 5 {
		return defaultTitle
	}

	snippet := firstMessage
	if len(snippet) > 100 {
		snippet = snippet[:100]
	}
	raw, err := s.ai.GenerateText(ctx, titleSystemPrompt, "Create a title for: "+snippet)
	if err != nil {
		s.log.Warn("Title generation failed, using fallback", "error", err)
		return fallbackTitle(firstMessage)
	}

	words := strings.Fields(stripPunctuation(raw))
	if len(words) > 4 {
		words = words[:4]
	}
	if len(words) < 2 {
		return fallbackTitle(firstMessage)
	}
	return titleCase(strings.Join(words, " "))
}

func fallbackTitle(message string) string {
	words := strings.Fields(message)
	if len(words) == 0 {
		return defaultTitle
	}
	if len(words) > 3 {
		words = words[:3]
	}
	return titleCase(strings.Join(words, " "))
}

func stripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// cleanAnswer strips markdown table debris the model sometimes emits.
func cleanAnswer(s string) string {
	s = strings.ReplaceAll(s, "```", "")
	s = strings.ReplaceAll(s, "|", "")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
