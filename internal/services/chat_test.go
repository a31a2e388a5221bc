package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/sevanet-labs/sevabot-backend/internal/apperr"
	"github.com/sevanet-labs/sevabot-backend/internal/config"
	"github.com/sevanet-labs/sevabot-backend/internal/logger"
	"github.com/sevanet-labs/sevabot-backend/internal/rag"
	"github.com/sevanet-labs/sevabot-backend/internal/types"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxUploadBytes:         10 * 1024 * 1024,
		ChunkSize:              1000,
		ChunkOverlap:           200,
		TopK:                   8,
		MaxHistoryMessages:     10,
		MaxActiveConversations: 10,
	}
}

func newTestChatService(t *testing.T, convs *fakeConvRepo, msgs *fakeMsgRepo, retriever *fakeRetriever, ai *fakeAI) ChatService {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	svc, err := NewChatService(log, testConfig(), convs, msgs, retriever, ai)
	if err != nil {
		t.Fatalf("NewChatService: %v", err)
	}
	return svc
}

func TestCreateConversationTitlesFromModel(t *testing.T) {
	ai := &fakeAI{generated: "vacation policy questions"}
	svc := newTestChatService(t, newFakeConvRepo(), newFakeMsgRepo(), &fakeRetriever{}, ai)

	conv, err := svc.CreateConversation(context.Background(), "user@example.com", "what is the vacation policy?")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if conv.Title != "Vacation Policy Questions" {
		t.Fatalf("title: want=%q got=%q", "Vacation Policy Questions", conv.Title)
	}
	if conv.State != types.ConversationActive {
		t.Fatalf("state: want=%s got=%s", types.ConversationActive, conv.State)
	}
}

func TestCreateConversationTitleFallbacks(t *testing.T) {
	ai := &fakeAI{genErr: errors.New("provider down")}
	svc := newTestChatService(t, newFakeConvRepo(), newFakeMsgRepo(), &fakeRetriever{}, ai)

	conv, err := svc.CreateConversation(context.Background(), "user1", "how do I reset my password today")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if conv.Title != "How Do I" {
		t.Fatalf("fallback title: want=%q got=%q", "How Do I", conv.Title)
	}

	conv, err = svc.CreateConversation(context.Background(), "user1", "")
	if err != nil {
		t.Fatalf("CreateConversation empty: %v", err)
	}
	if conv.Title != "New Chat" {
		t.Fatalf("empty-message title: want=%q got=%q", "New Chat", conv.Title)
	}
}

func TestCreateConversationEnforcesActiveCap(t *testing.T) {
	convs := newFakeConvRepo()
	ai := &fakeAI{generated: "some chat title"}
	svc := newTestChatService(t, convs, newFakeMsgRepo(), &fakeRetriever{}, ai)

	for i := 0; i < 10; i++ {
		if _, err := svc.CreateConversation(context.Background(), "user1", fmt.Sprintf("message %d here", i)); err != nil {
			t.Fatalf("CreateConversation %d: %v", i, err)
		}
	}
	_, err := svc.CreateConversation(context.Background(), "user1", "one conversation too many")
	if !apperr.IsKind(err, apperr.KindSessionLimit) {
		t.Fatalf("11th conversation: want session limit error, got %v", err)
	}

	// Another owner is unaffected.
	if _, err := svc.CreateConversation(context.Background(), "user2", "different owner message"); err != nil {
		t.Fatalf("other owner: %v", err)
	}
}

func TestCreateConversationCapHoldsUnderConcurrency(t *testing.T) {
	convs := newFakeConvRepo()
	ai := &fakeAI{generated: "some chat title"}
	svc := newTestChatService(t, convs, newFakeMsgRepo(), &fakeRetriever{}, ai)

	for i := 0; i < 9; i++ {
		if _, err := svc.CreateConversation(context.Background(), "user1", fmt.Sprintf("message %d here", i)); err != nil {
			t.Fatalf("CreateConversation %d: %v", i, err)
		}
	}

	// Race several creates at one slot remaining. Exactly one may win.
	const racers = 8
	errs := make(chan error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.CreateConversation(context.Background(), "user1", fmt.Sprintf("racing message %d", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		if !apperr.IsKind(err, apperr.KindSessionLimit) {
			t.Fatalf("racing create: want session limit error, got %v", err)
		}
	}
	if created != 1 {
		t.Fatalf("racing creates succeeded: want=1 got=%d", created)
	}
	active, err := convs.CountActiveByOwner(context.Background(), nil, "user1")
	if err != nil {
		t.Fatalf("CountActiveByOwner: %v", err)
	}
	if active != 10 {
		t.Fatalf("active conversations: want=10 got=%d", active)
	}
}

func TestAskPersistsBothSidesAndCites(t *testing.T) {
	convs := newFakeConvRepo()
	msgs := newFakeMsgRepo()
	retriever := &fakeRetriever{results: []rag.ScoredChunk{
		{DocumentID: uuid.New(), DocumentName: "handbook.pdf", Text: "Vacation is 20 days.", Score: 0.9},
	}}
	ai := &fakeAI{generated: "Based on handbook.pdf, vacation is 20 days."}
	svc := newTestChatService(t, convs, msgs, retriever, ai)

	conv, err := svc.CreateConversation(context.Background(), "user1", "vacation policy please")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	result, err := svc.Ask(context.Background(), "user1", conv.ID, "how many vacation days?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if result.Answer != "Based on handbook.pdf, vacation is 20 days." {
		t.Fatalf("answer: got %q", result.Answer)
	}
	if len(result.Citations) != 1 || result.Citations[0] != "handbook.pdf" {
		t.Fatalf("citations: want=[handbook.pdf] got=%v", result.Citations)
	}

	stored, err := msgs.ListByConversation(context.Background(), nil, conv.ID)
	if err != nil {
		t.Fatalf("ListByConversation: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("stored messages: want=2 got=%d", len(stored))
	}
	if stored[0].Role != types.RoleUser || stored[1].Role != types.RoleAssistant {
		t.Fatalf("message order wrong: %s then %s", stored[0].Role, stored[1].Role)
	}
	if !stored[0].CreatedAt.Before(stored[1].CreatedAt) {
		t.Fatal("user message not strictly before assistant message")
	}
}

func TestAskNoResultsSkipsModel(t *testing.T) {
	convs := newFakeConvRepo()
	msgs := newFakeMsgRepo()
	ai := &fakeAI{generated: "should never be used"}
	svc := newTestChatService(t, convs, msgs, &fakeRetriever{}, ai)

	conv, err := svc.CreateConversation(context.Background(), "user1", "")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	genCallsBefore := ai.genCalls

	result, err := svc.Ask(context.Background(), "user1", conv.ID, "anything in my documents?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(result.Answer, "don't have any documents") {
		t.Fatalf("answer: want fixed no-documents reply, got %q", result.Answer)
	}
	if len(result.Citations) != 0 {
		t.Fatalf("citations: want none, got %v", result.Citations)
	}
	if ai.genCalls != genCallsBefore {
		t.Fatal("model was called despite empty retrieval")
	}
	// The empty-result turn is still persisted.
	if n := msgs.countByConversation(conv.ID); n != 2 {
		t.Fatalf("stored messages: want=2 got=%d", n)
	}
}

func TestAskHistoryFlowsIntoPrompt(t *testing.T) {
	convs := newFakeConvRepo()
	msgs := newFakeMsgRepo()
	retriever := &fakeRetriever{results: []rag.ScoredChunk{
		{DocumentID: uuid.New(), DocumentName: "doc.txt", Text: "context", Score: 1},
	}}
	ai := &fakeAI{generated: "answer"}
	svc := newTestChatService(t, convs, msgs, retriever, ai)

	conv, err := svc.CreateConversation(context.Background(), "user1", "")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if _, err := svc.Ask(context.Background(), "user1", conv.ID, "first question"); err != nil {
		t.Fatalf("first Ask: %v", err)
	}
	if _, err := svc.Ask(context.Background(), "user1", conv.ID, "second question"); err != nil {
		t.Fatalf("second Ask: %v", err)
	}

	last := ai.systems[len(ai.systems)-1]
	if !strings.Contains(last, "User: first question") {
		t.Fatalf("second prompt missing earlier turn:\n%s", last)
	}
	if !strings.Contains(last, "Assistant: answer") {
		t.Fatalf("second prompt missing earlier answer:\n%s", last)
	}
}

func TestAskWrongOwnerReadsAsNotFound(t *testing.T) {
	convs := newFakeConvRepo()
	svc := newTestChatService(t, convs, newFakeMsgRepo(), &fakeRetriever{}, &fakeAI{})

	conv, err := svc.CreateConversation(context.Background(), "user1", "")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	_, err = svc.Ask(context.Background(), "intruder", conv.ID, "give me their data")
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("cross-owner ask: want not found, got %v", err)
	}
}

func TestAskNonActiveConversationRejected(t *testing.T) {
	convs := newFakeConvRepo()
	svc := newTestChatService(t, convs, newFakeMsgRepo(), &fakeRetriever{}, &fakeAI{})

	conv, err := svc.CreateConversation(context.Background(), "user1", "")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if _, err := convs.TransitionState(context.Background(), nil, conv.ID, types.ConversationActive, types.ConversationArchiving); err != nil {
		t.Fatalf("TransitionState: %v", err)
	}
	_, err = svc.Ask(context.Background(), "user1", conv.ID, "still there?")
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("ask on archiving conversation: want conflict, got %v", err)
	}
}

func TestAskLLMFailureTagged(t *testing.T) {
	retriever := &fakeRetriever{results: []rag.ScoredChunk{
		{DocumentID: uuid.New(), DocumentName: "doc.txt", Text: "context", Score: 1},
	}}
	ai := &fakeAI{}
	svc := newTestChatService(t, newFakeConvRepo(), newFakeMsgRepo(), retriever, ai)

	conv, err := svc.CreateConversation(context.Background(), "user1", "")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	ai.genErr = errors.New("model down")
	_, err = svc.Ask(context.Background(), "user1", conv.ID, "question")
	if !apperr.IsKind(err, apperr.KindLLMProvider) {
		t.Fatalf("want llm provider error, got %v", err)
	}
}

func TestSetFeedback(t *testing.T) {
	convs := newFakeConvRepo()
	msgs := newFakeMsgRepo()
	retriever := &fakeRetriever{results: []rag.ScoredChunk{
		{DocumentID: uuid.New(), DocumentName: "doc.txt", Text: "context", Score: 1},
	}}
	svc := newTestChatService(t, convs, msgs, retriever, &fakeAI{generated: "answer"})

	conv, err := svc.CreateConversation(context.Background(), "user1", "")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	result, err := svc.Ask(context.Background(), "user1", conv.ID, "question")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}

	if err := svc.SetFeedback(context.Background(), result.AssistantMessageID, types.FeedbackGood); err != nil {
		t.Fatalf("SetFeedback: %v", err)
	}
	// Overwriting is allowed, latest value wins.
	if err := svc.SetFeedback(context.Background(), result.AssistantMessageID, types.FeedbackBad); err != nil {
		t.Fatalf("SetFeedback overwrite: %v", err)
	}
	stored, _ := msgs.ListByConversation(context.Background(), nil, conv.ID)
	if stored[1].Feedback == nil || *stored[1].Feedback != types.FeedbackBad {
		t.Fatalf("feedback: want=bad got=%v", stored[1].Feedback)
	}

	if err := svc.SetFeedback(context.Background(), result.AssistantMessageID, "amazing"); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("invalid feedback: want validation error, got %v", err)
	}
	if err := svc.SetFeedback(context.Background(), uuid.New(), types.FeedbackGood); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("unknown message: want not found, got %v", err)
	}
}
