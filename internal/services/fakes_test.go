package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sevanet-labs/sevabot-backend/internal/apperr"
	"github.com/sevanet-labs/sevabot-backend/internal/rag"
	"github.com/sevanet-labs/sevabot-backend/internal/types"
)

// fakeConvRepo is an in-memory repos.ConversationRepo with the same guarded
// transition semantics as the SQL implementation.
type fakeConvRepo struct {
	mu    sync.Mutex
	convs map[uuid.UUID]*types.Conversation
}

func newFakeConvRepo() *fakeConvRepo {
	return &fakeConvRepo{convs: map[uuid.UUID]*types.Conversation{}}
}

func (f *fakeConvRepo) Create(ctx context.Context, tx *gorm.DB, conv *types.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *conv
	f.convs[conv.ID] = &cp
	return nil
}

func (f *fakeConvRepo) CreateWithCap(ctx context.Context, tx *gorm.DB, conv *types.Conversation, max int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	active := 0
	for _, c := range f.convs {
		if c.Owner == conv.Owner && c.State == types.ConversationActive {
			active++
		}
	}
	if active >= max {
		return false, nil
	}
	cp := *conv
	f.convs[conv.ID] = &cp
	return true, nil
}

func (f *fakeConvRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeConvRepo) ListActiveByOwner(ctx context.Context, tx *gorm.DB, owner string) ([]*types.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Conversation
	for _, c := range f.convs {
		if c.Owner == owner && c.State == types.ConversationActive {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeConvRepo) CountActiveByOwner(ctx context.Context, tx *gorm.DB, owner string) (int64, error) {
	convs, _ := f.ListActiveByOwner(ctx, tx, owner)
	return int64(len(convs)), nil
}

func (f *fakeConvRepo) TransitionState(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to types.ConversationState) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok || c.State != from {
		return false, nil
	}
	c.State = to
	c.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (f *fakeConvRepo) Touch(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.convs[id]; ok {
		c.UpdatedAt = at
	}
	return nil
}

func (f *fakeConvRepo) DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.convs, id)
	return nil
}

func (f *fakeConvRepo) state(id uuid.UUID) (types.ConversationState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok {
		return "", false
	}
	return c.State, true
}

// fakeMsgRepo is an in-memory repos.MessageRepo.
type fakeMsgRepo struct {
	mu   sync.Mutex
	msgs map[uuid.UUID]*types.Message
}

func newFakeMsgRepo() *fakeMsgRepo {
	return &fakeMsgRepo{msgs: map[uuid.UUID]*types.Message{}}
}

func (f *fakeMsgRepo) Create(ctx context.Context, tx *gorm.DB, msg *types.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *msg
	f.msgs[msg.ID] = &cp
	return nil
}

func (f *fakeMsgRepo) ListByConversation(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) ([]*types.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Message
	for _, m := range f.msgs {
		if m.ConversationID == conversationID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeMsgRepo) ListRecent(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID, limit int) ([]*types.Message, error) {
	all, _ := f.ListByConversation(ctx, tx, conversationID)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (f *fakeMsgRepo) SetFeedback(ctx context.Context, tx *gorm.DB, messageID uuid.UUID, feedback types.Feedback) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.msgs[messageID]
	if !ok {
		return false, nil
	}
	fb := feedback
	m.Feedback = &fb
	return true, nil
}

func (f *fakeMsgRepo) DeleteByConversation(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, m := range f.msgs {
		if m.ConversationID == conversationID {
			delete(f.msgs, id)
		}
	}
	return nil
}

func (f *fakeMsgRepo) countByConversation(conversationID uuid.UUID) int {
	msgs, _ := f.ListByConversation(context.Background(), nil, conversationID)
	return len(msgs)
}

// fakeRetriever returns canned results.
type fakeRetriever struct {
	results []rag.ScoredChunk
	err     error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, scope, query string) ([]rag.ScoredChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

// fakeAI stubs the model client. generated is returned for every
// GenerateText call; systems records each system prompt seen.
type fakeAI struct {
	mu        sync.Mutex
	generated string
	genErr    error
	systems   []string
	genCalls  int
}

func (f *fakeAI) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range out {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func (f *fakeAI) GenerateText(ctx context.Context, system string, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genCalls++
	f.systems = append(f.systems, system)
	if f.genErr != nil {
		return "", f.genErr
	}
	return f.generated, nil
}

// fakeBucket is an in-memory gcp.BucketService.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	puts    int
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}}
}

func (f *fakeBucket) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.putErr != nil {
		return f.putErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.objects[key] = cp
	return nil
}

func (f *fakeBucket) GetObject(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, apperr.Errorf(apperr.KindNotFound, "object not found: %s", key)
	}
	return data, nil
}

func (f *fakeBucket) DeleteObject(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[key]; !ok {
		return apperr.Errorf(apperr.KindNotFound, "object not found: %s", key)
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeBucket) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}
