package rag

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sevanet-labs/sevabot-backend/internal/clients/pinecone"
	"github.com/sevanet-labs/sevabot-backend/internal/types"
)

// fakeEmbedder produces deterministic 4-dimensional vectors. failAfter
// batches lets tests trigger mid-pipeline embedding failures.
type fakeEmbedder struct {
	mu        sync.Mutex
	calls     int
	failAfter int // fail on call number failAfter+1; 0 disables
	err       error
}

func (f *fakeEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	if f.err != nil && (f.failAfter == 0 || call > f.failAfter) {
		return nil, f.err
	}
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		var h float32
		for _, r := range in {
			h += float32(r)
		}
		out[i] = []float32{h, float32(len(in)), 1, 0}
	}
	return out, nil
}

// fakeStore is an in-memory pinecone.VectorStore keyed by namespace. It
// scores queries by dot product, enough to make retrieval ordering real.
type fakeStore struct {
	mu         sync.Mutex
	namespaces map[string]map[string]pinecone.Vector
	upsertErr  error
	failAfter  int // fail on upsert call failAfter+1; 0 means first call
	upserts    int
	queryErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{namespaces: map[string]map[string]pinecone.Vector{}}
}

func (f *fakeStore) Upsert(ctx context.Context, namespace string, vectors []pinecone.Vector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.upsertErr != nil && f.upserts > f.failAfter {
		return f.upsertErr
	}
	ns := f.namespaces[namespace]
	if ns == nil {
		ns = map[string]pinecone.Vector{}
		f.namespaces[namespace] = ns
	}
	for _, v := range vectors {
		ns[v.ID] = v
	}
	return nil
}

func (f *fakeStore) Query(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]pinecone.QueryMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var matches []pinecone.QueryMatch
	for _, v := range f.namespaces[namespace] {
		var score float64
		for i := 0; i < len(q) && i < len(v.Values); i++ {
			score += float64(q[i]) * float64(v.Values[i])
		}
		matches = append(matches, pinecone.QueryMatch{ID: v.ID, Score: score, Metadata: v.Metadata})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (f *fakeStore) DeleteByFilter(ctx context.Context, namespace string, filter map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	eq, _ := filter[metaDocumentID].(map[string]any)
	want, _ := eq["$eq"].(string)
	ns := f.namespaces[namespace]
	for id, v := range ns {
		if doc, _ := v.Metadata[metaDocumentID].(string); doc == want {
			delete(ns, id)
		}
	}
	return nil
}

func (f *fakeStore) DeleteNamespace(ctx context.Context, namespace string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.namespaces, namespace)
	return nil
}

func (f *fakeStore) VectorCount(ctx context.Context, namespace string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.namespaces[namespace]), nil
}

func (f *fakeStore) count(namespace string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.namespaces[namespace])
}

// fakeDocRepo is an in-memory repos.DocumentRepo. The tx parameter is
// ignored the same way a nil tx falls through to the base connection.
type fakeDocRepo struct {
	mu        sync.Mutex
	docs      map[uuid.UUID]*types.Document
	createErr error
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{docs: map[uuid.UUID]*types.Document{}}
}

func (f *fakeDocRepo) Create(ctx context.Context, tx *gorm.DB, doc *types.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *doc
	f.docs[doc.ID] = &cp
	return nil
}

func (f *fakeDocRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[id], nil
}

func (f *fakeDocRepo) GetByScopeAndHash(ctx context.Context, tx *gorm.DB, scope, hash string) (*types.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.OwnerScope == scope && d.ContentHash == hash {
			return d, nil
		}
	}
	return nil, nil
}

func (f *fakeDocRepo) ListByScope(ctx context.Context, tx *gorm.DB, scope string) ([]*types.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Document
	for _, d := range f.docs {
		if d.OwnerScope == scope {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDocRepo) CountByScope(ctx context.Context, tx *gorm.DB, scope string) (int64, error) {
	docs, _ := f.ListByScope(ctx, tx, scope)
	return int64(len(docs)), nil
}

func (f *fakeDocRepo) MarkIndexed(ctx context.Context, tx *gorm.DB, id uuid.UUID, chunkCount int, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return fmt.Errorf("document %s not found", id)
	}
	d.ChunkCount = chunkCount
	d.IndexedAt = &at
	return nil
}

func (f *fakeDocRepo) DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, id)
	return nil
}
