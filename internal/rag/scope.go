package rag

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sevanet-labs/sevabot-backend/internal/apperr"
	"github.com/sevanet-labs/sevabot-backend/internal/clients/pinecone"
	"github.com/sevanet-labs/sevabot-backend/internal/logger"
	"github.com/sevanet-labs/sevabot-backend/internal/types"
)

// Vector metadata keys. The chunk text rides along with the vector so
// retrieval never needs a second store.
const (
	metaDocumentID = "document_id"
	metaFileName   = "file_name"
	metaOrdinal    = "ordinal"
	metaText       = "text"
	metaIndexedAt  = "indexed_at"
)

// upsertBatchSize bounds a single data-plane write.
const upsertBatchSize = 100

// ScoredChunk is one retrieval hit with everything needed for citation
// and deterministic ordering.
type ScoredChunk struct {
	DocumentID   uuid.UUID
	DocumentName string
	Ordinal      int
	Text         string
	Score        float64
	IndexedAt    time.Time
}

// ScopeManager owns one isolated vector collection per tenant scope.
// Writes to a scope are single-writer serialized; reads run unsynchronized
// and may miss an in-flight write, which is acceptable because writes are
// atomic per document.
type ScopeManager interface {
	// Upsert writes a whole document's chunks under the scope's writer lock.
	Upsert(ctx context.Context, scope string, doc *types.Document, chunks []types.Chunk) error
	// DeleteDocument purges every chunk of the document from the scope.
	DeleteDocument(ctx context.Context, scope string, documentID uuid.UUID) error
	Search(ctx context.Context, scope string, query []float32, k int) ([]ScoredChunk, error)
	ChunkCount(ctx context.Context, scope string) (int, error)
	// Reset drops the scope's collection. Destructive; callers invoke it
	// explicitly for corruption recovery or reindexing, never on error paths.
	Reset(ctx context.Context, scope string) error
}

type scopeManager struct {
	log   *logger.Logger
	store pinecone.VectorStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewScopeManager(log *logger.Logger, store pinecone.VectorStore) (ScopeManager, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if store == nil {
		return nil, fmt.Errorf("vector store required")
	}
	return &scopeManager{
		log:   log.With("service", "VectorScopeManager"),
		store: store,
		locks: map[string]*sync.Mutex{},
	}, nil
}

// writerLock returns the scope's dedicated mutex, creating it on first use.
// Two different scopes never contend.
func (m *scopeManager) writerLock(scope string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[scope]
	if !ok {
		l = &sync.Mutex{}
		m.locks[scope] = l
	}
	return l
}

func (m *scopeManager) Upsert(ctx context.Context, scope string, doc *types.Document, chunks []types.Chunk) error {
	if doc == nil {
		return fmt.Errorf("document required")
	}
	if len(chunks) == 0 {
		return nil
	}

	indexedAt := time.Now().UTC()
	vectors := make([]pinecone.Vector, len(chunks))
	for i, ch := range chunks {
		vectors[i] = pinecone.Vector{
			ID:     chunkVectorID(doc.ID, ch.Ordinal),
			Values: ch.Embedding,
			Metadata: map[string]any{
				metaDocumentID: doc.ID.String(),
				metaFileName:   doc.FileName,
				metaOrdinal:    ch.Ordinal,
				metaText:       ch.Text,
				metaIndexedAt:  indexedAt.Unix(),
			},
		}
	}

	lock := m.writerLock(scope)
	lock.Lock()
	defer lock.Unlock()

	for start := 0; start < len(vectors); start += upsertBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + upsertBatchSize
		if end > len(vectors) {
			end = len(vectors)
		}
		if err := m.store.Upsert(ctx, scope, vectors[start:end]); err != nil {
			return apperr.New(apperr.KindVectorStore,
				fmt.Errorf("upsert scope=%s document=%s batch %d-%d: %w", scope, doc.ID, start, end, err))
		}
	}

	m.log.Info("Upserted document chunks",
		"scope", scope,
		"document_id", doc.ID,
		"chunk_count", len(chunks),
	)
	return nil
}

func (m *scopeManager) DeleteDocument(ctx context.Context, scope string, documentID uuid.UUID) error {
	lock := m.writerLock(scope)
	lock.Lock()
	defer lock.Unlock()

	filter := map[string]any{metaDocumentID: map[string]any{"$eq": documentID.String()}}
	if err := m.store.DeleteByFilter(ctx, scope, filter); err != nil {
		return apperr.New(apperr.KindVectorStore,
			fmt.Errorf("delete document chunks scope=%s document=%s: %w", scope, documentID, err))
	}
	return nil
}

func (m *scopeManager) Search(ctx context.Context, scope string, query []float32, k int) ([]ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}
	matches, err := m.store.Query(ctx, scope, query, k, nil)
	if err != nil {
		return nil, apperr.New(apperr.KindVectorStore,
			fmt.Errorf("search scope=%s: %w", scope, err))
	}

	out := make([]ScoredChunk, 0, len(matches))
	for _, match := range matches {
		sc, ok := scoredChunkFromMatch(match)
		if !ok {
			m.log.Warn("Dropping match with malformed metadata", "scope", scope, "vector_id", match.ID)
			continue
		}
		out = append(out, sc)
	}
	return out, nil
}

func (m *scopeManager) ChunkCount(ctx context.Context, scope string) (int, error) {
	n, err := m.store.VectorCount(ctx, scope)
	if err != nil {
		return 0, apperr.New(apperr.KindVectorStore,
			fmt.Errorf("chunk count scope=%s: %w", scope, err))
	}
	return n, nil
}

func (m *scopeManager) Reset(ctx context.Context, scope string) error {
	lock := m.writerLock(scope)
	lock.Lock()
	defer lock.Unlock()

	if err := m.store.DeleteNamespace(ctx, scope); err != nil {
		return apperr.New(apperr.KindVectorStore,
			fmt.Errorf("reset scope=%s: %w", scope, err))
	}
	m.log.Warn("Scope collection reset", "scope", scope)
	return nil
}

func chunkVectorID(documentID uuid.UUID, ordinal int) string {
	return fmt.Sprintf("%s:%d", documentID, ordinal)
}

func scoredChunkFromMatch(match pinecone.QueryMatch) (ScoredChunk, bool) {
	docIDRaw, _ := match.Metadata[metaDocumentID].(string)
	docID, err := uuid.Parse(docIDRaw)
	if err != nil {
		return ScoredChunk{}, false
	}
	text, _ := match.Metadata[metaText].(string)
	if text == "" {
		return ScoredChunk{}, false
	}
	name, _ := match.Metadata[metaFileName].(string)

	sc := ScoredChunk{
		DocumentID:   docID,
		DocumentName: name,
		Text:         text,
		Score:        match.Score,
	}
	if ord, ok := numericMeta(match.Metadata[metaOrdinal]); ok {
		sc.Ordinal = int(ord)
	}
	if ts, ok := numericMeta(match.Metadata[metaIndexedAt]); ok {
		sc.IndexedAt = time.Unix(int64(ts), 0).UTC()
	}
	return sc, true
}

// numericMeta tolerates the int/float64 ambiguity of JSON round-trips.
func numericMeta(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
