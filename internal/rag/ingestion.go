package rag

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sevanet-labs/sevabot-backend/internal/apperr"
	"github.com/sevanet-labs/sevabot-backend/internal/config"
	"github.com/sevanet-labs/sevabot-backend/internal/logger"
	"github.com/sevanet-labs/sevabot-backend/internal/repos"
	"github.com/sevanet-labs/sevabot-backend/internal/types"
)

// purgeTimeout bounds the compensating vector delete after a failed ingest.
// It uses a fresh context so cancellation of the request cannot leave
// partial chunks behind.
const purgeTimeout = 30 * time.Second

// IngestResult describes the outcome of one upload.
type IngestResult struct {
	Document   *types.Document
	Duplicate  bool
	ChunkCount int
}

// Ingestor runs the full upload pipeline: validation, text extraction,
// content-hash dedupe, chunking, embedding and the atomic vector write.
type Ingestor interface {
	Ingest(ctx context.Context, scope, fileName string, data []byte) (*IngestResult, error)
}

type ingestor struct {
	log      *logger.Logger
	cfg      *config.Config
	docs     repos.DocumentRepo
	chunker  Chunker
	embedder Embedder
	scopes   ScopeManager
}

func NewIngestor(log *logger.Logger, cfg *config.Config, docs repos.DocumentRepo, embedder Embedder, scopes ScopeManager) (Ingestor, error) {
	if log == nil || cfg == nil {
		return nil, fmt.Errorf("logger and config required")
	}
	if docs == nil || embedder == nil || scopes == nil {
		return nil, fmt.Errorf("document repo, embedder and scope manager required")
	}
	return &ingestor{
		log:      log.With("service", "Ingestor"),
		cfg:      cfg,
		docs:     docs,
		chunker:  NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder: embedder,
		scopes:   scopes,
	}, nil
}

func (s *ingestor) Ingest(ctx context.Context, scope, fileName string, data []byte) (*IngestResult, error) {
	fileName = strings.TrimSpace(fileName)
	if scope == "" {
		return nil, apperr.Errorf(apperr.KindValidation, "owner scope is required")
	}
	if fileName == "" {
		return nil, apperr.Errorf(apperr.KindValidation, "file name is required")
	}
	format, ok := FormatForName(fileName)
	if !ok {
		return nil, apperr.Errorf(apperr.KindValidation, "unsupported file type: %s", fileName)
	}
	if len(data) == 0 {
		return nil, apperr.Errorf(apperr.KindValidation, "file %s is empty", fileName)
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, apperr.Errorf(apperr.KindValidation,
			"file %s exceeds the %d byte upload limit", fileName, s.cfg.MaxUploadBytes)
	}

	text, err := ExtractText(format, data)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, apperr.Errorf(apperr.KindValidation, "file %s contains no extractable text", fileName)
	}

	// Dedupe on the raw bytes, not the extracted text, so re-uploads of the
	// identical file short-circuit before any provider call.
	sum := md5.Sum(data)
	contentHash := hex.EncodeToString(sum[:])
	existing, err := s.docs.GetByScopeAndHash(ctx, nil, scope, contentHash)
	if err != nil {
		return nil, fmt.Errorf("dedupe lookup: %w", err)
	}
	if existing != nil {
		s.log.Info("Skipping duplicate upload",
			"scope", scope,
			"file_name", fileName,
			"existing_document_id", existing.ID,
		)
		return &IngestResult{Document: existing, Duplicate: true, ChunkCount: existing.ChunkCount}, nil
	}

	pieces := s.chunker.Split(text)
	if len(pieces) == 0 {
		return nil, apperr.Errorf(apperr.KindValidation, "file %s produced no chunks", fileName)
	}

	embeddings, err := s.embedder.Embed(ctx, pieces)
	if err != nil {
		return nil, err
	}

	doc := &types.Document{
		ID:          uuid.New(),
		OwnerScope:  scope,
		FileName:    fileName,
		ContentHash: contentHash,
		SizeBytes:   int64(len(data)),
		UploadedAt:  time.Now().UTC(),
	}

	chunks := make([]types.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = types.Chunk{
			DocumentID: doc.ID,
			OwnerScope: scope,
			Ordinal:    i,
			Text:       piece,
			Embedding:  embeddings[i],
		}
	}

	if err := s.scopes.Upsert(ctx, scope, doc, chunks); err != nil {
		s.purge(scope, doc.ID)
		return nil, err
	}

	now := time.Now().UTC()
	doc.ChunkCount = len(chunks)
	doc.IndexedAt = &now
	if err := s.docs.Create(ctx, nil, doc); err != nil {
		// The vectors are live but the record is not. Purge so the index
		// never references a document the catalog does not know about.
		s.purge(scope, doc.ID)
		return nil, fmt.Errorf("create document record: %w", err)
	}

	s.log.Info("Ingested document",
		"scope", scope,
		"document_id", doc.ID,
		"file_name", fileName,
		"chunk_count", len(chunks),
	)
	return &IngestResult{Document: doc, ChunkCount: len(chunks)}, nil
}

// purge removes whatever chunks a failed ingest may have written. Runs on a
// background context because the request context may already be dead.
func (s *ingestor) purge(scope string, documentID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()
	if err := s.scopes.DeleteDocument(ctx, scope, documentID); err != nil {
		s.log.Error("Failed to purge chunks after ingest failure",
			"scope", scope,
			"document_id", documentID,
			"error", err,
		)
		return
	}
	s.log.Warn("Purged chunks after ingest failure", "scope", scope, "document_id", documentID)
}
