package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sevanet-labs/sevabot-backend/internal/apperr"
	"github.com/sevanet-labs/sevabot-backend/internal/logger"
	"github.com/sevanet-labs/sevabot-backend/internal/rag"
	"github.com/sevanet-labs/sevabot-backend/internal/repos"
	"github.com/sevanet-labs/sevabot-backend/internal/types"
)

// ScopeStats summarizes one tenant's document collection.
type ScopeStats struct {
	Scope         string `json:"scope"`
	DocumentCount int64  `json:"document_count"`
	ChunkCount    int    `json:"chunk_count"`
}

// LibraryService is the document catalog: uploads go through the ingestion
// pipeline, deletes remove both the record and its vectors.
type LibraryService interface {
	Upload(ctx context.Context, scope, fileName string, data []byte) (*rag.IngestResult, error)
	List(ctx context.Context, scope string) ([]*types.Document, error)
	Delete(ctx context.Context, scope string, documentID uuid.UUID) error
	Stats(ctx context.Context, scope string) (*ScopeStats, error)
}

type libraryService struct {
	log      *logger.Logger
	docs     repos.DocumentRepo
	ingestor rag.Ingestor
	scopes   rag.ScopeManager
}

func NewLibraryService(log *logger.Logger, docs repos.DocumentRepo, ingestor rag.Ingestor, scopes rag.ScopeManager) (LibraryService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if docs == nil || ingestor == nil || scopes == nil {
		return nil, fmt.Errorf("document repo, ingestor and scope manager required")
	}
	return &libraryService{
		log:      log.With("service", "LibraryService"),
		docs:     docs,
		ingestor: ingestor,
		scopes:   scopes,
	}, nil
}

func (s *libraryService) Upload(ctx context.Context, scope, fileName string, data []byte) (*rag.IngestResult, error) {
	return s.ingestor.Ingest(ctx, scope, fileName, data)
}

func (s *libraryService) List(ctx context.Context, scope string) ([]*types.Document, error) {
	if scope == "" {
		return nil, apperr.Errorf(apperr.KindValidation, "owner scope is required")
	}
	return s.docs.ListByScope(ctx, nil, scope)
}

func (s *libraryService) Delete(ctx context.Context, scope string, documentID uuid.UUID) error {
	if scope == "" {
		return apperr.Errorf(apperr.KindValidation, "owner scope is required")
	}
	doc, err := s.docs.GetByID(ctx, nil, documentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc == nil || doc.OwnerScope != scope {
		return apperr.Errorf(apperr.KindNotFound, "document %s not found", documentID)
	}

	// Vectors first. If this fails the record survives, so a retry can run
	// the whole delete again; the opposite order would strand chunks with no
	// catalog entry pointing at them.
	if err := s.scopes.DeleteDocument(ctx, scope, documentID); err != nil {
		return err
	}
	if err := s.docs.DeleteByID(ctx, nil, documentID); err != nil {
		return fmt.Errorf("delete document record: %w", err)
	}

	s.log.Info("Deleted document", "scope", scope, "document_id", documentID, "file_name", doc.FileName)
	return nil
}

func (s *libraryService) Stats(ctx context.Context, scope string) (*ScopeStats, error) {
	if scope == "" {
		return nil, apperr.Errorf(apperr.KindValidation, "owner scope is required")
	}
	docCount, err := s.docs.CountByScope(ctx, nil, scope)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	chunkCount, err := s.scopes.ChunkCount(ctx, scope)
	if err != nil {
		return nil, err
	}
	return &ScopeStats{Scope: scope, DocumentCount: docCount, ChunkCount: chunkCount}, nil
}
