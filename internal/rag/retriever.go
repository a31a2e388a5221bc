package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sevanet-labs/sevabot-backend/internal/apperr"
	"github.com/sevanet-labs/sevabot-backend/internal/config"
	"github.com/sevanet-labs/sevabot-backend/internal/logger"
)

// Retriever answers "which chunks are relevant to this query" for one
// tenant. Every query fans out to the tenant's private scope and the shared
// common scope, then merges by score.
type Retriever interface {
	Retrieve(ctx context.Context, scope, query string) ([]ScoredChunk, error)
}

type retriever struct {
	log      *logger.Logger
	cfg      *config.Config
	embedder Embedder
	scopes   ScopeManager
}

func NewRetriever(log *logger.Logger, cfg *config.Config, embedder Embedder, scopes ScopeManager) (Retriever, error) {
	if log == nil || cfg == nil {
		return nil, fmt.Errorf("logger and config required")
	}
	if embedder == nil || scopes == nil {
		return nil, fmt.Errorf("embedder and scope manager required")
	}
	return &retriever{
		log:      log.With("service", "Retriever"),
		cfg:      cfg,
		embedder: embedder,
		scopes:   scopes,
	}, nil
}

func (s *retriever) Retrieve(ctx context.Context, scope, query string) ([]ScoredChunk, error) {
	query = strings.TrimSpace(query)
	if scope == "" {
		return nil, apperr.Errorf(apperr.KindValidation, "owner scope is required")
	}
	if query == "" {
		return nil, apperr.Errorf(apperr.KindValidation, "query is empty")
	}

	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	qvec := vecs[0]

	searchScopes := []string{scope}
	if scope != config.CommonScope {
		searchScopes = append(searchScopes, config.CommonScope)
	}

	// Searches run concurrently but merge in scope order, so goroutine
	// completion order never influences the result.
	perScope := make([][]ScoredChunk, len(searchScopes))
	g, gctx := errgroup.WithContext(ctx)
	for i, sc := range searchScopes {
		i, sc := i, sc
		g.Go(func() error {
			hits, err := s.scopes.Search(gctx, sc, qvec, s.cfg.TopK)
			if err != nil {
				return err
			}
			perScope[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var merged []ScoredChunk
	for _, hits := range perScope {
		merged = append(merged, hits...)
	}

	// Highest score wins; equal scores prefer the more recently indexed
	// chunk so fresh uploads surface for identical content. Remaining ties
	// fall back to document id then ordinal, a total order, so identical
	// queries always rank identically.
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		if !merged[i].IndexedAt.Equal(merged[j].IndexedAt) {
			return merged[i].IndexedAt.After(merged[j].IndexedAt)
		}
		if merged[i].DocumentID != merged[j].DocumentID {
			return merged[i].DocumentID.String() < merged[j].DocumentID.String()
		}
		return merged[i].Ordinal < merged[j].Ordinal
	})
	if len(merged) > s.cfg.TopK {
		merged = merged[:s.cfg.TopK]
	}

	s.log.Debug("Retrieved chunks", "scope", scope, "result_count", len(merged))
	return merged, nil
}
