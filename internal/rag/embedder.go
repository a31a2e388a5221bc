package rag

import (
	"context"
	"fmt"

	"github.com/sevanet-labs/sevabot-backend/internal/apperr"
	"github.com/sevanet-labs/sevabot-backend/internal/clients/openai"
	"github.com/sevanet-labs/sevabot-backend/internal/logger"
)

// embedBatchSize keeps each provider request bounded; large documents go
// over the wire in several calls.
const embedBatchSize = 100

// Embedder turns text into fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

type embeddingGateway struct {
	log *logger.Logger
	ai  openai.Client
}

func NewEmbeddingGateway(log *logger.Logger, ai openai.Client) (Embedder, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if ai == nil {
		return nil, fmt.Errorf("openai client required")
	}
	return &embeddingGateway{
		log: log.With("service", "EmbeddingGateway"),
		ai:  ai,
	}, nil
}

func (g *embeddingGateway) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, 0, len(inputs))
	dim := 0
	for start := 0; start < len(inputs); start += embedBatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + embedBatchSize
		if end > len(inputs) {
			end = len(inputs)
		}

		vecs, err := g.ai.Embed(ctx, inputs[start:end])
		if err != nil {
			return nil, apperr.New(apperr.KindEmbeddingProvider,
				fmt.Errorf("embed batch %d-%d of %d: %w", start, end, len(inputs), err))
		}
		if len(vecs) != end-start {
			return nil, apperr.Errorf(apperr.KindEmbeddingProvider,
				"embed batch %d-%d: requested %d vectors, got %d", start, end, end-start, len(vecs))
		}

		for i, v := range vecs {
			if dim == 0 {
				dim = len(v)
			}
			if len(v) == 0 || len(v) != dim {
				return nil, apperr.Errorf(apperr.KindEmbeddingProvider,
					"embedding %d has dimension %d, expected %d", start+i, len(v), dim)
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}
