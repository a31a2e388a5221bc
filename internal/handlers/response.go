package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sevanet-labs/sevabot-backend/internal/apperr"
)

// statusForKind maps the service error taxonomy onto HTTP statuses. The
// handlers never inspect error strings.
func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindExtraction:
		return http.StatusUnprocessableEntity
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindSessionLimit, apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindEmbeddingProvider, apperr.KindLLMProvider, apperr.KindArchiveWrite:
		return http.StatusBadGateway
	case apperr.KindVectorStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := statusForKind(kind)
	body := gin.H{"error": err.Error()}
	if kind != "" {
		body["kind"] = string(kind)
	}
	c.JSON(status, body)
}
