package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sevanet-labs/sevabot-backend/internal/apperr"
	"github.com/sevanet-labs/sevabot-backend/internal/services"
)

type DocumentHandler struct {
	library services.LibraryService
}

func NewDocumentHandler(library services.LibraryService) *DocumentHandler {
	return &DocumentHandler{library: library}
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	scope := c.PostForm("scope")
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, apperr.Errorf(apperr.KindValidation, "multipart field 'file' is required"))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		respondError(c, apperr.Errorf(apperr.KindValidation, "unreadable upload: %v", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, apperr.Errorf(apperr.KindValidation, "unreadable upload: %v", err))
		return
	}

	result, err := h.library.Upload(c.Request.Context(), scope, fileHeader.Filename, data)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"document":  result.Document,
		"duplicate": result.Duplicate,
	})
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.library.List(c.Request.Context(), c.Query("scope"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperr.Errorf(apperr.KindValidation, "invalid document id"))
		return
	}
	if err := h.library.Delete(c.Request.Context(), c.Query("scope"), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *DocumentHandler) Stats(c *gin.Context) {
	stats, err := h.library.Stats(c.Request.Context(), c.Param("scope"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
