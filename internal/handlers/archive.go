package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sevanet-labs/sevabot-backend/internal/apperr"
	"github.com/sevanet-labs/sevabot-backend/internal/services"
)

type ArchiveHandler struct {
	archive services.ArchiveService
}

func NewArchiveHandler(archive services.ArchiveService) *ArchiveHandler {
	return &ArchiveHandler{archive: archive}
}

// DeleteConversation is the archive-then-delete entry point.
func (h *ArchiveHandler) DeleteConversation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperr.Errorf(apperr.KindValidation, "invalid conversation id"))
		return
	}
	if err := h.archive.DeleteConversation(c.Request.Context(), c.Query("owner"), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *ArchiveHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"enabled": h.archive.Enabled()})
}

func (h *ArchiveHandler) ListArchived(c *gin.Context) {
	owner := c.Query("owner")
	if owner == "" {
		respondError(c, apperr.Errorf(apperr.KindValidation, "owner is required"))
		return
	}
	entries, err := h.archive.ListArchived(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived_conversations": entries})
}

func (h *ArchiveHandler) GetArchived(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperr.Errorf(apperr.KindValidation, "invalid conversation id"))
		return
	}
	record, err := h.archive.GetArchived(c.Request.Context(), c.Query("owner"), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *ArchiveHandler) PurgeArchived(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperr.Errorf(apperr.KindValidation, "invalid conversation id"))
		return
	}
	if err := h.archive.PurgeArchived(c.Request.Context(), c.Query("owner"), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purged": id})
}
