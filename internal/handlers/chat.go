package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sevanet-labs/sevabot-backend/internal/apperr"
	"github.com/sevanet-labs/sevabot-backend/internal/services"
	"github.com/sevanet-labs/sevabot-backend/internal/types"
)

type ChatHandler struct {
	chat services.ChatService
}

func NewChatHandler(chat services.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

func (h *ChatHandler) CreateConversation(c *gin.Context) {
	var req struct {
		Owner        string `json:"owner"`
		FirstMessage string `json:"first_message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Errorf(apperr.KindValidation, "invalid request body"))
		return
	}
	conv, err := h.chat.CreateConversation(c.Request.Context(), req.Owner, req.FirstMessage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (h *ChatHandler) ListConversations(c *gin.Context) {
	convs, err := h.chat.ListConversations(c.Request.Context(), c.Query("owner"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

func (h *ChatHandler) GetConversation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperr.Errorf(apperr.KindValidation, "invalid conversation id"))
		return
	}
	conv, msgs, err := h.chat.GetConversation(c.Request.Context(), c.Query("owner"), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv, "messages": msgs})
}

func (h *ChatHandler) Ask(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperr.Errorf(apperr.KindValidation, "invalid conversation id"))
		return
	}
	var req struct {
		Owner   string `json:"owner"`
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Errorf(apperr.KindValidation, "invalid request body"))
		return
	}
	result, err := h.chat.Ask(c.Request.Context(), req.Owner, id, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"answer":               result.Answer,
		"citations":            result.Citations,
		"user_message_id":      result.UserMessageID,
		"assistant_message_id": result.AssistantMessageID,
	})
}

func (h *ChatHandler) SetFeedback(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperr.Errorf(apperr.KindValidation, "invalid message id"))
		return
	}
	var req struct {
		Feedback string `json:"feedback"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Errorf(apperr.KindValidation, "invalid request body"))
		return
	}
	if err := h.chat.SetFeedback(c.Request.Context(), id, types.Feedback(req.Feedback)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message_id": id, "feedback": req.Feedback})
}
