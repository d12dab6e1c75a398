package handlers

import (
  "fmt"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/omniteacher/omniteacher-backend/internal/services"
)

type ChatHandler struct {
  chat services.ChatService
}

func NewChatHandler(chat services.ChatService) *ChatHandler {
  return &ChatHandler{chat: chat}
}

// POST /api/chat/sessions
func (h *ChatHandler) CreateSession(c *gin.Context) {
  var input services.CreateSessionInput
  if err := c.ShouldBindJSON(&input); err != nil {
    RespondError(c, http.StatusUnprocessableEntity, "invalid_body", err)
    return
  }

  session, err := h.chat.CreateSession(c.Request.Context(), input)
  if err != nil {
    RespondDomainError(c, err)
    return
  }
  RespondOK(c, session)
}

// GET /api/chat/sessions/:id
func (h *ChatHandler) GetTranscript(c *gin.Context) {
  sessionID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid session id"))
    return
  }

  session, messages, err := h.chat.GetTranscript(c.Request.Context(), sessionID)
  if err != nil {
    RespondDomainError(c, err)
    return
  }
  RespondOK(c, gin.H{
    "session_id": session.ID,
    "messages":   messages,
  })
}
