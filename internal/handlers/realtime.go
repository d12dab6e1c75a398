package handlers

import (
  "context"
  "errors"
  "net/http"
  "strings"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/gorilla/websocket"

  "github.com/omniteacher/omniteacher-backend/internal/apperr"
  "github.com/omniteacher/omniteacher-backend/internal/logger"
  "github.com/omniteacher/omniteacher-backend/internal/services"
  "github.com/omniteacher/omniteacher-backend/internal/types"
)

var upgrader = websocket.Upgrader{
  CheckOrigin: func(r *http.Request) bool {
    return true
  },
  ReadBufferSize:  1024 * 1024,
  WriteBufferSize: 1024 * 1024,
}

type historyFrame struct {
  Type     string               `json:"type"`
  Messages []*types.ChatMessage `json:"messages"`
}

type messageFrame struct {
  Type    string             `json:"type"`
  Message *types.ChatMessage `json:"message"`
}

type errorFrame struct {
  Type   string   `json:"type"`
  Detail []string `json:"detail"`
}

type RealtimeHandler struct {
  log  *logger.Logger
  chat services.ChatService
}

func NewRealtimeHandler(chat services.ChatService, baseLog *logger.Logger) *RealtimeHandler {
  return &RealtimeHandler{
    log:  baseLog.With("handler", "RealtimeHandler"),
    chat: chat,
  }
}

func (h *RealtimeHandler) sendJSON(ws *websocket.Conn, v any) error {
  err := ws.WriteJSON(v)
  if err != nil {
    h.log.Warn("Failed to write websocket frame", "error", err)
  }
  return err
}

// GET /ws/chat/:id?student_id=...&program_id=...&tts=true
//
// One read loop per connection: inbound messages are processed strictly in
// arrival order, so two reply generations for the same session never
// interleave.
func (h *RealtimeHandler) ChatSocket(c *gin.Context) {
  sessionID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_id", errors.New("invalid session id"))
    return
  }

  ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
  if err != nil {
    h.log.Error("Failed to upgrade websocket", "error", err)
    return
  }
  defer ws.Close()

  studentID, err := uuid.Parse(c.Query("student_id"))
  if err != nil {
    closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "student_id required")
    _ = ws.WriteMessage(websocket.CloseMessage, closeMsg)
    return
  }

  var programID *uuid.UUID
  if raw := c.Query("program_id"); raw != "" {
    if parsed, parseErr := uuid.Parse(raw); parseErr == nil {
      programID = &parsed
    }
  }
  ttsEnabled := strings.EqualFold(c.Query("tts"), "true")

  ctx := c.Request.Context()
  session, err := h.chat.GetOrCreateSession(ctx, sessionID, studentID, programID, ttsEnabled)
  if err != nil {
    h.log.Warn("Failed to open chat session", "session_id", sessionID, "error", err)
    _ = h.sendJSON(ws, errorFrame{Type: "error", Detail: []string{err.Error()}})
    return
  }

  history, err := h.chat.RecentHistory(ctx, session.ID)
  if err != nil {
    h.log.Error("Failed to load chat history", "session_id", session.ID, "error", err)
    _ = h.sendJSON(ws, errorFrame{Type: "error", Detail: []string{err.Error()}})
    return
  }
  if history == nil {
    history = []*types.ChatMessage{}
  }
  if err := h.sendJSON(ws, historyFrame{Type: "history", Messages: history}); err != nil {
    return
  }

  for {
    var inbound services.ChatMessageInput
    if err := ws.ReadJSON(&inbound); err != nil {
      h.log.Info("Websocket client disconnected", "session_id", session.ID, "error", err.Error())
      return
    }

    // A disconnect mid-reply must not lose the reply or its audio, so the
    // exchange runs on a context detached from the request's cancellation.
    exchangeCtx := context.WithoutCancel(ctx)

    studentMessage, err := h.chat.AppendMessage(exchangeCtx, session, types.ChatSenderStudent, inbound)
    if err != nil {
      var validation *apperr.ValidationError
      if errors.As(err, &validation) {
        // Schema failures keep the connection open.
        if sendErr := h.sendJSON(ws, errorFrame{Type: "error", Detail: []string{validation.Error()}}); sendErr != nil {
          return
        }
        continue
      }
      h.log.Error("Failed to persist student message", "session_id", session.ID, "error", err)
      _ = h.sendJSON(ws, errorFrame{Type: "error", Detail: []string{err.Error()}})
      return
    }
    if err := h.sendJSON(ws, messageFrame{Type: "student_message", Message: studentMessage}); err != nil {
      return
    }

    assistantMessage, err := h.chat.GenerateReply(exchangeCtx, session, inbound.GenerateVoice)
    if err != nil {
      h.log.Error("Failed to generate reply", "session_id", session.ID, "error", err)
      _ = h.sendJSON(ws, errorFrame{Type: "error", Detail: []string{err.Error()}})
      return
    }
    if err := h.sendJSON(ws, messageFrame{Type: "assistant_message", Message: assistantMessage}); err != nil {
      return
    }
  }
}
