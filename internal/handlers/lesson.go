package handlers

import (
  "fmt"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/omniteacher/omniteacher-backend/internal/services"
)

type LessonHandler struct {
  programs services.ProgramService
}

func NewLessonHandler(programs services.ProgramService) *LessonHandler {
  return &LessonHandler{programs: programs}
}

// POST /api/lessons/:id/complete
func (h *LessonHandler) Complete(c *gin.Context) {
  lessonID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid lesson id"))
    return
  }

  var input services.LessonCompletionInput
  if err := c.ShouldBindJSON(&input); err != nil {
    RespondError(c, http.StatusUnprocessableEntity, "invalid_body", err)
    return
  }

  lesson, attempt, err := h.programs.CompleteLesson(c.Request.Context(), lessonID, input)
  if err != nil {
    RespondDomainError(c, err)
    return
  }
  RespondOK(c, gin.H{"lesson": lesson, "attempt": attempt})
}
