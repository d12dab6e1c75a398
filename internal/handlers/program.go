package handlers

import (
  "fmt"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/omniteacher/omniteacher-backend/internal/services"
)

type ProgramHandler struct {
  programs services.ProgramService
}

func NewProgramHandler(programs services.ProgramService) *ProgramHandler {
  return &ProgramHandler{programs: programs}
}

// POST /api/students/:id/topics
func (h *ProgramHandler) AddTopic(c *gin.Context) {
  studentID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid student id"))
    return
  }

  var input services.TopicInput
  if err := c.ShouldBindJSON(&input); err != nil {
    RespondError(c, http.StatusUnprocessableEntity, "invalid_body", err)
    return
  }

  view, err := h.programs.CreateProgram(c.Request.Context(), studentID, input)
  if err != nil {
    RespondDomainError(c, err)
    return
  }
  RespondOK(c, view)
}

// GET /api/programs/:id
func (h *ProgramHandler) GetProgram(c *gin.Context) {
  programID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid program id"))
    return
  }

  view, err := h.programs.GetProgramView(c.Request.Context(), programID)
  if err != nil {
    RespondDomainError(c, err)
    return
  }
  RespondOK(c, view)
}

type diagnosticSubmission struct {
  Answers map[string]any `json:"answers"`
}

// POST /api/programs/:id/diagnostic/submit
func (h *ProgramHandler) SubmitDiagnostic(c *gin.Context) {
  programID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid program id"))
    return
  }

  var submission diagnosticSubmission
  if err := c.ShouldBindJSON(&submission); err != nil {
    RespondError(c, http.StatusUnprocessableEntity, "invalid_body", err)
    return
  }

  view, attempt, err := h.programs.SubmitDiagnostic(c.Request.Context(), programID, submission.Answers)
  if err != nil {
    RespondDomainError(c, err)
    return
  }
  RespondOK(c, gin.H{"program": view, "attempt": attempt})
}
