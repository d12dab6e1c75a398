package handlers

import (
  "fmt"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/omniteacher/omniteacher-backend/internal/services"
)

type StudentHandler struct {
  programs services.ProgramService
  progress services.ProgressService
}

func NewStudentHandler(programs services.ProgramService, progress services.ProgressService) *StudentHandler {
  return &StudentHandler{programs: programs, progress: progress}
}

// POST /api/students
func (h *StudentHandler) Register(c *gin.Context) {
  var input services.CreateStudentInput
  if err := c.ShouldBindJSON(&input); err != nil {
    RespondError(c, http.StatusUnprocessableEntity, "invalid_body", err)
    return
  }

  student, err := h.programs.CreateStudent(c.Request.Context(), input)
  if err != nil {
    RespondDomainError(c, err)
    return
  }
  RespondOK(c, student)
}

// GET /api/students/:id/catalog
func (h *StudentHandler) Catalog(c *gin.Context) {
  studentID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid student id"))
    return
  }

  programs, err := h.programs.ListCatalog(c.Request.Context(), studentID)
  if err != nil {
    RespondDomainError(c, err)
    return
  }
  RespondOK(c, programs)
}

// GET /api/students/:id/progress
func (h *StudentHandler) Progress(c *gin.Context) {
  studentID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid student id"))
    return
  }

  snapshot, err := h.progress.CaptureProgress(c.Request.Context(), studentID)
  if err != nil {
    RespondDomainError(c, err)
    return
  }
  RespondOK(c, snapshot)
}
