package handlers

import (
  "errors"
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/omniteacher/omniteacher-backend/internal/apperr"
)

type APIError struct {
  Message string `json:"message"`
  Code    string `json:"code,omitempty"`
  Field   string `json:"field,omitempty"`
}

type ErrorEnvelope struct {
  Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
  msg := "unknown error"
  if err != nil {
    msg = err.Error()
  }
  c.JSON(status, ErrorEnvelope{
    Error: APIError{
      Message: msg,
      Code:    code,
    },
  })
}

func RespondOK(c *gin.Context, payload any) {
  c.JSON(http.StatusOK, payload)
}

// RespondDomainError maps the error taxonomy onto HTTP statuses: missing
// rows are 404, malformed input 422, domain rejections 400, and collaborator
// failures that blocked a state advance 502.
func RespondDomainError(c *gin.Context, err error) {
  var notFound *apperr.NotFoundError
  if errors.As(err, &notFound) {
    RespondError(c, http.StatusNotFound, "not_found", err)
    return
  }

  var validation *apperr.ValidationError
  if errors.As(err, &validation) {
    c.JSON(http.StatusUnprocessableEntity, ErrorEnvelope{
      Error: APIError{
        Message: validation.Detail,
        Code:    "validation_error",
        Field:   validation.Field,
      },
    })
    return
  }

  var businessRule *apperr.BusinessRuleError
  if errors.As(err, &businessRule) {
    RespondError(c, http.StatusBadRequest, "business_rule_violation", err)
    return
  }

  var collaborator *apperr.CollaboratorError
  if errors.As(err, &collaborator) {
    RespondError(c, http.StatusBadGateway, "collaborator_failure", err)
    return
  }

  RespondError(c, http.StatusInternalServerError, "internal_error", err)
}
