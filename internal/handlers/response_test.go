package handlers

import (
  "encoding/json"
  "errors"
  "net/http"
  "net/http/httptest"
  "testing"

  "github.com/gin-gonic/gin"

  "github.com/omniteacher/omniteacher-backend/internal/apperr"
)

func domainErrorResponse(t *testing.T, err error) (int, ErrorEnvelope) {
  t.Helper()
  gin.SetMode(gin.TestMode)

  recorder := httptest.NewRecorder()
  c, _ := gin.CreateTestContext(recorder)
  RespondDomainError(c, err)

  var envelope ErrorEnvelope
  if err := json.Unmarshal(recorder.Body.Bytes(), &envelope); err != nil {
    t.Fatalf("decode body: %v", err)
  }
  return recorder.Code, envelope
}

func TestRespondDomainErrorMapping(t *testing.T) {
  cases := []struct {
    name       string
    err        error
    wantStatus int
    wantCode   string
  }{
    {"not found", apperr.NotFound("lesson"), http.StatusNotFound, "not_found"},
    {"validation", apperr.Invalid("topic", "topic is required"), http.StatusUnprocessableEntity, "validation_error"},
    {"business rule", apperr.BusinessRule("lesson is locked"), http.StatusBadRequest, "business_rule_violation"},
    {"collaborator", apperr.Collaborator("chat_reply", 503, errors.New("down")), http.StatusBadGateway, "collaborator_failure"},
    {"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
  }

  for _, tc := range cases {
    status, envelope := domainErrorResponse(t, tc.err)
    if status != tc.wantStatus {
      t.Errorf("%s: status = %d, want %d", tc.name, status, tc.wantStatus)
    }
    if envelope.Error.Code != tc.wantCode {
      t.Errorf("%s: code = %q, want %q", tc.name, envelope.Error.Code, tc.wantCode)
    }
  }
}

func TestRespondDomainErrorValidationField(t *testing.T) {
  _, envelope := domainErrorResponse(t, apperr.Invalid("display_name", "display name is required"))
  if envelope.Error.Field != "display_name" {
    t.Fatalf("field = %q", envelope.Error.Field)
  }
  if envelope.Error.Message != "display name is required" {
    t.Fatalf("message = %q", envelope.Error.Message)
  }
}

func TestRespondDomainErrorWrappedError(t *testing.T) {
  wrapped := errors.Join(errors.New("context"), apperr.NotFound("program"))
  status, _ := domainErrorResponse(t, wrapped)
  if status != http.StatusNotFound {
    t.Fatalf("wrapped not-found status = %d", status)
  }
}
