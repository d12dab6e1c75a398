package apperr

import "fmt"

// NotFoundError marks a missing student/program/lesson/session row.
type NotFoundError struct {
  Resource string
}

func (e *NotFoundError) Error() string {
  if e == nil {
    return "not found"
  }
  return fmt.Sprintf("%s not found", e.Resource)
}

func NotFound(resource string) error {
  return &NotFoundError{Resource: resource}
}

// ValidationError marks malformed input shape, surfaced per field.
type ValidationError struct {
  Field  string
  Detail string
}

func (e *ValidationError) Error() string {
  if e == nil {
    return "invalid input"
  }
  if e.Field == "" {
    return e.Detail
  }
  return fmt.Sprintf("%s: %s", e.Field, e.Detail)
}

func Invalid(field, detail string) error {
  return &ValidationError{Field: field, Detail: detail}
}

// BusinessRuleError marks a well-formed request the domain rejects, e.g.
// completing a locked lesson or submitting a diagnostic with no quiz.
type BusinessRuleError struct {
  Detail string
}

func (e *BusinessRuleError) Error() string {
  if e == nil {
    return "business rule violation"
  }
  return e.Detail
}

func BusinessRule(detail string) error {
  return &BusinessRuleError{Detail: detail}
}

// CollaboratorError wraps a failed AI/voice/storage round-trip. StatusCode is
// the upstream HTTP status when one was observed, zero otherwise. Stage names
// the lifecycle step the failure interrupted ("diagnostic_quiz",
// "program_evaluation", ...).
type CollaboratorError struct {
  Message    string
  StatusCode int
  Stage      string
  Err        error
}

func (e *CollaboratorError) Error() string {
  if e == nil {
    return "collaborator failure"
  }
  if e.Message != "" {
    return e.Message
  }
  if e.Err != nil {
    return e.Err.Error()
  }
  return "collaborator failure"
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

func Collaborator(stage string, statusCode int, err error) *CollaboratorError {
  msg := ""
  if err != nil {
    msg = err.Error()
  }
  return &CollaboratorError{Message: msg, StatusCode: statusCode, Stage: stage, Err: err}
}
