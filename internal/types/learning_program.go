package types

import (
  "encoding/json"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
)

// Program lifecycle states. Transitions only move forward except when a
// collaborator call fails, which reverts to the prior stable state and
// records the failure in Context.
const (
  ProgramStatusGeneratingQuiz     = "generating_quiz"
  ProgramStatusAwaitingDiagnostic = "awaiting_diagnostic"
  ProgramStatusGeneratingProgram  = "generating_program"
  ProgramStatusReady              = "ready"
)

type LearningProgram struct {
  ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  StudentID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"student_id"`
  Student      *Student       `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudentID;references:ID" json:"student,omitempty"`
  TopicPrompt  string         `gorm:"column:topic_prompt;not null" json:"topic_prompt"`
  Title        string         `gorm:"column:title;not null" json:"title"`
  Summary      string         `gorm:"column:summary" json:"summary,omitempty"`
  Status       string         `gorm:"column:status;not null;default:'generating_quiz'" json:"status"`
  SkillProfile string         `gorm:"column:skill_profile" json:"skill_profile,omitempty"`
  Context      datatypes.JSON `gorm:"column:context;type:jsonb" json:"context"`
  CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
  UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}

func (LearningProgram) TableName() string { return "learning_program" }

// GenerationError records why a collaborator call blocked a status advance.
type GenerationError struct {
  Message    string `json:"message"`
  StatusCode int    `json:"status_code,omitempty"`
  Stage      string `json:"stage"`
}

// ProgramContext is the closed set of fields stored in the program's context
// column. The AI collaborator never writes here directly; the lifecycle
// manager does, so the shape stays stable.
type ProgramContext struct {
  LearningGoal    string           `json:"learning_goal,omitempty"`
  StudentTraits   []string         `json:"student_traits,omitempty"`
  DiagnosticNotes string           `json:"diagnostic_notes,omitempty"`
  Analysis        map[string]any   `json:"analysis,omitempty"`
  Chapters        []map[string]any `json:"chapters,omitempty"`
  GenerationError *GenerationError `json:"generation_error,omitempty"`
}

func DecodeProgramContext(js datatypes.JSON) ProgramContext {
  var pc ProgramContext
  if len(js) == 0 {
    return pc
  }
  _ = json.Unmarshal(js, &pc)
  return pc
}

func (pc ProgramContext) JSON() datatypes.JSON {
  b, err := json.Marshal(pc)
  if err != nil {
    return datatypes.JSON([]byte(`{}`))
  }
  return datatypes.JSON(b)
}
