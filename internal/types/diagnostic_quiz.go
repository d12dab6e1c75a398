package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
)

// DiagnosticQuiz is created once per program and never regenerated;
// resubmitting the diagnostic re-evaluates the same questions.
type DiagnosticQuiz struct {
  ID           uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
  ProgramID    uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex" json:"program_id"`
  Program      *LearningProgram `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProgramID;references:ID" json:"program,omitempty"`
  Instructions string           `gorm:"column:instructions" json:"instructions,omitempty"`
  Questions    datatypes.JSON   `gorm:"column:questions;type:jsonb;not null" json:"questions"`
  CreatedAt    time.Time        `gorm:"not null" json:"created_at"`
  UpdatedAt    time.Time        `gorm:"not null" json:"updated_at"`
}

func (DiagnosticQuiz) TableName() string { return "diagnostic_quiz" }

type QuizAttempt struct {
  ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
  QuizID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"quiz_id"`
  Quiz      *DiagnosticQuiz `gorm:"constraint:OnDelete:CASCADE;foreignKey:QuizID;references:ID" json:"quiz,omitempty"`
  StudentID uuid.UUID       `gorm:"type:uuid;not null;index" json:"student_id"`
  Student   *Student        `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudentID;references:ID" json:"student,omitempty"`
  Responses datatypes.JSON  `gorm:"column:responses;type:jsonb;not null" json:"responses"`
  Score     *int            `gorm:"column:score" json:"score,omitempty"`
  Analysis  datatypes.JSON  `gorm:"column:analysis;type:jsonb" json:"analysis,omitempty"`
  CreatedAt time.Time       `gorm:"not null" json:"created_at"`
  UpdatedAt time.Time       `gorm:"not null" json:"updated_at"`
}

func (QuizAttempt) TableName() string { return "quiz_attempt" }
