package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
)

// Attempt statuses as submitted by the learner. The persisted status may be
// overridden by the mastery evaluation (positive stars force "completed",
// a claimed completion without stars downgrades to "needs_help").
const (
  AttemptStatusCompleted  = "completed"
  AttemptStatusInProgress = "in_progress"
  AttemptStatusNeedsHelp  = "needs_help"
  AttemptStatusSkipped    = "skipped"
)

type LessonAttempt struct {
  ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  LessonID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"lesson_id"`
  Lesson             *Lesson        `gorm:"constraint:OnDelete:CASCADE;foreignKey:LessonID;references:ID" json:"lesson,omitempty"`
  StudentID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"student_id"`
  Student            *Student       `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudentID;references:ID" json:"student,omitempty"`
  Status             string         `gorm:"column:status;not null" json:"status"`
  Answers            datatypes.JSON `gorm:"column:answers;type:jsonb;not null" json:"answers"`
  TeacherNotes       string         `gorm:"column:teacher_notes" json:"teacher_notes,omitempty"`
  Score              *int           `gorm:"column:score" json:"score,omitempty"`
  Stars              *int           `gorm:"column:stars" json:"stars,omitempty"`
  MasterySummary     string         `gorm:"column:mastery_summary" json:"mastery_summary,omitempty"`
  ReflectionPositive string         `gorm:"column:reflection_positive" json:"reflection_positive,omitempty"`
  ReflectionNegative string         `gorm:"column:reflection_negative" json:"reflection_negative,omitempty"`
  CreatedAt          time.Time      `gorm:"not null" json:"created_at"`
  UpdatedAt          time.Time      `gorm:"not null" json:"updated_at"`
}

func (LessonAttempt) TableName() string { return "lesson_attempt" }
