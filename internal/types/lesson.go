package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
)

// Lesson rows are replaced wholesale whenever a diagnostic is re-evaluated.
// OrderIndex is 1-based and contiguous across the whole program, not per
// chapter.
type Lesson struct {
  ID               uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
  ProgramID        uuid.UUID        `gorm:"type:uuid;not null;index" json:"program_id"`
  Program          *LearningProgram `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProgramID;references:ID" json:"program,omitempty"`
  Chapter          string           `gorm:"column:chapter" json:"chapter,omitempty"`
  OrderIndex       int              `gorm:"column:order_index;not null" json:"order_index"`
  Title            string           `gorm:"column:title;not null" json:"title"`
  ContentMarkdown  string           `gorm:"column:content_markdown;not null" json:"content_markdown"`
  Objectives       datatypes.JSON   `gorm:"column:objectives;type:jsonb" json:"objectives"`
  MethodPlan       datatypes.JSON   `gorm:"column:method_plan;type:jsonb" json:"method_plan"`
  PracticePrompts  datatypes.JSON   `gorm:"column:practice_prompts;type:jsonb" json:"practice_prompts"`
  Assessment       datatypes.JSON   `gorm:"column:assessment;type:jsonb" json:"assessment"`
  Resources        datatypes.JSON   `gorm:"column:resources;type:jsonb" json:"resources"`
  EstimatedMinutes *int             `gorm:"column:estimated_minutes" json:"estimated_minutes,omitempty"`
  CreatedAt        time.Time        `gorm:"not null" json:"created_at"`
  UpdatedAt        time.Time        `gorm:"not null" json:"updated_at"`
}

func (Lesson) TableName() string { return "lesson" }
