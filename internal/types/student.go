package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
)

type Student struct {
  ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  DisplayName string         `gorm:"column:display_name;not null" json:"display_name"`
  Age         *int           `gorm:"column:age" json:"age,omitempty"`
  Grade       string         `gorm:"column:grade" json:"grade,omitempty"`
  Preferences datatypes.JSON `gorm:"column:preferences;type:jsonb" json:"preferences"`
  CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
  UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (Student) TableName() string { return "student" }
