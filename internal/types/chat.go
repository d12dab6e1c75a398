package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
)

const (
  ChatSenderStudent   = "student"
  ChatSenderAssistant = "assistant"

  ChatContentTypeText  = "text"
  ChatContentTypeImage = "image"
)

// ChatSession identity is supplied by the client, one session per external
// session identifier.
type ChatSession struct {
  ID           uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
  StudentID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"student_id"`
  Student      *Student         `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudentID;references:ID" json:"student,omitempty"`
  ProgramID    *uuid.UUID       `gorm:"type:uuid;index" json:"program_id,omitempty"`
  Program      *LearningProgram `gorm:"constraint:OnDelete:SET NULL;foreignKey:ProgramID;references:ID" json:"program,omitempty"`
  Title        string           `gorm:"column:title;not null;default:'Study chat'" json:"title"`
  TTSEnabled   bool             `gorm:"column:tts_enabled;not null;default:false" json:"tts_enabled"`
  PersonaState datatypes.JSON   `gorm:"column:persona_state;type:jsonb" json:"persona_state"`
  CreatedAt    time.Time        `gorm:"not null" json:"created_at"`
  UpdatedAt    time.Time        `gorm:"not null" json:"updated_at"`
}

func (ChatSession) TableName() string { return "chat_session" }

type ChatMessage struct {
  ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  SessionID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"session_id"`
  Session       *ChatSession   `gorm:"constraint:OnDelete:CASCADE;foreignKey:SessionID;references:ID" json:"session,omitempty"`
  Sender        string         `gorm:"column:sender;not null" json:"sender"`
  ContentType   string         `gorm:"column:content_type;not null" json:"content_type"`
  TextContent   string         `gorm:"column:text_content" json:"text_content,omitempty"`
  ImageURL      string         `gorm:"column:image_url" json:"image_url,omitempty"`
  AudioURL      string         `gorm:"column:audio_url" json:"audio_url,omitempty"`
  RenderFormats datatypes.JSON `gorm:"column:render_formats;type:jsonb" json:"render_formats"`
  Annotations   datatypes.JSON `gorm:"column:annotations;type:jsonb" json:"annotations"`
  CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
  UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
}

func (ChatMessage) TableName() string { return "chat_message" }
