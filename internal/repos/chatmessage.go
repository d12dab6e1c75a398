package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/omniteacher/omniteacher-backend/internal/logger"
  "github.com/omniteacher/omniteacher-backend/internal/types"
)

type ChatMessageRepo interface {
  Create(ctx context.Context, tx *gorm.DB, rows []*types.ChatMessage) ([]*types.ChatMessage, error)
  GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.ChatMessage, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error
}

type chatMessageRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewChatMessageRepo(db *gorm.DB, baseLog *logger.Logger) ChatMessageRepo {
  repoLog := baseLog.With("repo", "ChatMessageRepo")
  return &chatMessageRepo{db: db, log: repoLog}
}

func (r *chatMessageRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.ChatMessage) ([]*types.ChatMessage, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(rows) == 0 {
    return []*types.ChatMessage{}, nil
  }

  for _, row := range rows {
    if row.ID == uuid.Nil {
      row.ID = uuid.New()
    }
  }

  if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
    return nil, err
  }
  return rows, nil
}

func (r *chatMessageRepo) GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.ChatMessage, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.ChatMessage
  if err := transaction.WithContext(ctx).
    Where("session_id = ?", sessionID).
    Order("created_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *chatMessageRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(fields) == 0 {
    return nil
  }

  return transaction.WithContext(ctx).
    Model(&types.ChatMessage{}).
    Where("id = ?", id).
    Updates(fields).Error
}
