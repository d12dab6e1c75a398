package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/omniteacher/omniteacher-backend/internal/logger"
  "github.com/omniteacher/omniteacher-backend/internal/types"
)

type ChatSessionRepo interface {
  Create(ctx context.Context, tx *gorm.DB, rows []*types.ChatSession) ([]*types.ChatSession, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ChatSession, error)
  GetByStudentID(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) ([]*types.ChatSession, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error
}

type chatSessionRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewChatSessionRepo(db *gorm.DB, baseLog *logger.Logger) ChatSessionRepo {
  repoLog := baseLog.With("repo", "ChatSessionRepo")
  return &chatSessionRepo{db: db, log: repoLog}
}

func (r *chatSessionRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.ChatSession) ([]*types.ChatSession, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(rows) == 0 {
    return []*types.ChatSession{}, nil
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

func (r *chatSessionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ChatSession, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.ChatSession
  if len(ids) == 0 {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("id IN ?", ids).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *chatSessionRepo) GetByStudentID(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) ([]*types.ChatSession, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.ChatSession
  if err := transaction.WithContext(ctx).
    Where("student_id = ?", studentID).
    Order("created_at DESC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *chatSessionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(fields) == 0 {
    return nil
  }

  return transaction.WithContext(ctx).
    Model(&types.ChatSession{}).
    Where("id = ?", id).
    Updates(fields).Error
}
