package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/omniteacher/omniteacher-backend/internal/logger"
  "github.com/omniteacher/omniteacher-backend/internal/types"
)

type QuizAttemptRepo interface {
  Create(ctx context.Context, tx *gorm.DB, rows []*types.QuizAttempt) ([]*types.QuizAttempt, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error
  GetByQuizIDs(ctx context.Context, tx *gorm.DB, quizIDs []uuid.UUID) ([]*types.QuizAttempt, error)
}

type quizAttemptRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewQuizAttemptRepo(db *gorm.DB, baseLog *logger.Logger) QuizAttemptRepo {
  repoLog := baseLog.With("repo", "QuizAttemptRepo")
  return &quizAttemptRepo{db: db, log: repoLog}
}

func (r *quizAttemptRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.QuizAttempt) ([]*types.QuizAttempt, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(rows) == 0 {
    return []*types.QuizAttempt{}, nil
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

func (r *quizAttemptRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(fields) == 0 {
    return nil
  }

  return transaction.WithContext(ctx).
    Model(&types.QuizAttempt{}).
    Where("id = ?", id).
    Updates(fields).Error
}

func (r *quizAttemptRepo) GetByQuizIDs(ctx context.Context, tx *gorm.DB, quizIDs []uuid.UUID) ([]*types.QuizAttempt, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.QuizAttempt
  if len(quizIDs) == 0 {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("quiz_id IN ?", quizIDs).
    Order("created_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
