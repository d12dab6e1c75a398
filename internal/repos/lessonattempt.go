package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/omniteacher/omniteacher-backend/internal/logger"
  "github.com/omniteacher/omniteacher-backend/internal/types"
)

type LessonAttemptRepo interface {
  Create(ctx context.Context, tx *gorm.DB, rows []*types.LessonAttempt) ([]*types.LessonAttempt, error)
  GetByLessonIDs(ctx context.Context, tx *gorm.DB, lessonIDs []uuid.UUID) ([]*types.LessonAttempt, error)
  GetByStudentID(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) ([]*types.LessonAttempt, error)
}

type lessonAttemptRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewLessonAttemptRepo(db *gorm.DB, baseLog *logger.Logger) LessonAttemptRepo {
  repoLog := baseLog.With("repo", "LessonAttemptRepo")
  return &lessonAttemptRepo{db: db, log: repoLog}
}

func (r *lessonAttemptRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.LessonAttempt) ([]*types.LessonAttempt, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(rows) == 0 {
    return []*types.LessonAttempt{}, nil
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

func (r *lessonAttemptRepo) GetByLessonIDs(ctx context.Context, tx *gorm.DB, lessonIDs []uuid.UUID) ([]*types.LessonAttempt, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.LessonAttempt
  if len(lessonIDs) == 0 {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("lesson_id IN ?", lessonIDs).
    Order("created_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *lessonAttemptRepo) GetByStudentID(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) ([]*types.LessonAttempt, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.LessonAttempt
  if err := transaction.WithContext(ctx).
    Where("student_id = ?", studentID).
    Order("created_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
