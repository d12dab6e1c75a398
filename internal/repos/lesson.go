package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/omniteacher/omniteacher-backend/internal/logger"
  "github.com/omniteacher/omniteacher-backend/internal/types"
)

type LessonRepo interface {
  Create(ctx context.Context, tx *gorm.DB, rows []*types.Lesson) ([]*types.Lesson, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Lesson, error)
  GetByProgramID(ctx context.Context, tx *gorm.DB, programID uuid.UUID) ([]*types.Lesson, error)
  FullDeleteByProgramID(ctx context.Context, tx *gorm.DB, programID uuid.UUID) error
}

type lessonRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewLessonRepo(db *gorm.DB, baseLog *logger.Logger) LessonRepo {
  repoLog := baseLog.With("repo", "LessonRepo")
  return &lessonRepo{db: db, log: repoLog}
}

func (r *lessonRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Lesson) ([]*types.Lesson, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(rows) == 0 {
    return []*types.Lesson{}, nil
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

func (r *lessonRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Lesson, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.Lesson
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

func (r *lessonRepo) GetByProgramID(ctx context.Context, tx *gorm.DB, programID uuid.UUID) ([]*types.Lesson, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.Lesson
  if err := transaction.WithContext(ctx).
    Where("program_id = ?", programID).
    Order("order_index ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

// FullDeleteByProgramID removes every lesson of a program along with the
// attempts hanging off them. Used when a regenerated plan replaces the
// old one wholesale.
func (r *lessonRepo) FullDeleteByProgramID(ctx context.Context, tx *gorm.DB, programID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if err := transaction.WithContext(ctx).
    Where("lesson_id IN (?)", transaction.Model(&types.Lesson{}).
      Select("id").
      Where("program_id = ?", programID)).
    Delete(&types.LessonAttempt{}).Error; err != nil {
    return err
  }

  return transaction.WithContext(ctx).
    Where("program_id = ?", programID).
    Delete(&types.Lesson{}).Error
}
