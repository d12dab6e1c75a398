package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/omniteacher/omniteacher-backend/internal/logger"
  "github.com/omniteacher/omniteacher-backend/internal/types"
)

type StudentRepo interface {
  Create(ctx context.Context, tx *gorm.DB, rows []*types.Student) ([]*types.Student, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Student, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error
}

type studentRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewStudentRepo(db *gorm.DB, baseLog *logger.Logger) StudentRepo {
  repoLog := baseLog.With("repo", "StudentRepo")
  return &studentRepo{db: db, log: repoLog}
}

func (r *studentRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Student) ([]*types.Student, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(rows) == 0 {
    return []*types.Student{}, nil
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

func (r *studentRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Student, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.Student
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

func (r *studentRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if id == uuid.Nil || len(fields) == 0 {
    return nil
  }

  if err := transaction.WithContext(ctx).
    Model(&types.Student{}).
    Where("id = ?", id).
    Updates(fields).Error; err != nil {
    return err
  }
  return nil
}
