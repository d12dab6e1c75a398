package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/omniteacher/omniteacher-backend/internal/logger"
  "github.com/omniteacher/omniteacher-backend/internal/types"
)

type LearningProgramRepo interface {
  Create(ctx context.Context, tx *gorm.DB, rows []*types.LearningProgram) ([]*types.LearningProgram, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.LearningProgram, error)
  GetByStudentID(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) ([]*types.LearningProgram, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error
}

type learningProgramRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewLearningProgramRepo(db *gorm.DB, baseLog *logger.Logger) LearningProgramRepo {
  repoLog := baseLog.With("repo", "LearningProgramRepo")
  return &learningProgramRepo{db: db, log: repoLog}
}

func (r *learningProgramRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.LearningProgram) ([]*types.LearningProgram, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(rows) == 0 {
    return []*types.LearningProgram{}, nil
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

func (r *learningProgramRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.LearningProgram, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.LearningProgram
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

func (r *learningProgramRepo) GetByStudentID(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) ([]*types.LearningProgram, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.LearningProgram
  if studentID == uuid.Nil {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("student_id = ?", studentID).
    Order("created_at DESC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *learningProgramRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if id == uuid.Nil || len(fields) == 0 {
    return nil
  }

  if err := transaction.WithContext(ctx).
    Model(&types.LearningProgram{}).
    Where("id = ?", id).
    Updates(fields).Error; err != nil {
    return err
  }
  return nil
}
