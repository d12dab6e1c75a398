package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/omniteacher/omniteacher-backend/internal/logger"
  "github.com/omniteacher/omniteacher-backend/internal/types"
)

type DiagnosticQuizRepo interface {
  Create(ctx context.Context, tx *gorm.DB, rows []*types.DiagnosticQuiz) ([]*types.DiagnosticQuiz, error)
  GetByProgramIDs(ctx context.Context, tx *gorm.DB, programIDs []uuid.UUID) ([]*types.DiagnosticQuiz, error)
}

type diagnosticQuizRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewDiagnosticQuizRepo(db *gorm.DB, baseLog *logger.Logger) DiagnosticQuizRepo {
  repoLog := baseLog.With("repo", "DiagnosticQuizRepo")
  return &diagnosticQuizRepo{db: db, log: repoLog}
}

func (r *diagnosticQuizRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.DiagnosticQuiz) ([]*types.DiagnosticQuiz, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(rows) == 0 {
    return []*types.DiagnosticQuiz{}, nil
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

func (r *diagnosticQuizRepo) GetByProgramIDs(ctx context.Context, tx *gorm.DB, programIDs []uuid.UUID) ([]*types.DiagnosticQuiz, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.DiagnosticQuiz
  if len(programIDs) == 0 {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("program_id IN ?", programIDs).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
