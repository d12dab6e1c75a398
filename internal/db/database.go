package db

import (
  "fmt"
  "strings"

  "gorm.io/driver/postgres"
  "gorm.io/driver/sqlite"
  "gorm.io/gorm"

  "github.com/omniteacher/omniteacher-backend/internal/logger"
  "github.com/omniteacher/omniteacher-backend/internal/types"
  "github.com/omniteacher/omniteacher-backend/internal/utils"
)

type DatabaseService struct {
  db  *gorm.DB
  log *logger.Logger
}

// NewDatabaseService opens Postgres by default; DB_DRIVER=sqlite switches to
// a local file database for development. The models carry no function-call
// column defaults, so the same schema migrates on both drivers: the repos
// assign primary keys on insert and gorm fills the timestamps.
func NewDatabaseService(log *logger.Logger) (*DatabaseService, error) {
  serviceLog := log.With("service", "DatabaseService")

  driver := strings.ToLower(utils.GetEnv("DB_DRIVER", "postgres", log))
  if driver == "sqlite" {
    path := utils.GetEnv("SQLITE_PATH", "omniteacher.db", log)
    serviceLog.Info("Connecting to SQLite...", "path", path)
    sqliteDB, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
    if err != nil {
      return nil, fmt.Errorf("Failed to connect to SQLite: %w", err)
    }
    return &DatabaseService{db: sqliteDB, log: serviceLog}, nil
  }

  postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
  postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
  postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
  postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
  postgresName := utils.GetEnv("POSTGRES_NAME", "omniteacher", log)

  dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

  serviceLog.Info("Connecting to Postgres...")
  pg, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
    DisableForeignKeyConstraintWhenMigrating: true,
  })
  if err != nil {
    serviceLog.Error("Failed to connect to Postgres", "error", err)
    return nil, fmt.Errorf("Failed to connect to Postgres: %w", err)
  }

  return &DatabaseService{db: pg, log: serviceLog}, nil
}

func (s *DatabaseService) AutoMigrateAll() error {
  s.log.Info("Auto migrating tables...")
  err := s.db.AutoMigrate(
    &types.Student{},
    &types.LearningProgram{},
    &types.DiagnosticQuiz{},
    &types.QuizAttempt{},
    &types.Lesson{},
    &types.LessonAttempt{},
    &types.ChatSession{},
    &types.ChatMessage{},
  )
  if err != nil {
    s.log.Error("Auto migration failed", "error", err)
    return err
  }
  return nil
}

func (s *DatabaseService) DB() *gorm.DB {
  return s.db
}
