package main

import (
  "context"
  "fmt"
  "os"

  "github.com/omniteacher/omniteacher-backend/internal/db"
  "github.com/omniteacher/omniteacher-backend/internal/handlers"
  "github.com/omniteacher/omniteacher-backend/internal/logger"
  "github.com/omniteacher/omniteacher-backend/internal/repos"
  "github.com/omniteacher/omniteacher-backend/internal/server"
  "github.com/omniteacher/omniteacher-backend/internal/services"
  "github.com/omniteacher/omniteacher-backend/internal/utils"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Database
  databaseService, err := db.NewDatabaseService(log)
  if err != nil {
    log.Error("Database init failed", "error", err)
    os.Exit(1)
  }
  if err = databaseService.AutoMigrateAll(); err != nil {
    log.Error("Auto migration failed", "error", err)
    os.Exit(1)
  }
  theDB := databaseService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  studentRepo := repos.NewStudentRepo(theDB, log)
  programRepo := repos.NewLearningProgramRepo(theDB, log)
  quizRepo := repos.NewDiagnosticQuizRepo(theDB, log)
  quizAttemptRepo := repos.NewQuizAttemptRepo(theDB, log)
  lessonRepo := repos.NewLessonRepo(theDB, log)
  lessonAttemptRepo := repos.NewLessonAttemptRepo(theDB, log)
  chatSessionRepo := repos.NewChatSessionRepo(theDB, log)
  chatMessageRepo := repos.NewChatMessageRepo(theDB, log)

  // Services
  log.Info("Setting up Services from main...")
  omniClient, err := services.NewOmniClient(log)
  if err != nil {
    log.Error("Could not init OmniClient", "error", err)
    os.Exit(1)
  }
  bucketService, err := services.NewBucketService(log)
  if err != nil {
    log.Error("Could not init BucketService", "error", err)
    os.Exit(1)
  }
  if err := bucketService.EnsureBucket(context.Background()); err != nil {
    log.Warn("Could not ensure audio bucket", "error", err)
  }

  programService := services.NewProgramService(
    theDB,
    omniClient,
    studentRepo,
    programRepo,
    quizRepo,
    quizAttemptRepo,
    lessonRepo,
    lessonAttemptRepo,
    log,
  )
  chatService := services.NewChatService(
    omniClient,
    bucketService,
    studentRepo,
    programRepo,
    chatSessionRepo,
    chatMessageRepo,
    log,
  )
  progressService := services.NewProgressService(
    programService,
    programRepo,
    lessonRepo,
    lessonAttemptRepo,
    log,
  )

  // Handlers
  log.Info("Setting up Handlers from main...")
  studentHandler := handlers.NewStudentHandler(programService, progressService)
  programHandler := handlers.NewProgramHandler(programService)
  lessonHandler := handlers.NewLessonHandler(programService)
  chatHandler := handlers.NewChatHandler(chatService)
  realtimeHandler := handlers.NewRealtimeHandler(chatService, log)

  // Router
  router := server.NewRouter(server.RouterConfig{
    Log:             log,
    StudentHandler:  studentHandler,
    ProgramHandler:  programHandler,
    LessonHandler:   lessonHandler,
    ChatHandler:     chatHandler,
    RealtimeHandler: realtimeHandler,
  })

  port := utils.GetEnv("PORT", "8080", log)
  log.Info("Starting server...", "port", port)
  if err := router.Run(":" + port); err != nil {
    log.Fatal("Server exited", "error", err)
  }
}
