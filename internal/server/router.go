package server

import (
  "strings"

  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"

  "github.com/omniteacher/omniteacher-backend/internal/handlers"
  "github.com/omniteacher/omniteacher-backend/internal/logger"
  "github.com/omniteacher/omniteacher-backend/internal/utils"
)

type RouterConfig struct {
  Log             *logger.Logger
  StudentHandler  *handlers.StudentHandler
  ProgramHandler  *handlers.ProgramHandler
  LessonHandler   *handlers.LessonHandler
  ChatHandler     *handlers.ChatHandler
  RealtimeHandler *handlers.RealtimeHandler
}

var defaultCORSOrigins = []string{
  "http://localhost:3000",
  "http://127.0.0.1:3000",
  "http://localhost:5173",
  "http://127.0.0.1:5173",
}

func corsOrigins(log *logger.Logger) []string {
  raw := utils.GetEnv("CORS_ORIGINS", "", log)
  if strings.TrimSpace(raw) == "" {
    return defaultCORSOrigins
  }
  var origins []string
  for _, part := range strings.Split(raw, ",") {
    if trimmed := strings.TrimSpace(part); trimmed != "" {
      origins = append(origins, trimmed)
    }
  }
  if len(origins) == 0 {
    return defaultCORSOrigins
  }
  return origins
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins:     corsOrigins(cfg.Log),
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: utils.GetEnvAsBool("CORS_ALLOW_CREDENTIALS", false, cfg.Log),
  }))

  router.GET("/healthcheck", handlers.HealthCheck)

  api := router.Group("/api")
  {
    // Students
    api.POST("/students", cfg.StudentHandler.Register)
    api.GET("/students/:id/catalog", cfg.StudentHandler.Catalog)
    api.GET("/students/:id/progress", cfg.StudentHandler.Progress)
    api.POST("/students/:id/topics", cfg.ProgramHandler.AddTopic)

    // Programs
    api.GET("/programs/:id", cfg.ProgramHandler.GetProgram)
    api.POST("/programs/:id/diagnostic/submit", cfg.ProgramHandler.SubmitDiagnostic)

    // Lessons
    api.POST("/lessons/:id/complete", cfg.LessonHandler.Complete)

    // Chat
    api.POST("/chat/sessions", cfg.ChatHandler.CreateSession)
    api.GET("/chat/sessions/:id", cfg.ChatHandler.GetTranscript)
  }

  // Realtime chat
  router.GET("/ws/chat/:id", cfg.RealtimeHandler.ChatSocket)

  return router
}
