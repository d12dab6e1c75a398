package services

import (
  "context"
  "fmt"
  "strings"

  "github.com/google/uuid"

  "github.com/omniteacher/omniteacher-backend/internal/logger"
  "github.com/omniteacher/omniteacher-backend/internal/mastery"
  "github.com/omniteacher/omniteacher-backend/internal/repos"
  "github.com/omniteacher/omniteacher-backend/internal/types"
)

const maxBadges = 6

// ProgressSnapshot is the roll-up of a student's work across all programs.
type ProgressSnapshot struct {
  Student           *types.Student `json:"student"`
  CompletedLessons  int            `json:"completed_lessons"`
  InProgressLessons int            `json:"in_progress_lessons"`
  TotalPrograms     int            `json:"total_programs"`
  Badges            []string       `json:"badges"`
}

type ProgressService interface {
  CaptureProgress(ctx context.Context, studentID uuid.UUID) (*ProgressSnapshot, error)
}

type progressService struct {
  log         *logger.Logger
  programs    ProgramService
  programRepo repos.LearningProgramRepo
  lessonRepo  repos.LessonRepo
  lessonAtt   repos.LessonAttemptRepo
}

func NewProgressService(
  programs ProgramService,
  programRepo repos.LearningProgramRepo,
  lessonRepo repos.LessonRepo,
  lessonAtt repos.LessonAttemptRepo,
  baseLog *logger.Logger,
) ProgressService {
  return &progressService{
    log:         baseLog.With("service", "ProgressService"),
    programs:    programs,
    programRepo: programRepo,
    lessonRepo:  lessonRepo,
    lessonAtt:   lessonAtt,
  }
}

func (s *progressService) CaptureProgress(ctx context.Context, studentID uuid.UUID) (*ProgressSnapshot, error) {
  student, err := s.programs.GetStudent(ctx, studentID)
  if err != nil {
    return nil, err
  }

  programs, err := s.programRepo.GetByStudentID(ctx, nil, studentID)
  if err != nil {
    return nil, fmt.Errorf("failed to list programs: %w", err)
  }

  snapshot := &ProgressSnapshot{
    Student:       student,
    TotalPrograms: len(programs),
    Badges:        []string{},
  }

  for _, program := range programs {
    lessons, err := s.lessonRepo.GetByProgramID(ctx, nil, program.ID)
    if err != nil {
      return nil, fmt.Errorf("failed to load lessons: %w", err)
    }
    lessonIDs := make([]uuid.UUID, 0, len(lessons))
    for _, lesson := range lessons {
      lessonIDs = append(lessonIDs, lesson.ID)
    }
    attempts, err := s.lessonAtt.GetByLessonIDs(ctx, nil, lessonIDs)
    if err != nil {
      return nil, fmt.Errorf("failed to load lesson attempts: %w", err)
    }
    grouped := make(map[uuid.UUID][]*types.LessonAttempt, len(lessons))
    for _, attempt := range attempts {
      grouped[attempt.LessonID] = append(grouped[attempt.LessonID], attempt)
    }

    for _, lesson := range lessons {
      lessonAttempts := mastery.SortAttempts(grouped[lesson.ID])
      if mastery.IsCompleted(lessonAttempts) {
        snapshot.CompletedLessons++
        if best := mastery.BestStars(lessonAttempts); best > 0 {
          snapshot.Badges = append(snapshot.Badges, starBadge(lesson.Title, best))
        }
        continue
      }
      if len(lessonAttempts) > 0 {
        snapshot.InProgressLessons++
        latest := lessonAttempts[len(lessonAttempts)-1]
        if latest.Status == types.AttemptStatusNeedsHelp {
          snapshot.Badges = append(snapshot.Badges, fmt.Sprintf("Support next: %s", lesson.Title))
        }
      }
    }
  }

  if len(snapshot.Badges) > maxBadges {
    snapshot.Badges = snapshot.Badges[:maxBadges]
  }
  return snapshot, nil
}

func starBadge(title string, stars int) string {
  if stars > 3 {
    stars = 3
  }
  return fmt.Sprintf("%s: %s", title, strings.Repeat("⭐", stars))
}
