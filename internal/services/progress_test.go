package services

import (
  "context"
  "errors"
  "fmt"
  "strings"
  "testing"

  "github.com/google/uuid"

  "github.com/omniteacher/omniteacher-backend/internal/apperr"
  "github.com/omniteacher/omniteacher-backend/internal/types"
)

func TestCaptureProgressCounts(t *testing.T) {
  f := newFixture(t)
  ctx := context.Background()
  student, view := readyProgram(t, f)

  // Master the first lesson.
  f.omni.masteryPayload = map[string]any{"stars": float64(3), "summary": "Aced it."}
  if _, _, err := f.programs.CompleteLesson(ctx, view.Lessons[0].ID, LessonCompletionInput{
    StudentID: student.ID,
    Status:    types.AttemptStatusCompleted,
    Answers:   map[string]any{"q": "4"},
  }); err != nil {
    t.Fatalf("complete lesson 1: %v", err)
  }

  // Struggle on the second.
  f.omni.masteryPayload = map[string]any{"stars": float64(0)}
  if _, _, err := f.programs.CompleteLesson(ctx, view.Lessons[1].ID, LessonCompletionInput{
    StudentID: student.ID,
    Status:    types.AttemptStatusCompleted,
    Answers:   map[string]any{"q": "hmm"},
  }); err != nil {
    t.Fatalf("complete lesson 2: %v", err)
  }

  snapshot, err := f.progress.CaptureProgress(ctx, student.ID)
  if err != nil {
    t.Fatalf("capture progress: %v", err)
  }

  if snapshot.TotalPrograms != 1 {
    t.Fatalf("total programs = %d", snapshot.TotalPrograms)
  }
  if snapshot.CompletedLessons != 1 || snapshot.InProgressLessons != 1 {
    t.Fatalf("completed/in_progress = %d/%d, want 1/1", snapshot.CompletedLessons, snapshot.InProgressLessons)
  }

  if len(snapshot.Badges) != 2 {
    t.Fatalf("badges = %v", snapshot.Badges)
  }
  if snapshot.Badges[0] != "What is a half?: ⭐⭐⭐" {
    t.Fatalf("star badge = %q", snapshot.Badges[0])
  }
  if snapshot.Badges[1] != "Support next: Halving numbers" {
    t.Fatalf("support badge = %q", snapshot.Badges[1])
  }
}

func TestCaptureProgressBadgeCap(t *testing.T) {
  f := newFixture(t)
  ctx := context.Background()
  student := f.newStudent(t, "Maya")

  programRepo := &fakeProgramRepo{s: f.store}
  lessonRepo := &fakeLessonRepo{s: f.store}
  attemptRepo := &fakeLessonAttemptRepo{s: f.store}

  program := &types.LearningProgram{
    StudentID:   student.ID,
    TopicPrompt: "fractions",
    Title:       "Fractions Learning Adventure",
    Status:      types.ProgramStatusReady,
  }
  if _, err := programRepo.Create(ctx, nil, []*types.LearningProgram{program}); err != nil {
    t.Fatalf("seed program: %v", err)
  }

  stars := 1
  for i := 1; i <= 8; i++ {
    lesson := &types.Lesson{
      ProgramID:       program.ID,
      OrderIndex:      i,
      Title:           fmt.Sprintf("Lesson %d", i),
      ContentMarkdown: "content",
    }
    if _, err := lessonRepo.Create(ctx, nil, []*types.Lesson{lesson}); err != nil {
      t.Fatalf("seed lesson %d: %v", i, err)
    }
    if _, err := attemptRepo.Create(ctx, nil, []*types.LessonAttempt{{
      LessonID:  lesson.ID,
      StudentID: student.ID,
      Status:    types.AttemptStatusCompleted,
      Stars:     &stars,
    }}); err != nil {
      t.Fatalf("seed attempt %d: %v", i, err)
    }
  }

  snapshot, err := f.progress.CaptureProgress(ctx, student.ID)
  if err != nil {
    t.Fatalf("capture progress: %v", err)
  }
  if snapshot.CompletedLessons != 8 {
    t.Fatalf("completed = %d, want 8", snapshot.CompletedLessons)
  }
  if len(snapshot.Badges) != 6 {
    t.Fatalf("badges = %d, want the 6-badge cap", len(snapshot.Badges))
  }
}

func TestCaptureProgressUnknownStudent(t *testing.T) {
  f := newFixture(t)

  _, err := f.progress.CaptureProgress(context.Background(), uuid.New())
  var notFound *apperr.NotFoundError
  if !errors.As(err, &notFound) {
    t.Fatalf("expected not found, got %v", err)
  }
}

func TestCaptureProgressEmpty(t *testing.T) {
  f := newFixture(t)
  student := f.newStudent(t, "Maya")

  snapshot, err := f.progress.CaptureProgress(context.Background(), student.ID)
  if err != nil {
    t.Fatalf("capture progress: %v", err)
  }
  if snapshot.TotalPrograms != 0 || snapshot.CompletedLessons != 0 {
    t.Fatalf("snapshot = %+v", snapshot)
  }
  if snapshot.Badges == nil || len(snapshot.Badges) != 0 {
    t.Fatalf("badges must be an empty list, got %v", snapshot.Badges)
  }
}

func TestStarBadgeCapsAtThreeStars(t *testing.T) {
  if got := starBadge("Halves", 5); got != "Halves: "+strings.Repeat("⭐", 3) {
    t.Fatalf("badge = %q", got)
  }
  if got := starBadge("Halves", 1); got != "Halves: ⭐" {
    t.Fatalf("badge = %q", got)
  }
}
