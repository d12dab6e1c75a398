package mastery

import (
  "testing"
  "time"

  "github.com/google/uuid"

  "github.com/omniteacher/omniteacher-backend/internal/types"
)

func intPtr(n int) *int { return &n }

func attempt(lessonID uuid.UUID, status string, stars *int, at time.Time) *types.LessonAttempt {
  return &types.LessonAttempt{
    ID:        uuid.New(),
    LessonID:  lessonID,
    Status:    status,
    Stars:     stars,
    CreatedAt: at,
  }
}

func TestBestStars(t *testing.T) {
  id := uuid.New()
  now := time.Now()
  attempts := []*types.LessonAttempt{
    attempt(id, types.AttemptStatusNeedsHelp, intPtr(1), now),
    attempt(id, types.AttemptStatusCompleted, intPtr(3), now.Add(time.Minute)),
    attempt(id, types.AttemptStatusCompleted, nil, now.Add(2*time.Minute)),
  }
  if got := BestStars(attempts); got != 3 {
    t.Fatalf("BestStars = %d, want 3", got)
  }
  if got := BestStars(nil); got != 0 {
    t.Fatalf("BestStars(nil) = %d, want 0", got)
  }
}

func TestIsCompletedRequiresPositiveStars(t *testing.T) {
  id := uuid.New()
  now := time.Now()

  zeroStars := []*types.LessonAttempt{
    attempt(id, types.AttemptStatusCompleted, intPtr(0), now),
  }
  if IsCompleted(zeroStars) {
    t.Fatal("completion with zero stars must not count as mastery")
  }

  noStars := []*types.LessonAttempt{
    attempt(id, types.AttemptStatusCompleted, nil, now),
  }
  if IsCompleted(noStars) {
    t.Fatal("completion without stars must not count as mastery")
  }

  starredButUnfinished := []*types.LessonAttempt{
    attempt(id, types.AttemptStatusInProgress, intPtr(2), now),
  }
  if IsCompleted(starredButUnfinished) {
    t.Fatal("in_progress attempts must not count as mastery")
  }

  mastered := []*types.LessonAttempt{
    attempt(id, types.AttemptStatusNeedsHelp, nil, now),
    attempt(id, types.AttemptStatusCompleted, intPtr(1), now.Add(time.Minute)),
  }
  if !IsCompleted(mastered) {
    t.Fatal("a completed attempt with positive stars is mastery")
  }
}

func TestSortAttemptsDoesNotMutateInput(t *testing.T) {
  id := uuid.New()
  now := time.Now()
  later := attempt(id, types.AttemptStatusCompleted, intPtr(2), now.Add(time.Hour))
  earlier := attempt(id, types.AttemptStatusNeedsHelp, nil, now)

  input := []*types.LessonAttempt{later, earlier}
  sorted := SortAttempts(input)

  if sorted[0] != earlier || sorted[1] != later {
    t.Fatal("attempts not sorted by creation time")
  }
  if input[0] != later {
    t.Fatal("input slice was mutated")
  }
}

func TestAnnotateSequentialUnlock(t *testing.T) {
  lessons := []*types.Lesson{
    {ID: uuid.New(), OrderIndex: 1},
    {ID: uuid.New(), OrderIndex: 2},
    {ID: uuid.New(), OrderIndex: 3},
  }
  now := time.Now()
  attemptsByLesson := map[uuid.UUID][]*types.LessonAttempt{
    lessons[0].ID: {
      attempt(lessons[0].ID, types.AttemptStatusCompleted, intPtr(3), now),
    },
    lessons[1].ID: {
      attempt(lessons[1].ID, types.AttemptStatusNeedsHelp, nil, now.Add(time.Minute)),
    },
  }

  states, totalStars := Annotate(lessons, attemptsByLesson)

  if !states[0].Unlocked || states[0].ProgressState != StateCompleted {
    t.Fatalf("lesson 1 state = %+v", states[0])
  }
  if !states[1].Unlocked || states[1].ProgressState != StateAvailable {
    t.Fatalf("lesson 2 should be available, got %+v", states[1])
  }
  if states[2].Unlocked || states[2].ProgressState != StateLocked {
    t.Fatalf("lesson 3 should be locked, got %+v", states[2])
  }
  if totalStars != 3 {
    t.Fatalf("totalStars = %d, want 3", totalStars)
  }
  if states[1].LatestAttempt == nil || states[1].LatestAttempt.Status != types.AttemptStatusNeedsHelp {
    t.Fatalf("lesson 2 latest attempt = %+v", states[1].LatestAttempt)
  }
}

func TestAnnotateFirstLessonAlwaysUnlocked(t *testing.T) {
  lessons := []*types.Lesson{
    {ID: uuid.New(), OrderIndex: 1},
    {ID: uuid.New(), OrderIndex: 2},
  }
  states, totalStars := Annotate(lessons, nil)

  if !states[0].Unlocked || states[0].ProgressState != StateAvailable {
    t.Fatalf("first lesson = %+v", states[0])
  }
  if states[1].Unlocked {
    t.Fatalf("second lesson must start locked, got %+v", states[1])
  }
  if totalStars != 0 {
    t.Fatalf("totalStars = %d, want 0", totalStars)
  }
}

func TestAnnotateStarsOnlyCountWhenMastered(t *testing.T) {
  lesson := &types.Lesson{ID: uuid.New(), OrderIndex: 1}
  attemptsByLesson := map[uuid.UUID][]*types.LessonAttempt{
    lesson.ID: {
      attempt(lesson.ID, types.AttemptStatusInProgress, intPtr(2), time.Now()),
    },
  }
  states, totalStars := Annotate([]*types.Lesson{lesson}, attemptsByLesson)

  if states[0].BestStars != 2 {
    t.Fatalf("BestStars = %d, want 2", states[0].BestStars)
  }
  if totalStars != 0 {
    t.Fatalf("unmastered stars leaked into total: %d", totalStars)
  }
}
