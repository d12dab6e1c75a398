package mastery

import (
  "sort"

  "github.com/google/uuid"

  "github.com/omniteacher/omniteacher-backend/internal/types"
)

// Lesson progress states derived from attempt history.
const (
  StateCompleted = "completed"
  StateAvailable = "available"
  StateLocked    = "locked"
)

// LessonState is a read-side view of a single lesson. It is recomputed from
// attempt history on every read and never persisted, so stored flags can
// never drift from what the attempts actually say.
type LessonState struct {
  BestStars     int
  Completed     bool
  Unlocked      bool
  ProgressState string
  LatestAttempt *types.LessonAttempt
}

// SortAttempts orders attempts by creation time ascending.
func SortAttempts(attempts []*types.LessonAttempt) []*types.LessonAttempt {
  sorted := make([]*types.LessonAttempt, len(attempts))
  copy(sorted, attempts)
  sort.SliceStable(sorted, func(i, j int) bool {
    return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
  })
  return sorted
}

// BestStars is the maximum star count across all attempts, zero if none.
func BestStars(attempts []*types.LessonAttempt) int {
  best := 0
  for _, a := range attempts {
    if a == nil || a.Stars == nil {
      continue
    }
    if *a.Stars > best {
      best = *a.Stars
    }
  }
  return best
}

// IsCompleted reports whether any attempt finished with positive stars.
// Completion with zero stars does not count as mastery.
func IsCompleted(attempts []*types.LessonAttempt) bool {
  for _, a := range attempts {
    if a == nil {
      continue
    }
    if a.Status == types.AttemptStatusCompleted && a.Stars != nil && *a.Stars > 0 {
      return true
    }
  }
  return false
}

// Annotate classifies each lesson (lessons must be sorted by order_index)
// and returns the per-lesson states plus the program's total mastery stars.
// Lessons unlock strictly in sequence: the first lesson is always unlocked,
// every later one only once its predecessor is mastered.
func Annotate(lessons []*types.Lesson, attemptsByLesson map[uuid.UUID][]*types.LessonAttempt) ([]LessonState, int) {
  states := make([]LessonState, len(lessons))
  totalStars := 0
  previousMastered := true

  for i, lesson := range lessons {
    attempts := SortAttempts(attemptsByLesson[lesson.ID])
    completed := IsCompleted(attempts)
    best := BestStars(attempts)
    unlocked := i == 0 || previousMastered

    state := StateLocked
    if completed {
      state = StateCompleted
    } else if unlocked {
      state = StateAvailable
    }

    var latest *types.LessonAttempt
    if len(attempts) > 0 {
      latest = attempts[len(attempts)-1]
    }

    states[i] = LessonState{
      BestStars:     best,
      Completed:     completed,
      Unlocked:      unlocked,
      ProgressState: state,
      LatestAttempt: latest,
    }

    if completed {
      totalStars += best
    }
    previousMastered = completed
  }
  return states, totalStars
}
