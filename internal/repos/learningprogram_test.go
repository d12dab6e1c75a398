package repos

import (
  "context"
  "testing"
  "time"

  "github.com/google/uuid"

  "github.com/omniteacher/omniteacher-backend/internal/repos/testutil"
  "github.com/omniteacher/omniteacher-backend/internal/types"
)

func TestLearningProgramRepo(t *testing.T) {
  db := testutil.DB(t)
  tx := testutil.Tx(t, db)

  studentRepo := NewStudentRepo(db, testutil.Logger(t))
  repo := NewLearningProgramRepo(db, testutil.Logger(t))
  ctx := context.Background()

  students, err := studentRepo.Create(ctx, tx, []*types.Student{
    {ID: uuid.New(), DisplayName: "Maya"},
  })
  if err != nil {
    t.Fatalf("seed student: %v", err)
  }
  student := students[0]

  now := time.Now().UTC()
  created, err := repo.Create(ctx, tx, []*types.LearningProgram{
    {
      ID:          uuid.New(),
      StudentID:   student.ID,
      TopicPrompt: "fractions",
      Title:       "Fractions Learning Adventure",
      Status:      types.ProgramStatusGeneratingQuiz,
      CreatedAt:   now,
      UpdatedAt:   now,
    },
    {
      ID:          uuid.New(),
      StudentID:   student.ID,
      TopicPrompt: "space",
      Title:       "Space Learning Adventure",
      Status:      types.ProgramStatusGeneratingQuiz,
      CreatedAt:   now.Add(time.Minute),
      UpdatedAt:   now.Add(time.Minute),
    },
  })
  if err != nil {
    t.Fatalf("Create: %v", err)
  }
  if len(created) != 2 {
    t.Fatalf("Create: expected 2 programs, got %d", len(created))
  }

  byStudent, err := repo.GetByStudentID(ctx, tx, student.ID)
  if err != nil {
    t.Fatalf("GetByStudentID: %v", err)
  }
  if len(byStudent) != 2 {
    t.Fatalf("GetByStudentID: expected 2 programs, got %d", len(byStudent))
  }
  if byStudent[0].TopicPrompt != "space" {
    t.Fatalf("GetByStudentID: newest first, got %q", byStudent[0].TopicPrompt)
  }

  pc := types.ProgramContext{DiagnosticNotes: "Take your time."}
  err = repo.UpdateFields(ctx, tx, created[0].ID, map[string]any{
    "status":  types.ProgramStatusAwaitingDiagnostic,
    "context": pc.JSON(),
  })
  if err != nil {
    t.Fatalf("UpdateFields: %v", err)
  }

  got, err := repo.GetByIDs(ctx, tx, []uuid.UUID{created[0].ID})
  if err != nil {
    t.Fatalf("GetByIDs: %v", err)
  }
  if len(got) != 1 || got[0].Status != types.ProgramStatusAwaitingDiagnostic {
    t.Fatalf("GetByIDs: unexpected result: %+v", got)
  }
  if decoded := types.DecodeProgramContext(got[0].Context); decoded.DiagnosticNotes != "Take your time." {
    t.Fatalf("context round-trip: %+v", decoded)
  }
}
