package services

import (
  "context"
  "sort"
  "testing"
  "time"

  "github.com/google/uuid"
  "go.uber.org/zap"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/omniteacher/omniteacher-backend/internal/logger"
  "github.com/omniteacher/omniteacher-backend/internal/types"
)

// memStore is a shared in-memory backing store for the fake repos, so that
// service scenarios can run without a database. Ordering semantics mirror
// the real repos (created_at / order_index).
type memStore struct {
  clock time.Time

  students       []*types.Student
  programs       []*types.LearningProgram
  quizzes        []*types.DiagnosticQuiz
  quizAttempts   []*types.QuizAttempt
  lessons        []*types.Lesson
  lessonAttempts []*types.LessonAttempt
  sessions       []*types.ChatSession
  messages       []*types.ChatMessage
}

func newMemStore() *memStore {
  return &memStore{clock: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (s *memStore) next() time.Time {
  s.clock = s.clock.Add(time.Second)
  return s.clock
}

type fakeStudentRepo struct{ s *memStore }

func (r *fakeStudentRepo) Create(_ context.Context, _ *gorm.DB, rows []*types.Student) ([]*types.Student, error) {
  for _, row := range rows {
    if row.ID == uuid.Nil {
      row.ID = uuid.New()
    }
    row.CreatedAt = r.s.next()
    row.UpdatedAt = row.CreatedAt
    r.s.students = append(r.s.students, row)
  }
  return rows, nil
}

func (r *fakeStudentRepo) GetByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*types.Student, error) {
  var out []*types.Student
  for _, row := range r.s.students {
    for _, id := range ids {
      if row.ID == id {
        out = append(out, row)
      }
    }
  }
  return out, nil
}

func (r *fakeStudentRepo) UpdateFields(_ context.Context, _ *gorm.DB, id uuid.UUID, fields map[string]any) error {
  for _, row := range r.s.students {
    if row.ID != id {
      continue
    }
    if v, ok := fields["display_name"].(string); ok {
      row.DisplayName = v
    }
    if v, ok := fields["grade"].(string); ok {
      row.Grade = v
    }
    if v, ok := fields["preferences"].(datatypes.JSON); ok {
      row.Preferences = v
    }
    row.UpdatedAt = r.s.next()
  }
  return nil
}

type fakeProgramRepo struct{ s *memStore }

func (r *fakeProgramRepo) Create(_ context.Context, _ *gorm.DB, rows []*types.LearningProgram) ([]*types.LearningProgram, error) {
  for _, row := range rows {
    if row.ID == uuid.Nil {
      row.ID = uuid.New()
    }
    row.CreatedAt = r.s.next()
    row.UpdatedAt = row.CreatedAt
    r.s.programs = append(r.s.programs, row)
  }
  return rows, nil
}

func (r *fakeProgramRepo) GetByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*types.LearningProgram, error) {
  var out []*types.LearningProgram
  for _, row := range r.s.programs {
    for _, id := range ids {
      if row.ID == id {
        out = append(out, row)
      }
    }
  }
  return out, nil
}

func (r *fakeProgramRepo) GetByStudentID(_ context.Context, _ *gorm.DB, studentID uuid.UUID) ([]*types.LearningProgram, error) {
  var out []*types.LearningProgram
  for _, row := range r.s.programs {
    if row.StudentID == studentID {
      out = append(out, row)
    }
  }
  sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
  return out, nil
}

func (r *fakeProgramRepo) UpdateFields(_ context.Context, _ *gorm.DB, id uuid.UUID, fields map[string]any) error {
  for _, row := range r.s.programs {
    if row.ID != id {
      continue
    }
    if v, ok := fields["status"].(string); ok {
      row.Status = v
    }
    if v, ok := fields["title"].(string); ok {
      row.Title = v
    }
    if v, ok := fields["summary"].(string); ok {
      row.Summary = v
    }
    if v, ok := fields["skill_profile"].(string); ok {
      row.SkillProfile = v
    }
    if v, ok := fields["context"].(datatypes.JSON); ok {
      row.Context = v
    }
    row.UpdatedAt = r.s.next()
  }
  return nil
}

type fakeQuizRepo struct{ s *memStore }

func (r *fakeQuizRepo) Create(_ context.Context, _ *gorm.DB, rows []*types.DiagnosticQuiz) ([]*types.DiagnosticQuiz, error) {
  for _, row := range rows {
    if row.ID == uuid.Nil {
      row.ID = uuid.New()
    }
    row.CreatedAt = r.s.next()
    row.UpdatedAt = row.CreatedAt
    r.s.quizzes = append(r.s.quizzes, row)
  }
  return rows, nil
}

func (r *fakeQuizRepo) GetByProgramIDs(_ context.Context, _ *gorm.DB, programIDs []uuid.UUID) ([]*types.DiagnosticQuiz, error) {
  var out []*types.DiagnosticQuiz
  for _, row := range r.s.quizzes {
    for _, id := range programIDs {
      if row.ProgramID == id {
        out = append(out, row)
      }
    }
  }
  return out, nil
}

type fakeQuizAttemptRepo struct{ s *memStore }

func (r *fakeQuizAttemptRepo) Create(_ context.Context, _ *gorm.DB, rows []*types.QuizAttempt) ([]*types.QuizAttempt, error) {
  for _, row := range rows {
    if row.ID == uuid.Nil {
      row.ID = uuid.New()
    }
    row.CreatedAt = r.s.next()
    row.UpdatedAt = row.CreatedAt
    r.s.quizAttempts = append(r.s.quizAttempts, row)
  }
  return rows, nil
}

func (r *fakeQuizAttemptRepo) UpdateFields(_ context.Context, _ *gorm.DB, id uuid.UUID, fields map[string]any) error {
  for _, row := range r.s.quizAttempts {
    if row.ID != id {
      continue
    }
    if v, ok := fields["score"].(int); ok {
      score := v
      row.Score = &score
    }
    if v, ok := fields["analysis"].(datatypes.JSON); ok {
      row.Analysis = v
    }
    row.UpdatedAt = r.s.next()
  }
  return nil
}

func (r *fakeQuizAttemptRepo) GetByQuizIDs(_ context.Context, _ *gorm.DB, quizIDs []uuid.UUID) ([]*types.QuizAttempt, error) {
  var out []*types.QuizAttempt
  for _, row := range r.s.quizAttempts {
    for _, id := range quizIDs {
      if row.QuizID == id {
        out = append(out, row)
      }
    }
  }
  sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
  return out, nil
}

type fakeLessonRepo struct{ s *memStore }

func (r *fakeLessonRepo) Create(_ context.Context, _ *gorm.DB, rows []*types.Lesson) ([]*types.Lesson, error) {
  for _, row := range rows {
    if row.ID == uuid.Nil {
      row.ID = uuid.New()
    }
    row.CreatedAt = r.s.next()
    row.UpdatedAt = row.CreatedAt
    r.s.lessons = append(r.s.lessons, row)
  }
  return rows, nil
}

func (r *fakeLessonRepo) GetByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*types.Lesson, error) {
  var out []*types.Lesson
  for _, row := range r.s.lessons {
    for _, id := range ids {
      if row.ID == id {
        out = append(out, row)
      }
    }
  }
  return out, nil
}

func (r *fakeLessonRepo) GetByProgramID(_ context.Context, _ *gorm.DB, programID uuid.UUID) ([]*types.Lesson, error) {
  var out []*types.Lesson
  for _, row := range r.s.lessons {
    if row.ProgramID == programID {
      out = append(out, row)
    }
  }
  sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
  return out, nil
}

func (r *fakeLessonRepo) FullDeleteByProgramID(_ context.Context, _ *gorm.DB, programID uuid.UUID) error {
  deleted := map[uuid.UUID]bool{}
  kept := r.s.lessons[:0]
  for _, row := range r.s.lessons {
    if row.ProgramID == programID {
      deleted[row.ID] = true
      continue
    }
    kept = append(kept, row)
  }
  r.s.lessons = kept

  keptAttempts := r.s.lessonAttempts[:0]
  for _, attempt := range r.s.lessonAttempts {
    if !deleted[attempt.LessonID] {
      keptAttempts = append(keptAttempts, attempt)
    }
  }
  r.s.lessonAttempts = keptAttempts
  return nil
}

type fakeLessonAttemptRepo struct{ s *memStore }

func (r *fakeLessonAttemptRepo) Create(_ context.Context, _ *gorm.DB, rows []*types.LessonAttempt) ([]*types.LessonAttempt, error) {
  for _, row := range rows {
    if row.ID == uuid.Nil {
      row.ID = uuid.New()
    }
    row.CreatedAt = r.s.next()
    row.UpdatedAt = row.CreatedAt
    r.s.lessonAttempts = append(r.s.lessonAttempts, row)
  }
  return rows, nil
}

func (r *fakeLessonAttemptRepo) GetByLessonIDs(_ context.Context, _ *gorm.DB, lessonIDs []uuid.UUID) ([]*types.LessonAttempt, error) {
  var out []*types.LessonAttempt
  for _, row := range r.s.lessonAttempts {
    for _, id := range lessonIDs {
      if row.LessonID == id {
        out = append(out, row)
      }
    }
  }
  sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
  return out, nil
}

func (r *fakeLessonAttemptRepo) GetByStudentID(_ context.Context, _ *gorm.DB, studentID uuid.UUID) ([]*types.LessonAttempt, error) {
  var out []*types.LessonAttempt
  for _, row := range r.s.lessonAttempts {
    if row.StudentID == studentID {
      out = append(out, row)
    }
  }
  sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
  return out, nil
}

type fakeSessionRepo struct{ s *memStore }

func (r *fakeSessionRepo) Create(_ context.Context, _ *gorm.DB, rows []*types.ChatSession) ([]*types.ChatSession, error) {
  for _, row := range rows {
    if row.ID == uuid.Nil {
      row.ID = uuid.New()
    }
    row.CreatedAt = r.s.next()
    row.UpdatedAt = row.CreatedAt
    r.s.sessions = append(r.s.sessions, row)
  }
  return rows, nil
}

func (r *fakeSessionRepo) GetByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*types.ChatSession, error) {
  var out []*types.ChatSession
  for _, row := range r.s.sessions {
    for _, id := range ids {
      if row.ID == id {
        out = append(out, row)
      }
    }
  }
  return out, nil
}

func (r *fakeSessionRepo) GetByStudentID(_ context.Context, _ *gorm.DB, studentID uuid.UUID) ([]*types.ChatSession, error) {
  var out []*types.ChatSession
  for _, row := range r.s.sessions {
    if row.StudentID == studentID {
      out = append(out, row)
    }
  }
  sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
  return out, nil
}

func (r *fakeSessionRepo) UpdateFields(_ context.Context, _ *gorm.DB, id uuid.UUID, fields map[string]any) error {
  for _, row := range r.s.sessions {
    if row.ID != id {
      continue
    }
    if v, ok := fields["program_id"].(uuid.UUID); ok {
      programID := v
      row.ProgramID = &programID
    }
    if v, ok := fields["tts_enabled"].(bool); ok {
      row.TTSEnabled = v
    }
    if v, ok := fields["title"].(string); ok {
      row.Title = v
    }
    row.UpdatedAt = r.s.next()
  }
  return nil
}

type fakeMessageRepo struct{ s *memStore }

func (r *fakeMessageRepo) Create(_ context.Context, _ *gorm.DB, rows []*types.ChatMessage) ([]*types.ChatMessage, error) {
  for _, row := range rows {
    if row.ID == uuid.Nil {
      row.ID = uuid.New()
    }
    row.CreatedAt = r.s.next()
    row.UpdatedAt = row.CreatedAt
    r.s.messages = append(r.s.messages, row)
  }
  return rows, nil
}

func (r *fakeMessageRepo) GetBySessionID(_ context.Context, _ *gorm.DB, sessionID uuid.UUID) ([]*types.ChatMessage, error) {
  var out []*types.ChatMessage
  for _, row := range r.s.messages {
    if row.SessionID == sessionID {
      out = append(out, row)
    }
  }
  sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
  return out, nil
}

func (r *fakeMessageRepo) UpdateFields(_ context.Context, _ *gorm.DB, id uuid.UUID, fields map[string]any) error {
  for _, row := range r.s.messages {
    if row.ID != id {
      continue
    }
    if v, ok := fields["audio_url"].(string); ok {
      row.AudioURL = v
    }
    row.UpdatedAt = r.s.next()
  }
  return nil
}

// fakeOmni scripts the collaborator's answers per method.
type fakeOmni struct {
  quizPayload    map[string]any
  quizErr        error
  evalPayload    map[string]any
  evalErr        error
  masteryPayload map[string]any
  masteryErr     error
  reply          string
  replyErr       error
  audio          []byte
  speechErr      error

  lastTurns   []ChatTurn
  speechCalls int
}

func (f *fakeOmni) GenerateDiagnosticQuiz(_ context.Context, _ string, _ StudentProfile) (map[string]any, error) {
  if f.quizErr != nil {
    return nil, f.quizErr
  }
  return f.quizPayload, nil
}

func (f *fakeOmni) EvaluateQuizAnswers(_ context.Context, _ string, _ map[string]any, _ map[string]any, _ StudentProfile) (map[string]any, error) {
  if f.evalErr != nil {
    return nil, f.evalErr
  }
  return f.evalPayload, nil
}

func (f *fakeOmni) EvaluateLessonMastery(_ context.Context, _ MasteryInput) (map[string]any, error) {
  if f.masteryErr != nil {
    return nil, f.masteryErr
  }
  return f.masteryPayload, nil
}

func (f *fakeOmni) ChatReply(_ context.Context, turns []ChatTurn) (string, error) {
  f.lastTurns = turns
  if f.replyErr != nil {
    return "", f.replyErr
  }
  return f.reply, nil
}

func (f *fakeOmni) SynthesizeSpeech(_ context.Context, _ string) ([]byte, error) {
  f.speechCalls++
  if f.speechErr != nil {
    return nil, f.speechErr
  }
  return f.audio, nil
}

type fakeBucket struct {
  stored   map[string][]byte
  storeErr error
}

func (b *fakeBucket) EnsureBucket(_ context.Context) error { return nil }

func (b *fakeBucket) StoreAudio(_ context.Context, objectName string, audio []byte, _ string) (string, error) {
  if b.storeErr != nil {
    return "", b.storeErr
  }
  if b.stored == nil {
    b.stored = map[string][]byte{}
  }
  b.stored[objectName] = audio
  return b.GetPublicURL(objectName), nil
}

func (b *fakeBucket) GetPublicURL(key string) string {
  return "https://cdn.test/" + key
}

type serviceFixture struct {
  store    *memStore
  omni     *fakeOmni
  bucket   *fakeBucket
  programs ProgramService
  chat     ChatService
  progress ProgressService
}

func newFixture(tb testing.TB) *serviceFixture {
  tb.Helper()

  store := newMemStore()
  omni := &fakeOmni{}
  bucket := &fakeBucket{}
  log := &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}

  studentRepo := &fakeStudentRepo{s: store}
  programRepo := &fakeProgramRepo{s: store}
  quizRepo := &fakeQuizRepo{s: store}
  quizAttemptRepo := &fakeQuizAttemptRepo{s: store}
  lessonRepo := &fakeLessonRepo{s: store}
  lessonAttemptRepo := &fakeLessonAttemptRepo{s: store}
  sessionRepo := &fakeSessionRepo{s: store}
  messageRepo := &fakeMessageRepo{s: store}

  programs := NewProgramService(nil, omni, studentRepo, programRepo, quizRepo,
    quizAttemptRepo, lessonRepo, lessonAttemptRepo, log)
  chat := NewChatService(omni, bucket, studentRepo, programRepo, sessionRepo, messageRepo, log)
  progress := NewProgressService(programs, programRepo, lessonRepo, lessonAttemptRepo, log)

  return &serviceFixture{
    store:    store,
    omni:     omni,
    bucket:   bucket,
    programs: programs,
    chat:     chat,
    progress: progress,
  }
}

func (f *serviceFixture) newStudent(tb testing.TB, name string) *types.Student {
  tb.Helper()
  student, err := f.programs.CreateStudent(context.Background(), CreateStudentInput{
    DisplayName: name,
    Grade:       "3",
  })
  if err != nil {
    tb.Fatalf("create student: %v", err)
  }
  return student
}
