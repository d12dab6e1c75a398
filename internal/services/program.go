package services

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "strings"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/omniteacher/omniteacher-backend/internal/apperr"
  "github.com/omniteacher/omniteacher-backend/internal/logger"
  "github.com/omniteacher/omniteacher-backend/internal/mastery"
  "github.com/omniteacher/omniteacher-backend/internal/normalization"
  "github.com/omniteacher/omniteacher-backend/internal/repos"
  "github.com/omniteacher/omniteacher-backend/internal/types"
)

type CreateStudentInput struct {
  DisplayName string         `json:"display_name"`
  Age         *int           `json:"age"`
  Grade       string         `json:"grade"`
  Preferences map[string]any `json:"preferences"`
}

type TopicInput struct {
  Topic         string   `json:"topic"`
  LearningGoal  string   `json:"learning_goal"`
  StudentTraits []string `json:"student_traits"`
}

type LessonCompletionInput struct {
  StudentID    uuid.UUID      `json:"student_id"`
  Status       string         `json:"status"`
  Answers      map[string]any `json:"answers"`
  TeacherNotes string         `json:"teacher_notes"`
}

// LessonView is a lesson annotated with its read-side mastery state.
type LessonView struct {
  *types.Lesson
  Attempts      []*types.LessonAttempt `json:"attempts"`
  Unlocked      bool                   `json:"unlocked"`
  ProgressState string                 `json:"progress_state"`
  MasteryStars  int                    `json:"mastery_stars"`
  LatestAttempt *types.LessonAttempt   `json:"latest_attempt,omitempty"`
}

// ProgramView is the serialized program projection: lessons in order with
// unlock annotations, recomputed from attempt history on every read.
type ProgramView struct {
  *types.LearningProgram
  Quiz              *types.DiagnosticQuiz `json:"quiz,omitempty"`
  Lessons           []*LessonView         `json:"lessons"`
  TotalMasteryStars int                   `json:"total_mastery_stars"`
}

type ProgramService interface {
  CreateStudent(ctx context.Context, input CreateStudentInput) (*types.Student, error)
  GetStudent(ctx context.Context, studentID uuid.UUID) (*types.Student, error)
  ListCatalog(ctx context.Context, studentID uuid.UUID) ([]*types.LearningProgram, error)
  CreateProgram(ctx context.Context, studentID uuid.UUID, input TopicInput) (*ProgramView, error)
  SubmitDiagnostic(ctx context.Context, programID uuid.UUID, answers map[string]any) (*ProgramView, *types.QuizAttempt, error)
  CompleteLesson(ctx context.Context, lessonID uuid.UUID, input LessonCompletionInput) (*types.Lesson, *types.LessonAttempt, error)
  GetProgramView(ctx context.Context, programID uuid.UUID) (*ProgramView, error)
}

type programService struct {
  log         *logger.Logger
  db          *gorm.DB
  omni        OmniClient
  studentRepo repos.StudentRepo
  programRepo repos.LearningProgramRepo
  quizRepo    repos.DiagnosticQuizRepo
  attemptRepo repos.QuizAttemptRepo
  lessonRepo  repos.LessonRepo
  lessonAtt   repos.LessonAttemptRepo
}

func NewProgramService(
  db *gorm.DB,
  omni OmniClient,
  studentRepo repos.StudentRepo,
  programRepo repos.LearningProgramRepo,
  quizRepo repos.DiagnosticQuizRepo,
  attemptRepo repos.QuizAttemptRepo,
  lessonRepo repos.LessonRepo,
  lessonAtt repos.LessonAttemptRepo,
  baseLog *logger.Logger,
) ProgramService {
  return &programService{
    log:         baseLog.With("service", "ProgramService"),
    db:          db,
    omni:        omni,
    studentRepo: studentRepo,
    programRepo: programRepo,
    quizRepo:    quizRepo,
    attemptRepo: attemptRepo,
    lessonRepo:  lessonRepo,
    lessonAtt:   lessonAtt,
  }
}

// runInTransaction scopes fn to one database transaction. Without a
// database handle the steps run against each repo's own connection.
func (s *programService) runInTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
  if s.db == nil {
    return fn(nil)
  }
  return s.db.WithContext(ctx).Transaction(fn)
}

func jsonColumn(v any) datatypes.JSON {
  if v == nil {
    return nil
  }
  b, err := json.Marshal(v)
  if err != nil {
    return nil
  }
  return datatypes.JSON(b)
}

func studentProfile(student *types.Student, topic *TopicInput) StudentProfile {
  preferences := map[string]any{}
  if len(student.Preferences) > 0 {
    _ = json.Unmarshal(student.Preferences, &preferences)
  }
  profile := StudentProfile{
    Name:        student.DisplayName,
    Age:         student.Age,
    Grade:       student.Grade,
    Preferences: preferences,
  }
  if topic != nil {
    profile.LearningGoal = topic.LearningGoal
    profile.StudentTraits = topic.StudentTraits
  }
  return profile
}

// titleSeed turns a free-form topic prompt into a presentable title stem:
// punctuation becomes spaces and each word is capitalized.
func titleSeed(topic string) string {
  var b strings.Builder
  for _, r := range strings.ToLower(topic) {
    if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
      b.WriteRune(r)
    } else {
      b.WriteRune(' ')
    }
  }
  words := strings.Fields(b.String())
  for i, w := range words {
    words[i] = strings.ToUpper(w[:1]) + w[1:]
  }
  return strings.Join(words, " ")
}

func (s *programService) CreateStudent(ctx context.Context, input CreateStudentInput) (*types.Student, error) {
  name := strings.TrimSpace(input.DisplayName)
  if name == "" {
    return nil, apperr.Invalid("display_name", "display name is required")
  }
  student := &types.Student{
    DisplayName: name,
    Age:         input.Age,
    Grade:       strings.TrimSpace(input.Grade),
    Preferences: jsonColumn(input.Preferences),
  }
  created, err := s.studentRepo.Create(ctx, nil, []*types.Student{student})
  if err != nil {
    return nil, fmt.Errorf("failed to create student: %w", err)
  }
  return created[0], nil
}

func (s *programService) GetStudent(ctx context.Context, studentID uuid.UUID) (*types.Student, error) {
  students, err := s.studentRepo.GetByIDs(ctx, nil, []uuid.UUID{studentID})
  if err != nil {
    return nil, fmt.Errorf("failed to load student: %w", err)
  }
  if len(students) == 0 {
    return nil, apperr.NotFound("student")
  }
  return students[0], nil
}

func (s *programService) ListCatalog(ctx context.Context, studentID uuid.UUID) ([]*types.LearningProgram, error) {
  if _, err := s.GetStudent(ctx, studentID); err != nil {
    return nil, err
  }
  programs, err := s.programRepo.GetByStudentID(ctx, nil, studentID)
  if err != nil {
    return nil, fmt.Errorf("failed to list programs: %w", err)
  }
  return programs, nil
}

func (s *programService) CreateProgram(ctx context.Context, studentID uuid.UUID, input TopicInput) (*ProgramView, error) {
  topic := strings.TrimSpace(input.Topic)
  if topic == "" {
    return nil, apperr.Invalid("topic", "topic is required")
  }
  student, err := s.GetStudent(ctx, studentID)
  if err != nil {
    return nil, err
  }

  seed := titleSeed(topic)
  if seed == "" {
    seed = "New"
  }
  program := &types.LearningProgram{
    StudentID:   studentID,
    TopicPrompt: topic,
    Title:       seed + " Learning Adventure",
    Status:      types.ProgramStatusGeneratingQuiz,
    Context: types.ProgramContext{
      LearningGoal:  input.LearningGoal,
      StudentTraits: input.StudentTraits,
    }.JSON(),
  }
  created, err := s.programRepo.Create(ctx, nil, []*types.LearningProgram{program})
  if err != nil {
    return nil, fmt.Errorf("failed to create program: %w", err)
  }
  program = created[0]

  quizPayload, err := s.omni.GenerateDiagnosticQuiz(ctx, topic, studentProfile(student, &input))
  if err != nil {
    // The program row is kept so the learner sees a retryable failed state.
    s.recordGenerationError(ctx, program, err)
    return nil, err
  }

  rawQuestions, _ := quizPayload["questions"].([]any)
  questions := make([]normalization.Question, 0, len(rawQuestions))
  for i, raw := range rawQuestions {
    questions = append(questions, normalization.NormalizeQuestion(raw, i+1))
  }
  instructions := normalization.Stringify(quizPayload["instructions"])

  quiz := &types.DiagnosticQuiz{
    ProgramID:    program.ID,
    Instructions: instructions,
    Questions:    jsonColumn(questions),
  }
  if _, err := s.quizRepo.Create(ctx, nil, []*types.DiagnosticQuiz{quiz}); err != nil {
    return nil, fmt.Errorf("failed to persist diagnostic quiz: %w", err)
  }

  pc := types.DecodeProgramContext(program.Context)
  pc.DiagnosticNotes = instructions

  fields := map[string]any{
    "status":  types.ProgramStatusAwaitingDiagnostic,
    "context": pc.JSON(),
  }
  if title := strings.TrimSpace(normalization.Stringify(quizPayload["program_title"])); title != "" {
    fields["title"] = title
  }
  if overview := strings.TrimSpace(normalization.Stringify(quizPayload["overview"])); overview != "" {
    fields["summary"] = overview
  }
  if err := s.programRepo.UpdateFields(ctx, nil, program.ID, fields); err != nil {
    return nil, fmt.Errorf("failed to advance program: %w", err)
  }

  return s.GetProgramView(ctx, program.ID)
}

func (s *programService) recordGenerationError(ctx context.Context, program *types.LearningProgram, cause error) {
  genErr := &types.GenerationError{Message: cause.Error()}
  var collab *apperr.CollaboratorError
  if errors.As(cause, &collab) {
    genErr.StatusCode = collab.StatusCode
    genErr.Stage = collab.Stage
  }

  pc := types.DecodeProgramContext(program.Context)
  pc.GenerationError = genErr

  fields := map[string]any{"context": pc.JSON()}
  if genErr.Stage == "program_evaluation" {
    fields["status"] = types.ProgramStatusAwaitingDiagnostic
  }
  if err := s.programRepo.UpdateFields(ctx, nil, program.ID, fields); err != nil {
    s.log.Error("Failed to record generation error", "program_id", program.ID, "error", err)
  }
}

func (s *programService) getProgram(ctx context.Context, programID uuid.UUID) (*types.LearningProgram, error) {
  programs, err := s.programRepo.GetByIDs(ctx, nil, []uuid.UUID{programID})
  if err != nil {
    return nil, fmt.Errorf("failed to load program: %w", err)
  }
  if len(programs) == 0 {
    return nil, apperr.NotFound("program")
  }
  return programs[0], nil
}

func (s *programService) SubmitDiagnostic(ctx context.Context, programID uuid.UUID, answers map[string]any) (*ProgramView, *types.QuizAttempt, error) {
  program, err := s.getProgram(ctx, programID)
  if err != nil {
    return nil, nil, err
  }
  quizzes, err := s.quizRepo.GetByProgramIDs(ctx, nil, []uuid.UUID{programID})
  if err != nil {
    return nil, nil, fmt.Errorf("failed to load quiz: %w", err)
  }
  if len(quizzes) == 0 {
    return nil, nil, apperr.BusinessRule("diagnostic quiz has not been generated yet")
  }
  quiz := quizzes[0]

  student, err := s.GetStudent(ctx, program.StudentID)
  if err != nil {
    return nil, nil, err
  }

  if err := s.programRepo.UpdateFields(ctx, nil, programID, map[string]any{
    "status": types.ProgramStatusGeneratingProgram,
  }); err != nil {
    return nil, nil, fmt.Errorf("failed to advance program: %w", err)
  }

  // Persist the raw answers before evaluation so they survive any
  // collaborator failure.
  attempt := &types.QuizAttempt{
    QuizID:    quiz.ID,
    StudentID: program.StudentID,
    Responses: jsonColumn(answers),
  }
  createdAttempts, err := s.attemptRepo.Create(ctx, nil, []*types.QuizAttempt{attempt})
  if err != nil {
    return nil, nil, fmt.Errorf("failed to persist quiz attempt: %w", err)
  }
  attempt = createdAttempts[0]

  var questions []any
  if len(quiz.Questions) > 0 {
    _ = json.Unmarshal(quiz.Questions, &questions)
  }
  evaluation, err := s.omni.EvaluateQuizAnswers(ctx, program.TopicPrompt,
    map[string]any{"questions": questions}, answers, studentProfile(student, nil))
  if err != nil {
    s.recordGenerationError(ctx, program, err)
    return nil, nil, err
  }

  if err := s.applyEvaluation(ctx, program, attempt, evaluation); err != nil {
    return nil, nil, err
  }

  view, err := s.GetProgramView(ctx, programID)
  if err != nil {
    return nil, nil, err
  }
  return view, attempt, nil
}

// applyEvaluation persists the evaluation outcome and replaces the program's
// lessons wholesale. Everything runs in one transaction so a concurrent
// reader never observes a ready program with zero lessons.
func (s *programService) applyEvaluation(ctx context.Context, program *types.LearningProgram, attempt *types.QuizAttempt, evaluation map[string]any) error {
  analysis, _ := evaluation["analysis"].(map[string]any)
  rawChapters, _ := evaluation["chapters"].([]any)

  pc := types.DecodeProgramContext(program.Context)
  pc.Analysis = analysis
  pc.Chapters = make([]map[string]any, 0, len(rawChapters))
  for _, c := range rawChapters {
    if m, ok := c.(map[string]any); ok {
      pc.Chapters = append(pc.Chapters, m)
    }
  }

  programFields := map[string]any{
    "status":  types.ProgramStatusReady,
    "context": pc.JSON(),
  }
  if sp := strings.TrimSpace(normalization.Stringify(evaluation["skill_profile"])); sp != "" {
    programFields["skill_profile"] = sp
  }
  if overview := strings.TrimSpace(normalization.Stringify(evaluation["program_overview"])); overview != "" {
    programFields["summary"] = overview
  }

  attemptFields := map[string]any{
    "analysis": jsonColumn(analysis),
  }
  if score := normalization.IntOrNil(evaluation["score"]); score != nil {
    attemptFields["score"] = *score
  }

  lessons := buildLessonRows(program.ID, rawChapters)

  err := s.runInTransaction(ctx, func(tx *gorm.DB) error {
    if err := s.attemptRepo.UpdateFields(ctx, tx, attempt.ID, attemptFields); err != nil {
      return err
    }
    if err := s.programRepo.UpdateFields(ctx, tx, program.ID, programFields); err != nil {
      return err
    }
    if err := s.lessonRepo.FullDeleteByProgramID(ctx, tx, program.ID); err != nil {
      return err
    }
    if _, err := s.lessonRepo.Create(ctx, tx, lessons); err != nil {
      return err
    }
    return nil
  })
  if err != nil {
    return fmt.Errorf("failed to materialize program: %w", err)
  }
  return nil
}

// buildLessonRows normalizes every chapter's lessons and assigns a 1-based
// order index that is contiguous across the whole program.
func buildLessonRows(programID uuid.UUID, rawChapters []any) []*types.Lesson {
  var rows []*types.Lesson
  orderIndex := 1
  for _, rawChapter := range rawChapters {
    chapter, ok := rawChapter.(map[string]any)
    if !ok {
      continue
    }
    chapterTitle := strings.TrimSpace(normalization.Stringify(chapter["title"]))
    if chapterTitle == "" {
      chapterTitle = "Learning Chapter"
    }
    rawLessons, _ := chapter["lessons"].([]any)
    for _, rawLesson := range rawLessons {
      content := normalization.NormalizeLesson(rawLesson, orderIndex, chapterTitle)
      rows = append(rows, &types.Lesson{
        ProgramID:        programID,
        Chapter:          content.Chapter,
        OrderIndex:       orderIndex,
        Title:            content.Title,
        ContentMarkdown:  content.ContentMarkdown,
        Objectives:       jsonColumn(content.Objectives),
        MethodPlan:       jsonColumn(content.MethodPlan),
        PracticePrompts:  jsonColumn(content.PracticePrompts),
        Assessment:       jsonColumn(content.Assessment),
        Resources:        jsonColumn(content.Resources),
        EstimatedMinutes: content.EstimatedMinutes,
      })
      orderIndex++
    }
  }
  return rows
}

func (s *programService) CompleteLesson(ctx context.Context, lessonID uuid.UUID, input LessonCompletionInput) (*types.Lesson, *types.LessonAttempt, error) {
  lessons, err := s.lessonRepo.GetByIDs(ctx, nil, []uuid.UUID{lessonID})
  if err != nil {
    return nil, nil, fmt.Errorf("failed to load lesson: %w", err)
  }
  if len(lessons) == 0 {
    return nil, nil, apperr.NotFound("lesson")
  }
  lesson := lessons[0]

  if _, err := s.GetStudent(ctx, input.StudentID); err != nil {
    return nil, nil, err
  }

  if err := s.enforceSequentialMastery(ctx, lesson); err != nil {
    return nil, nil, err
  }

  var objectives []string
  if len(lesson.Objectives) > 0 {
    _ = json.Unmarshal(lesson.Objectives, &objectives)
  }
  var methodPlan, assessment any
  if len(lesson.MethodPlan) > 0 {
    _ = json.Unmarshal(lesson.MethodPlan, &methodPlan)
  }
  if len(lesson.Assessment) > 0 {
    _ = json.Unmarshal(lesson.Assessment, &assessment)
  }

  masteryPayload, err := s.omni.EvaluateLessonMastery(ctx, MasteryInput{
    LessonTitle:    lesson.Title,
    LessonContent:  lesson.ContentMarkdown,
    Objectives:     objectives,
    MethodPlan:     methodPlan,
    Assessment:     assessment,
    StudentAnswers: input.Answers,
  })
  if err != nil {
    // The attempt is still recorded with an encouraging fallback; the
    // evaluation failure never loses learner input.
    s.log.Warn("Lesson mastery evaluation failed, using fallback reflection",
      "lesson_id", lesson.ID, "error", err)
    masteryPayload = map[string]any{
      "positive_feedback": "Great effort on the activity!",
      "next_focus":        "Let's review the key ideas together next time.",
      "stars":             0,
      "summary":           "Unable to evaluate automatically.",
    }
  }

  stars := normalization.IntOrNil(masteryPayload["stars"])
  score := normalization.IntOrNil(masteryPayload["score"])

  status := input.Status
  if stars != nil && *stars > 0 {
    status = types.AttemptStatusCompleted
  } else if status == types.AttemptStatusCompleted {
    status = types.AttemptStatusNeedsHelp
  }

  attempt := &types.LessonAttempt{
    LessonID:           lesson.ID,
    StudentID:          input.StudentID,
    Status:             status,
    Answers:            jsonColumn(input.Answers),
    TeacherNotes:       strings.TrimSpace(input.TeacherNotes),
    Score:              score,
    Stars:              stars,
    MasterySummary:     strings.TrimSpace(normalization.Stringify(masteryPayload["summary"])),
    ReflectionPositive: strings.TrimSpace(normalization.Stringify(masteryPayload["positive_feedback"])),
    ReflectionNegative: strings.TrimSpace(normalization.Stringify(masteryPayload["next_focus"])),
  }
  created, err := s.lessonAtt.Create(ctx, nil, []*types.LessonAttempt{attempt})
  if err != nil {
    return nil, nil, fmt.Errorf("failed to persist lesson attempt: %w", err)
  }
  return lesson, created[0], nil
}

// enforceSequentialMastery rejects a completion when any lesson before the
// target (by order_index) is not yet mastered.
func (s *programService) enforceSequentialMastery(ctx context.Context, lesson *types.Lesson) error {
  siblings, err := s.lessonRepo.GetByProgramID(ctx, nil, lesson.ProgramID)
  if err != nil {
    return fmt.Errorf("failed to load program lessons: %w", err)
  }
  attemptsByLesson, err := s.attemptsByLesson(ctx, siblings)
  if err != nil {
    return err
  }

  previousMastered := true
  for i, current := range siblings {
    if current.ID == lesson.ID {
      if i > 0 && !previousMastered {
        return apperr.BusinessRule("previous lessons must be mastered before unlocking this one")
      }
      return nil
    }
    previousMastered = mastery.IsCompleted(attemptsByLesson[current.ID])
  }
  return nil
}

func (s *programService) attemptsByLesson(ctx context.Context, lessons []*types.Lesson) (map[uuid.UUID][]*types.LessonAttempt, error) {
  ids := make([]uuid.UUID, 0, len(lessons))
  for _, l := range lessons {
    ids = append(ids, l.ID)
  }
  attempts, err := s.lessonAtt.GetByLessonIDs(ctx, nil, ids)
  if err != nil {
    return nil, fmt.Errorf("failed to load lesson attempts: %w", err)
  }
  grouped := make(map[uuid.UUID][]*types.LessonAttempt, len(lessons))
  for _, a := range attempts {
    grouped[a.LessonID] = append(grouped[a.LessonID], a)
  }
  return grouped, nil
}

func (s *programService) GetProgramView(ctx context.Context, programID uuid.UUID) (*ProgramView, error) {
  program, err := s.getProgram(ctx, programID)
  if err != nil {
    return nil, err
  }

  quizzes, err := s.quizRepo.GetByProgramIDs(ctx, nil, []uuid.UUID{programID})
  if err != nil {
    return nil, fmt.Errorf("failed to load quiz: %w", err)
  }
  var quiz *types.DiagnosticQuiz
  if len(quizzes) > 0 {
    quiz = quizzes[0]
  }

  lessons, err := s.lessonRepo.GetByProgramID(ctx, nil, programID)
  if err != nil {
    return nil, fmt.Errorf("failed to load lessons: %w", err)
  }
  attemptsByLesson, err := s.attemptsByLesson(ctx, lessons)
  if err != nil {
    return nil, err
  }

  states, totalStars := mastery.Annotate(lessons, attemptsByLesson)
  views := make([]*LessonView, len(lessons))
  for i, lesson := range lessons {
    attempts := mastery.SortAttempts(attemptsByLesson[lesson.ID])
    if attempts == nil {
      attempts = []*types.LessonAttempt{}
    }
    views[i] = &LessonView{
      Lesson:        lesson,
      Attempts:      attempts,
      Unlocked:      states[i].Unlocked,
      ProgressState: states[i].ProgressState,
      MasteryStars:  states[i].BestStars,
      LatestAttempt: states[i].LatestAttempt,
    }
  }

  return &ProgramView{
    LearningProgram:   program,
    Quiz:              quiz,
    Lessons:           views,
    TotalMasteryStars: totalStars,
  }, nil
}
