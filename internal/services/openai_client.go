package services

import (
  "bytes"
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "io"
  "math/rand"
  "net"
  "net/http"
  "os"
  "strconv"
  "strings"
  "time"

  "github.com/omniteacher/omniteacher-backend/internal/apperr"
  "github.com/omniteacher/omniteacher-backend/internal/logger"
)

// StudentProfile is the learner snapshot passed to the Omni model alongside
// every generation request.
type StudentProfile struct {
  Name          string         `json:"name"`
  Age           *int           `json:"age"`
  Grade         string         `json:"grade"`
  Preferences   map[string]any `json:"preferences"`
  LearningGoal  string         `json:"learning_goal,omitempty"`
  StudentTraits []string       `json:"student_traits,omitempty"`
}

// MasteryInput carries the lesson material and learner answers for a
// mastery evaluation round-trip.
type MasteryInput struct {
  LessonTitle    string         `json:"lesson_title"`
  LessonContent  string         `json:"lesson_content"`
  Objectives     []string       `json:"objectives"`
  MethodPlan     any            `json:"method_plan"`
  Assessment     any            `json:"assessment"`
  StudentAnswers map[string]any `json:"student_answers"`
}

// ChatContentPart is one multimodal fragment of a chat turn.
type ChatContentPart struct {
  Type     string        `json:"type"`
  Text     string        `json:"text,omitempty"`
  ImageURL *ChatImageURL `json:"image_url,omitempty"`
}

type ChatImageURL struct {
  URL string `json:"url"`
}

// ChatTurn is one message in the conversation sent to the model. System
// turns use plain text content; student/assistant turns use content parts.
type ChatTurn struct {
  Role    string `json:"role"`
  Content any    `json:"content"`
}

// OmniClient is the AI collaborator contract. Payload-producing methods
// return the decoded JSON object as-is; callers normalize it before
// persisting anything. Failures come back as *apperr.CollaboratorError with
// the upstream HTTP status when one was observed.
type OmniClient interface {
  GenerateDiagnosticQuiz(ctx context.Context, topic string, profile StudentProfile) (map[string]any, error)
  EvaluateQuizAnswers(ctx context.Context, topic string, quiz map[string]any, answers map[string]any, profile StudentProfile) (map[string]any, error)
  EvaluateLessonMastery(ctx context.Context, input MasteryInput) (map[string]any, error)
  ChatReply(ctx context.Context, turns []ChatTurn) (string, error)
  SynthesizeSpeech(ctx context.Context, text string) ([]byte, error)
}

type omniClient struct {
  log        *logger.Logger
  baseURL    string
  apiKey     string
  model      string
  ttsModel   string
  ttsVoice   string
  httpClient *http.Client

  maxRetries int
}

func NewOmniClient(log *logger.Logger) (OmniClient, error) {
  apiKey := os.Getenv("OPENAI_API_KEY")
  if apiKey == "" {
    return nil, fmt.Errorf("missing OPENAI_API_KEY")
  }

  baseURL := os.Getenv("OPENAI_BASE_URL")
  if baseURL == "" {
    baseURL = "https://api.openai.com"
  }
  baseURL = strings.TrimRight(baseURL, "/")

  model := os.Getenv("OMNI_MODEL")
  if model == "" {
    model = "gpt-4o"
  }

  ttsModel := os.Getenv("TTS_MODEL")
  if ttsModel == "" {
    ttsModel = "gpt-4o-mini-tts"
  }

  ttsVoice := os.Getenv("TTS_VOICE")
  if ttsVoice == "" {
    ttsVoice = "alloy"
  }

  // IMPORTANT: default timeout higher for production generation workloads
  timeoutSec := 180
  if v := os.Getenv("OPENAI_TIMEOUT_SECONDS"); v != "" {
    if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
      timeoutSec = parsed
    }
  }

  maxRetries := 4
  if v := os.Getenv("OPENAI_MAX_RETRIES"); v != "" {
    if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
      maxRetries = parsed
    }
  }

  return &omniClient{
    log:        log.With("service", "OmniClient"),
    baseURL:    baseURL,
    apiKey:     apiKey,
    model:      model,
    ttsModel:   ttsModel,
    ttsVoice:   ttsVoice,
    httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
    maxRetries: maxRetries,
  }, nil
}

type omniHTTPError struct {
  StatusCode int
  Body       string
}

func (e *omniHTTPError) Error() string {
  return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func isRetryableHTTP(code int) bool {
  if code == 408 || code == 429 {
    return true
  }
  if code >= 500 && code <= 599 {
    return true
  }
  return false
}

func isRetryableErr(err error) bool {
  if err == nil {
    return false
  }
  if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
    // if caller canceled, don't retry; if it's our timeout, we will retry anyway.
    // We can only distinguish reliably by checking ctx, which we do in call loop.
    return true
  }
  var netErr net.Error
  if errors.As(err, &netErr) {
    if netErr.Timeout() || netErr.Temporary() {
      return true
    }
  }
  var httpErr *omniHTTPError
  if errors.As(err, &httpErr) {
    return isRetryableHTTP(httpErr.StatusCode)
  }
  return false
}

func jitterSleep(base time.Duration) time.Duration {
  // +/- 20%
  if base <= 0 {
    return 0
  }
  j := 0.2
  delta := base.Seconds() * j
  low := base.Seconds() - delta
  high := base.Seconds() + delta
  if low < 0 {
    low = 0
  }
  v := low + rand.Float64()*(high-low)
  return time.Duration(v * float64(time.Second))
}

func (c *omniClient) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
  var buf bytes.Buffer
  if body != nil {
    if err := json.NewEncoder(&buf).Encode(body); err != nil {
      return nil, nil, err
    }
  }

  req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
  if err != nil {
    return nil, nil, err
  }
  req.Header.Set("Authorization", "Bearer "+c.apiKey)
  req.Header.Set("Content-Type", "application/json")

  resp, err := c.httpClient.Do(req)
  if err != nil {
    return nil, nil, err
  }

  raw, readErr := io.ReadAll(resp.Body)
  _ = resp.Body.Close()
  if readErr != nil {
    return resp, nil, readErr
  }

  if resp.StatusCode < 200 || resp.StatusCode >= 300 {
    return resp, raw, &omniHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
  }
  return resp, raw, nil
}

func (c *omniClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
  // exponential backoff: 1s, 2s, 4s, 8s (cap ~10s)
  backoff := 1 * time.Second

  for attempt := 0; attempt <= c.maxRetries; attempt++ {
    if ctx.Err() != nil {
      return nil, ctx.Err()
    }

    resp, raw, err := c.doOnce(ctx, method, path, body)
    if err == nil {
      return raw, nil
    }

    // If non-retryable: fail immediately
    if !isRetryableErr(err) {
      return nil, err
    }

    // If we've exhausted retries: return last error
    if attempt == c.maxRetries {
      return nil, err
    }

    // Respect Retry-After when present
    sleepFor := backoff
    if resp != nil {
      ra := strings.TrimSpace(resp.Header.Get("Retry-After"))
      if ra != "" {
        if secs, parseErr := strconv.Atoi(ra); parseErr == nil && secs > 0 {
          sleepFor = time.Duration(secs) * time.Second
        }
      }
    }

    // Cap + jitter
    if sleepFor > 10*time.Second {
      sleepFor = 10 * time.Second
    }
    sleepFor = jitterSleep(sleepFor)

    // A caller-side cancellation surfaces as a retryable error above; don't
    // burn a backoff interval on a request nobody is waiting for.
    if ctx.Err() != nil {
      return nil, ctx.Err()
    }

    c.log.Warn("Omni request retrying",
      "path", path,
      "attempt", attempt+1,
      "max_retries", c.maxRetries,
      "sleep", sleepFor.String(),
      "error", err.Error(),
    )

    time.Sleep(sleepFor)
    backoff *= 2
  }

  return nil, fmt.Errorf("unreachable retry loop")
}

func collaboratorErr(stage string, err error) error {
  statusCode := 0
  var httpErr *omniHTTPError
  if errors.As(err, &httpErr) {
    statusCode = httpErr.StatusCode
  }
  return apperr.Collaborator(stage, statusCode, err)
}

// ---- Chat completions ----

type chatCompletionRequest struct {
  Model          string          `json:"model"`
  Messages       []ChatTurn      `json:"messages"`
  Temperature    float64         `json:"temperature,omitempty"`
  ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
  Type string `json:"type"`
}

type chatCompletionResponse struct {
  Choices []struct {
    Message struct {
      Content string `json:"content"`
    } `json:"message"`
  } `json:"choices"`
}

func (c *omniClient) completeJSON(ctx context.Context, stage string, temperature float64, system string, user string) (map[string]any, error) {
  req := chatCompletionRequest{
    Model: c.model,
    Messages: []ChatTurn{
      {Role: "system", Content: system},
      {Role: "user", Content: user},
    },
    Temperature:    temperature,
    ResponseFormat: &responseFormat{Type: "json_object"},
  }

  raw, err := c.do(ctx, "POST", "/v1/chat/completions", req)
  if err != nil {
    return nil, collaboratorErr(stage, err)
  }

  var resp chatCompletionResponse
  if err := json.Unmarshal(raw, &resp); err != nil {
    return nil, collaboratorErr(stage, fmt.Errorf("omni decode error: %w; raw=%s", err, string(raw)))
  }
  if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
    return nil, collaboratorErr(stage, fmt.Errorf("omni model returned no content"))
  }

  var payload map[string]any
  if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &payload); err != nil {
    return nil, collaboratorErr(stage, fmt.Errorf("omni model returned invalid JSON: %w", err))
  }
  return payload, nil
}

func mustJSON(v any) string {
  b, err := json.Marshal(v)
  if err != nil {
    return "{}"
  }
  return string(b)
}

func (c *omniClient) GenerateDiagnosticQuiz(ctx context.Context, topic string, profile StudentProfile) (map[string]any, error) {
  system := "You are Omni Teacher, an encouraging AI educator who designs engaging " +
    "diagnostic quizzes for children. Keep language friendly and age-appropriate."
  user := "Create a short diagnostic quiz for the topic below. Each question should help " +
    "assess the learner's current understanding. Provide at least 4 questions, " +
    "mixing formats (multiple choice, multi-select, short answer). " +
    "Return JSON with keys: program_title, overview, instructions, questions. " +
    "Each question must include id, prompt, answer_type, choices (optional), and hints." +
    "\n\nTopic description: " + topic +
    "\n\nStudent profile: " + mustJSON(profile)

  return c.completeJSON(ctx, "diagnostic_quiz", 0.7, system, user)
}

func (c *omniClient) EvaluateQuizAnswers(ctx context.Context, topic string, quiz map[string]any, answers map[string]any, profile StudentProfile) (map[string]any, error) {
  system := "You are Omni Teacher, an adaptive tutor. Evaluate the student's quiz answers, " +
    "summarise strengths/gaps, and design a personalised learning program with chapters " +
    "and lessons. Lessons must include markdown-friendly explanations and suggest " +
    "activities for kids."
  user := fmt.Sprintf(
    "Topic: %s\nStudent profile: %s\n\nQuiz questions: %s\n\nStudent answers: %s\n\n"+
      "Respond as JSON with keys: skill_profile (string summary), program_overview (string), "+
      "score (0-100), analysis (object with strengths and improvements), chapters (array). "+
      "Each chapter must include title, focus, lessons array. Each lesson needs title, "+
      "content_markdown, objectives, method_plan, practice_prompts, assessment, and "+
      "optional resources (array of {type, label, url}).",
    topic, mustJSON(profile), mustJSON(quiz), mustJSON(answers),
  )

  return c.completeJSON(ctx, "program_evaluation", 0.4, system, user)
}

func (c *omniClient) EvaluateLessonMastery(ctx context.Context, input MasteryInput) (map[string]any, error) {
  system := "You are Omni Teacher, offering concise feedback to young learners. " +
    "Judge how well the learner's answers show mastery of the lesson."
  user := fmt.Sprintf(
    "Lesson title: %s\nLesson content: %s\nObjectives: %s\nMethod plan: %s\n"+
      "Assessment: %s\nLearner answers: %s\n\n"+
      "Respond as JSON with keys: positive_feedback, next_focus, score (0-100), "+
      "stars (0-3 integer, 0 when mastery is not yet shown), summary.",
    input.LessonTitle, input.LessonContent, mustJSON(input.Objectives),
    mustJSON(input.MethodPlan), mustJSON(input.Assessment), mustJSON(input.StudentAnswers),
  )

  return c.completeJSON(ctx, "lesson_mastery", 0.6, system, user)
}

func (c *omniClient) ChatReply(ctx context.Context, turns []ChatTurn) (string, error) {
  req := chatCompletionRequest{
    Model:       c.model,
    Messages:    turns,
    Temperature: 0.8,
  }

  raw, err := c.do(ctx, "POST", "/v1/chat/completions", req)
  if err != nil {
    return "", collaboratorErr("chat_reply", err)
  }

  var resp chatCompletionResponse
  if err := json.Unmarshal(raw, &resp); err != nil {
    return "", collaboratorErr("chat_reply", fmt.Errorf("omni decode error: %w; raw=%s", err, string(raw)))
  }
  if len(resp.Choices) == 0 {
    return "", collaboratorErr("chat_reply", fmt.Errorf("omni model returned no choices"))
  }
  return resp.Choices[0].Message.Content, nil
}

// ---- Speech synthesis ----

type speechRequest struct {
  Model  string `json:"model"`
  Voice  string `json:"voice"`
  Input  string `json:"input"`
  Format string `json:"response_format"`
}

func (c *omniClient) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
  req := speechRequest{
    Model:  c.ttsModel,
    Voice:  c.ttsVoice,
    Input:  text,
    Format: "mp3",
  }

  raw, err := c.do(ctx, "POST", "/v1/audio/speech", req)
  if err != nil {
    return nil, collaboratorErr("speech_synthesis", err)
  }
  if len(raw) == 0 {
    return nil, collaboratorErr("speech_synthesis", fmt.Errorf("omni speech endpoint returned no audio"))
  }
  return raw, nil
}
