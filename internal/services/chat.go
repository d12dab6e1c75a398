package services

import (
  "context"
  "fmt"
  "strings"

  "github.com/google/uuid"

  "github.com/omniteacher/omniteacher-backend/internal/apperr"
  "github.com/omniteacher/omniteacher-backend/internal/logger"
  "github.com/omniteacher/omniteacher-backend/internal/repos"
  "github.com/omniteacher/omniteacher-backend/internal/types"
  "github.com/omniteacher/omniteacher-backend/internal/utils"
)

// fallbackReply keeps the conversation alive when the Omni model is
// unreachable; the failure is logged but never shown raw to the learner.
const fallbackReply = "I'm having a little trouble reaching my brainy assistant right now. " +
  "Let's keep talking, and I'll fetch more help soon!"

var renderFormats = []string{"markdown", "latex", "mermaid"}

// ChatMessageInput is one inbound learner message, text or image.
type ChatMessageInput struct {
  ContentType   string `json:"content_type"`
  Text          string `json:"text"`
  ImageURL      string `json:"image_url"`
  GenerateVoice bool   `json:"generate_voice"`
}

type CreateSessionInput struct {
  StudentID  uuid.UUID  `json:"student_id"`
  ProgramID  *uuid.UUID `json:"program_id"`
  Title      string     `json:"title"`
  TTSEnabled bool       `json:"tts_enabled"`
}

type ChatService interface {
  GetOrCreateSession(ctx context.Context, sessionID, studentID uuid.UUID, programID *uuid.UUID, ttsEnabled bool) (*types.ChatSession, error)
  CreateSession(ctx context.Context, input CreateSessionInput) (*types.ChatSession, error)
  GetTranscript(ctx context.Context, sessionID uuid.UUID) (*types.ChatSession, []*types.ChatMessage, error)
  RecentHistory(ctx context.Context, sessionID uuid.UUID) ([]*types.ChatMessage, error)
  AppendMessage(ctx context.Context, session *types.ChatSession, sender string, input ChatMessageInput) (*types.ChatMessage, error)
  GenerateReply(ctx context.Context, session *types.ChatSession, voiceRequested bool) (*types.ChatMessage, error)
}

type chatService struct {
  log         *logger.Logger
  omni        OmniClient
  bucket      BucketService
  studentRepo repos.StudentRepo
  programRepo repos.LearningProgramRepo
  sessionRepo repos.ChatSessionRepo
  messageRepo repos.ChatMessageRepo
  maxHistory  int
}

func NewChatService(
  omni OmniClient,
  bucket BucketService,
  studentRepo repos.StudentRepo,
  programRepo repos.LearningProgramRepo,
  sessionRepo repos.ChatSessionRepo,
  messageRepo repos.ChatMessageRepo,
  baseLog *logger.Logger,
) ChatService {
  serviceLog := baseLog.With("service", "ChatService")
  return &chatService{
    log:         serviceLog,
    omni:        omni,
    bucket:      bucket,
    studentRepo: studentRepo,
    programRepo: programRepo,
    sessionRepo: sessionRepo,
    messageRepo: messageRepo,
    maxHistory:  utils.GetEnvAsInt("MAX_CHAT_HISTORY", 12, serviceLog),
  }
}

// GetOrCreateSession is an idempotent upsert keyed by the externally
// supplied session id. An existing session keeps its identity: a missing
// program binding is backfilled and tts_enabled is only ever promoted.
func (s *chatService) GetOrCreateSession(ctx context.Context, sessionID, studentID uuid.UUID, programID *uuid.UUID, ttsEnabled bool) (*types.ChatSession, error) {
  if sessionID == uuid.Nil {
    return nil, apperr.Invalid("session_id", "session id is required")
  }

  sessions, err := s.sessionRepo.GetByIDs(ctx, nil, []uuid.UUID{sessionID})
  if err != nil {
    return nil, fmt.Errorf("failed to load chat session: %w", err)
  }
  if len(sessions) > 0 {
    session := sessions[0]
    fields := map[string]any{}
    if programID != nil && session.ProgramID == nil {
      fields["program_id"] = *programID
      session.ProgramID = programID
    }
    if ttsEnabled && !session.TTSEnabled {
      fields["tts_enabled"] = true
      session.TTSEnabled = true
    }
    if len(fields) > 0 {
      if err := s.sessionRepo.UpdateFields(ctx, nil, session.ID, fields); err != nil {
        return nil, fmt.Errorf("failed to update chat session: %w", err)
      }
    }
    return session, nil
  }

  students, err := s.studentRepo.GetByIDs(ctx, nil, []uuid.UUID{studentID})
  if err != nil {
    return nil, fmt.Errorf("failed to load student: %w", err)
  }
  if len(students) == 0 {
    return nil, apperr.NotFound("student")
  }

  session := &types.ChatSession{
    ID:         sessionID,
    StudentID:  studentID,
    ProgramID:  programID,
    Title:      "Study chat",
    TTSEnabled: ttsEnabled,
  }
  created, err := s.sessionRepo.Create(ctx, nil, []*types.ChatSession{session})
  if err != nil {
    return nil, fmt.Errorf("failed to create chat session: %w", err)
  }
  return created[0], nil
}

func (s *chatService) CreateSession(ctx context.Context, input CreateSessionInput) (*types.ChatSession, error) {
  title := strings.TrimSpace(input.Title)
  if title == "" {
    title = "Study chat"
  }
  session, err := s.GetOrCreateSession(ctx, uuid.New(), input.StudentID, input.ProgramID, input.TTSEnabled)
  if err != nil {
    return nil, err
  }
  if title != session.Title {
    if err := s.sessionRepo.UpdateFields(ctx, nil, session.ID, map[string]any{"title": title}); err != nil {
      return nil, fmt.Errorf("failed to title chat session: %w", err)
    }
    session.Title = title
  }
  return session, nil
}

func (s *chatService) GetTranscript(ctx context.Context, sessionID uuid.UUID) (*types.ChatSession, []*types.ChatMessage, error) {
  sessions, err := s.sessionRepo.GetByIDs(ctx, nil, []uuid.UUID{sessionID})
  if err != nil {
    return nil, nil, fmt.Errorf("failed to load chat session: %w", err)
  }
  if len(sessions) == 0 {
    return nil, nil, apperr.NotFound("chat session")
  }
  messages, err := s.messageRepo.GetBySessionID(ctx, nil, sessionID)
  if err != nil {
    return nil, nil, fmt.Errorf("failed to load chat messages: %w", err)
  }
  return sessions[0], messages, nil
}

// RecentHistory returns the last-N window of a session's messages, the same
// slice the reply generator feeds to the model.
func (s *chatService) RecentHistory(ctx context.Context, sessionID uuid.UUID) ([]*types.ChatMessage, error) {
  messages, err := s.messageRepo.GetBySessionID(ctx, nil, sessionID)
  if err != nil {
    return nil, fmt.Errorf("failed to load chat history: %w", err)
  }
  return trimHistory(messages, s.maxHistory), nil
}

func (s *chatService) AppendMessage(ctx context.Context, session *types.ChatSession, sender string, input ChatMessageInput) (*types.ChatMessage, error) {
  message := &types.ChatMessage{
    SessionID:     session.ID,
    Sender:        sender,
    ContentType:   input.ContentType,
    RenderFormats: jsonColumn(renderFormats),
  }
  switch input.ContentType {
  case types.ChatContentTypeText:
    if strings.TrimSpace(input.Text) == "" {
      return nil, apperr.Invalid("text", "text is required for text messages")
    }
    message.TextContent = input.Text
  case types.ChatContentTypeImage:
    if strings.TrimSpace(input.ImageURL) == "" {
      return nil, apperr.Invalid("image_url", "image_url is required for image messages")
    }
    message.ImageURL = input.ImageURL
  default:
    return nil, apperr.Invalid("content_type", "content_type must be text or image")
  }

  created, err := s.messageRepo.Create(ctx, nil, []*types.ChatMessage{message})
  if err != nil {
    return nil, fmt.Errorf("failed to persist chat message: %w", err)
  }
  return created[0], nil
}

// buildSystemPrompt assembles the deterministic tutor persona plus whatever
// learner/program context exists. Always the first turn of the conversation.
func buildSystemPrompt(student *types.Student, program *types.LearningProgram) string {
  lines := []string{
    "You are Omni Teacher, a caring AI tutor for children.",
    "Use Markdown for structure, include LaTeX for math when appropriate, and Mermaid for diagrams.",
    "Respond in a warm, encouraging tone and keep explanations age appropriate.",
    "Always be ready for small talk but gently guide back to learning goals.",
  }
  if student != nil && student.Grade != "" {
    lines = append(lines, fmt.Sprintf("The learner is in grade %s.", student.Grade))
  }
  if program != nil && program.SkillProfile != "" {
    lines = append(lines, fmt.Sprintf("Current skill profile: %s.", program.SkillProfile))
  }
  if program != nil && program.Summary != "" {
    lines = append(lines, fmt.Sprintf("Program summary: %s.", program.Summary))
  }
  return strings.Join(lines, " \n")
}

// trimHistory keeps the most recent max messages. Older messages stay
// persisted, they just fall out of the model's context window.
func trimHistory(messages []*types.ChatMessage, max int) []*types.ChatMessage {
  if max <= 0 || len(messages) <= max {
    return messages
  }
  return messages[len(messages)-max:]
}

func messageTurn(message *types.ChatMessage) ChatTurn {
  var parts []ChatContentPart
  if message.TextContent != "" {
    parts = append(parts, ChatContentPart{Type: "text", Text: message.TextContent})
  }
  if message.ImageURL != "" {
    parts = append(parts, ChatContentPart{Type: "image_url", ImageURL: &ChatImageURL{URL: message.ImageURL}})
  }
  if len(parts) == 0 {
    parts = append(parts, ChatContentPart{Type: "text", Text: ""})
  }
  role := "assistant"
  if message.Sender == types.ChatSenderStudent {
    role = "user"
  }
  return ChatTurn{Role: role, Content: parts}
}

func (s *chatService) buildConversation(ctx context.Context, session *types.ChatSession, history []*types.ChatMessage) ([]ChatTurn, error) {
  students, err := s.studentRepo.GetByIDs(ctx, nil, []uuid.UUID{session.StudentID})
  if err != nil {
    return nil, fmt.Errorf("failed to load student: %w", err)
  }
  var student *types.Student
  if len(students) > 0 {
    student = students[0]
  }

  var program *types.LearningProgram
  if session.ProgramID != nil {
    programs, err := s.programRepo.GetByIDs(ctx, nil, []uuid.UUID{*session.ProgramID})
    if err != nil {
      return nil, fmt.Errorf("failed to load program: %w", err)
    }
    if len(programs) > 0 {
      program = programs[0]
    }
  }

  turns := make([]ChatTurn, 0, len(history)+1)
  turns = append(turns, ChatTurn{Role: "system", Content: buildSystemPrompt(student, program)})
  for _, message := range history {
    turns = append(turns, messageTurn(message))
  }
  return turns, nil
}

func (s *chatService) GenerateReply(ctx context.Context, session *types.ChatSession, voiceRequested bool) (*types.ChatMessage, error) {
  history, err := s.messageRepo.GetBySessionID(ctx, nil, session.ID)
  if err != nil {
    return nil, fmt.Errorf("failed to load chat history: %w", err)
  }
  conversation, err := s.buildConversation(ctx, session, trimHistory(history, s.maxHistory))
  if err != nil {
    return nil, err
  }

  replyText, err := s.omni.ChatReply(ctx, conversation)
  if err != nil {
    s.log.Warn("Chat reply generation failed, using fallback", "session_id", session.ID, "error", err)
    replyText = fallbackReply
  }

  assistantMessage := &types.ChatMessage{
    SessionID:     session.ID,
    Sender:        types.ChatSenderAssistant,
    ContentType:   types.ChatContentTypeText,
    TextContent:   replyText,
    RenderFormats: jsonColumn(renderFormats),
  }
  created, err := s.messageRepo.Create(ctx, nil, []*types.ChatMessage{assistantMessage})
  if err != nil {
    return nil, fmt.Errorf("failed to persist assistant message: %w", err)
  }
  assistantMessage = created[0]

  if (session.TTSEnabled || voiceRequested) && strings.TrimSpace(replyText) != "" {
    s.attachVoice(ctx, session, assistantMessage, replyText)
  }
  return assistantMessage, nil
}

// attachVoice synthesizes and stores audio for an assistant reply. Any
// failure leaves the message without audio; the text reply already stands.
func (s *chatService) attachVoice(ctx context.Context, session *types.ChatSession, message *types.ChatMessage, text string) {
  audio, err := s.omni.SynthesizeSpeech(ctx, text)
  if err != nil {
    s.log.Warn("Voice synthesis failed", "session_id", session.ID, "message_id", message.ID, "error", err)
    return
  }

  objectName := fmt.Sprintf("sessions/%s/%s.mp3", session.ID, uuid.New())
  audioURL, err := s.bucket.StoreAudio(ctx, objectName, audio, "audio/mpeg")
  if err != nil {
    s.log.Warn("Audio upload failed", "session_id", session.ID, "message_id", message.ID, "error", err)
    return
  }

  if err := s.messageRepo.UpdateFields(ctx, nil, message.ID, map[string]any{"audio_url": audioURL}); err != nil {
    s.log.Warn("Failed to attach audio URL", "message_id", message.ID, "error", err)
    return
  }
  message.AudioURL = audioURL
}
