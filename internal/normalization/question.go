package normalization

import (
  "fmt"
  "strings"
)

// Canonical answer types.
const (
  AnswerTypeFreeForm       = "free_form"
  AnswerTypeMultipleChoice = "multiple_choice"
  AnswerTypeMultiSelect    = "multi_select"
)

var answerTypeAliases = map[string]string{
  "short_answer":    AnswerTypeFreeForm,
  "text":            AnswerTypeFreeForm,
  "open_ended":      AnswerTypeFreeForm,
  "single_choice":   AnswerTypeMultipleChoice,
  "single-select":   AnswerTypeMultipleChoice,
  "multiple_choice": AnswerTypeMultipleChoice,
  "multi_select":    AnswerTypeMultiSelect,
}

// Question is the canonical quiz question persisted on a diagnostic quiz.
type Question struct {
  ID         string   `json:"id"`
  Prompt     string   `json:"prompt"`
  AnswerType string   `json:"answer_type"`
  Choices    []string `json:"choices,omitempty"`
  Hints      []string `json:"hints,omitempty"`
}

// NormalizeQuestion coerces a raw AI-generated question into the canonical
// shape. It never fails: every field has a deterministic fallback, and
// normalizing an already-normalized question is a no-op.
func NormalizeQuestion(raw any, index int) Question {
  q := Question{
    ID:         fmt.Sprintf("q%d", index),
    AnswerType: AnswerTypeFreeForm,
  }

  m, ok := asMap(raw)
  if !ok {
    q.Prompt = strings.TrimSpace(Stringify(raw))
    return q
  }

  if id := strings.TrimSpace(Stringify(firstOf(m, "id"))); id != "" {
    q.ID = id
  }

  q.Prompt = Stringify(firstOf(m, "prompt", "question", "text"))

  rawType := strings.ToLower(strings.TrimSpace(Stringify(firstOf(m, "answer_type"))))
  if mapped, known := answerTypeAliases[rawType]; known {
    q.AnswerType = mapped
  }

  q.Choices = normalizeChoices(firstOf(m, "choices", "options"))
  if hints := firstOf(m, "hints"); hints != nil {
    if list, isList := hints.([]any); isList {
      out := make([]string, 0, len(list))
      for _, h := range list {
        out = append(out, Stringify(h))
      }
      if len(out) > 0 {
        q.Hints = out
      }
    } else {
      q.Hints = []string{Stringify(hints)}
    }
  }
  return q
}

// normalizeChoices flattens option objects ({label|text|value|option})
// to plain strings; scalars are stringified.
func normalizeChoices(raw any) []string {
  if raw == nil {
    return nil
  }
  list, isList := raw.([]any)
  if !isList {
    s := Stringify(raw)
    if s == "" {
      return nil
    }
    return []string{s}
  }
  choices := make([]string, 0, len(list))
  for _, item := range list {
    if m, ok := asMap(item); ok {
      label := firstOf(m, "label", "text", "value", "option")
      if label != nil {
        choices = append(choices, Stringify(label))
      } else {
        choices = append(choices, fmt.Sprint(item))
      }
      continue
    }
    choices = append(choices, Stringify(item))
  }
  if len(choices) == 0 {
    return nil
  }
  return choices
}
