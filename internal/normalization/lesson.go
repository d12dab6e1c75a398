package normalization

import (
  "fmt"
  "strings"
)

type Resource struct {
  Type  string `json:"type"`
  Label string `json:"label"`
  URL   string `json:"url,omitempty"`
}

type MethodStep struct {
  Title           string `json:"title"`
  Description     string `json:"description"`
  DurationMinutes *int   `json:"duration_minutes"`
}

type PracticePrompt struct {
  Prompt   string `json:"prompt"`
  Modality string `json:"modality,omitempty"`
}

type Assessment struct {
  Prompt            string   `json:"prompt"`
  SuccessCriteria   []string `json:"success_criteria,omitempty"`
  ExemplarAnswer    string   `json:"exemplar_answer,omitempty"`
  ExtensionIdea     string   `json:"extension_idea,omitempty"`
  FollowUpQuestions []string `json:"follow_up_questions,omitempty"`
}

// LessonContent is the canonical lesson payload assembled from AI output,
// ready to persist on a Lesson row.
type LessonContent struct {
  Title            string           `json:"title"`
  Chapter          string           `json:"chapter,omitempty"`
  ContentMarkdown  string           `json:"content_markdown"`
  Objectives       []string         `json:"objectives"`
  MethodPlan       []MethodStep     `json:"method_plan"`
  PracticePrompts  []PracticePrompt `json:"practice_prompts"`
  Assessment       Assessment       `json:"assessment"`
  Resources        []Resource       `json:"resources"`
  EstimatedMinutes *int             `json:"estimated_minutes,omitempty"`
}

// NormalizeResources accepts a single item or a list. Object items default
// type to "link" and label to "Resource"; anything else becomes a note.
func NormalizeResources(raw any) []Resource {
  if raw == nil {
    return nil
  }
  items := asList(raw)
  resources := make([]Resource, 0, len(items))
  for _, item := range items {
    if m, ok := asMap(item); ok {
      resourceType := strings.TrimSpace(Stringify(firstOf(m, "type", "kind")))
      if resourceType == "" {
        resourceType = "link"
      }
      label := strings.TrimSpace(Stringify(firstOf(m, "label", "title", "name", "description")))
      if label == "" {
        label = "Resource"
      }
      url := strings.TrimSpace(Stringify(firstOf(m, "url", "href")))
      resources = append(resources, Resource{Type: resourceType, Label: label, URL: url})
      continue
    }
    label := strings.TrimSpace(Stringify(item))
    if label == "" {
      label = "Resource"
    }
    resources = append(resources, Resource{Type: "note", Label: label})
  }
  return resources
}

// NormalizeMethodSteps orders raw activity entries into titled steps.
// A missing source yields one generic step so a lesson always has a plan.
func NormalizeMethodSteps(raw any) []MethodStep {
  items := asList(raw)
  steps := make([]MethodStep, 0, len(items))
  for i, item := range items {
    fallbackTitle := fmt.Sprintf("Activity %d", i+1)
    if m, ok := asMap(item); ok {
      title := strings.TrimSpace(Stringify(firstOf(m, "title", "name", "step")))
      if title == "" {
        title = fallbackTitle
      }
      steps = append(steps, MethodStep{
        Title:           title,
        Description:     strings.TrimSpace(Stringify(firstOf(m, "description", "details", "prompt", "summary"))),
        DurationMinutes: IntOrNil(firstOf(m, "duration_minutes", "minutes", "duration")),
      })
      continue
    }
    steps = append(steps, MethodStep{
      Title:       fallbackTitle,
      Description: strings.TrimSpace(Stringify(item)),
    })
  }
  if len(steps) == 0 {
    steps = append(steps, MethodStep{
      Title:       "Explore together",
      Description: "Discuss the main idea with the learner and walk through a playful example.",
    })
  }
  return steps
}

// NormalizePracticePrompts drops entries whose prompt text is empty after
// trimming and guarantees at least one reflection prompt.
func NormalizePracticePrompts(raw any) []PracticePrompt {
  items := asList(raw)
  prompts := make([]PracticePrompt, 0, len(items))
  for _, item := range items {
    var text, modality string
    if m, ok := asMap(item); ok {
      text = strings.TrimSpace(Stringify(firstOf(m, "prompt", "activity", "description", "task")))
      modality = strings.TrimSpace(Stringify(firstOf(m, "modality", "type")))
    } else {
      text = strings.TrimSpace(Stringify(item))
    }
    if text == "" {
      continue
    }
    prompts = append(prompts, PracticePrompt{Prompt: text, Modality: modality})
  }
  if len(prompts) == 0 {
    prompts = append(prompts, PracticePrompt{
      Prompt:   "Share one thing you learned and draw or explain an example in your own words.",
      Modality: "reflection",
    })
  }
  return prompts
}

// NormalizeAssessment accepts an object, a bare prompt string, or nothing.
func NormalizeAssessment(raw any) Assessment {
  if raw == nil {
    return Assessment{
      Prompt:          "Tell Omni Teacher what you now understand and show an example!",
      SuccessCriteria: []string{"Explains the concept clearly", "Provides a matching example"},
    }
  }
  m, ok := asMap(raw)
  if !ok {
    prompt := strings.TrimSpace(Stringify(raw))
    if prompt == "" {
      prompt = "Show what you learned!"
    }
    return Assessment{Prompt: prompt}
  }
  prompt := strings.TrimSpace(Stringify(firstOf(m, "prompt", "question", "task", "challenge")))
  if prompt == "" {
    prompt = "Show what you learned!"
  }
  return Assessment{
    Prompt:            prompt,
    SuccessCriteria:   StringList(firstOf(m, "success_criteria", "criteria", "checklist")),
    ExemplarAnswer:    strings.TrimSpace(Stringify(firstOf(m, "exemplar_answer", "answer_key"))),
    ExtensionIdea:     strings.TrimSpace(Stringify(firstOf(m, "extension", "extension_idea"))),
    FollowUpQuestions: StringList(firstOf(m, "follow_up_questions", "followups", "additional_questions")),
  }
}

// NormalizeLesson composes the field normalizers into a renderable lesson.
// index is the 1-based position across the whole program.
func NormalizeLesson(raw any, index int, chapter string) LessonContent {
  m, _ := asMap(raw)
  if m == nil {
    m = map[string]any{}
  }

  title := strings.TrimSpace(Stringify(firstOf(m, "title")))
  if title == "" {
    title = fmt.Sprintf("Lesson %d", index)
  }

  content := strings.TrimSpace(Stringify(firstOf(m, "content_markdown", "lesson_markdown", "content", "summary")))
  if content == "" {
    content = fmt.Sprintf("Let's explore %s together!", title)
  }

  objectives := StringList(m["objectives"])
  if len(objectives) == 0 {
    objectives = []string{fmt.Sprintf("Understand the key ideas in %s.", title)}
  }

  return LessonContent{
    Title:            title,
    Chapter:          chapter,
    ContentMarkdown:  content,
    Objectives:       objectives,
    MethodPlan:       NormalizeMethodSteps(firstOf(m, "method_plan", "teaching_plan", "activities", "steps")),
    PracticePrompts:  NormalizePracticePrompts(firstOf(m, "practice_prompts", "practice_ideas", "games", "assignments")),
    Assessment:       NormalizeAssessment(firstOf(m, "mastery_check", "assessment", "exit_ticket")),
    Resources:        NormalizeResources(m["resources"]),
    EstimatedMinutes: IntOrNil(firstOf(m, "estimated_minutes", "duration_minutes", "duration")),
  }
}
