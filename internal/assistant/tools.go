package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ParsedDate is the structured result of natural-language date parsing.
// Repeating schedules keep the descriptive text instead of a timestamp.
type ParsedDate struct {
	DueDate     *string `json:"due_date"`
	IsRepeating bool    `json:"is_repeating"`
	Confidence  float64 `json:"confidence"`
}

// ParseDueDate turns free text like "next friday at 3pm" or "every monday"
// into a due date. One-off dates come back as RFC 3339; repeating schedules
// keep a normalized description and set is_repeating.
func ParseDueDate(ctx context.Context, input string) (ParsedDate, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	prompt := fmt.Sprintf(`Parse this natural language due date into structured data. Current time: %s

Input: %q

Rules:
- One-off dates: return ISO 8601 timestamp in "due_date", "is_repeating": false
- Repeating schedules (e.g. "every monday", "daily"): return a short normalized description in "due_date" (e.g. "Mondays at 4pm"), "is_repeating": true
- Unparseable input: "due_date": null, "is_repeating": false, low confidence

Respond with JSON only:
{"due_date": string | null, "is_repeating": boolean, "confidence": 0.0-1.0}`, now, input)

	resp, err := Chat.CreateChatCompletion(ctx, chatRequest("gpt-4o-mini", prompt, 0.1, 150))
	if err != nil {
		return ParsedDate{}, err
	}
	content, err := firstChoice(resp)
	if err != nil {
		return ParsedDate{}, err
	}

	var parsed ParsedDate
	if err := json.Unmarshal([]byte(cleanJSON(content)), &parsed); err != nil {
		return ParsedDate{}, fmt.Errorf("failed to parse date response: %w", err)
	}
	return parsed, nil
}

// SmartTask is the structured result of natural-language task extraction.
type SmartTask struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	DueDate     *string `json:"due_date"`
	IsRepeating bool    `json:"is_repeating"`
}

// ExtractTask turns a free-text request like "remind me to call the dentist
// tomorrow at 2" into a structured task.
func ExtractTask(ctx context.Context, input string) (SmartTask, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	prompt := fmt.Sprintf(`Extract a task from this natural language input. Current time: %s

Input: %q

Respond with JSON only:
{"title": "short actionable title", "description": string | null, "due_date": string | null (ISO 8601 for one-off, descriptive text for repeating), "is_repeating": boolean}`, now, input)

	resp, err := Chat.CreateChatCompletion(ctx, chatRequest("gpt-4o-mini", prompt, 0.2, 200))
	if err != nil {
		return SmartTask{}, err
	}
	content, err := firstChoice(resp)
	if err != nil {
		return SmartTask{}, err
	}

	var task SmartTask
	if err := json.Unmarshal([]byte(cleanJSON(content)), &task); err != nil {
		return SmartTask{}, fmt.Errorf("failed to parse task extraction: %w", err)
	}
	if strings.TrimSpace(task.Title) == "" {
		return SmartTask{}, fmt.Errorf("no task could be extracted")
	}
	return task, nil
}

// GenerateTaskSuggestions proposes next tasks based on what the user has
// been working on.
func GenerateTaskSuggestions(ctx context.Context, userID string, count int) ([]string, error) {
	recent, err := recentTasks(userID, 15)
	if err != nil {
		return nil, err
	}

	var existing strings.Builder
	for _, t := range recent {
		status := "pending"
		if t.CompletedAt != nil {
			status = "completed"
		}
		fmt.Fprintf(&existing, "- %s (%s)\n", t.Title, status)
	}
	if existing.Len() == 0 {
		existing.WriteString("(no tasks yet)")
	}

	prompt := fmt.Sprintf(`Based on this user's recent tasks, suggest %d new tasks they might want to add. Suggestions should be concrete, actionable, and complement their existing work without duplicating it.

RECENT TASKS:
%s

Respond with JSON only: {"suggestions": ["title 1", "title 2", ...]}`, count, existing.String())

	resp, err := Chat.CreateChatCompletion(ctx, chatRequest("gpt-4o-mini", prompt, 0.7, 300))
	if err != nil {
		return nil, err
	}
	content, err := firstChoice(resp)
	if err != nil {
		return nil, err
	}

	var out struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(content)), &out); err != nil {
		return nil, fmt.Errorf("failed to parse suggestions: %w", err)
	}
	return out.Suggestions, nil
}

// OnboardingTasks are seeded for every new user.
func OnboardingTasks() []string {
	return []string{
		"Welcome to Onyx! Tap here to see how tasks work",
		"Try asking the AI assistant a question about this task",
		"Create your first folder to organize your tasks",
	}
}

func chatRequest(model, prompt string, temperature float32, maxTokens int) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

// cleanJSON strips markdown code fences the model sometimes wraps JSON in.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
