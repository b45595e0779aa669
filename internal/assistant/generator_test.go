package assistant

import (
	"context"
	"fmt"
	"testing"
	"time"

	"onyx-api/internal/models"
	"onyx-api/internal/subscription"
	"onyx-api/pkg/logger"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChat struct {
	content   string
	err       error
	noChoices bool
	requests  []openai.ChatCompletionRequest
}

func (s *stubChat) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	if s.noChoices {
		return openai.ChatCompletionResponse{}, nil
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: s.content}},
		},
		Usage: openai.Usage{TotalTokens: 42},
	}, nil
}

func TestMain(m *testing.M) {
	logger.InitLoggers()
	m.Run()
}

func TestClassifyQuestionGeneral(t *testing.T) {
	Chat = &stubChat{content: `{"type": "GENERAL", "confidence": 0.9, "reasoning": "world knowledge"}`}

	result := ClassifyQuestion(context.Background(), "What is the capital of France?")

	assert.Equal(t, QuestionGeneral, result.Type)
	assert.InDelta(t, 0.9, result.Confidence, 0.001)
}

func TestClassifyQuestionFallsBackToPersonalOnError(t *testing.T) {
	Chat = &stubChat{err: fmt.Errorf("api unavailable")}

	result := ClassifyQuestion(context.Background(), "anything")

	assert.Equal(t, QuestionPersonal, result.Type)
}

func TestClassifyQuestionFallsBackToPersonalOnBadJSON(t *testing.T) {
	Chat = &stubChat{content: "not json at all"}

	result := ClassifyQuestion(context.Background(), "anything")

	assert.Equal(t, QuestionPersonal, result.Type)
}

func TestClassifyQuestionNormalizesUnknownType(t *testing.T) {
	Chat = &stubChat{content: `{"type": "SOMETHING_ELSE", "confidence": 0.7, "reasoning": "x"}`}

	result := ClassifyQuestion(context.Background(), "anything")

	assert.Equal(t, QuestionPersonal, result.Type)
}

func TestClassifyQuestionFallsBackToPersonalOnEmptyCompletion(t *testing.T) {
	Chat = &stubChat{noChoices: true}

	result := ClassifyQuestion(context.Background(), "anything")

	assert.Equal(t, QuestionPersonal, result.Type)
}

func TestGeneratorsReturnErrorOnEmptyCompletion(t *testing.T) {
	Chat = &stubChat{noChoices: true}
	taskCtx := &TaskContext{Task: models.Task{Title: "Finish report"}}
	req := Request{
		UserID:      "u1",
		Message:     "help",
		TaskContext: taskCtx,
		Config:      subscription.GetAIProcessingConfig(models.TierFree),
	}

	// An empty choice list must surface as an error, never a panic, so the
	// orchestrator's degrade path still persists the user message.
	generators := []ResponseGenerator{
		&RAGGenerator{},
		&InternetSearchGenerator{},
		&FineTunedGenerator{},
	}
	for _, gen := range generators {
		_, err := gen.Generate(context.Background(), req)
		assert.Error(t, err, "%T", gen)
	}
}

func TestParseDueDateEmptyCompletionIsError(t *testing.T) {
	Chat = &stubChat{noChoices: true}

	_, err := ParseDueDate(context.Background(), "tomorrow")

	assert.Error(t, err)
}

func TestSelectGeneratorPlaidSkipsClassification(t *testing.T) {
	stub := &stubChat{content: `{"type": "GENERAL", "confidence": 0.9, "reasoning": "x"}`}
	Chat = stub

	gen := SelectGenerator(context.Background(), models.TierPlaid, "any question")

	assert.IsType(t, &FineTunedGenerator{}, gen)
	assert.Empty(t, stub.requests)
}

func TestSelectGeneratorRoutesByClassification(t *testing.T) {
	Chat = &stubChat{content: `{"type": "GENERAL", "confidence": 0.9, "reasoning": "x"}`}
	assert.IsType(t, &InternetSearchGenerator{}, SelectGenerator(context.Background(), models.TierFree, "q"))

	Chat = &stubChat{content: `{"type": "PERSONAL", "confidence": 0.9, "reasoning": "x"}`}
	assert.IsType(t, &RAGGenerator{}, SelectGenerator(context.Background(), models.TierFree, "q"))
}

func TestInternetSearchGeneratorUsesTierConfig(t *testing.T) {
	stub := &stubChat{content: "Paris is the capital of France."}
	Chat = stub

	resp, err := (&InternetSearchGenerator{}).Generate(context.Background(), Request{
		UserID:  "u1",
		Message: "What is the capital of France?",
		Config:  subscription.GetAIProcessingConfig(models.TierFree),
	})

	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital of France.", resp.Message)
	assert.Equal(t, 42, resp.TokensUsed)
	require.Len(t, stub.requests, 1)
	assert.Equal(t, "gpt-3.5-turbo", stub.requests[0].Model)
	assert.Equal(t, 150, stub.requests[0].MaxTokens)
}

func TestParseDueDateStripsCodeFences(t *testing.T) {
	Chat = &stubChat{content: "```json\n{\"due_date\": \"2026-09-02T15:00:00Z\", \"is_repeating\": false, \"confidence\": 0.95}\n```"}

	parsed, err := ParseDueDate(context.Background(), "tomorrow at 3pm")

	require.NoError(t, err)
	require.NotNil(t, parsed.DueDate)
	assert.Equal(t, "2026-09-02T15:00:00Z", *parsed.DueDate)
	assert.False(t, parsed.IsRepeating)
}

func TestParseDueDateRepeating(t *testing.T) {
	Chat = &stubChat{content: `{"due_date": "Mondays at 4pm", "is_repeating": true, "confidence": 0.9}`}

	parsed, err := ParseDueDate(context.Background(), "every monday at 4")

	require.NoError(t, err)
	require.NotNil(t, parsed.DueDate)
	assert.Equal(t, "Mondays at 4pm", *parsed.DueDate)
	assert.True(t, parsed.IsRepeating)
}

func TestExtractTaskRejectsEmptyTitle(t *testing.T) {
	Chat = &stubChat{content: `{"title": "", "description": null, "due_date": null, "is_repeating": false}`}

	_, err := ExtractTask(context.Background(), "mumble")

	assert.Error(t, err)
}

func TestIsOverdue(t *testing.T) {
	past := time.Now().Add(-24 * time.Hour).UTC().Format(time.RFC3339)
	future := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	repeating := "Mondays at 4pm"
	done := time.Now()

	assert.True(t, isOverdue(models.Task{DueDate: &past}))
	assert.False(t, isOverdue(models.Task{DueDate: &future}))
	assert.False(t, isOverdue(models.Task{DueDate: &repeating}))
	assert.False(t, isOverdue(models.Task{DueDate: &past, CompletedAt: &done}))
	assert.False(t, isOverdue(models.Task{}))
}

func TestFormatRetrievedContextEmpty(t *testing.T) {
	assert.Equal(t, "No relevant tasks, notes, or messages found.", formatRetrievedContext(nil))
}

func TestFormatTaskContext(t *testing.T) {
	desc := "Quarterly numbers"
	due := "2026-09-15"
	ctx := &TaskContext{
		Task: models.Task{Title: "Finish report", Description: &desc, DueDate: &due},
		Subtasks: []models.Subtask{
			{Title: "Draft outline", CompletedAt: &time.Time{}},
			{Title: "Write summary"},
		},
		Notes:    []models.Note{{Content: "Check last year's figures"}},
		Metadata: TaskMetadata{SubtaskCount: 2, CompletedSubtasks: 1},
	}

	out := formatTaskContext(ctx)

	assert.Contains(t, out, "TASK: Finish report")
	assert.Contains(t, out, "Description: Quarterly numbers")
	assert.Contains(t, out, "Due: 2026-09-15")
	assert.Contains(t, out, "[x] Draft outline")
	assert.Contains(t, out, "[ ] Write summary")
	assert.Contains(t, out, "Check last year's figures")
}
