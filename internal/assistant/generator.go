package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"onyx-api/internal/subscription"
	"onyx-api/pkg/logger"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ChatCompleter is the narrow slice of the OpenAI client the generators
// need. *openai.Client satisfies it; tests substitute a stub.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

var (
	// Chat is the shared completion client, set once at startup.
	Chat ChatCompleter

	// Fine-tuned model ids for the plaid path; fall back to a standard
	// model when no fine-tune has been provisioned.
	fineTunedTaskModel = "gpt-4o"
	fineTunedChatModel = "gpt-4o"
)

// Init wires the completion client and model routing from configuration.
func Init(client ChatCompleter, taskModel, chatModel string) {
	Chat = client
	if taskModel != "" {
		fineTunedTaskModel = taskModel
	}
	if chatModel != "" {
		fineTunedChatModel = chatModel
	}
}

// Request carries one user question plus whatever context was gathered
// for it. Exactly one of TaskContext/AssistantContext is set.
type Request struct {
	UserID           string
	Message          string
	TaskContext      *TaskContext
	AssistantContext *AssistantContext
	Config           subscription.ProcessingConfig
}

// Response is what a generator produces: text plus usage accounting.
type Response struct {
	Message         string
	TokensUsed      int
	PremiumFeatures map[string]interface{}
}

// ResponseGenerator turns a contextualised question into an answer.
// Variants: RAGGenerator (personal questions over the user's own data),
// InternetSearchGenerator (general-knowledge questions), FineTunedGenerator
// (plaid tier).
type ResponseGenerator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// Classification is the personal-vs-general verdict for a question.
type Classification struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

const (
	QuestionPersonal = "PERSONAL"
	QuestionGeneral  = "GENERAL"
)

// firstChoice extracts the completion text. An empty choice list becomes an
// error so callers degrade instead of panicking on Choices[0].
func firstChoice(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// ClassifyQuestion decides whether a question needs the user's own data or
// general knowledge. Classification failure defaults to PERSONAL so the
// user's data path is never skipped by accident.
func ClassifyQuestion(ctx context.Context, message string) Classification {
	prompt := fmt.Sprintf(`Analyze this user question and determine if it's:
1. PERSONAL - About their tasks, work, personal productivity, or requires context from their data
2. GENERAL - A general knowledge question, current events, or internet search needed

Question: %q

Respond with JSON only:
{"type": "PERSONAL" | "GENERAL", "confidence": 0.0-1.0, "reasoning": "brief explanation"}`, message)

	resp, err := Chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       "gpt-4o-mini",
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: 0.1,
		MaxTokens:   150,
	})
	if err != nil {
		logger.ErrorLogger.Error("Error classifying question", zap.Error(err))
		return Classification{Type: QuestionPersonal, Confidence: 0.5, Reasoning: "Classification failed, defaulting to personal"}
	}
	content, err := firstChoice(resp)
	if err != nil {
		logger.ErrorLogger.Error("Error classifying question", zap.Error(err))
		return Classification{Type: QuestionPersonal, Confidence: 0.5, Reasoning: "Classification failed, defaulting to personal"}
	}

	var result Classification
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		logger.ErrorLogger.Error("Error parsing classification", zap.Error(err))
		return Classification{Type: QuestionPersonal, Confidence: 0.5, Reasoning: "Classification failed, defaulting to personal"}
	}
	if result.Type != QuestionGeneral {
		result.Type = QuestionPersonal
	}
	return result
}

// SelectGenerator routes a request: plaid goes to the fine-tuned path,
// everything else is split by question classification between RAG and the
// internet-search path.
func SelectGenerator(ctx context.Context, tier, message string) ResponseGenerator {
	if subscription.GetProcessingType(tier) == "premium" {
		return &FineTunedGenerator{}
	}
	if ClassifyQuestion(ctx, message).Type == QuestionGeneral {
		return &InternetSearchGenerator{}
	}
	return &RAGGenerator{}
}

// RAGGenerator answers personal questions by retrieving relevant rows from
// the user's tasks, notes and message history and grounding the model on
// them.
type RAGGenerator struct{}

func (g *RAGGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	var contextText string
	if req.TaskContext != nil {
		contextText = formatTaskContext(req.TaskContext)
	} else {
		retrieved, err := SearchUserContext(req.UserID, req.Message, 10)
		if err != nil {
			return Response{}, err
		}
		contextText = formatRetrievedContext(retrieved)
	}

	prompt := fmt.Sprintf(`You are a helpful AI assistant for a task management app. Answer the user's question using ONLY the provided context from their personal tasks, notes, and messages.

CONTEXT FROM USER'S TASKS AND NOTES:
%s

USER QUESTION: %q

INSTRUCTIONS:
- Answer based ONLY on the provided context
- If the context doesn't contain relevant information, say so
- Be specific and reference their actual tasks/notes when relevant
- Keep responses helpful and concise
- If you can suggest actions based on their existing tasks, do so

RESPONSE:`, contextText, req.Message)

	resp, err := Chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Config.Model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: req.Config.Temperature,
		MaxTokens:   req.Config.MaxTokens,
	})
	if err != nil {
		return Response{}, err
	}
	content, err := firstChoice(resp)
	if err != nil {
		return Response{}, err
	}

	return Response{
		Message:    strings.TrimSpace(content),
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// InternetSearchGenerator answers general-knowledge questions without
// touching the user's data.
type InternetSearchGenerator struct{}

func (g *InternetSearchGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	prompt := fmt.Sprintf(`You are a helpful AI assistant with access to current information. The user is asking a general knowledge question that requires internet/world knowledge.

USER QUESTION: %q

Please provide a comprehensive, accurate, and up-to-date answer. If the question involves:
- Current events: Mention that information may be outdated and suggest checking recent sources
- Specific data/numbers: Provide what you know but note the information date
- How-to questions: Give step-by-step guidance
- General knowledge: Provide a thorough explanation

Keep your response informative but concise, and acknowledge any limitations in your knowledge cutoff.

RESPONSE:`, req.Message)

	resp, err := Chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Config.Model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: 0.3,
		MaxTokens:   req.Config.MaxTokens,
	})
	if err != nil {
		return Response{}, err
	}
	content, err := firstChoice(resp)
	if err != nil {
		return Response{}, err
	}

	return Response{
		Message:    strings.TrimSpace(content),
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// FineTunedGenerator serves the plaid tier: a fine-tuned model over deeper
// context, with premium enhancements layered onto the base answer.
type FineTunedGenerator struct{}

func (g *FineTunedGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	var model, system, user string
	if req.TaskContext != nil {
		model = fineTunedTaskModel
		system = "You are a specialized AI assistant for task management. You have been fine-tuned on productivity and task management patterns. Provide expert-level insights and suggestions based on the task context."
		user = fmt.Sprintf("TASK CONTEXT:\n%s\n\nUSER QUESTION: %s\n\nPlease provide a detailed, expert response with specific recommendations.",
			formatTaskContext(req.TaskContext), req.Message)
	} else {
		model = fineTunedChatModel
		system = "You are an expert productivity and task management AI assistant. You have been fine-tuned on advanced productivity methodologies, task optimization, and personal effectiveness strategies. Provide sophisticated insights and actionable advice."
		user = fmt.Sprintf("USER CONTEXT:\n%s\n\nUSER QUESTION: %s\n\nProvide an expert-level response with advanced strategies and personalized recommendations.",
			formatAssistantContext(req.AssistantContext), req.Message)
	}

	resp, err := Chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.2,
		MaxTokens:   req.Config.MaxTokens,
		TopP:        0.9,
	})
	if err != nil {
		return Response{}, err
	}
	content, err := firstChoice(resp)
	if err != nil {
		return Response{}, err
	}

	out := Response{
		Message:    strings.TrimSpace(content),
		TokensUsed: resp.Usage.TotalTokens,
	}
	out.PremiumFeatures = premiumEnhancements(req.UserID)
	return out, nil
}

// premiumEnhancements layers pattern analysis and productivity insights on
// top of a plaid answer. Enhancement failures never fail the base answer.
func premiumEnhancements(userID string) map[string]interface{} {
	insights, err := generateProductivityInsights(userID)
	if err != nil {
		logger.ErrorLogger.Error("Error generating productivity insights", zap.Error(err))
		insights = nil
	}
	patterns, err := analyzeUserPatterns(userID)
	if err != nil {
		logger.ErrorLogger.Error("Error analyzing user patterns", zap.Error(err))
		patterns = nil
	}
	return map[string]interface{}{
		"productivity_insights": insights,
		"pattern_analysis":      patterns,
	}
}
