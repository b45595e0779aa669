package assistant

import (
	"context"

	"onyx-api/internal/config"
	"onyx-api/internal/models"
	"onyx-api/internal/subscription"
	"onyx-api/pkg/logger"

	"go.uber.org/zap"
)

// What the user sees when generation fails after their message was saved.
const degradedReply = "Your message has been saved. AI processing is temporarily unavailable - please try again shortly."

// Result is one full AI exchange: the persisted user message, the persisted
// AI reply, and generation metadata for the response envelope.
type Result struct {
	UserMessage interface{} `json:"user_message"`
	AIResponse  interface{} `json:"ai_response"`
	TokensUsed  int         `json:"tokens_used"`
	Degraded    bool        `json:"degraded"`

	PremiumFeatures map[string]interface{} `json:"premium_features,omitempty"`
}

// ProcessTaskMessage runs the full task-scoped exchange: gather context,
// generate, persist both sides. Generation failure degrades rather than
// fails: the user message is still saved and a fallback reply is returned.
func ProcessTaskMessage(ctx context.Context, userID string, taskID int, message string, sub subscription.Subscription) (*Result, error) {
	taskCtx, err := GatherTaskContext(userID, taskID)
	if err != nil {
		return nil, err
	}

	req := Request{
		UserID:      userID,
		Message:     message,
		TaskContext: taskCtx,
		Config:      subscription.GetAIProcessingConfig(sub.Tier),
	}

	gen := SelectGenerator(ctx, sub.Tier, message)
	resp, genErr := gen.Generate(ctx, req)

	result := &Result{TokensUsed: resp.TokensUsed, PremiumFeatures: resp.PremiumFeatures}
	reply := resp.Message
	if genErr != nil {
		logger.ErrorLogger.Error("AI generation failed for task message",
			zap.String("user_id", userID), zap.Int("task_id", taskID), zap.Error(genErr))
		reply = degradedReply
		result.Degraded = true
	}

	userMsg, aiMsg, err := SaveTaskMessagePair(userID, taskID, message, reply)
	if err != nil {
		return nil, err
	}
	result.UserMessage = userMsg
	result.AIResponse = aiMsg

	subscription.LogAIUsage(userID, sub.Tier, "task_message", resp.TokensUsed)
	return result, nil
}

// ProcessAssistantMessage is the general-assistant counterpart of
// ProcessTaskMessage.
func ProcessAssistantMessage(ctx context.Context, userID, message string, view ViewContext, sub subscription.Subscription) (*Result, error) {
	assistantCtx, err := GatherAssistantContext(userID, view)
	if err != nil {
		return nil, err
	}

	req := Request{
		UserID:           userID,
		Message:          message,
		AssistantContext: assistantCtx,
		Config:           subscription.GetAIProcessingConfig(sub.Tier),
	}

	gen := SelectGenerator(ctx, sub.Tier, message)
	resp, genErr := gen.Generate(ctx, req)

	result := &Result{TokensUsed: resp.TokensUsed, PremiumFeatures: resp.PremiumFeatures}
	reply := resp.Message
	if genErr != nil {
		logger.ErrorLogger.Error("AI generation failed for assistant message",
			zap.String("user_id", userID), zap.Error(genErr))
		reply = degradedReply
		result.Degraded = true
	}

	userMsg, aiMsg, err := SaveAssistantMessagePair(userID, message, reply)
	if err != nil {
		return nil, err
	}
	result.UserMessage = userMsg
	result.AIResponse = aiMsg

	subscription.LogAIUsage(userID, sub.Tier, "assistant_message", resp.TokensUsed)
	return result, nil
}

// SaveTaskUserMessage persists just the user's side of a task exchange.
// Quota-denied requests use this so the question is never lost.
func SaveTaskUserMessage(userID string, taskID int, text string) (models.TaskAIMessage, error) {
	var msg models.TaskAIMessage
	err := config.DB.QueryRow(`
		INSERT INTO task_ai_messages (task_id, user_id, message, from_user, from_ai)
		VALUES ($1, $2, $3, true, false)
		RETURNING id, task_id, user_id, message, from_user, from_ai, created_at, updated_at`,
		taskID, userID, text,
	).Scan(&msg.ID, &msg.TaskID, &msg.UserID, &msg.Message,
		&msg.FromUser, &msg.FromAI, &msg.CreatedAt, &msg.UpdatedAt)
	return msg, err
}

// SaveAssistantUserMessage is the general-assistant counterpart of
// SaveTaskUserMessage.
func SaveAssistantUserMessage(userID, text string) (models.AssistantMessage, error) {
	var msg models.AssistantMessage
	err := config.DB.QueryRow(`
		INSERT INTO assistant_messages (user_id, message, from_user, from_ai)
		VALUES ($1, $2, true, false)
		RETURNING id, user_id, message, from_user, from_ai, created_at, updated_at`,
		userID, text,
	).Scan(&msg.ID, &msg.UserID, &msg.Message,
		&msg.FromUser, &msg.FromAI, &msg.CreatedAt, &msg.UpdatedAt)
	return msg, err
}

// SaveTaskMessagePair persists a user question and its AI reply against a
// task, and points the task at its latest AI message.
func SaveTaskMessagePair(userID string, taskID int, userText, aiText string) (models.TaskAIMessage, models.TaskAIMessage, error) {
	var aiMsg models.TaskAIMessage

	userMsg, err := SaveTaskUserMessage(userID, taskID, userText)
	if err != nil {
		return userMsg, aiMsg, err
	}

	err = config.DB.QueryRow(`
		INSERT INTO task_ai_messages (task_id, user_id, message, from_user, from_ai)
		VALUES ($1, $2, $3, false, true)
		RETURNING id, task_id, user_id, message, from_user, from_ai, created_at, updated_at`,
		taskID, userID, aiText,
	).Scan(&aiMsg.ID, &aiMsg.TaskID, &aiMsg.UserID, &aiMsg.Message,
		&aiMsg.FromUser, &aiMsg.FromAI, &aiMsg.CreatedAt, &aiMsg.UpdatedAt)
	if err != nil {
		return userMsg, aiMsg, err
	}

	_, err = config.DB.Exec(
		"UPDATE tasks SET last_ai_message_id = $1, updated_at = NOW() WHERE id = $2",
		aiMsg.ID, taskID,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error updating last_ai_message_id", zap.Error(err))
	}

	return userMsg, aiMsg, nil
}

// SaveAssistantMessagePair persists a user question and its AI reply in the
// general assistant conversation.
func SaveAssistantMessagePair(userID, userText, aiText string) (models.AssistantMessage, models.AssistantMessage, error) {
	var aiMsg models.AssistantMessage

	userMsg, err := SaveAssistantUserMessage(userID, userText)
	if err != nil {
		return userMsg, aiMsg, err
	}

	err = config.DB.QueryRow(`
		INSERT INTO assistant_messages (user_id, message, from_user, from_ai)
		VALUES ($1, $2, false, true)
		RETURNING id, user_id, message, from_user, from_ai, created_at, updated_at`,
		userID, aiText,
	).Scan(&aiMsg.ID, &aiMsg.UserID, &aiMsg.Message,
		&aiMsg.FromUser, &aiMsg.FromAI, &aiMsg.CreatedAt, &aiMsg.UpdatedAt)

	return userMsg, aiMsg, err
}
