package handlers

import (
	"onyx-api/internal/config"
	"onyx-api/internal/models"
	"onyx-api/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// GetAssistantMessages returns the general assistant conversation,
// oldest first, with pagination.
func GetAssistantMessages(c *fiber.Ctx) error {
	uid := userID(c)
	page, limit, offset := pageParams(c)

	var total int
	if err := config.DB.QueryRow(
		"SELECT COUNT(*) FROM assistant_messages WHERE user_id = $1", uid,
	).Scan(&total); err != nil {
		logger.ErrorLogger.Error("Error counting assistant messages", zap.Error(err))
		return serverError(c, "Failed to fetch messages")
	}

	rows, err := config.DB.Query(`
		SELECT id, user_id, message, from_user, from_ai, created_at, updated_at
		FROM assistant_messages
		WHERE user_id = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3`,
		uid, limit, offset,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching assistant messages", zap.Error(err))
		return serverError(c, "Failed to fetch messages")
	}
	defer rows.Close()

	messages := []models.AssistantMessage{}
	for rows.Next() {
		var m models.AssistantMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.Message, &m.FromUser, &m.FromAI,
			&m.CreatedAt, &m.UpdatedAt); err != nil {
			logger.ErrorLogger.Error("Error scanning assistant message", zap.Error(err))
			return serverError(c, "Failed to fetch messages")
		}
		messages = append(messages, m)
	}

	return c.JSON(fiber.Map{
		"message": "Messages retrieved successfully",
		"success": true,
		"status":  200,
		"data":    messages,
		"pagination": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// DeleteAssistantMessages clears the assistant conversation. Message rows
// are hard-deleted; there is no undo for chat history.
func DeleteAssistantMessages(c *fiber.Ctx) error {
	if _, err := config.DB.Exec(
		"DELETE FROM assistant_messages WHERE user_id = $1", userID(c),
	); err != nil {
		logger.ErrorLogger.Error("Error deleting assistant messages", zap.Error(err))
		return serverError(c, "Failed to delete messages")
	}

	return c.JSON(fiber.Map{
		"message": "Messages deleted successfully",
		"success": true,
		"status":  200,
	})
}

// GetTaskAIMessages returns the AI conversation for one task, oldest first.
func GetTaskAIMessages(c *fiber.Ctx) error {
	taskID, err := idParam(c, "taskId")
	if err != nil {
		return badRequest(c, "Invalid task id")
	}

	uid := userID(c)
	owns, err := ownsTask(uid, taskID)
	if err != nil {
		logger.ErrorLogger.Error("Error checking task ownership", zap.Error(err))
		return serverError(c, "Failed to fetch messages")
	}
	if !owns {
		return notFound(c, "Task not found")
	}

	rows, err := config.DB.Query(`
		SELECT id, task_id, user_id, message, from_user, from_ai, created_at, updated_at
		FROM task_ai_messages
		WHERE task_id = $1 AND user_id = $2
		ORDER BY created_at ASC`,
		taskID, uid,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching task messages", zap.Error(err))
		return serverError(c, "Failed to fetch messages")
	}
	defer rows.Close()

	messages := []models.TaskAIMessage{}
	for rows.Next() {
		var m models.TaskAIMessage
		if err := rows.Scan(&m.ID, &m.TaskID, &m.UserID, &m.Message, &m.FromUser, &m.FromAI,
			&m.CreatedAt, &m.UpdatedAt); err != nil {
			logger.ErrorLogger.Error("Error scanning task message", zap.Error(err))
			return serverError(c, "Failed to fetch messages")
		}
		messages = append(messages, m)
	}

	return c.JSON(fiber.Map{
		"message": "Messages retrieved successfully",
		"success": true,
		"status":  200,
		"data":    messages,
	})
}

// DeleteTaskAIMessages clears a task's AI conversation and resets the
// task's last message pointer.
func DeleteTaskAIMessages(c *fiber.Ctx) error {
	taskID, err := idParam(c, "taskId")
	if err != nil {
		return badRequest(c, "Invalid task id")
	}

	uid := userID(c)
	owns, err := ownsTask(uid, taskID)
	if err != nil {
		logger.ErrorLogger.Error("Error checking task ownership", zap.Error(err))
		return serverError(c, "Failed to delete messages")
	}
	if !owns {
		return notFound(c, "Task not found")
	}

	if _, err := config.DB.Exec(
		"DELETE FROM task_ai_messages WHERE task_id = $1 AND user_id = $2", taskID, uid,
	); err != nil {
		logger.ErrorLogger.Error("Error deleting task messages", zap.Error(err))
		return serverError(c, "Failed to delete messages")
	}
	if _, err := config.DB.Exec(
		"UPDATE tasks SET last_ai_message_id = NULL, updated_at = NOW() WHERE id = $1", taskID,
	); err != nil {
		logger.ErrorLogger.Error("Error resetting last_ai_message_id", zap.Error(err))
	}

	return c.JSON(fiber.Map{
		"message": "Messages deleted successfully",
		"success": true,
		"status":  200,
	})
}
