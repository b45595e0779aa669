package handlers

import (
	"database/sql"

	"onyx-api/internal/assistant"
	"onyx-api/internal/config"
	"onyx-api/internal/models"
	"onyx-api/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const suggestedSelectColumns = `id, user_id, suggestion_batch_id, title, is_added, declined_at, suggested_at`

// GenerateSuggestedTasks asks the AI for new task ideas and stores them as
// one batch.
func GenerateSuggestedTasks(c *fiber.Ctx) error {
	uid := userID(c)

	titles, err := assistant.GenerateTaskSuggestions(c.Context(), uid, 3)
	if err != nil {
		logger.ErrorLogger.Error("Error generating task suggestions", zap.Error(err))
		return serverError(c, "Failed to generate suggestions")
	}

	batchID := uuid.New().String()
	suggestions := []models.SuggestedTask{}
	for _, title := range titles {
		var s models.SuggestedTask
		err := config.DB.QueryRow(`
			INSERT INTO suggested_tasks (user_id, suggestion_batch_id, title)
			VALUES ($1, $2, $3)
			RETURNING `+suggestedSelectColumns,
			uid, batchID, title,
		).Scan(&s.ID, &s.UserID, &s.SuggestionBatchID, &s.Title, &s.IsAdded, &s.DeclinedAt, &s.SuggestedAt)
		if err != nil {
			logger.ErrorLogger.Error("Error storing suggestion", zap.Error(err))
			return serverError(c, "Failed to generate suggestions")
		}
		suggestions = append(suggestions, s)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Suggestions generated successfully",
		"success": true,
		"status":  201,
		"data":    suggestions,
	})
}

// GetSuggestedTasks lists open suggestions: not yet added, not declined.
func GetSuggestedTasks(c *fiber.Ctx) error {
	rows, err := config.DB.Query(`
		SELECT `+suggestedSelectColumns+`
		FROM suggested_tasks
		WHERE user_id = $1 AND is_added = false AND declined_at IS NULL
		ORDER BY suggested_at DESC`,
		userID(c),
	)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching suggestions", zap.Error(err))
		return serverError(c, "Failed to fetch suggestions")
	}
	defer rows.Close()

	suggestions := []models.SuggestedTask{}
	for rows.Next() {
		var s models.SuggestedTask
		if err := rows.Scan(&s.ID, &s.UserID, &s.SuggestionBatchID, &s.Title,
			&s.IsAdded, &s.DeclinedAt, &s.SuggestedAt); err != nil {
			logger.ErrorLogger.Error("Error scanning suggestion", zap.Error(err))
			return serverError(c, "Failed to fetch suggestions")
		}
		suggestions = append(suggestions, s)
	}

	return c.JSON(fiber.Map{
		"message": "Suggestions retrieved successfully",
		"success": true,
		"status":  200,
		"data":    suggestions,
	})
}

// AddSuggestedTask promotes a suggestion into a real task.
func AddSuggestedTask(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid suggestion id")
	}
	uid := userID(c)

	var title string
	err = config.DB.QueryRow(
		"SELECT title FROM suggested_tasks WHERE id = $1 AND user_id = $2 AND is_added = false AND declined_at IS NULL",
		id, uid,
	).Scan(&title)
	if err == sql.ErrNoRows {
		return notFound(c, "Suggestion not found")
	}
	if err != nil {
		logger.ErrorLogger.Error("Error fetching suggestion", zap.Error(err))
		return serverError(c, "Failed to add suggestion")
	}

	var task models.Task
	err = scanTask(config.DB.QueryRow(
		"INSERT INTO tasks (user_id, title) VALUES ($1, $2) RETURNING "+taskSelectColumns,
		uid, title,
	), &task)
	if err != nil {
		logger.ErrorLogger.Error("Error creating task from suggestion", zap.Error(err))
		return serverError(c, "Failed to add suggestion")
	}

	if _, err := config.DB.Exec(
		"UPDATE suggested_tasks SET is_added = true WHERE id = $1 AND user_id = $2",
		id, uid,
	); err != nil {
		logger.ErrorLogger.Error("Error marking suggestion added", zap.Error(err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Suggestion added as task",
		"success": true,
		"status":  201,
		"data":    task,
	})
}

// DeclineSuggestedTask marks a suggestion as declined so it stops showing
// up, without deleting the record.
func DeclineSuggestedTask(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid suggestion id")
	}

	res, err := config.DB.Exec(
		"UPDATE suggested_tasks SET declined_at = NOW() WHERE id = $1 AND user_id = $2 AND declined_at IS NULL",
		id, userID(c),
	)
	if err != nil {
		logger.ErrorLogger.Error("Error declining suggestion", zap.Error(err))
		return serverError(c, "Failed to decline suggestion")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(c, "Suggestion not found")
	}

	return c.JSON(fiber.Map{
		"message": "Suggestion declined",
		"success": true,
		"status":  200,
	})
}

// DeleteSuggestedTasks hard-deletes all of the user's suggestions.
// Suggestion rows are disposable, so no soft delete here.
func DeleteSuggestedTasks(c *fiber.Ctx) error {
	if _, err := config.DB.Exec(
		"DELETE FROM suggested_tasks WHERE user_id = $1", userID(c),
	); err != nil {
		logger.ErrorLogger.Error("Error deleting suggestions", zap.Error(err))
		return serverError(c, "Failed to delete suggestions")
	}

	return c.JSON(fiber.Map{
		"message": "Suggestions deleted successfully",
		"success": true,
		"status":  200,
	})
}
