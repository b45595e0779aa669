package handlers

import (
	"database/sql"

	"onyx-api/internal/config"
	"onyx-api/internal/models"
	"onyx-api/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ownsTask reports whether the task exists, is live, and belongs to the
// user. Every subtask operation re-checks this so a subtask can never be
// reached through someone else's task.
func ownsTask(userID string, taskID int) (bool, error) {
	var exists bool
	err := config.DB.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL)",
		taskID, userID,
	).Scan(&exists)
	return exists, err
}

func CreateSubtask(c *fiber.Ctx) error {
	taskID, err := idParam(c, "taskId")
	if err != nil {
		return badRequest(c, "Invalid task id")
	}

	request := struct {
		Title string `json:"title" validate:"required,min=1,max=255"`
	}{}
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := config.Validate.Struct(request); err != nil {
		return badRequest(c, "Subtask title is required")
	}

	uid := userID(c)
	owns, err := ownsTask(uid, taskID)
	if err != nil {
		logger.ErrorLogger.Error("Error checking task ownership", zap.Error(err))
		return serverError(c, "Failed to create subtask")
	}
	if !owns {
		return notFound(c, "Task not found")
	}

	var subtask models.Subtask
	err = config.DB.QueryRow(`
		INSERT INTO subtasks (task_id, user_id, title)
		VALUES ($1, $2, $3)
		RETURNING id, task_id, user_id, title, completed_at, created_at, updated_at`,
		taskID, uid, request.Title,
	).Scan(&subtask.ID, &subtask.TaskID, &subtask.UserID, &subtask.Title,
		&subtask.CompletedAt, &subtask.CreatedAt, &subtask.UpdatedAt)
	if err != nil {
		logger.ErrorLogger.Error("Error creating subtask", zap.Error(err))
		return dbError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Subtask created successfully",
		"success": true,
		"status":  201,
		"data":    subtask,
	})
}

func GetSubtasks(c *fiber.Ctx) error {
	taskID, err := idParam(c, "taskId")
	if err != nil {
		return badRequest(c, "Invalid task id")
	}

	uid := userID(c)
	owns, err := ownsTask(uid, taskID)
	if err != nil {
		logger.ErrorLogger.Error("Error checking task ownership", zap.Error(err))
		return serverError(c, "Failed to fetch subtasks")
	}
	if !owns {
		return notFound(c, "Task not found")
	}

	rows, err := config.DB.Query(`
		SELECT id, task_id, user_id, title, completed_at, created_at, updated_at
		FROM subtasks
		WHERE task_id = $1 AND user_id = $2 AND deleted_at IS NULL
		ORDER BY created_at ASC`,
		taskID, uid,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching subtasks", zap.Error(err))
		return serverError(c, "Failed to fetch subtasks")
	}
	defer rows.Close()

	subtasks := []models.Subtask{}
	for rows.Next() {
		var s models.Subtask
		if err := rows.Scan(&s.ID, &s.TaskID, &s.UserID, &s.Title,
			&s.CompletedAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			logger.ErrorLogger.Error("Error scanning subtask", zap.Error(err))
			return serverError(c, "Failed to fetch subtasks")
		}
		subtasks = append(subtasks, s)
	}

	return c.JSON(fiber.Map{
		"message": "Subtasks retrieved successfully",
		"success": true,
		"status":  200,
		"data":    subtasks,
	})
}

func UpdateSubtask(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid subtask id")
	}

	request := struct {
		Title string `json:"title" validate:"required,min=1,max=255"`
	}{}
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := config.Validate.Struct(request); err != nil {
		return badRequest(c, "Subtask title is required")
	}

	var subtask models.Subtask
	err = config.DB.QueryRow(`
		UPDATE subtasks SET title = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3 AND deleted_at IS NULL
		RETURNING id, task_id, user_id, title, completed_at, created_at, updated_at`,
		request.Title, id, userID(c),
	).Scan(&subtask.ID, &subtask.TaskID, &subtask.UserID, &subtask.Title,
		&subtask.CompletedAt, &subtask.CreatedAt, &subtask.UpdatedAt)
	if err == sql.ErrNoRows {
		return notFound(c, "Subtask not found")
	}
	if err != nil {
		logger.ErrorLogger.Error("Error updating subtask", zap.Error(err))
		return dbError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Subtask updated successfully",
		"success": true,
		"status":  200,
		"data":    subtask,
	})
}

func ToggleSubtask(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid subtask id")
	}

	var subtask models.Subtask
	err = config.DB.QueryRow(`
		UPDATE subtasks
		SET completed_at = CASE WHEN completed_at IS NULL THEN NOW() ELSE NULL END,
		    updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
		RETURNING id, task_id, user_id, title, completed_at, created_at, updated_at`,
		id, userID(c),
	).Scan(&subtask.ID, &subtask.TaskID, &subtask.UserID, &subtask.Title,
		&subtask.CompletedAt, &subtask.CreatedAt, &subtask.UpdatedAt)
	if err == sql.ErrNoRows {
		return notFound(c, "Subtask not found")
	}
	if err != nil {
		logger.ErrorLogger.Error("Error toggling subtask", zap.Error(err))
		return serverError(c, "Failed to toggle subtask")
	}

	return c.JSON(fiber.Map{
		"message": "Subtask toggled successfully",
		"success": true,
		"status":  200,
		"data":    subtask,
	})
}

func DeleteSubtask(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid subtask id")
	}

	res, err := config.DB.Exec(
		"UPDATE subtasks SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL",
		id, userID(c),
	)
	if err != nil {
		logger.ErrorLogger.Error("Error deleting subtask", zap.Error(err))
		return serverError(c, "Failed to delete subtask")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(c, "Subtask not found")
	}

	return c.JSON(fiber.Map{
		"message": "Subtask deleted successfully",
		"success": true,
		"status":  200,
	})
}
