package handlers

import (
	"database/sql"

	"onyx-api/internal/config"
	"onyx-api/internal/models"
	"onyx-api/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func CreateNote(c *fiber.Ctx) error {
	request := struct {
		Content string `json:"content" validate:"required,min=1"`
		TaskID  *int   `json:"task_id"`
	}{}
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := config.Validate.Struct(request); err != nil {
		return badRequest(c, "Note content is required")
	}

	uid := userID(c)
	if request.TaskID != nil {
		owns, err := ownsTask(uid, *request.TaskID)
		if err != nil {
			logger.ErrorLogger.Error("Error checking task ownership", zap.Error(err))
			return serverError(c, "Failed to create note")
		}
		if !owns {
			return notFound(c, "Task not found")
		}
	}

	var note models.Note
	err := config.DB.QueryRow(`
		INSERT INTO notes (task_id, user_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, task_id, user_id, content, created_at, updated_at`,
		request.TaskID, uid, request.Content,
	).Scan(&note.ID, &note.TaskID, &note.UserID, &note.Content, &note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		logger.ErrorLogger.Error("Error creating note", zap.Error(err))
		return dbError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Note created successfully",
		"success": true,
		"status":  201,
		"data":    note,
	})
}

// GetNotes lists the user's notes, optionally scoped to one task via
// ?task_id.
func GetNotes(c *fiber.Ctx) error {
	uid := userID(c)

	query := "SELECT id, task_id, user_id, content, created_at, updated_at FROM notes WHERE user_id = $1 AND deleted_at IS NULL"
	args := []interface{}{uid}
	if taskID := c.QueryInt("task_id", 0); taskID > 0 {
		args = append(args, taskID)
		query += " AND task_id = $2"
	}
	query += " ORDER BY created_at DESC"

	rows, err := config.DB.Query(query, args...)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching notes", zap.Error(err))
		return serverError(c, "Failed to fetch notes")
	}
	defer rows.Close()

	notes := []models.Note{}
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.TaskID, &n.UserID, &n.Content, &n.CreatedAt, &n.UpdatedAt); err != nil {
			logger.ErrorLogger.Error("Error scanning note", zap.Error(err))
			return serverError(c, "Failed to fetch notes")
		}
		notes = append(notes, n)
	}

	return c.JSON(fiber.Map{
		"message": "Notes retrieved successfully",
		"success": true,
		"status":  200,
		"data":    notes,
	})
}

func GetNote(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid note id")
	}

	var note models.Note
	err = config.DB.QueryRow(
		"SELECT id, task_id, user_id, content, created_at, updated_at FROM notes WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL",
		id, userID(c),
	).Scan(&note.ID, &note.TaskID, &note.UserID, &note.Content, &note.CreatedAt, &note.UpdatedAt)
	if err == sql.ErrNoRows {
		return notFound(c, "Note not found")
	}
	if err != nil {
		logger.ErrorLogger.Error("Error fetching note", zap.Error(err))
		return serverError(c, "Failed to fetch note")
	}

	return c.JSON(fiber.Map{
		"message": "Note retrieved successfully",
		"success": true,
		"status":  200,
		"data":    note,
	})
}

func UpdateNote(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid note id")
	}

	request := struct {
		Content string `json:"content" validate:"required,min=1"`
	}{}
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := config.Validate.Struct(request); err != nil {
		return badRequest(c, "Note content is required")
	}

	var note models.Note
	err = config.DB.QueryRow(`
		UPDATE notes SET content = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3 AND deleted_at IS NULL
		RETURNING id, task_id, user_id, content, created_at, updated_at`,
		request.Content, id, userID(c),
	).Scan(&note.ID, &note.TaskID, &note.UserID, &note.Content, &note.CreatedAt, &note.UpdatedAt)
	if err == sql.ErrNoRows {
		return notFound(c, "Note not found")
	}
	if err != nil {
		logger.ErrorLogger.Error("Error updating note", zap.Error(err))
		return dbError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Note updated successfully",
		"success": true,
		"status":  200,
		"data":    note,
	})
}

func DeleteNote(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid note id")
	}

	res, err := config.DB.Exec(
		"UPDATE notes SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL",
		id, userID(c),
	)
	if err != nil {
		logger.ErrorLogger.Error("Error deleting note", zap.Error(err))
		return serverError(c, "Failed to delete note")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(c, "Note not found")
	}

	return c.JSON(fiber.Map{
		"message": "Note deleted successfully",
		"success": true,
		"status":  200,
	})
}
