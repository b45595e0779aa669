package handlers

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"onyx-api/internal/config"
	"onyx-api/internal/milestone"
	"onyx-api/internal/models"
	"onyx-api/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var taskSortColumns = map[string]bool{
	"created_at":   true,
	"updated_at":   true,
	"title":        true,
	"due_date":     true,
	"completed_at": true,
}

const taskSelectColumns = `id, folder_id, user_id, title, description, due_date, is_repeating,
       completed_at, last_ai_message_id, created_at, updated_at`

func scanTask(row interface{ Scan(...interface{}) error }, t *models.Task) error {
	return row.Scan(&t.ID, &t.FolderID, &t.UserID, &t.Title, &t.Description, &t.DueDate,
		&t.IsRepeating, &t.CompletedAt, &t.LastAIMessageID, &t.CreatedAt, &t.UpdatedAt)
}

// checkDueDate rejects parseable one-off due dates in the past. Repeating
// schedules and free-text dates pass through untouched.
func checkDueDate(dueDate *string, isRepeating bool) error {
	if dueDate == nil || *dueDate == "" || isRepeating {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if due, err := time.Parse(layout, *dueDate); err == nil {
			if due.Before(time.Now()) {
				return fmt.Errorf("Due date cannot be in the past")
			}
			return nil
		}
	}
	return nil
}

// ownsFolder reports whether the folder exists, is live, and belongs to
// the user.
func ownsFolder(userID string, folderID int) (bool, error) {
	var exists bool
	err := config.DB.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM folders WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL)",
		folderID, userID,
	).Scan(&exists)
	return exists, err
}

func CreateTask(c *fiber.Ctx) error {
	request := struct {
		Title       string  `json:"title" validate:"required,min=1,max=255"`
		Description *string `json:"description"`
		DueDate     *string `json:"due_date"`
		IsRepeating bool    `json:"is_repeating"`
		FolderID    *int    `json:"folder_id"`
	}{}
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := config.Validate.Struct(request); err != nil {
		return badRequest(c, "Task title is required")
	}
	if err := checkDueDate(request.DueDate, request.IsRepeating); err != nil {
		return badRequest(c, err.Error())
	}

	uid := userID(c)
	if request.FolderID != nil {
		owns, err := ownsFolder(uid, *request.FolderID)
		if err != nil {
			logger.ErrorLogger.Error("Error checking folder ownership", zap.Error(err))
			return serverError(c, "Failed to create task")
		}
		if !owns {
			return notFound(c, "Folder not found")
		}
	}

	var task models.Task
	err := scanTask(config.DB.QueryRow(`
		INSERT INTO tasks (folder_id, user_id, title, description, due_date, is_repeating)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+taskSelectColumns,
		request.FolderID, uid, request.Title, request.Description, request.DueDate, request.IsRepeating,
	), &task)
	if err != nil {
		logger.ErrorLogger.Error("Error creating task", zap.Error(err))
		return dbError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Task created successfully",
		"success": true,
		"status":  201,
		"data":    task,
	})
}

func GetTasks(c *fiber.Ctx) error {
	uid := userID(c)
	page, limit, offset := pageParams(c)

	where := "user_id = $1 AND deleted_at IS NULL"
	args := []interface{}{uid}

	if folderID := c.QueryInt("folder_id", 0); folderID > 0 {
		args = append(args, folderID)
		where += fmt.Sprintf(" AND folder_id = $%d", len(args))
	}
	switch c.Query("status") {
	case "completed":
		where += " AND completed_at IS NOT NULL"
	case "pending":
		where += " AND completed_at IS NULL"
	}

	var total int
	if err := config.DB.QueryRow("SELECT COUNT(*) FROM tasks WHERE "+where, args...).Scan(&total); err != nil {
		logger.ErrorLogger.Error("Error counting tasks", zap.Error(err))
		return serverError(c, "Failed to fetch tasks")
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(
		"SELECT %s FROM tasks WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d",
		taskSelectColumns, where, sortClause(c, taskSortColumns), len(args)-1, len(args),
	)
	rows, err := config.DB.Query(query, args...)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching tasks", zap.Error(err))
		return serverError(c, "Failed to fetch tasks")
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var t models.Task
		if err := scanTask(rows, &t); err != nil {
			logger.ErrorLogger.Error("Error scanning task", zap.Error(err))
			return serverError(c, "Failed to fetch tasks")
		}
		tasks = append(tasks, t)
	}

	return c.JSON(fiber.Map{
		"message": "Tasks retrieved successfully",
		"success": true,
		"status":  200,
		"data":    tasks,
		"pagination": fiber.Map{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": int(math.Ceil(float64(total) / float64(limit))),
		},
	})
}

func GetTask(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid task id")
	}

	var task models.Task
	err = scanTask(config.DB.QueryRow(
		"SELECT "+taskSelectColumns+" FROM tasks WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL",
		id, userID(c),
	), &task)
	if err == sql.ErrNoRows {
		return notFound(c, "Task not found")
	}
	if err != nil {
		logger.ErrorLogger.Error("Error fetching task", zap.Error(err))
		return serverError(c, "Failed to fetch task")
	}

	return c.JSON(fiber.Map{
		"message": "Task retrieved successfully",
		"success": true,
		"status":  200,
		"data":    task,
	})
}

func UpdateTask(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid task id")
	}

	request := struct {
		Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
		Description *string `json:"description"`
		DueDate     *string `json:"due_date"`
		IsRepeating *bool   `json:"is_repeating"`
		FolderID    *int    `json:"folder_id"`
	}{}
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := config.Validate.Struct(request); err != nil {
		return badRequest(c, "Invalid task fields")
	}

	uid := userID(c)

	var current models.Task
	err = scanTask(config.DB.QueryRow(
		"SELECT "+taskSelectColumns+" FROM tasks WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL",
		id, uid,
	), &current)
	if err == sql.ErrNoRows {
		return notFound(c, "Task not found")
	}
	if err != nil {
		logger.ErrorLogger.Error("Error fetching task", zap.Error(err))
		return serverError(c, "Failed to update task")
	}

	if request.Title != nil {
		current.Title = *request.Title
	}
	if request.Description != nil {
		current.Description = request.Description
	}
	if request.DueDate != nil {
		current.DueDate = request.DueDate
	}
	if request.IsRepeating != nil {
		current.IsRepeating = *request.IsRepeating
	}
	if request.FolderID != nil {
		owns, err := ownsFolder(uid, *request.FolderID)
		if err != nil {
			logger.ErrorLogger.Error("Error checking folder ownership", zap.Error(err))
			return serverError(c, "Failed to update task")
		}
		if !owns {
			return notFound(c, "Folder not found")
		}
		current.FolderID = request.FolderID
	}
	if err := checkDueDate(current.DueDate, current.IsRepeating); err != nil {
		return badRequest(c, err.Error())
	}

	var task models.Task
	err = scanTask(config.DB.QueryRow(`
		UPDATE tasks
		SET folder_id = $1, title = $2, description = $3, due_date = $4,
		    is_repeating = $5, updated_at = NOW()
		WHERE id = $6 AND user_id = $7 AND deleted_at IS NULL
		RETURNING `+taskSelectColumns,
		current.FolderID, current.Title, current.Description, current.DueDate,
		current.IsRepeating, id, uid,
	), &task)
	if err != nil {
		logger.ErrorLogger.Error("Error updating task", zap.Error(err))
		return dbError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Task updated successfully",
		"success": true,
		"status":  200,
		"data":    task,
	})
}

// DeleteTask soft-deletes a task and its live subtasks and notes in one
// transaction.
func DeleteTask(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid task id")
	}
	uid := userID(c)

	tx, err := config.DB.Begin()
	if err != nil {
		logger.ErrorLogger.Error("Error starting transaction", zap.Error(err))
		return serverError(c, "Failed to delete task")
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"UPDATE tasks SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL",
		id, uid,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error deleting task", zap.Error(err))
		return serverError(c, "Failed to delete task")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(c, "Task not found")
	}

	if _, err := tx.Exec(
		"UPDATE subtasks SET deleted_at = NOW(), updated_at = NOW() WHERE task_id = $1 AND deleted_at IS NULL",
		id,
	); err != nil {
		logger.ErrorLogger.Error("Error deleting subtasks", zap.Error(err))
		return serverError(c, "Failed to delete task")
	}
	if _, err := tx.Exec(
		"UPDATE notes SET deleted_at = NOW(), updated_at = NOW() WHERE task_id = $1 AND deleted_at IS NULL",
		id,
	); err != nil {
		logger.ErrorLogger.Error("Error deleting notes", zap.Error(err))
		return serverError(c, "Failed to delete task")
	}

	if err := tx.Commit(); err != nil {
		logger.ErrorLogger.Error("Error committing task delete", zap.Error(err))
		return serverError(c, "Failed to delete task")
	}

	return c.JSON(fiber.Map{
		"message": "Task deleted successfully",
		"success": true,
		"status":  200,
	})
}

// ToggleTask flips completion state. Completing a task runs the milestone
// checks; any newly crossed milestones ride along in the response.
func ToggleTask(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid task id")
	}
	uid := userID(c)

	var task models.Task
	err = scanTask(config.DB.QueryRow(`
		UPDATE tasks
		SET completed_at = CASE WHEN completed_at IS NULL THEN NOW() ELSE NULL END,
		    updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
		RETURNING `+taskSelectColumns,
		id, uid,
	), &task)
	if err == sql.ErrNoRows {
		return notFound(c, "Task not found")
	}
	if err != nil {
		logger.ErrorLogger.Error("Error toggling task", zap.Error(err))
		return serverError(c, "Failed to toggle task")
	}

	response := fiber.Map{
		"message": "Task toggled successfully",
		"success": true,
		"status":  200,
		"data":    task,
	}
	if task.CompletedAt != nil {
		if notifications := milestone.OnTaskCompleted(uid); len(notifications) > 0 {
			response["milestones"] = notifications
		}
	}

	return c.JSON(response)
}
