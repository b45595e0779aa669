package handlers

import (
	"database/sql"
	"encoding/json"
	"time"

	"onyx-api/internal/config"
	"onyx-api/internal/models"
	"onyx-api/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const folderCacheTTL = 2 * time.Minute

func folderCacheKey(userID string) string { return "folders:" + userID }

func invalidateFolderCache(userID string) {
	if config.RedisClient != nil {
		config.RedisClient.Del(config.Ctx, folderCacheKey(userID))
	}
}

func CreateFolder(c *fiber.Ctx) error {
	request := struct {
		Name string `json:"name" validate:"required,min=1,max=255"`
	}{}
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := config.Validate.Struct(request); err != nil {
		return badRequest(c, "Folder name is required")
	}

	var folder models.Folder
	err := config.DB.QueryRow(`
		INSERT INTO folders (user_id, name)
		VALUES ($1, $2)
		RETURNING id, user_id, name, created_at, updated_at`,
		userID(c), request.Name,
	).Scan(&folder.ID, &folder.UserID, &folder.Name, &folder.CreatedAt, &folder.UpdatedAt)
	if err != nil {
		logger.ErrorLogger.Error("Error creating folder", zap.Error(err))
		return dbError(c, err)
	}

	invalidateFolderCache(userID(c))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Folder created successfully",
		"success": true,
		"status":  201,
		"data":    folder,
	})
}

func GetFolders(c *fiber.Ctx) error {
	uid := userID(c)

	if config.RedisClient != nil {
		if cached, err := config.RedisClient.Get(config.Ctx, folderCacheKey(uid)).Result(); err == nil {
			var folders []models.Folder
			if json.Unmarshal([]byte(cached), &folders) == nil {
				return c.JSON(fiber.Map{
					"message": "Folders retrieved successfully",
					"success": true,
					"status":  200,
					"data":    folders,
				})
			}
		}
	}

	rows, err := config.DB.Query(
		"SELECT id, user_id, name, created_at, updated_at FROM folders WHERE user_id = $1 AND deleted_at IS NULL ORDER BY name",
		uid,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching folders", zap.Error(err))
		return serverError(c, "Failed to fetch folders")
	}
	defer rows.Close()

	folders := []models.Folder{}
	for rows.Next() {
		var f models.Folder
		if err := rows.Scan(&f.ID, &f.UserID, &f.Name, &f.CreatedAt, &f.UpdatedAt); err != nil {
			logger.ErrorLogger.Error("Error scanning folder", zap.Error(err))
			return serverError(c, "Failed to fetch folders")
		}
		folders = append(folders, f)
	}

	if config.RedisClient != nil {
		if encoded, err := json.Marshal(folders); err == nil {
			config.RedisClient.Set(config.Ctx, folderCacheKey(uid), encoded, folderCacheTTL)
		}
	}

	return c.JSON(fiber.Map{
		"message": "Folders retrieved successfully",
		"success": true,
		"status":  200,
		"data":    folders,
	})
}

func GetFolder(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid folder id")
	}

	var folder models.Folder
	err = config.DB.QueryRow(
		"SELECT id, user_id, name, created_at, updated_at FROM folders WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL",
		id, userID(c),
	).Scan(&folder.ID, &folder.UserID, &folder.Name, &folder.CreatedAt, &folder.UpdatedAt)
	if err == sql.ErrNoRows {
		return notFound(c, "Folder not found")
	}
	if err != nil {
		logger.ErrorLogger.Error("Error fetching folder", zap.Error(err))
		return serverError(c, "Failed to fetch folder")
	}

	return c.JSON(fiber.Map{
		"message": "Folder retrieved successfully",
		"success": true,
		"status":  200,
		"data":    folder,
	})
}

func UpdateFolder(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid folder id")
	}

	request := struct {
		Name string `json:"name" validate:"required,min=1,max=255"`
	}{}
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := config.Validate.Struct(request); err != nil {
		return badRequest(c, "Folder name is required")
	}

	var folder models.Folder
	err = config.DB.QueryRow(`
		UPDATE folders SET name = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3 AND deleted_at IS NULL
		RETURNING id, user_id, name, created_at, updated_at`,
		request.Name, id, userID(c),
	).Scan(&folder.ID, &folder.UserID, &folder.Name, &folder.CreatedAt, &folder.UpdatedAt)
	if err == sql.ErrNoRows {
		return notFound(c, "Folder not found")
	}
	if err != nil {
		logger.ErrorLogger.Error("Error updating folder", zap.Error(err))
		return dbError(c, err)
	}

	invalidateFolderCache(userID(c))
	return c.JSON(fiber.Map{
		"message": "Folder updated successfully",
		"success": true,
		"status":  200,
		"data":    folder,
	})
}

// DeleteFolder soft-deletes a folder. Tasks inside keep their folder_id;
// reads join against live folders so they simply stop showing a folder.
func DeleteFolder(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return badRequest(c, "Invalid folder id")
	}

	res, err := config.DB.Exec(
		"UPDATE folders SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL",
		id, userID(c),
	)
	if err != nil {
		logger.ErrorLogger.Error("Error deleting folder", zap.Error(err))
		return serverError(c, "Failed to delete folder")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(c, "Folder not found")
	}

	invalidateFolderCache(userID(c))
	return c.JSON(fiber.Map{
		"message": "Folder deleted successfully",
		"success": true,
		"status":  200,
	})
}
