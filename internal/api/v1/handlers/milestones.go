package handlers

import (
	"onyx-api/internal/config"
	"onyx-api/internal/milestone"
	"onyx-api/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// GetMilestones lists the milestones the user has achieved.
func GetMilestones(c *fiber.Ctx) error {
	milestones, err := milestone.GetUserMilestones(userID(c))
	if err != nil {
		logger.ErrorLogger.Error("Error fetching milestones", zap.Error(err))
		return serverError(c, "Failed to fetch milestones")
	}

	return c.JSON(fiber.Map{
		"message": "Milestones retrieved successfully",
		"success": true,
		"status":  200,
		"data":    milestones,
	})
}

// CheckMilestones runs the milestone checks on demand, for clients that
// want to surface a notification outside the toggle flow.
func CheckMilestones(c *fiber.Ctx) error {
	notifications := milestone.CheckAllMilestones(userID(c))

	return c.JSON(fiber.Map{
		"message": "Milestones checked successfully",
		"success": true,
		"status":  200,
		"data":    notifications,
	})
}

// DismissMilestone marks a milestone as seen so it is never re-notified.
func DismissMilestone(c *fiber.Ctx) error {
	milestoneType := c.Params("type")
	if milestoneType == "" {
		return badRequest(c, "Milestone type is required")
	}

	if err := milestone.MarkSeen(userID(c), milestoneType); err != nil {
		logger.ErrorLogger.Error("Error dismissing milestone", zap.Error(err))
		return serverError(c, "Failed to dismiss milestone")
	}

	return c.JSON(fiber.Map{
		"message": "Milestone dismissed successfully",
		"success": true,
		"status":  200,
	})
}

// GetMilestoneStats reports completed-task counts and progress toward the
// next milestone.
func GetMilestoneStats(c *fiber.Ctx) error {
	uid := userID(c)

	var completed int
	err := config.DB.QueryRow(
		"SELECT COUNT(*) FROM tasks WHERE user_id = $1 AND completed_at IS NOT NULL AND deleted_at IS NULL",
		uid,
	).Scan(&completed)
	if err != nil {
		logger.ErrorLogger.Error("Error counting completed tasks", zap.Error(err))
		return serverError(c, "Failed to fetch milestone stats")
	}

	progress := float64(completed) / 100.0
	if progress > 1.0 {
		progress = 1.0
	}

	return c.JSON(fiber.Map{
		"message": "Milestone stats retrieved successfully",
		"success": true,
		"status":  200,
		"data": fiber.Map{
			"completed_tasks":       completed,
			"progress_to_100_tasks": progress,
		},
	})
}
