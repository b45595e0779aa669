package handlers

import (
	"onyx-api/internal/config"
	"onyx-api/internal/models"
	"onyx-api/internal/subscription"
	"onyx-api/pkg/crypto"
	"onyx-api/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const integrationSelectColumns = `id, user_id, gmail, status, gmail_last_sync, created_at, updated_at`

// getOrCreateIntegration returns the user's integration row, creating the
// default one on first access.
func getOrCreateIntegration(uid string) (models.Integration, error) {
	var i models.Integration
	err := config.DB.QueryRow(`
		INSERT INTO integrations (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = integrations.updated_at
		RETURNING `+integrationSelectColumns,
		uid,
	).Scan(&i.ID, &i.UserID, &i.Gmail, &i.Status, &i.GmailLastSync, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

func GetIntegrations(c *fiber.Ctx) error {
	integration, err := getOrCreateIntegration(userID(c))
	if err != nil {
		logger.ErrorLogger.Error("Error fetching integrations", zap.Error(err))
		return serverError(c, "Failed to fetch integrations")
	}

	return c.JSON(fiber.Map{
		"message": "Integrations retrieved successfully",
		"success": true,
		"status":  200,
		"data":    integration,
	})
}

// ConnectGmail enables the Gmail integration. Gated to paid tiers; the
// OAuth token is encrypted at rest.
func ConnectGmail(c *fiber.Ctx) error {
	request := struct {
		Token string `json:"token" validate:"required"`
	}{}
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := config.Validate.Struct(request); err != nil {
		return badRequest(c, "OAuth token is required")
	}

	uid := userID(c)
	sub, err := subscription.GetUserSubscription(uid)
	if err == subscription.ErrUserNotFound {
		return notFound(c, "User not found")
	}
	if err != nil {
		logger.ErrorLogger.Error("Error resolving subscription", zap.Error(err))
		return serverError(c, "Failed to connect Gmail")
	}
	if sub.Tier != models.TierPremium && sub.Tier != models.TierPlaid {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "Gmail integration requires a Premium or Plaid subscription",
			"success": false,
			"status":  403,
			"subscription_info": fiber.Map{
				"tier": sub.Tier,
			},
		})
	}

	encrypted, err := crypto.Encrypt(request.Token, string(config.SecretKey))
	if err != nil {
		logger.ErrorLogger.Error("Error encrypting Gmail token", zap.Error(err))
		return serverError(c, "Failed to connect Gmail")
	}

	if _, err := getOrCreateIntegration(uid); err != nil {
		logger.ErrorLogger.Error("Error ensuring integration row", zap.Error(err))
		return serverError(c, "Failed to connect Gmail")
	}

	var integration models.Integration
	err = config.DB.QueryRow(`
		UPDATE integrations
		SET gmail = true, gmail_token = $1, updated_at = NOW()
		WHERE user_id = $2
		RETURNING `+integrationSelectColumns,
		encrypted, uid,
	).Scan(&integration.ID, &integration.UserID, &integration.Gmail, &integration.Status,
		&integration.GmailLastSync, &integration.CreatedAt, &integration.UpdatedAt)
	if err != nil {
		logger.ErrorLogger.Error("Error connecting Gmail", zap.Error(err))
		return serverError(c, "Failed to connect Gmail")
	}

	logger.AuditLogger.Info("Gmail integration connected", zap.String("user_id", uid))
	return c.JSON(fiber.Map{
		"message": "Gmail connected successfully",
		"success": true,
		"status":  200,
		"data":    integration,
	})
}

// DisconnectGmail disables Gmail and discards the stored token.
func DisconnectGmail(c *fiber.Ctx) error {
	uid := userID(c)

	res, err := config.DB.Exec(`
		UPDATE integrations
		SET gmail = false, gmail_token = NULL, gmail_last_sync = NULL, updated_at = NOW()
		WHERE user_id = $1`,
		uid,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error disconnecting Gmail", zap.Error(err))
		return serverError(c, "Failed to disconnect Gmail")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(c, "Integration not found")
	}

	logger.AuditLogger.Info("Gmail integration disconnected", zap.String("user_id", uid))
	return c.JSON(fiber.Map{
		"message": "Gmail disconnected successfully",
		"success": true,
		"status":  200,
	})
}

// ToggleIntegrations flips the master integrations switch without touching
// individual connections.
func ToggleIntegrations(c *fiber.Ctx) error {
	uid := userID(c)

	if _, err := getOrCreateIntegration(uid); err != nil {
		logger.ErrorLogger.Error("Error ensuring integration row", zap.Error(err))
		return serverError(c, "Failed to toggle integrations")
	}

	var integration models.Integration
	err := config.DB.QueryRow(`
		UPDATE integrations SET status = NOT status, updated_at = NOW()
		WHERE user_id = $1
		RETURNING `+integrationSelectColumns,
		uid,
	).Scan(&integration.ID, &integration.UserID, &integration.Gmail, &integration.Status,
		&integration.GmailLastSync, &integration.CreatedAt, &integration.UpdatedAt)
	if err != nil {
		logger.ErrorLogger.Error("Error toggling integrations", zap.Error(err))
		return serverError(c, "Failed to toggle integrations")
	}

	return c.JSON(fiber.Map{
		"message": "Integrations toggled successfully",
		"success": true,
		"status":  200,
		"data":    integration,
	})
}
