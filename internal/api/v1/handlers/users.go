package handlers

import (
	"database/sql"

	"onyx-api/internal/assistant"
	"onyx-api/internal/config"
	"onyx-api/internal/models"
	"onyx-api/internal/subscription"
	"onyx-api/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const userSelectColumns = `id, user_id, email, auth_method, subscription,
       stripe_customer_id, stripe_subscription_id, subscription_updated_at,
       created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }, u *models.AppUser) error {
	return row.Scan(&u.ID, &u.UserID, &u.Email, &u.AuthMethod, &u.Subscription,
		&u.StripeCustomerID, &u.StripeSubscriptionID, &u.SubscriptionUpdatedAt,
		&u.CreatedAt, &u.UpdatedAt)
}

// CreateUser registers the authenticated identity in the app and seeds the
// onboarding tasks. Seeding failure is logged but never fails registration.
func CreateUser(c *fiber.Ctx) error {
	request := struct {
		AuthMethod string `json:"auth_method" validate:"omitempty,max=50"`
	}{}
	if err := c.BodyParser(&request); err != nil && len(c.Body()) > 0 {
		return badRequest(c, "Invalid request body")
	}
	if err := config.Validate.Struct(request); err != nil {
		return badRequest(c, "Invalid auth method")
	}

	uid := userID(c)
	email := userEmail(c)

	var user models.AppUser
	err := scanUser(config.DB.QueryRow(`
		INSERT INTO app_users (user_id, email, auth_method)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET email = EXCLUDED.email, updated_at = NOW()
		RETURNING `+userSelectColumns,
		uid, email, request.AuthMethod,
	), &user)
	if err != nil {
		logger.ErrorLogger.Error("Error creating user", zap.Error(err))
		return dbError(c, err)
	}

	seedOnboardingTasks(uid)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"success": true,
		"status":  201,
		"data":    user,
	})
}

// seedOnboardingTasks inserts the starter tasks for a brand-new user. A
// returning user (who already has tasks) is left alone.
func seedOnboardingTasks(uid string) {
	var count int
	if err := config.DB.QueryRow(
		"SELECT COUNT(*) FROM tasks WHERE user_id = $1", uid,
	).Scan(&count); err != nil {
		logger.ErrorLogger.Error("Error checking onboarding state", zap.Error(err))
		return
	}
	if count > 0 {
		return
	}

	for _, title := range assistant.OnboardingTasks() {
		if _, err := config.DB.Exec(
			"INSERT INTO tasks (user_id, title) VALUES ($1, $2)", uid, title,
		); err != nil {
			logger.ErrorLogger.Error("Error seeding onboarding task",
				zap.String("user_id", uid), zap.Error(err))
			return
		}
	}
}

func GetMe(c *fiber.Ctx) error {
	var user models.AppUser
	err := scanUser(config.DB.QueryRow(
		"SELECT "+userSelectColumns+" FROM app_users WHERE user_id = $1 AND deleted_at IS NULL",
		userID(c),
	), &user)
	if err == sql.ErrNoRows {
		return notFound(c, "User not found")
	}
	if err != nil {
		logger.ErrorLogger.Error("Error fetching user", zap.Error(err))
		return serverError(c, "Failed to fetch user")
	}

	return c.JSON(fiber.Map{
		"message": "User retrieved successfully",
		"success": true,
		"status":  200,
		"data":    user,
	})
}

// UpdateMe updates mutable profile fields. The subscription tier is owned
// by billing and cannot be set here.
func UpdateMe(c *fiber.Ctx) error {
	request := struct {
		Email      *string `json:"email" validate:"omitempty,email"`
		AuthMethod *string `json:"auth_method" validate:"omitempty,max=50"`
	}{}
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := config.Validate.Struct(request); err != nil {
		return badRequest(c, "Invalid profile fields")
	}

	var user models.AppUser
	err := scanUser(config.DB.QueryRow(`
		UPDATE app_users
		SET email = COALESCE($1, email),
		    auth_method = COALESCE($2, auth_method),
		    updated_at = NOW()
		WHERE user_id = $3 AND deleted_at IS NULL
		RETURNING `+userSelectColumns,
		request.Email, request.AuthMethod, userID(c),
	), &user)
	if err == sql.ErrNoRows {
		return notFound(c, "User not found")
	}
	if err != nil {
		logger.ErrorLogger.Error("Error updating user", zap.Error(err))
		return dbError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"success": true,
		"status":  200,
		"data":    user,
	})
}

// DeleteMe soft-deletes the account and drops the cached tier.
func DeleteMe(c *fiber.Ctx) error {
	uid := userID(c)

	res, err := config.DB.Exec(
		"UPDATE app_users SET deleted_at = NOW(), updated_at = NOW() WHERE user_id = $1 AND deleted_at IS NULL",
		uid,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error deleting user", zap.Error(err))
		return serverError(c, "Failed to delete user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(c, "User not found")
	}

	subscription.InvalidateTierCache(uid)
	logger.AuditLogger.Info("User account deleted", zap.String("user_id", uid))

	return c.JSON(fiber.Map{
		"message": "User deleted successfully",
		"success": true,
		"status":  200,
	})
}
