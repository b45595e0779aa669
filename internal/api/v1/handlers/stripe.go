package handlers

import (
	"onyx-api/internal/billing"
	"onyx-api/internal/config"
	"onyx-api/internal/subscription"
	"onyx-api/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// CreateCheckout opens a Stripe checkout session for upgrading to a paid
// tier and returns the hosted URL.
func CreateCheckout(c *fiber.Ctx) error {
	request := struct {
		Tier string `json:"tier" validate:"required,oneof=premium plaid"`
	}{}
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := config.Validate.Struct(request); err != nil {
		return badRequest(c, "Tier must be premium or plaid")
	}

	url, err := billing.CreateCheckoutSession(userID(c), userEmail(c), request.Tier)
	if err == billing.ErrUnknownTier {
		return badRequest(c, "Tier must be premium or plaid")
	}
	if err == subscription.ErrUserNotFound {
		return notFound(c, "User not found")
	}
	if err != nil {
		logger.ErrorLogger.Error("Error creating checkout session", zap.Error(err))
		return serverError(c, "Failed to create checkout session")
	}

	return c.JSON(fiber.Map{
		"message": "Checkout session created successfully",
		"success": true,
		"status":  200,
		"data":    fiber.Map{"url": url},
	})
}

// CreatePortal opens the Stripe billing portal for managing an existing
// subscription.
func CreatePortal(c *fiber.Ctx) error {
	url, err := billing.CreatePortalSession(userID(c))
	if err == billing.ErrNoCustomer {
		return notFound(c, "No billing account found")
	}
	if err != nil {
		logger.ErrorLogger.Error("Error creating portal session", zap.Error(err))
		return serverError(c, "Failed to create portal session")
	}

	return c.JSON(fiber.Map{
		"message": "Portal session created successfully",
		"success": true,
		"status":  200,
		"data":    fiber.Map{"url": url},
	})
}

// StripeWebhook receives Stripe events. Unauthenticated by design: the
// event is verified against the webhook signing secret instead.
func StripeWebhook(c *fiber.Ctx) error {
	if err := billing.HandleWebhook(c.Body(), c.Get("Stripe-Signature")); err != nil {
		logger.SecurityLogger.Warn("Stripe webhook rejected", zap.Error(err))
		return badRequest(c, "Webhook verification failed")
	}

	return c.JSON(fiber.Map{
		"message": "Webhook processed",
		"success": true,
		"status":  200,
	})
}
