package v1

import (
	"onyx-api/internal/api/v1/handlers"
	"onyx-api/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the API under /api/v1 and mirrors it at the bare
// prefix for clients that predate versioning. The Stripe webhook is the
// only unauthenticated route; it is verified by signature instead.
func RegisterRoutes(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Post("/api/v1/stripe/webhook", handlers.StripeWebhook)
	app.Post("/stripe/webhook", handlers.StripeWebhook)

	for _, prefix := range []string{"/api/v1", ""} {
		api := app.Group(prefix, middleware.UseToken)
		registerProtected(api)
	}
}

func registerProtected(api fiber.Router) {
	api.Post("/users", handlers.CreateUser)
	api.Get("/users/me", handlers.GetMe)
	api.Put("/users/me", handlers.UpdateMe)
	api.Delete("/users/me", handlers.DeleteMe)

	api.Post("/folders", handlers.CreateFolder)
	api.Get("/folders", handlers.GetFolders)
	api.Get("/folders/:id", handlers.GetFolder)
	api.Put("/folders/:id", handlers.UpdateFolder)
	api.Delete("/folders/:id", handlers.DeleteFolder)

	api.Post("/tasks", handlers.CreateTask)
	api.Get("/tasks", handlers.GetTasks)
	api.Get("/tasks/:id", handlers.GetTask)
	api.Put("/tasks/:id", handlers.UpdateTask)
	api.Patch("/tasks/:id/toggle", handlers.ToggleTask)
	api.Delete("/tasks/:id", handlers.DeleteTask)

	api.Post("/tasks/:taskId/subtasks", handlers.CreateSubtask)
	api.Get("/tasks/:taskId/subtasks", handlers.GetSubtasks)
	api.Put("/subtasks/:id", handlers.UpdateSubtask)
	api.Patch("/subtasks/:id/toggle", handlers.ToggleSubtask)
	api.Delete("/subtasks/:id", handlers.DeleteSubtask)

	api.Post("/notes", handlers.CreateNote)
	api.Get("/notes", handlers.GetNotes)
	api.Get("/notes/:id", handlers.GetNote)
	api.Put("/notes/:id", handlers.UpdateNote)
	api.Delete("/notes/:id", handlers.DeleteNote)

	api.Get("/tasks/:taskId/messages", handlers.GetTaskAIMessages)
	api.Delete("/tasks/:taskId/messages", handlers.DeleteTaskAIMessages)
	api.Get("/assistant/messages", handlers.GetAssistantMessages)
	api.Delete("/assistant/messages", handlers.DeleteAssistantMessages)

	api.Post("/ai/message", handlers.PostAIMessage)
	api.Get("/ai/subscription-status", handlers.GetSubscriptionStatus)
	api.Get("/ai/suggestion", handlers.GetAISuggestion)
	api.Post("/ai/parse-date", handlers.ParseDate)
	api.Post("/ai/onboarding-tasks", handlers.CreateOnboardingTasks)
	api.Post("/ai/create-task-smart", handlers.CreateTaskSmart)

	api.Post("/suggested-tasks/generate", handlers.GenerateSuggestedTasks)
	api.Get("/suggested-tasks", handlers.GetSuggestedTasks)
	api.Post("/suggested-tasks/:id/add", handlers.AddSuggestedTask)
	api.Post("/suggested-tasks/:id/decline", handlers.DeclineSuggestedTask)
	api.Delete("/suggested-tasks", handlers.DeleteSuggestedTasks)

	api.Get("/integrations", handlers.GetIntegrations)
	api.Patch("/integrations/toggle", handlers.ToggleIntegrations)
	api.Post("/integrations/gmail/connect", handlers.ConnectGmail)
	api.Post("/integrations/gmail/disconnect", handlers.DisconnectGmail)

	api.Get("/milestones", handlers.GetMilestones)
	api.Get("/milestones/check", handlers.CheckMilestones)
	api.Post("/milestones/:type/dismiss", handlers.DismissMilestone)
	api.Get("/milestones/stats", handlers.GetMilestoneStats)

	api.Post("/stripe/create-checkout-session", handlers.CreateCheckout)
	api.Post("/stripe/customer-portal", handlers.CreatePortal)
}
