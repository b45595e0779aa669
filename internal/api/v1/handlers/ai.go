package handlers

import (
	"onyx-api/internal/assistant"
	"onyx-api/internal/config"
	"onyx-api/internal/models"
	"onyx-api/internal/subscription"
	"onyx-api/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func subscriptionInfo(v subscription.Validation) fiber.Map {
	return fiber.Map{
		"tier":            v.Subscription.Tier,
		"processing_type": v.Subscription.ProcessingType,
		"unlimited":       v.Subscription.Limits.Unlimited,
		"usage":           v.Usage.Usage,
		"limit":           v.Usage.Limit,
		"remaining":       v.Usage.Remaining,
	}
}

// PostAIMessage is the single entry point for AI conversations, both
// task-scoped and general. Quota is checked before any generation work;
// a denial is a 429 carrying the usage numbers.
func PostAIMessage(c *fiber.Ctx) error {
	request := struct {
		Message     string                 `json:"message" validate:"required,min=1,max=2000"`
		Type        string                 `json:"type" validate:"required,oneof=task_specific general_assistant"`
		TaskID      *int                   `json:"task_id"`
		ViewContext *assistant.ViewContext `json:"view_context"`
	}{}
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := config.Validate.Struct(request); err != nil {
		return badRequest(c, "Message (1-2000 chars) and type are required")
	}
	if request.Type == "task_specific" && request.TaskID == nil {
		return badRequest(c, "task_id is required for task messages")
	}

	uid := userID(c)
	validation, err := subscription.ValidateAIRequest(uid)
	if err == subscription.ErrUserNotFound {
		return notFound(c, "User not found")
	}
	if err != nil {
		logger.ErrorLogger.Error("Error validating AI request", zap.Error(err))
		return serverError(c, "Failed to process message")
	}
	if !validation.Allowed {
		// The denied question is still saved; only generation is refused.
		denied := fiber.Map{
			"message":           validation.Error,
			"success":           false,
			"status":            429,
			"subscription_info": subscriptionInfo(validation),
		}
		if request.Type == "task_specific" {
			owns, err := ownsTask(uid, *request.TaskID)
			if err != nil {
				logger.ErrorLogger.Error("Error checking task ownership", zap.Error(err))
			} else if !owns {
				return notFound(c, "Task not found")
			} else if msg, err := assistant.SaveTaskUserMessage(uid, *request.TaskID, request.Message); err == nil {
				denied["data"] = fiber.Map{"user_message": msg}
			} else {
				logger.ErrorLogger.Error("Error saving denied task message", zap.Error(err))
			}
		} else if msg, err := assistant.SaveAssistantUserMessage(uid, request.Message); err == nil {
			denied["data"] = fiber.Map{"user_message": msg}
		} else {
			logger.ErrorLogger.Error("Error saving denied assistant message", zap.Error(err))
		}
		return c.Status(fiber.StatusTooManyRequests).JSON(denied)
	}

	var result *assistant.Result
	if request.Type == "task_specific" {
		result, err = assistant.ProcessTaskMessage(c.Context(), uid, *request.TaskID, request.Message, validation.Subscription)
		if err == assistant.ErrTaskNotFound {
			return notFound(c, "Task not found")
		}
	} else {
		view := assistant.ViewContext{}
		if request.ViewContext != nil {
			view = *request.ViewContext
		}
		result, err = assistant.ProcessAssistantMessage(c.Context(), uid, request.Message, view, validation.Subscription)
	}
	if err != nil {
		logger.ErrorLogger.Error("Error processing AI message", zap.Error(err))
		return serverError(c, "Failed to process message")
	}

	// A degraded exchange (user message saved, no AI answer) is a 200,
	// not a 201: nothing new was generated.
	status := fiber.StatusCreated
	if result.Degraded {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{
		"message":           "Message processed successfully",
		"success":           true,
		"status":            status,
		"data":              result,
		"subscription_info": subscriptionInfo(validation),
	})
}

// GetSubscriptionStatus reports the caller's tier, limits and usage for
// the current day.
func GetSubscriptionStatus(c *fiber.Ctx) error {
	uid := userID(c)

	sub, err := subscription.GetUserSubscription(uid)
	if err == subscription.ErrUserNotFound {
		return notFound(c, "User not found")
	}
	if err != nil {
		logger.ErrorLogger.Error("Error resolving subscription", zap.Error(err))
		return serverError(c, "Failed to fetch subscription status")
	}
	usage, err := subscription.CheckDailyUsage(uid, sub.Tier)
	if err != nil {
		logger.ErrorLogger.Error("Error checking daily usage", zap.Error(err))
		return serverError(c, "Failed to fetch subscription status")
	}

	return c.JSON(fiber.Map{
		"message": "Subscription status retrieved successfully",
		"success": true,
		"status":  200,
		"data": fiber.Map{
			"subscription": sub,
			"usage":        usage,
		},
	})
}

// GetAISuggestion returns a single fresh task suggestion without storing
// anything. Counts against the same daily quota gate as messages.
func GetAISuggestion(c *fiber.Ctx) error {
	uid := userID(c)
	validation, err := subscription.ValidateAIRequest(uid)
	if err == subscription.ErrUserNotFound {
		return notFound(c, "User not found")
	}
	if err != nil {
		logger.ErrorLogger.Error("Error validating AI request", zap.Error(err))
		return serverError(c, "Failed to generate suggestion")
	}
	if !validation.Allowed {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"message":           validation.Error,
			"success":           false,
			"status":            429,
			"subscription_info": subscriptionInfo(validation),
		})
	}

	titles, err := assistant.GenerateTaskSuggestions(c.Context(), uid, 1)
	if err != nil || len(titles) == 0 {
		logger.ErrorLogger.Error("Error generating suggestion", zap.Error(err))
		return serverError(c, "Failed to generate suggestion")
	}
	subscription.LogAIUsage(uid, validation.Subscription.Tier, "task_suggestion", 0)

	return c.JSON(fiber.Map{
		"message": "Suggestion generated successfully",
		"success": true,
		"status":  200,
		"data":    fiber.Map{"suggestion": titles[0]},
	})
}

// ParseDate parses a natural-language due date into structured form.
// Date parsing consumes the same daily AI quota as messages.
func ParseDate(c *fiber.Ctx) error {
	request := struct {
		Input string `json:"input" validate:"required,min=1"`
	}{}
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := config.Validate.Struct(request); err != nil {
		return badRequest(c, "Input text is required")
	}

	uid := userID(c)
	validation, err := subscription.ValidateAIRequest(uid)
	if err == subscription.ErrUserNotFound {
		return notFound(c, "User not found")
	}
	if err != nil {
		logger.ErrorLogger.Error("Error validating AI request", zap.Error(err))
		return serverError(c, "Failed to parse date")
	}
	if !validation.Allowed {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"message":           validation.Error,
			"success":           false,
			"status":            429,
			"subscription_info": subscriptionInfo(validation),
		})
	}

	parsed, err := assistant.ParseDueDate(c.Context(), request.Input)
	if err != nil {
		logger.ErrorLogger.Error("Error parsing due date", zap.Error(err))
		return serverError(c, "Failed to parse date")
	}
	subscription.LogAIUsage(uid, validation.Subscription.Tier, "date_parsing", 0)

	return c.JSON(fiber.Map{
		"message": "Date parsed successfully",
		"success": true,
		"status":  200,
		"data":    parsed,
	})
}

// CreateOnboardingTasks seeds the starter tasks, for clients that register
// outside the normal signup flow.
func CreateOnboardingTasks(c *fiber.Ctx) error {
	uid := userID(c)

	tasks := []models.Task{}
	for _, title := range assistant.OnboardingTasks() {
		var t models.Task
		err := scanTask(config.DB.QueryRow(
			"INSERT INTO tasks (user_id, title) VALUES ($1, $2) RETURNING "+taskSelectColumns,
			uid, title,
		), &t)
		if err != nil {
			logger.ErrorLogger.Error("Error creating onboarding task", zap.Error(err))
			return serverError(c, "Failed to create onboarding tasks")
		}
		tasks = append(tasks, t)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Onboarding tasks created successfully",
		"success": true,
		"status":  201,
		"data":    tasks,
	})
}

// CreateTaskSmart extracts a structured task from free text and creates it.
func CreateTaskSmart(c *fiber.Ctx) error {
	request := struct {
		Input string `json:"input" validate:"required,min=1"`
	}{}
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := config.Validate.Struct(request); err != nil {
		return badRequest(c, "Input text is required")
	}

	// Extraction failure degrades to a plain task: the raw input becomes
	// the title with no date, rather than failing the request.
	extracted, err := assistant.ExtractTask(c.Context(), request.Input)
	if err != nil {
		logger.ErrorLogger.Error("Error extracting task", zap.Error(err))
		title := request.Input
		if len(title) > 255 {
			title = title[:255]
		}
		extracted = assistant.SmartTask{Title: title}
	}

	var task models.Task
	err = scanTask(config.DB.QueryRow(`
		INSERT INTO tasks (user_id, title, description, due_date, is_repeating)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+taskSelectColumns,
		userID(c), extracted.Title, extracted.Description, extracted.DueDate, extracted.IsRepeating,
	), &task)
	if err != nil {
		logger.ErrorLogger.Error("Error creating smart task", zap.Error(err))
		return dbError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Task created successfully",
		"success": true,
		"status":  201,
		"data":    task,
	})
}
