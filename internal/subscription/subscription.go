package subscription

import (
	"database/sql"
	"fmt"
	"time"

	"onyx-api/internal/config"
	"onyx-api/internal/models"
	"onyx-api/pkg/logger"

	"go.uber.org/zap"
)

// ErrUserNotFound maps to a 404 at the handler layer.
var ErrUserNotFound = fmt.Errorf("user not found")

// How long a user's tier stays cached in Redis. Billing webhooks invalidate
// the key on tier change, so a short TTL is only a fallback.
const tierCacheTTL = 5 * time.Minute

type Limits struct {
	DailyAIQuestions *int     `json:"daily_ai_questions"`
	Unlimited        bool     `json:"unlimited"`
	Features         []string `json:"features"`
}

type Subscription struct {
	Tier           string `json:"tier"`
	Limits         Limits `json:"limits"`
	ProcessingType string `json:"processing_type"`
}

type Usage struct {
	Allowed   bool `json:"allowed"`
	Usage     int  `json:"usage"`
	Limit     *int `json:"limit"`
	Remaining *int `json:"remaining"`
}

type Validation struct {
	Allowed      bool
	Subscription Subscription
	Usage        Usage
	Error        string
}

// ProcessingConfig is the per-tier model-routing table entry.
type ProcessingConfig struct {
	Model        string   `json:"model"`
	MaxTokens    int      `json:"max_tokens"`
	Temperature  float32  `json:"temperature"`
	ContextDepth string   `json:"context_depth"`
	Features     []string `json:"features"`
}

func intPtr(v int) *int { return &v }

// GetSubscriptionLimits is a total function over the static tier table.
// Unknown tiers fall back to the free limits rather than erroring.
func GetSubscriptionLimits(tier string) Limits {
	switch tier {
	case models.TierPremium:
		return Limits{
			DailyAIQuestions: nil,
			Unlimited:        true,
			Features:         []string{"basic_ai_responses", "task_context", "advanced_suggestions"},
		}
	case models.TierPlaid:
		return Limits{
			DailyAIQuestions: nil,
			Unlimited:        true,
			Features:         []string{"premium_ai_responses", "full_context", "advanced_suggestions", "custom_prompts"},
		}
	default:
		return Limits{
			DailyAIQuestions: intPtr(3),
			Unlimited:        false,
			Features:         []string{"basic_ai_responses", "task_context"},
		}
	}
}

// GetProcessingType reports which processing path a tier is routed to.
func GetProcessingType(tier string) string {
	if tier == models.TierPlaid {
		return "premium"
	}
	return "standard"
}

// GetAIProcessingConfig is a total function over the static routing table.
func GetAIProcessingConfig(tier string) ProcessingConfig {
	switch tier {
	case models.TierPremium:
		return ProcessingConfig{
			Model:        "gpt-3.5-turbo",
			MaxTokens:    300,
			Temperature:  0.7,
			ContextDepth: "full",
			Features:     []string{"advanced_suggestions", "context_analysis"},
		}
	case models.TierPlaid:
		return ProcessingConfig{
			Model:        "gpt-4",
			MaxTokens:    500,
			Temperature:  0.8,
			ContextDepth: "comprehensive",
			Features:     []string{"premium_suggestions", "deep_analysis", "custom_prompts"},
		}
	default:
		return ProcessingConfig{
			Model:        "gpt-3.5-turbo",
			MaxTokens:    150,
			Temperature:  0.7,
			ContextDepth: "minimal",
			Features:     []string{"basic_suggestions"},
		}
	}
}

// GetUserSubscription resolves the stored tier for a user. A missing or
// soft-deleted user is ErrUserNotFound; an unset tier defaults to free.
func GetUserSubscription(userID string) (Subscription, error) {
	tier, err := lookupTier(userID)
	if err != nil {
		return Subscription{}, err
	}
	return Subscription{
		Tier:           tier,
		Limits:         GetSubscriptionLimits(tier),
		ProcessingType: GetProcessingType(tier),
	}, nil
}

func lookupTier(userID string) (string, error) {
	cacheKey := "subscription:" + userID
	if config.RedisClient != nil {
		if cached, err := config.RedisClient.Get(config.Ctx, cacheKey).Result(); err == nil && cached != "" {
			return cached, nil
		}
	}

	var tier sql.NullString
	err := config.DB.QueryRow(
		"SELECT subscription FROM app_users WHERE user_id = $1 AND deleted_at IS NULL",
		userID,
	).Scan(&tier)
	if err == sql.ErrNoRows {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", err
	}

	result := models.TierFree
	if tier.Valid && tier.String != "" {
		result = tier.String
	}
	if config.RedisClient != nil {
		config.RedisClient.Set(config.Ctx, cacheKey, result, tierCacheTTL)
	}
	return result, nil
}

// InvalidateTierCache drops the cached tier for a user. Called after
// profile updates and billing webhooks change the subscription.
func InvalidateTierCache(userID string) {
	if config.RedisClient != nil {
		config.RedisClient.Del(config.Ctx, "subscription:"+userID)
	}
}

// CheckDailyUsage counts user-authored AI messages across both message
// tables for the current UTC calendar day. Unlimited tiers are always
// allowed and report a nil limit.
func CheckDailyUsage(userID, tier string) (Usage, error) {
	limits := GetSubscriptionLimits(tier)

	if limits.Unlimited {
		return Usage{Allowed: true, Usage: 0, Limit: nil, Remaining: nil}, nil
	}

	// Quota resets at UTC midnight. created_at is a plain timestamp written
	// by CURRENT_TIMESTAMP, so interpret it in the session zone and convert
	// to UTC before taking the date; a bare DATE(created_at) would shift the
	// reset with the server's timezone setting.
	today := time.Now().UTC().Format("2006-01-02")

	var usage int
	err := config.DB.QueryRow(`
		SELECT COUNT(*) FROM (
			SELECT created_at FROM task_ai_messages
			WHERE user_id = $1 AND from_user = true
			  AND DATE(created_at::timestamptz AT TIME ZONE 'UTC') = $2
			UNION ALL
			SELECT created_at FROM assistant_messages
			WHERE user_id = $1 AND from_user = true
			  AND DATE(created_at::timestamptz AT TIME ZONE 'UTC') = $2
		) combined_messages`,
		userID, today,
	).Scan(&usage)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to check usage limits: %w", err)
	}

	limit := *limits.DailyAIQuestions
	remaining := limit - usage
	if remaining < 0 {
		remaining = 0
	}

	return Usage{
		Allowed:   usage < limit,
		Usage:     usage,
		Limit:     intPtr(limit),
		Remaining: intPtr(remaining),
	}, nil
}

// ValidateAIRequest gates an AI request on tier and daily quota. A denial
// is not an error: the caller converts it to a 429 with the usage metadata.
func ValidateAIRequest(userID string) (Validation, error) {
	sub, err := GetUserSubscription(userID)
	if err != nil {
		return Validation{}, err
	}
	usage, err := CheckDailyUsage(userID, sub.Tier)
	if err != nil {
		return Validation{}, err
	}

	if !usage.Allowed {
		return Validation{
			Allowed:      false,
			Subscription: sub,
			Usage:        usage,
			Error: fmt.Sprintf(
				"Daily limit of %d AI questions exceeded. Upgrade to Premium for unlimited access.",
				*usage.Limit,
			),
		}, nil
	}

	return Validation{Allowed: true, Subscription: sub, Usage: usage}, nil
}

// LogAIUsage records an AI interaction for analytics. Failures here must
// never abort the parent request, so there is nothing to return.
func LogAIUsage(userID, tier, messageType string, tokensUsed int) {
	logger.AuditLogger.Info("AI usage",
		zap.String("user_id", userID),
		zap.String("tier", tier),
		zap.String("message_type", messageType),
		zap.Int("tokens_used", tokensUsed),
	)
}
