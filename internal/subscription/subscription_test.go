package subscription

import (
	"testing"

	"onyx-api/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestGetSubscriptionLimitsFree(t *testing.T) {
	limits := GetSubscriptionLimits(models.TierFree)

	assert.False(t, limits.Unlimited)
	if assert.NotNil(t, limits.DailyAIQuestions) {
		assert.Equal(t, 3, *limits.DailyAIQuestions)
	}
	assert.Contains(t, limits.Features, "basic_ai_responses")
}

func TestGetSubscriptionLimitsPaidTiersAreUnlimited(t *testing.T) {
	for _, tier := range []string{models.TierPremium, models.TierPlaid} {
		limits := GetSubscriptionLimits(tier)
		assert.True(t, limits.Unlimited, tier)
		assert.Nil(t, limits.DailyAIQuestions, tier)
	}
}

func TestGetSubscriptionLimitsUnknownTierFallsBackToFree(t *testing.T) {
	limits := GetSubscriptionLimits("enterprise")

	assert.False(t, limits.Unlimited)
	if assert.NotNil(t, limits.DailyAIQuestions) {
		assert.Equal(t, 3, *limits.DailyAIQuestions)
	}
}

func TestGetProcessingType(t *testing.T) {
	assert.Equal(t, "standard", GetProcessingType(models.TierFree))
	assert.Equal(t, "standard", GetProcessingType(models.TierPremium))
	assert.Equal(t, "premium", GetProcessingType(models.TierPlaid))
	assert.Equal(t, "standard", GetProcessingType("unknown"))
}

func TestGetAIProcessingConfigPerTier(t *testing.T) {
	free := GetAIProcessingConfig(models.TierFree)
	assert.Equal(t, "gpt-3.5-turbo", free.Model)
	assert.Equal(t, 150, free.MaxTokens)
	assert.Equal(t, "minimal", free.ContextDepth)

	premium := GetAIProcessingConfig(models.TierPremium)
	assert.Equal(t, "gpt-3.5-turbo", premium.Model)
	assert.Equal(t, 300, premium.MaxTokens)
	assert.Equal(t, "full", premium.ContextDepth)

	plaid := GetAIProcessingConfig(models.TierPlaid)
	assert.Equal(t, "gpt-4", plaid.Model)
	assert.Equal(t, 500, plaid.MaxTokens)
	assert.Equal(t, "comprehensive", plaid.ContextDepth)
}

func TestGetAIProcessingConfigUnknownTier(t *testing.T) {
	cfg := GetAIProcessingConfig("unknown")
	assert.Equal(t, GetAIProcessingConfig(models.TierFree), cfg)
}
