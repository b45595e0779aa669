package milestone

import (
	"testing"

	"onyx-api/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestGetUpgradeMessageFreeSuggestsPremium(t *testing.T) {
	msg := GetUpgradeMessage(models.TierFree, 100)

	assert.Equal(t, "milestone_achievement", msg.Type)
	assert.Equal(t, TypeTasks100Completed, msg.Milestone)
	assert.Equal(t, 100, msg.CompletedTasks)
	assert.Equal(t, models.TierFree, msg.CurrentTier)
	if assert.NotNil(t, msg.SuggestedTier) {
		assert.Equal(t, models.TierPremium, *msg.SuggestedTier)
	}
	assert.Equal(t, "upgrade_to_premium", msg.CTAAction)
	assert.NotEmpty(t, msg.Benefits)
}

func TestGetUpgradeMessagePremiumSuggestsPlaid(t *testing.T) {
	msg := GetUpgradeMessage(models.TierPremium, 120)

	if assert.NotNil(t, msg.SuggestedTier) {
		assert.Equal(t, models.TierPlaid, *msg.SuggestedTier)
	}
	assert.Equal(t, "upgrade_to_plaid", msg.CTAAction)
	assert.Equal(t, 120, msg.CompletedTasks)
}

func TestGetUpgradeMessagePlaidHasNoSuggestion(t *testing.T) {
	msg := GetUpgradeMessage(models.TierPlaid, 100)

	assert.Nil(t, msg.SuggestedTier)
	assert.Equal(t, "continue_productivity", msg.CTAAction)
	assert.Contains(t, msg.Title, "Productivity Master")
}

func TestGetUpgradeMessageUnknownTierDefaults(t *testing.T) {
	msg := GetUpgradeMessage("enterprise", 100)

	if assert.NotNil(t, msg.SuggestedTier) {
		assert.Equal(t, models.TierPremium, *msg.SuggestedTier)
	}
	assert.Equal(t, "learn_more", msg.CTAAction)
}
