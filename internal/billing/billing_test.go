package billing

import (
	"testing"

	"onyx-api/configs"
	"onyx-api/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestTierForPrice(t *testing.T) {
	Init(&configs.Config{
		StripePricePremium: "price_premium_123",
		StripePricePlaid:   "price_plaid_456",
	})

	assert.Equal(t, models.TierPremium, TierForPrice("price_premium_123"))
	assert.Equal(t, models.TierPlaid, TierForPrice("price_plaid_456"))
}

func TestTierForPriceUnknownMapsToFree(t *testing.T) {
	Init(&configs.Config{
		StripePricePremium: "price_premium_123",
		StripePricePlaid:   "price_plaid_456",
	})

	assert.Equal(t, models.TierFree, TierForPrice("price_deleted_legacy"))
	assert.Equal(t, models.TierFree, TierForPrice(""))
}

func TestTierForPriceUnconfiguredPrices(t *testing.T) {
	// An empty price id must never become a lookup key, or every user
	// without a price would map to whichever tier was left unconfigured.
	Init(&configs.Config{StripePricePremium: "price_premium_123"})

	assert.Equal(t, models.TierPremium, TierForPrice("price_premium_123"))
	assert.Equal(t, models.TierFree, TierForPrice(""))
}
