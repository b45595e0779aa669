package billing

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"onyx-api/configs"
	"onyx-api/internal/config"
	"onyx-api/internal/models"
	"onyx-api/internal/subscription"
	"onyx-api/pkg/logger"

	stripe "github.com/stripe/stripe-go/v76"
	portalsession "github.com/stripe/stripe-go/v76/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

var (
	// ErrNoCustomer means the user has never gone through checkout, so
	// there is no Stripe customer to open a portal for.
	ErrNoCustomer = fmt.Errorf("no billing account found")

	// ErrUnknownTier rejects checkout for tiers without a price.
	ErrUnknownTier = fmt.Errorf("unknown subscription tier")

	webhookSecret   string
	checkoutSuccess string
	checkoutCancel  string
	portalReturn    string
	priceIDByTier   = map[string]string{}
	tierByPriceID   = map[string]string{}
)

// Init wires the Stripe API key, webhook secret and price-to-tier mapping
// from configuration.
func Init(cfg *configs.Config) {
	stripe.Key = cfg.StripeSecretKey
	webhookSecret = cfg.StripeWebhookSecret
	checkoutSuccess = cfg.CheckoutSuccessURL
	checkoutCancel = cfg.CheckoutCancelURL
	portalReturn = cfg.PortalReturnURL

	priceIDByTier = map[string]string{
		models.TierPremium: cfg.StripePricePremium,
		models.TierPlaid:   cfg.StripePricePlaid,
	}
	tierByPriceID = map[string]string{}
	for tier, price := range priceIDByTier {
		if price != "" {
			tierByPriceID[price] = tier
		}
	}
}

// TierForPrice maps a Stripe price id back to a tier. Unknown prices map
// to free so a misconfigured webhook can never grant paid access.
func TierForPrice(priceID string) string {
	if tier, ok := tierByPriceID[priceID]; ok {
		return tier
	}
	return models.TierFree
}

// CreateCheckoutSession opens a subscription checkout for a paid tier and
// returns the hosted URL. The Stripe customer is created on first use and
// remembered on the user row.
func CreateCheckoutSession(userID, email, tier string) (string, error) {
	priceID, ok := priceIDByTier[tier]
	if !ok || priceID == "" {
		return "", ErrUnknownTier
	}

	customerID, err := ensureCustomer(userID, email)
	if err != nil {
		return "", err
	}

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:        stripe.String(checkoutSuccess),
		CancelURL:         stripe.String(checkoutCancel),
		ClientReferenceID: stripe.String(userID),
	}
	params.AddMetadata("user_id", userID)
	params.AddMetadata("tier", tier)

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

// CreatePortalSession opens the Stripe billing portal for a user who has a
// customer record.
func CreatePortalSession(userID string) (string, error) {
	var customerID sql.NullString
	err := config.DB.QueryRow(
		"SELECT stripe_customer_id FROM app_users WHERE user_id = $1 AND deleted_at IS NULL",
		userID,
	).Scan(&customerID)
	if err == sql.ErrNoRows || (err == nil && (!customerID.Valid || customerID.String == "")) {
		return "", ErrNoCustomer
	}
	if err != nil {
		return "", err
	}

	sess, err := portalsession.New(&stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID.String),
		ReturnURL: stripe.String(portalReturn),
	})
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

// ensureCustomer returns the user's Stripe customer id, creating and
// persisting one the first time.
func ensureCustomer(userID, email string) (string, error) {
	var existing sql.NullString
	err := config.DB.QueryRow(
		"SELECT stripe_customer_id FROM app_users WHERE user_id = $1 AND deleted_at IS NULL",
		userID,
	).Scan(&existing)
	if err == sql.ErrNoRows {
		return "", subscription.ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	if existing.Valid && existing.String != "" {
		return existing.String, nil
	}

	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.AddMetadata("user_id", userID)
	cust, err := customer.New(params)
	if err != nil {
		return "", err
	}

	_, err = config.DB.Exec(
		"UPDATE app_users SET stripe_customer_id = $1, updated_at = NOW() WHERE user_id = $2",
		cust.ID, userID,
	)
	if err != nil {
		return "", err
	}
	return cust.ID, nil
}

// HandleWebhook verifies and applies a Stripe event. Unhandled event types
// are acknowledged without action.
func HandleWebhook(payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, webhookSecret)
	if err != nil {
		return fmt.Errorf("webhook signature verification failed: %w", err)
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return err
		}
		return applyCheckoutCompleted(&sess)

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return err
		}
		return applySubscriptionState(&sub)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return err
		}
		return setTierByCustomer(sub.Customer.ID, models.TierFree, nil)

	default:
		logger.SystemLogger.Info("Ignoring Stripe event", zap.String("type", string(event.Type)))
		return nil
	}
}

func applyCheckoutCompleted(sess *stripe.CheckoutSession) error {
	userID := sess.ClientReferenceID
	if userID == "" {
		userID = sess.Metadata["user_id"]
	}
	tier := sess.Metadata["tier"]
	if userID == "" || tier == "" {
		return fmt.Errorf("checkout session missing user reference or tier")
	}

	var subscriptionID *string
	if sess.Subscription != nil {
		subscriptionID = &sess.Subscription.ID
	}

	_, err := config.DB.Exec(`
		UPDATE app_users
		SET subscription = $1, stripe_subscription_id = $2,
		    subscription_updated_at = NOW(), updated_at = NOW()
		WHERE user_id = $3`,
		tier, subscriptionID, userID,
	)
	if err != nil {
		return err
	}
	subscription.InvalidateTierCache(userID)

	logger.AuditLogger.Info("Subscription activated via checkout",
		zap.String("user_id", userID), zap.String("tier", tier))
	return nil
}

// applySubscriptionState syncs tier with the subscription's current price
// and status. Anything not active or trialing drops the user to free.
func applySubscriptionState(sub *stripe.Subscription) error {
	tier := models.TierFree
	if sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing {
		if len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
			tier = TierForPrice(sub.Items.Data[0].Price.ID)
		}
	}
	return setTierByCustomer(sub.Customer.ID, tier, &sub.ID)
}

func setTierByCustomer(customerID, tier string, subscriptionID *string) error {
	var userID string
	err := config.DB.QueryRow(
		"SELECT user_id FROM app_users WHERE stripe_customer_id = $1 AND deleted_at IS NULL",
		customerID,
	).Scan(&userID)
	if err == sql.ErrNoRows {
		logger.ErrorLogger.Error("Stripe event for unknown customer", zap.String("customer_id", customerID))
		return nil
	}
	if err != nil {
		return err
	}

	_, err = config.DB.Exec(`
		UPDATE app_users
		SET subscription = $1, stripe_subscription_id = $2,
		    subscription_updated_at = NOW(), updated_at = NOW()
		WHERE user_id = $3`,
		tier, subscriptionID, userID,
	)
	if err != nil {
		return err
	}
	subscription.InvalidateTierCache(userID)

	logger.AuditLogger.Info("Subscription tier updated",
		zap.String("user_id", userID), zap.String("tier", tier))
	return nil
}
