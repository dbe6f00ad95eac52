package controller

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"polarsync_backend/internal/model"
	"polarsync_backend/internal/store"
	"polarsync_backend/pkg/config"
	"polarsync_backend/pkg/polar"
	"polarsync_backend/pkg/utils/jwt"
)

// BillingAPI is the slice of the Polar client the controllers call, split out
// so handler tests can substitute a double.
type BillingAPI interface {
	CreateCheckout(params polar.CheckoutParams) (*polar.Checkout, error)
	GetSubscription(id string) (*polar.Subscription, error)
	CreateCustomerSession(customerID string) (*polar.CustomerSession, error)
	CancelSubscription(subscriptionID, portalToken string) (*polar.PortalCancellation, error)
}

type SubscriptionController struct {
	cfg   *config.Config
	store store.SubscriptionStore
	api   BillingAPI
	now   func() time.Time
}

func NewSubscriptionController(cfg *config.Config, subs store.SubscriptionStore, api BillingAPI) *SubscriptionController {
	return &SubscriptionController{cfg: cfg, store: subs, api: api, now: time.Now}
}

// cancelResult reports the outcome as a value: user-facing failures stay
// HTTP 200 with ok=false, they are answers, not transport faults.
func cancelResult(c *fiber.Ctx, ok bool, message string) error {
	return c.JSON(fiber.Map{"ok": ok, "message": message})
}

// CancelSubscription runs the provider call sequence on behalf of the
// authenticated user: fetch subscription, open a customer session, cancel
// through the customer portal, then optimistically mark the local row
// canceled. The optimistic write is advisory; the authoritative state
// arrives later on the webhook path. The local write is always the last
// step, so any earlier failure leaves the store untouched.
func (sc *SubscriptionController) CancelSubscription(c *fiber.Ctx) error {
	if sc.cfg.Polar.AccessToken == "" {
		return cancelResult(c, false, "Missing POLAR_ACCESS_TOKEN")
	}

	claims, ok := c.Locals("user").(*jwt.Claims)
	if !ok {
		return cancelResult(c, false, "Unauthorized")
	}

	sub, err := sc.store.CurrentForUser(claims.UserID())
	if err != nil {
		return cancelResult(c, false, err.Error())
	}
	if sub == nil || sub.Status != model.StatusActive {
		return cancelResult(c, false, "No active subscription")
	}

	// Step 1: resolve the provider customer id from the subscription.
	providerSub, err := sc.api.GetSubscription(sub.ID)
	if err != nil {
		return cancelResult(c, false, stepFailure("Fetch subscription failed", err))
	}
	customerID := providerSub.CustomerID()
	if customerID == "" {
		return cancelResult(c, false, "Missing Polar customer_id")
	}

	// Step 2: open a customer-scoped session for the portal token.
	session, err := sc.api.CreateCustomerSession(customerID)
	if err != nil {
		return cancelResult(c, false, stepFailure("Customer session failed", err))
	}

	// Step 3: cancel through the customer portal.
	cancellation, err := sc.api.CancelSubscription(sub.ID, session.Token)
	if err != nil {
		return cancelResult(c, false, stepFailure("Cancel failed", err))
	}

	// Step 4: optimistic local update.
	now := sc.now().UTC()
	sub.Status = model.StatusCanceled
	sub.CanceledAt = &now
	if cancellation.CurrentPeriodEnd != nil {
		sub.CurrentPeriodEnd = cancellation.CurrentPeriodEnd
	}
	sub.UpdatedAt = now
	if err := sc.store.Upsert(sub); err != nil {
		return cancelResult(c, false, err.Error())
	}

	return cancelResult(c, true, "Canceled")
}

// GetMySubscription returns the user's current subscription row, the newest
// by updated_at across any historical rows.
func (sc *SubscriptionController) GetMySubscription(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	sub, err := sc.store.CurrentForUser(claims.UserID())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch subscription",
		})
	}
	if sub == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No subscription found",
		})
	}

	return c.JSON(sub)
}

// stepFailure names the failing provider call and attaches the upstream
// status when one exists, so each step's failure stays distinguishable.
func stepFailure(step string, err error) string {
	var apiErr *polar.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s (%d)", step, apiErr.Status)
	}
	return fmt.Sprintf("%s: %v", step, err)
}
