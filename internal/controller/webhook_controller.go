package controller

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"polarsync_backend/internal/billing"
	"polarsync_backend/internal/store"
	"polarsync_backend/pkg/config"
	"polarsync_backend/pkg/polar"
)

// WebhookController receives Polar's webhook deliveries and reconciles the
// local mirror. Signature verification is the authentication mechanism for
// this endpoint; nothing is parsed before it passes.
//
// Response codes are the contract with Polar's delivery system: 202 means
// "done, never redeliver" (including skipped and ignored events), 403 means
// "bad secret, never redeliver", 500 means "redeliver later". Redelivery is
// the only retry mechanism on this path.
type WebhookController struct {
	cfg   *config.Config
	store store.SubscriptionStore
	now   func() time.Time
}

func NewWebhookController(cfg *config.Config, subs store.SubscriptionStore) *WebhookController {
	return &WebhookController{cfg: cfg, store: subs, now: time.Now}
}

type webhookEvent struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

func (wc *WebhookController) HandlePolarWebhook(c *fiber.Ctx) error {
	secret := wc.cfg.Polar.WebhookSecret
	if secret == "" {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "missing_webhook_secret",
		})
	}

	payload := c.Body()
	if err := polar.VerifyWebhookSignature(secret, payload, headerMap(c)); err != nil {
		log.Printf("[polar-webhook] invalid signature")
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "invalid_signature",
		})
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("[polar-webhook] undecodable payload: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal",
		})
	}

	if !billing.EventOfInterest(event.Type) {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"ok":      true,
			"ignored": event.Type,
		})
	}

	record, outcome := billing.Normalize(event.Type, event.Data, wc.now().UTC())
	switch outcome {
	case billing.SkippedNoUser:
		log.Printf("[polar-webhook] no uid (externalId/external_id/metadata.supabaseUserId), skipping %s", event.Type)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"skipped": "no_uid",
		})
	case billing.SkippedNoID:
		log.Printf("[polar-webhook] no subscription id, skipping %s", event.Type)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"skipped": "no_subscription_id",
		})
	}

	// Last writer wins here: redelivery of the same snapshot is harmless
	// because the id is the upsert key, but no ordering check protects a
	// newer row from an older redelivered event.
	if err := wc.store.Upsert(record); err != nil {
		log.Printf("[polar-webhook] upsert error: %v (id=%s)", err, record.ID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":  "db_upsert_failed",
			"detail": err.Error(),
		})
	}

	log.Printf("[polar-webhook] subscription upserted: id=%s user=%s status=%s", record.ID, record.UserID, record.Status)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"ok": true,
	})
}

func headerMap(c *fiber.Ctx) map[string]string {
	headers := make(map[string]string)
	for key, values := range c.GetReqHeaders() {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}
	return headers
}
