// Package billing turns inbound Polar webhook events into canonical
// subscription rows. Payload shapes vary: the subscription object arrives
// either as the event data itself or nested under a "subscription" key, and
// field names show up in both camelCase and snake_case depending on the
// delivery path. Normalization resolves every logical field through an
// ordered list of candidate keys, first non-null wins.
package billing

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"polarsync_backend/internal/model"
)

// Outcome classifies a normalization attempt. Everything except OK is an
// acknowledge-without-write condition, never an error: rejecting these with a
// retryable status would only provoke redelivery storms.
type Outcome int

const (
	// OK means a canonical record was produced and should be stored.
	OK Outcome = iota
	// Ignored means the event type is not a subscription state of interest.
	Ignored
	// SkippedNoUser means no local identity could be resolved from the
	// customer external id (either spelling) or the metadata fallback.
	SkippedNoUser
	// SkippedNoID means the payload carried no subscription id; a row keyed
	// by a junk id could never be reconciled by later events.
	SkippedNoID
)

// The three terminal-ish states worth mirroring. Everything else
// (customer.*, subscription.created/updated, orders, benefits) is
// acknowledged and dropped; the provider will send one of these when the
// subscription actually changes state.
var statusByEventType = map[string]string{
	"subscription.active":   model.StatusActive,
	"subscription.canceled": model.StatusCanceled,
	"subscription.revoked":  model.StatusRevoked,
}

// EventOfInterest reports whether the event type maps to a mirrored status.
func EventOfInterest(eventType string) bool {
	_, ok := statusByEventType[eventType]
	return ok
}

// Normalize converts a verified event into a canonical record stamped at
// now. Malformed or type-mismatched fields degrade to null, never to an
// error; only the caller's signature check and store write can hard-fail.
func Normalize(eventType string, data map[string]interface{}, now time.Time) (*model.BillingSubscription, Outcome) {
	status, ok := statusByEventType[eventType]
	if !ok {
		return nil, Ignored
	}

	sub := unwrap(data)

	userID := resolveUserID(sub)
	if userID == "" {
		return nil, SkippedNoUser
	}

	id := pickString(sub, "id")
	if id == "" {
		return nil, SkippedNoID
	}

	product := objectField(sub, "product")
	productID := firstString(
		pickString(product, "id"),
		pickString(sub, "product_id"),
	)

	canceledAt := pickTime(sub, "canceledAt", "canceled_at")
	if canceledAt == nil && status != model.StatusActive {
		canceledAt = &now
	}

	record := &model.BillingSubscription{
		ID:                 id,
		UserID:             userID,
		ProductID:          nilIfEmpty(productID),
		ProductName:        nilIfEmpty(pickString(product, "name")),
		Status:             status,
		StartedAt:          pickTime(sub, "startedAt", "started_at"),
		CurrentPeriodStart: pickTime(sub, "currentPeriodStart", "current_period_start"),
		CurrentPeriodEnd:   pickTime(sub, "currentPeriodEnd", "current_period_end"),
		CanceledAt:         canceledAt,
		CancelAtPeriodEnd:  pickBool(sub, "cancelAtPeriodEnd", "cancel_at_period_end"),
		Metadata:           metadataJSON(sub),
		UpdatedAt:          now,
	}
	return record, OK
}

// unwrap returns the nested subscription object when present, else the event
// data itself.
func unwrap(data map[string]interface{}) map[string]interface{} {
	if nested := objectField(data, "subscription"); nested != nil {
		return nested
	}
	return data
}

// resolveUserID tries, in order: customer.externalId, customer.external_id,
// metadata.supabaseUserId. The checkout initiator plants the identity in both
// places, so either path suffices.
func resolveUserID(sub map[string]interface{}) string {
	customer := objectField(sub, "customer")
	if uid := pickString(customer, "externalId", "external_id"); uid != "" {
		return uid
	}
	return pickString(objectField(sub, "metadata"), "supabaseUserId")
}

func objectField(obj map[string]interface{}, key string) map[string]interface{} {
	if obj == nil {
		return nil
	}
	nested, _ := obj[key].(map[string]interface{})
	return nested
}

func pickString(obj map[string]interface{}, keys ...string) string {
	if obj == nil {
		return ""
	}
	for _, key := range keys {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func pickBool(obj map[string]interface{}, keys ...string) bool {
	if obj == nil {
		return false
	}
	for _, key := range keys {
		if b, ok := obj[key].(bool); ok {
			return b
		}
	}
	return false
}

func pickTime(obj map[string]interface{}, keys ...string) *time.Time {
	raw := pickString(obj, keys...)
	if raw == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &parsed
}

func firstString(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// metadataJSON snapshots the event's metadata object when it carries one.
func metadataJSON(sub map[string]interface{}) datatypes.JSON {
	meta := objectField(sub, "metadata")
	if len(meta) == 0 {
		return nil
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return datatypes.JSON(encoded)
}
