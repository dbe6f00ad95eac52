package polar

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidSignature is returned for any authenticity failure: missing
// headers, malformed timestamp, stale delivery or signature mismatch. The
// receiver maps it to 403 so the provider knows not to retry.
var ErrInvalidSignature = errors.New("polar: invalid webhook signature")

// Deliveries older than this are rejected to limit replays, matching the
// standard-webhooks reference tolerance.
const signatureTolerance = 5 * time.Minute

// VerifyWebhookSignature authenticates a raw delivery against the shared
// secret before anything is parsed. Polar follows the standard-webhooks
// scheme: the signed content is "<webhook-id>.<webhook-timestamp>.<body>",
// the signature header carries one or more space-separated "v1,<base64>"
// candidates, and the HMAC-SHA256 key is the secret's raw bytes (base64
// decoded after stripping the "whsec_" prefix when present).
func VerifyWebhookSignature(secret string, payload []byte, headers map[string]string) error {
	msgID := headerValue(headers, "webhook-id")
	msgTimestamp := headerValue(headers, "webhook-timestamp")
	msgSignature := headerValue(headers, "webhook-signature")
	if msgID == "" || msgTimestamp == "" || msgSignature == "" {
		return ErrInvalidSignature
	}

	unix, err := strconv.ParseInt(msgTimestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	if age := time.Since(time.Unix(unix, 0)); age > signatureTolerance || age < -signatureTolerance {
		return ErrInvalidSignature
	}

	key := signingKey(secret)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msgID))
	mac.Write([]byte("."))
	mac.Write([]byte(msgTimestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, candidate := range strings.Fields(msgSignature) {
		// Versioned form "v1,<sig>"; tolerate a bare signature too.
		if idx := strings.Index(candidate, ","); idx >= 0 {
			if candidate[:idx] != "v1" {
				continue
			}
			candidate = candidate[idx+1:]
		}
		decoded, err := base64.StdEncoding.DecodeString(candidate)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}

func signingKey(secret string) []byte {
	if trimmed, ok := strings.CutPrefix(secret, "whsec_"); ok {
		if decoded, err := base64.StdEncoding.DecodeString(trimmed); err == nil {
			return decoded
		}
	}
	return []byte(secret)
}

func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
