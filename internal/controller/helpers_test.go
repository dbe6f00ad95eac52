package controller

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	jwtlib "github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"polarsync_backend/internal/model"
	"polarsync_backend/pkg/config"
	"polarsync_backend/pkg/polar"
	"polarsync_backend/pkg/utils/jwt"
)

const testUserID = "7f3a1c9e-8d2b-4e5f-9a6c-1b2d3e4f5a6b"

type mockSubscriptionStore struct {
	mock.Mock
}

func (m *mockSubscriptionStore) Upsert(sub *model.BillingSubscription) error {
	args := m.Called(sub)
	return args.Error(0)
}

func (m *mockSubscriptionStore) CurrentForUser(userID string) (*model.BillingSubscription, error) {
	args := m.Called(userID)
	sub, _ := args.Get(0).(*model.BillingSubscription)
	return sub, args.Error(1)
}

func (m *mockSubscriptionStore) GetByID(id string) (*model.BillingSubscription, error) {
	args := m.Called(id)
	sub, _ := args.Get(0).(*model.BillingSubscription)
	return sub, args.Error(1)
}

type mockBillingAPI struct {
	mock.Mock
}

func (m *mockBillingAPI) CreateCheckout(params polar.CheckoutParams) (*polar.Checkout, error) {
	args := m.Called(params)
	checkout, _ := args.Get(0).(*polar.Checkout)
	return checkout, args.Error(1)
}

func (m *mockBillingAPI) GetSubscription(id string) (*polar.Subscription, error) {
	args := m.Called(id)
	sub, _ := args.Get(0).(*polar.Subscription)
	return sub, args.Error(1)
}

func (m *mockBillingAPI) CreateCustomerSession(customerID string) (*polar.CustomerSession, error) {
	args := m.Called(customerID)
	session, _ := args.Get(0).(*polar.CustomerSession)
	return session, args.Error(1)
}

func (m *mockBillingAPI) CancelSubscription(subscriptionID, portalToken string) (*polar.PortalCancellation, error) {
	args := m.Called(subscriptionID, portalToken)
	cancellation, _ := args.Get(0).(*polar.PortalCancellation)
	return cancellation, args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{
		Polar: config.PolarConfig{
			AccessToken:   "org-token",
			WebhookSecret: "test-secret",
			Server:        "sandbox",
		},
		App: config.AppConfig{
			PublicURL: "https://app.example.com",
		},
	}
}

func testClaims() *jwt.Claims {
	return &jwt.Claims{
		Email: "user@example.com",
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject: testUserID,
		},
	}
}

// newTestApp mounts a handler at /t, optionally pre-populating the
// authenticated claims the way the auth middleware would.
func newTestApp(handler fiber.Handler, claims *jwt.Claims) *fiber.App {
	app := fiber.New()
	app.All("/t", func(c *fiber.Ctx) error {
		if claims != nil {
			c.Locals("user", claims)
		}
		return c.Next()
	}, handler)
	return app
}

func decodeBody(t *testing.T, res *http.Response) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}
