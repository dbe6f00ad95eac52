package controller

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"polarsync_backend/pkg/polar"
)

func postCheckout(t *testing.T, app *fiber.App, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/t", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	res, err := app.Test(req)
	require.NoError(t, err)
	return res
}

func TestCheckout_Success(t *testing.T) {
	api := new(mockBillingAPI)
	var got polar.CheckoutParams
	api.On("CreateCheckout", mock.AnythingOfType("polar.CheckoutParams")).
		Run(func(args mock.Arguments) {
			got = args.Get(0).(polar.CheckoutParams)
		}).
		Return(&polar.Checkout{ID: "co_1", URL: "https://sandbox.polar.sh/checkout/co_1", Status: "open"}, nil)
	app := newTestApp(NewCheckoutController(testConfig(), api).CreateCheckout, testClaims())

	res := postCheckout(t, app, `{"productId":"prod_1","metadata":{"source":"landing"}}`)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "https://sandbox.polar.sh/checkout/co_1", decodeBody(t, res)["url"])

	assert.Equal(t, []string{"prod_1"}, got.Products)
	assert.Equal(t, testUserID, got.CustomerExternalID)
	assert.Equal(t, "user@example.com", got.CustomerEmail)
	assert.Equal(t, "https://app.example.com/success", got.SuccessURL)
	assert.Equal(t, "https://app.example.com/cancel", got.CancelURL)
	assert.True(t, got.AllowDiscountCodes)
	assert.Equal(t, "landing", got.Metadata["source"])
	assert.Equal(t, testUserID, got.Metadata["supabaseUserId"])
}

func TestCheckout_CallerCannotOverrideIdentityMetadata(t *testing.T) {
	api := new(mockBillingAPI)
	var got polar.CheckoutParams
	api.On("CreateCheckout", mock.AnythingOfType("polar.CheckoutParams")).
		Run(func(args mock.Arguments) {
			got = args.Get(0).(polar.CheckoutParams)
		}).
		Return(&polar.Checkout{URL: "https://x"}, nil)
	app := newTestApp(NewCheckoutController(testConfig(), api).CreateCheckout, testClaims())

	res := postCheckout(t, app, `{"productId":"prod_1","metadata":{"supabaseUserId":"someone-else"}}`)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, testUserID, got.Metadata["supabaseUserId"])
}

func TestCheckout_DefaultProductFallback(t *testing.T) {
	api := new(mockBillingAPI)
	var got polar.CheckoutParams
	api.On("CreateCheckout", mock.AnythingOfType("polar.CheckoutParams")).
		Run(func(args mock.Arguments) {
			got = args.Get(0).(polar.CheckoutParams)
		}).
		Return(&polar.Checkout{URL: "https://x"}, nil)
	cfg := testConfig()
	cfg.Polar.DefaultProductID = "prod_default"
	app := newTestApp(NewCheckoutController(cfg, api).CreateCheckout, testClaims())

	res := postCheckout(t, app, `{}`)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, []string{"prod_default"}, got.Products)
}

func TestCheckout_MissingProductID(t *testing.T) {
	api := new(mockBillingAPI)
	app := newTestApp(NewCheckoutController(testConfig(), api).CreateCheckout, testClaims())

	res := postCheckout(t, app, `{}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "Missing productId", decodeBody(t, res)["error"])
	api.AssertNotCalled(t, "CreateCheckout", mock.Anything)
}

func TestCheckout_MissingAccessToken(t *testing.T) {
	api := new(mockBillingAPI)
	cfg := testConfig()
	cfg.Polar.AccessToken = ""
	app := newTestApp(NewCheckoutController(cfg, api).CreateCheckout, testClaims())

	res := postCheckout(t, app, `{"productId":"prod_1"}`)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Equal(t, "Missing POLAR_ACCESS_TOKEN", decodeBody(t, res)["error"])
}

func TestCheckout_Unauthenticated(t *testing.T) {
	api := new(mockBillingAPI)
	app := newTestApp(NewCheckoutController(testConfig(), api).CreateCheckout, nil)

	res := postCheckout(t, app, `{"productId":"prod_1"}`)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	api.AssertNotCalled(t, "CreateCheckout", mock.Anything)
}

func TestCheckout_UpstreamErrorPassthrough(t *testing.T) {
	api := new(mockBillingAPI)
	api.On("CreateCheckout", mock.AnythingOfType("polar.CheckoutParams")).
		Return(nil, &polar.APIError{Status: 422, Body: `{"detail":"invalid product"}`})
	app := newTestApp(NewCheckoutController(testConfig(), api).CreateCheckout, testClaims())

	res := postCheckout(t, app, `{"productId":"prod_bad"}`)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	body := decodeBody(t, res)
	assert.Equal(t, "polar_error", body["error"])
	assert.Equal(t, float64(422), body["status"])
	assert.Contains(t, body["body"], "invalid product")
}
