// Package polar is a minimal client for the Polar Core API, covering the
// handful of endpoints this backend needs: hosted checkouts, subscription
// lookup, customer sessions and customer-portal cancellation.
package polar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	SandboxBaseURL    = "https://sandbox-api.polar.sh"
	ProductionBaseURL = "https://api.polar.sh"
)

// APIError carries the upstream status and raw body so callers can surface
// them for diagnosis instead of a generic failure.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("polar: upstream returned %d: %s", e.Status, e.Body)
}

type Client struct {
	baseURL     string
	accessToken string
	http        *http.Client
}

// NewClient selects the API host from the environment selector: anything
// other than "production" talks to the sandbox.
func NewClient(accessToken, server string) *Client {
	baseURL := SandboxBaseURL
	if server == "production" {
		baseURL = ProductionBaseURL
	}
	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		http:        http.DefaultClient,
	}
}

// NewClientWithBaseURL is used by tests to point the client at a stub server.
func NewClientWithBaseURL(accessToken, baseURL string) *Client {
	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		http:        http.DefaultClient,
	}
}

type CheckoutParams struct {
	Products           []string          `json:"products"`
	CustomerExternalID string            `json:"customer_external_id"`
	CustomerEmail      string            `json:"customer_email,omitempty"`
	SuccessURL         string            `json:"success_url"`
	CancelURL          string            `json:"cancel_url"`
	AllowDiscountCodes bool              `json:"allow_discount_codes"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

type Checkout struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

// Subscription is the slice of the provider's subscription resource this
// backend reads. Polar responds in snake_case but the camelCase spelling has
// been observed through SDK-shaped proxies, so both are decoded.
type Subscription struct {
	ID              string `json:"id"`
	CustomerIDSnake string `json:"customer_id"`
	CustomerIDCamel string `json:"customerId"`
}

func (s *Subscription) CustomerID() string {
	if s.CustomerIDSnake != "" {
		return s.CustomerIDSnake
	}
	return s.CustomerIDCamel
}

// CustomerSession holds the short-lived portal token scoped to one customer.
type CustomerSession struct {
	Token string `json:"token"`
}

type PortalCancellation struct {
	ID               string     `json:"id"`
	Status           string     `json:"status"`
	CurrentPeriodEnd *time.Time `json:"current_period_end"`
}

// CreateCheckout opens a hosted checkout session and returns its redirect URL.
func (c *Client) CreateCheckout(params CheckoutParams) (*Checkout, error) {
	var checkout Checkout
	if err := c.do(http.MethodPost, "/v1/checkouts", c.accessToken, params, &checkout); err != nil {
		return nil, err
	}
	return &checkout, nil
}

// GetSubscription fetches the provider's subscription resource by id.
func (c *Client) GetSubscription(id string) (*Subscription, error) {
	var sub Subscription
	if err := c.do(http.MethodGet, "/v1/subscriptions/"+id, c.accessToken, nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreateCustomerSession opens a customer-scoped session and returns its
// portal token.
func (c *Client) CreateCustomerSession(customerID string) (*CustomerSession, error) {
	body := map[string]string{"customer_id": customerID}
	var session CustomerSession
	if err := c.do(http.MethodPost, "/v1/customer-sessions/", c.accessToken, body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CancelSubscription requests cancellation through the customer portal,
// authorized by the portal token rather than the organization access token.
func (c *Client) CancelSubscription(subscriptionID, portalToken string) (*PortalCancellation, error) {
	var cancellation PortalCancellation
	if err := c.do(http.MethodDelete, "/v1/customer-portal/subscriptions/"+subscriptionID, portalToken, nil, &cancellation); err != nil {
		return nil, err
	}
	return &cancellation, nil
}

func (c *Client) do(method, path, token string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("polar: could not encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("polar: could not build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("polar: request failed: %w", err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &APIError{Status: res.StatusCode, Body: string(raw)}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("polar: could not decode response: %w", err)
		}
	}
	return nil
}
