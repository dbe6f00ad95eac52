package controller

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"polarsync_backend/pkg/config"
	"polarsync_backend/pkg/polar"
	"polarsync_backend/pkg/utils/jwt"
)

type CheckoutInput struct {
	ProductID string            `json:"productId" validate:"required"`
	Metadata  map[string]string `json:"metadata"`
}

type CheckoutController struct {
	cfg      *config.Config
	api      BillingAPI
	validate *validator.Validate
}

func NewCheckoutController(cfg *config.Config, api BillingAPI) *CheckoutController {
	return &CheckoutController{cfg: cfg, api: api, validate: validator.New()}
}

// CreateCheckout opens a hosted checkout for the authenticated user and
// returns the redirect URL. The user id is embedded both as the customer
// external id and inside checkout metadata, so the webhook normalizer can
// resolve it by either path later.
func (cc *CheckoutController) CreateCheckout(c *fiber.Ctx) error {
	if cc.cfg.Polar.AccessToken == "" {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Missing POLAR_ACCESS_TOKEN",
		})
	}

	input := new(CheckoutInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}
	if input.ProductID == "" {
		input.ProductID = cc.cfg.Polar.DefaultProductID
	}
	if err := cc.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing productId",
		})
	}

	claims, ok := c.Locals("user").(*jwt.Claims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}

	// Caller metadata rides along, but the identity key stays authoritative:
	// the normalizer's metadata fallback depends on it.
	metadata := make(map[string]string, len(input.Metadata)+1)
	for k, v := range input.Metadata {
		metadata[k] = v
	}
	metadata["supabaseUserId"] = claims.UserID()

	checkout, err := cc.api.CreateCheckout(polar.CheckoutParams{
		Products:           []string{input.ProductID},
		CustomerExternalID: claims.UserID(),
		CustomerEmail:      claims.Email,
		SuccessURL:         cc.cfg.App.PublicURL + "/success",
		CancelURL:          cc.cfg.App.PublicURL + "/cancel",
		AllowDiscountCodes: true,
		Metadata:           metadata,
	})
	if err != nil {
		// 401/403 usually means a wrong token or sandbox/production
		// mismatch, 422 an invalid product id; pass the body through so the
		// operator can tell.
		var apiErr *polar.APIError
		if errors.As(err, &apiErr) {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":  "polar_error",
				"status": apiErr.Status,
				"body":   apiErr.Body,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create checkout session",
		})
	}

	return c.JSON(fiber.Map{
		"url": checkout.URL,
	})
}
