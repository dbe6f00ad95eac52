package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"polarsync_backend/internal/middleware"
)

type AuthController struct{}

func NewAuthController() *AuthController {
	return &AuthController{}
}

type refreshInput struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshSession propagates browser-held Supabase session tokens into
// server-side cookies. Both tokens present establishes the session; either
// one missing clears it (sign-out). The response is {ok:true} in every case,
// the endpoint has nothing useful to report beyond having applied the state.
func (ac *AuthController) RefreshSession(c *fiber.Ctx) error {
	input := new(refreshInput)
	_ = c.BodyParser(input)

	if input.AccessToken == "" || input.RefreshToken == "" {
		clearSessionCookie(c, middleware.AccessTokenCookie)
		clearSessionCookie(c, middleware.RefreshTokenCookie)
		return c.JSON(fiber.Map{"ok": true})
	}

	setSessionCookie(c, middleware.AccessTokenCookie, input.AccessToken, time.Hour)
	setSessionCookie(c, middleware.RefreshTokenCookie, input.RefreshToken, 30*24*time.Hour)
	return c.JSON(fiber.Map{"ok": true})
}

func setSessionCookie(c *fiber.Ctx, name, value string, maxAge time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func clearSessionCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
