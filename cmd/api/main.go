package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"polarsync_backend/internal/controller"
	"polarsync_backend/internal/middleware"
	"polarsync_backend/internal/model"
	"polarsync_backend/internal/store"
	"polarsync_backend/pkg/config"
	"polarsync_backend/pkg/database"
	"polarsync_backend/pkg/polar"
)

func setupRoutes(
	app *fiber.App,
	cfg *config.Config,
	authController *controller.AuthController,
	checkoutController *controller.CheckoutController,
	subscriptionController *controller.SubscriptionController,
	webhookController *controller.WebhookController,
) {
	api := app.Group("/api")

	// Session token propagation (no auth required, it establishes it)
	api.Post("/auth/refresh", authController.RefreshSession)

	// Polar webhook; authenticated by signature, not session
	api.Post("/polar-webhook", webhookController.HandlePolarWebhook)

	// Authenticated billing actions
	api.Post("/checkout", middleware.AuthMiddleware(cfg), checkoutController.CreateCheckout)

	subscriptions := api.Group("/subscriptions", middleware.AuthMiddleware(cfg))
	subscriptions.Post("/cancel", subscriptionController.CancelSubscription)
	subscriptions.Get("/my", subscriptionController.GetMySubscription)
}

func main() {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is not set in .env")
	}

	database.InitDB(cfg.Database.URL)
	if err := database.MigrateDatabase(&model.BillingSubscription{}); err != nil {
		log.Printf("Migration warning: %v", err)
	}

	subscriptionStore := store.NewSubscriptionStore(database.GetDB())
	polarClient := polar.NewClient(cfg.Polar.AccessToken, cfg.Polar.Server)

	authController := controller.NewAuthController()
	checkoutController := controller.NewCheckoutController(cfg, polarClient)
	subscriptionController := controller.NewSubscriptionController(cfg, subscriptionStore, polarClient)
	webhookController := controller.NewWebhookController(cfg, subscriptionStore)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New())

	setupRoutes(app, cfg, authController, checkoutController, subscriptionController, webhookController)

	log.Printf("Server is running on port %s", cfg.Server.Port)
	log.Fatal(app.Listen(":" + cfg.Server.Port))
}
