package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/wdstore/internal/config"
	"github.com/example/wdstore/internal/database"
	"github.com/example/wdstore/internal/routes"
	"github.com/example/wdstore/internal/services"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL)
	rdb := database.ConnectRedis(cfg.RedisURL)

	bus := services.NewBus()
	site := services.SiteInfo{Name: cfg.SiteName, URL: cfg.SiteURL}

	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)
	settings := services.NewSettingsService(db, cfg.StripeSecretKey, cfg.StripePublicKey, cfg.StripeWebhookSec)
	orders := services.NewOrderService(db, bus, site, telegram)
	stripeSvc := services.NewStripeService(settings, cfg.SuccessKeySalt)

	var cartStore services.CartStore
	if rdb != nil {
		cartStore = services.NewRedisCartStore(rdb)
	} else {
		cartStore = services.NewDBCartStore(db)
	}
	cart := services.NewCartService(db, cartStore, settings)

	mailer := services.NewSMTPMailer(services.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.MailFrom,
	})
	emailer := services.NewEmailer(db, rdb, mailer, site, cfg.AdminEmail)
	emailer.Subscribe(bus)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poller := services.NewOrderPoller(db, orders)

	go emailer.RunScheduler(ctx)
	go poller.Run(ctx)

	app := fiber.New(fiber.Config{
		AppName: "WD Store Suite",
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, db, cfg, routes.Deps{
		Cart:     cart,
		Orders:   orders,
		Settings: settings,
		Stripe:   stripeSvc,
		Emailer:  emailer,
		CSV:      services.NewCatalogCSV(db),
		Poller:   poller,
	})

	go func() {
		<-ctx.Done()
		log.Println("Shutting down")
		if err := app.Shutdown(); err != nil {
			log.Printf("fiber.Shutdown error: %v", err)
		}
	}()

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}
