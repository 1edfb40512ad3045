package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/HSouheill/partner_marketplace/config"
	"github.com/HSouheill/partner_marketplace/controllers"
	"github.com/HSouheill/partner_marketplace/logger"
	"github.com/HSouheill/partner_marketplace/middleware"
	"github.com/HSouheill/partner_marketplace/mq"
	"github.com/HSouheill/partner_marketplace/obs"
	"github.com/HSouheill/partner_marketplace/repositories"
	"github.com/HSouheill/partner_marketplace/routes"
	"github.com/HSouheill/partner_marketplace/services"
	"github.com/HSouheill/partner_marketplace/utils"
	"github.com/HSouheill/partner_marketplace/websocket"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	if cfg.OTLPEndpoint != "" {
		shutdown, err := obs.InitTracer(ctx, "partner-marketplace", cfg.OTLPEndpoint, cfg.Env)
		if err != nil {
			logger.Log.WithError(err).Warn("Tracing disabled")
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(sctx)
			}()
		}
	}

	// Connect to database
	client, err := config.ConnectDB(cfg)
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(dctx)
	}()
	db := client.Database(cfg.DBName)
	if err := config.SetupCollections(ctx, db); err != nil {
		return err
	}
	store := repositories.NewMongo(db)

	// Booking locks are shared across instances when Redis is reachable
	var locker services.Locker = services.NewLocalLocker()
	if rdb := config.ConnectRedis(cfg); rdb != nil {
		defer rdb.Close()
		locker = services.NewRedisLocker(rdb)
	}

	// Create WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	opts := []services.FanoutOption{
		services.WithPusher(wsHub),
		services.WithMailer(utils.NewMailer(cfg)),
	}
	fcm, err := config.InitMessaging(ctx, cfg)
	if err != nil {
		logger.Log.WithError(err).Warn("Push notifications disabled")
	}
	if fcm != nil {
		opts = append(opts, services.WithFCM(fcm))
	}
	if cfg.RabbitURL != "" {
		publisher, err := mq.NewPublisher(cfg.RabbitURL, cfg.NotifyExchange)
		if err != nil {
			logger.Log.WithError(err).Warn("Notification events will not be published")
		} else {
			defer publisher.Close()
			opts = append(opts, services.WithPublisher(publisher))
		}
	}
	notifier := services.NewFanoutNotifier(store.Notifications, store.Users, opts...)
	defer notifier.Wait()

	commission, err := services.NewCommissionEngine(cfg.CommissionPremiumRate, cfg.CommissionStandardRate)
	if err != nil {
		return err
	}
	gateway := services.NewRazorpayService(cfg)

	earnings := services.NewEarningsService(store.Earnings, store.Partners, store.Bookings)
	refunds := services.NewRefundService(store.Bookings, gateway, earnings)
	bookings := services.NewBookingService(store.Bookings, store.Partners, store.Users, refunds, locker, notifier)
	payments := services.NewPaymentService(store.Bookings, store.Partners, store.Users, gateway, commission, earnings, locker, notifier, cfg.Currency)
	withdrawals := services.NewWithdrawalService(store.Withdrawals, store.Earnings, store.Partners, notifier)
	wallets := services.NewWalletService(store.Wallets, store.Users, notifier)
	accounts := services.NewAccountService(store.Users, store.Partners, store.Bookings, store.Notifications, store.Reports)

	// Create a new Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = controllers.NewValidator()

	rateLimiter := middleware.NewRateLimiter()

	// Middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.GlobalCORS(cfg.CORSAllowedOrigins))
	e.Use(echoMiddleware.Secure())
	e.Use(rateLimiter.RateLimit())

	routes.SetupRoutes(e, cfg.JWTSecret, routes.Controllers{
		Bookings:      controllers.NewBookingController(bookings),
		Payments:      controllers.NewPaymentController(payments),
		Earnings:      controllers.NewEarningsController(earnings, withdrawals),
		Admin:         controllers.NewAdminController(accounts, withdrawals),
		Wallet:        controllers.NewWalletController(wallets),
		Users:         controllers.NewUserController(accounts),
		Notifications: controllers.NewNotificationController(wsHub, cfg.JWTSecret),
	})

	if !gateway.Enabled() {
		logger.Log.Warn("Razorpay credentials missing, payment endpoints will return 503")
	} else if cfg.RazorpayWebhookSecret == "" {
		logger.Log.Warn("RAZORPAY_WEBHOOK_SECRET not set, webhook deliveries will be rejected")
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Infof("Listening on :%s", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Log.Info("Shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(sctx)
}
