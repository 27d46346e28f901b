package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quote-booking/config"
	"quote-booking/internal/audit"
	"quote-booking/internal/handlers"
	"quote-booking/internal/notify"
	"quote-booking/internal/services"
	"quote-booking/internal/services/gateway"
	"quote-booking/internal/store"
	"quote-booking/monitoring"
	"quote-booking/security"
	"quote-booking/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis
	redisClient, err := utils.NewRedisClient(ctx, utils.RedisOptions{
		URL:      cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// Payment gateway
	registry := gateway.NewRegistry(gateway.NewFactory())
	if err := registry.Register(ctx, gateway.Provider(cfg.GatewayProvider()), &cfg.PayFast); err != nil {
		return fmt.Errorf("register gateway: %w", err)
	}
	gw, err := registry.Primary()
	if err != nil {
		return err
	}
	slog.Info("payment gateway ready", "provider", gw.GetProvider())

	// Notifications
	notifier, closeNotifier := newNotifier(cfg)
	defer closeNotifier()

	// Initialize services
	recorder := audit.NewRecorder(app)
	redisStore := store.NewRedisStore(redisClient)
	sessions := store.NewSessionStore(redisClient, cfg.SessionTTL)
	bookingService := services.NewBookingService(redisStore, gw, sessions, recorder, notifier)
	quoteService := services.NewQuoteService(redisStore, recorder)
	interceptor := services.NewInterceptor(bookingService, sessions)

	// Initialize handlers
	quoteHandler := handlers.NewQuoteHandler(quoteService, recorder)
	paymentHandler := handlers.NewPaymentHandler(bookingService, quoteService, sessions, interceptor, gw, cfg.ValidateNotifications)
	adminHandler := handlers.NewAdminHandler(bookingService)
	limiter := security.NewRateLimiter(redisClient, cfg.RateLimitRequests, cfg.RateLimitWindow)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})
	app.RootCmd.AddCommand(newReconcileCmd(bookingService))

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Start background tasks
		go runReconciler(ctx, bookingService, cfg.ReconcileInterval)
		go monitoring.NewMonitor(redisClient).Run(ctx, cfg.MonitorInterval)
		if cfg.EnableMetrics {
			go serveMetrics(cfg.MetricsPort)
		}

		api := e.Router.Group("/api/v1")
		api.BindFunc(limiter.AntiBot())

		// Quote endpoints
		api.POST("/quotes", quoteHandler.CreateQuoteRequest)
		api.GET("/quotes/{quoteId}", quoteHandler.GetQuote)
		api.GET("/quotes/{quoteId}/revisions", quoteHandler.ListRevisions)
		api.GET("/quotes/{quoteId}/history", quoteHandler.GetHistory)
		api.POST("/quotes/{quoteId}/revisions", quoteHandler.CreateRevision)
		api.POST("/quotes/{quoteId}/revisions/{number}/send", quoteHandler.SendDraft)
		api.POST("/quotes/{quoteId}/reject", quoteHandler.RejectQuote)
		api.POST("/quotes/{quoteId}/approve-amendment", quoteHandler.ApproveAmendment)
		api.POST("/quotes/{quoteId}/finalise", quoteHandler.FinaliseQuote)
		api.POST("/quotes/{quoteId}/tour", quoteHandler.RequestTour)
		api.POST("/quotes/{quoteId}/reopen", quoteHandler.ReopenTour)

		// Payment endpoints
		api.POST("/quotes/{quoteId}/accept", paymentHandler.AcceptQuote).BindFunc(limiter.Limit("accept"))
		api.POST("/quotes/{quoteId}/payment", paymentHandler.InitiatePayment).BindFunc(limiter.Limit("payment"))
		api.POST("/payment/sessions/{sessionId}/navigation", paymentHandler.ObserveNavigation)
		api.POST("/payment/deposits/{depositId}/cancel", paymentHandler.CancelPayment)
		api.POST("/payment/notify", paymentHandler.Notify)

		// Gateway landing pages
		e.Router.GET("/payment/return", paymentHandler.PaymentReturn)
		e.Router.GET("/payment/cancel", paymentHandler.PaymentCancel)

		// Admin endpoints
		api.POST("/admin/reconcile", adminHandler.Reconcile)
		api.GET("/admin/deposits/{depositId}", adminHandler.GetDeposit)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(e.Request.Context(), redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	return app.Start()
}

// newNotifier fans booking events out to every configured channel.
func newNotifier(cfg *config.Config) (services.Notifier, func()) {
	var fanout notify.Multi
	closeFn := func() {}

	if cfg.PubNub.PublishKey != "" {
		pn, err := notify.NewPubNub(&cfg.PubNub)
		if err != nil {
			slog.Error("pubnub disabled", "error", err)
		} else {
			fanout = append(fanout, pn)
		}
	}

	if cfg.AMQPURL != "" {
		publisher := notify.NewAMQPPublisher(cfg.AMQPURL)
		fanout = append(fanout, publisher)
		closeFn = func() { _ = publisher.Close() }
	}

	if len(fanout) == 0 {
		slog.Warn("no booking event channels configured")
		return notify.Nop{}, closeFn
	}
	return fanout, closeFn
}

func newReconcileCmd(booking *services.BookingService) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Book the quotes of paid deposits that are still waiting for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := booking.Reconcile(cmd.Context())
			if err != nil {
				return err
			}

			out, _ := json.MarshalIndent(report, "", "  ")
			cmd.Println(string(out))

			if len(report.Failed) > 0 {
				return fmt.Errorf("%d deposit(s) still unsettled", len(report.Failed))
			}
			return nil
		},
	}
}

// runReconciler settles stuck deposits until ctx is done.
func runReconciler(ctx context.Context, booking *services.BookingService, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := booking.Reconcile(ctx)
			if err != nil {
				slog.Error("reconcile", "error", err)
				continue
			}
			if report.Checked > 0 {
				slog.Info("reconcile pass", "checked", report.Checked, "settled", report.Settled, "failed", report.Failed)
			}
		}
	}
}

func serveMetrics(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("Metrics listening on :%s", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics server", "error", err)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
