package cmd

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/motorlane/ms-go-entitlements/app/controller"
	"github.com/motorlane/ms-go-entitlements/app/notification"
	"github.com/motorlane/ms-go-entitlements/app/repository"
	"github.com/motorlane/ms-go-entitlements/app/service"
	"github.com/motorlane/ms-go-entitlements/config"

	_ "github.com/go-sql-driver/mysql"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP (Echo) server for the entitlements service.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := openDatabase(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	subscriptionRepo := repository.NewSubscriptionRepository(db)
	planRepo := repository.NewPlanRepository(db)
	notifier := notification.NewAsyncTrigger(notification.NewLogTrigger())

	quotaService := service.NewQuotaService(subscriptionRepo, planRepo, notifier, cfg.Entitlements)
	visibilityService := service.NewVisibilityService(subscriptionRepo, planRepo, cfg.Entitlements)
	lifecycleService := service.NewLifecycleService(subscriptionRepo, planRepo, notifier, cfg.Entitlements)

	entitlementController := controller.NewEntitlementController(quotaService, visibilityService, cfg.Entitlements)
	adminController := controller.NewAdminController(lifecycleService, cfg.Entitlements)

	e := setupHTTPServer(entitlementController, adminController, cfg.App.APIKey)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func setupHTTPServer(
	entitlementController *controller.EntitlementController,
	adminController *controller.AdminController,
	apiKey string,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: func() string {
			return fmt.Sprintf("rest-%s", uuid.New().String())
		},
	}))
	e.Use(requireAPIKey(apiKey))

	e.GET("/health", entitlementController.Health)
	e.GET("/plans", entitlementController.ListPlans)

	entitlements := e.Group("/entitlements")
	entitlements.GET("/:user_id/browse", entitlementController.CheckBrowse)
	entitlements.POST("/:user_id/browse/consume", entitlementController.ConsumeBrowse)
	entitlements.GET("/:user_id/listing", entitlementController.CheckListing)
	entitlements.POST("/:user_id/listing/consume", entitlementController.ConsumeListing)
	entitlements.GET("/:user_id/job-post", entitlementController.CheckJobPost)
	entitlements.POST("/:user_id/job-post/consume", entitlementController.ConsumeJobPost)

	e.POST("/visibility/check", entitlementController.CheckVisibility)

	subscriptions := e.Group("/subscriptions")
	subscriptions.POST("", adminController.AssignSubscription)
	subscriptions.GET("", adminController.GetSubscriptionByUser)
	subscriptions.GET("/:id", adminController.GetSubscription)
	subscriptions.POST("/:id/extend", adminController.ExtendSubscription)
	subscriptions.POST("/:id/suspend", adminController.SuspendSubscription)
	subscriptions.POST("/:id/reactivate", adminController.ReactivateSubscription)
	subscriptions.POST("/:id/change-plan", adminController.ChangePlan)
	subscriptions.POST("/:id/cancel", adminController.CancelSubscription)
	subscriptions.POST("/:id/reset-browse", adminController.ResetBrowseCount)

	return e
}

// requireAPIKey gates internal callers on the X-API-Key header. An empty
// configured key disables the check (local development).
func requireAPIKey(apiKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if apiKey == "" || ctx.Path() == "/health" {
				return next(ctx)
			}
			provided := ctx.Request().Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid api key")
			}
			return next(ctx)
		}
	}
}
