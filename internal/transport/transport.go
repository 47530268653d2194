package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"
	"github.com/ds124wfegd/interpreter-booking/internal/transport/middleware"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HealthCheck reports whether one backing service is reachable.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	Timeout time.Duration
	Checks  map[string]HealthCheck
	Logger  logrus.FieldLogger
	// Outbox включает админские маршруты очереди писем
	Outbox  Outbox
}

func InitRoutes(bookingHandler *BookingHandler, users middleware.UserLookup, cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Timeout(cfg.Timeout))

	admins := middleware.RequireRole(entity.RoleAdmin, entity.RoleSuperAdmin)

	// API routes
	api := router.Group("/api/v1", middleware.Actor(users))
	{
		bookings := api.Group("/bookings")
		{
			bookings.POST("", middleware.RequireRole(entity.RoleCustomer), bookingHandler.CreateBooking)
			bookings.GET("/:id", bookingHandler.GetBooking)
			bookings.POST("/:id/contact", middleware.RequireRole(entity.RoleCustomer), bookingHandler.SubmitContact)
			bookings.POST("/:id/accept", middleware.RequireRole(entity.RoleTranslator), bookingHandler.AcceptBooking)
			bookings.POST("/:id/cancel", bookingHandler.CancelBooking)
			bookings.POST("/:id/end", bookingHandler.EndSession)

			// Admin routes
			bookings.PUT("/:id", admins, bookingHandler.UpdateBooking)
			bookings.POST("/:id/no-show", admins, bookingHandler.CustomerNoShow)
			bookings.POST("/:id/reopen", admins, bookingHandler.ReopenBooking)
			bookings.POST("/:id/resend-push", admins, bookingHandler.ResendPush)
			bookings.POST("/:id/resend-sms", admins, bookingHandler.ResendSMS)
			bookings.POST("/:id/distance", admins, bookingHandler.UpdateDistanceFeed)
			bookings.POST("/:id/ignore-expiring", admins, bookingHandler.IgnoreExpiring)
			bookings.POST("/:id/ignore-expired", admins, bookingHandler.IgnoreExpired)
			bookings.GET("/:id/interpreters", admins, bookingHandler.PotentialInterpreters)
		}

		api.GET("/users/:id/bookings", bookingHandler.GetUserBookings)
		api.GET("/interpreters/:id/bookings", bookingHandler.PotentialBookings)

		if cfg.Outbox != nil {
			outboxHandler := NewOutboxHandler(cfg.Outbox, logger)
			outbox := api.Group("/outbox", admins)
			{
				outbox.GET("/stats", outboxHandler.Stats)
				outbox.GET("/failed", outboxHandler.FailedTasks)
				outbox.POST("/failed/:task_id/requeue", outboxHandler.Requeue)
			}
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		checks := gin.H{}
		for name, check := range cfg.Checks {
			if err := check(c.Request.Context()); err != nil {
				status = http.StatusServiceUnavailable
				checks[name] = err.Error()
				continue
			}
			checks[name] = "ok"
		}

		c.JSON(status, gin.H{
			"status":    http.StatusText(status),
			"checks":    checks,
			"timestamp": time.Now().UTC(),
		})
	})

	return router
}
