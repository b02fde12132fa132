package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/service/catalog"
	"github.com/Domenick1991/tourbooking/internal/service/lifecycle"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Services struct {
	Lifecycle     lifecycle.UseCase
	Catalog       catalog.CatalogUseCase
	Actors        ActorResolver
	WebhookSecret string
	Log           logrus.FieldLogger
}

// NewRouter builds the HTTP surface. Routes are grouped by the role that may
// call them; the role check happens before any handler runs.
func NewRouter(s Services) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), accessLog(s.Log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	packages := NewPackageHandler(s.Lifecycle, s.Catalog)
	bookings := NewBookingHandler(s.Lifecycle)
	payments := NewPaymentHandler(s.Lifecycle, s.WebhookSecret, s.Log)

	v1 := router.Group("/api/v1")
	packages.RegisterPublic(v1)
	payments.RegisterGateway(v1.Group("/gateway"))

	authed := v1.Group("", requireActor(s.Actors))
	bookings.RegisterShared(authed)
	payments.RegisterShared(authed)

	customer := authed.Group("/customer", requireRole(domain.RoleCustomer))
	bookings.RegisterCustomer(customer)
	payments.RegisterCustomer(customer)

	agent := authed.Group("/agent", requireRole(domain.RoleAgent))
	packages.RegisterAgent(agent)
	bookings.RegisterAgent(agent)

	admin := authed.Group("/admin", requireRole(domain.RoleAdmin))
	packages.RegisterAdmin(admin)
	bookings.RegisterAdmin(admin)
	payments.RegisterAdmin(admin)

	return router
}

func accessLog(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
		if actor := actorFrom(c); actor.ID != "" {
			entry = entry.WithField("actor_id", actor.ID)
		}
		if len(c.Errors) > 0 {
			entry.WithError(c.Errors.Last()).Error("request failed")
			return
		}
		entry.Info("request handled")
	}
}
