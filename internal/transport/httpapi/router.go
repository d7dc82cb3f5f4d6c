package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Leganyst/studio-booking/internal/auth"
)

const principalKey = "principal"

// NewRouter собирает gin-движок со всеми маршрутами.
func NewRouter(h *Handler, authn *auth.Authenticator, log *logrus.Entry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	admin := RequireAdmin(authn)

	api := r.Group("/api")
	{
		api.GET("/rooms", h.ListRooms)

		api.POST("/booking", h.CreateBooking)
		api.GET("/booking", h.ListBookings)
		api.GET("/booking/search", admin, h.SearchBookings)
		api.GET("/booking/:id", h.GetBookingDetails)
		api.POST("/booking/:id/cancel", admin, h.CancelBooking)
		api.DELETE("/booking/:id", admin, h.DeleteBooking)
		api.DELETE("/booking", admin, h.DeleteAllBookings)

		api.PUT("/payment", h.ProcessPayment)
		api.GET("/payment", h.ListPayments)
		api.GET("/payment/receipt/:paymentId", h.DownloadReceipt)
		api.DELETE("/payment/delete-all", admin, h.DeleteAllPayments)
		api.DELETE("/payment/:id", admin, h.DeletePayment)

		api.POST("/admin/sweep", admin, h.Sweep)
	}
	return r
}

// RequireAdmin пропускает только запросы с действующим токеном администратора.
func RequireAdmin(authn *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing bearer token"})
			return
		}
		p, err := authn.RequireAdmin(token)
		if err != nil {
			code := http.StatusUnauthorized
			if errors.Is(err, auth.ErrForbidden) || errors.Is(err, auth.ErrInactive) {
				code = http.StatusForbidden
			}
			c.AbortWithStatusJSON(code, gin.H{"message": err.Error()})
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

func requestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}
		if v, ok := c.Get(principalKey); ok {
			if p, ok := v.(*auth.Principal); ok {
				fields["principal"] = p.ID
			}
		}
		log.WithFields(fields).Debug("http request")
	}
}
