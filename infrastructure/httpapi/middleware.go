package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	metrics "github.com/clarvoy/clarvoy/infrastructure/middleware"
	"github.com/clarvoy/clarvoy/internal/logging"
)

// HeaderUserID carries the authenticated principal, set by the proxy in
// front of the service.
const HeaderUserID = "X-User-ID"

const userIDKey = "clarvoy.user_id"

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		fields := []zap.Field{
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		}
		if userID := userFrom(c); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}
		s.logger.Info("http request", fields...)
		return nil
	}
}

func (s *Server) requestMetrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		labels := map[string]string{
			"method": c.Request().Method,
			"route":  route,
			"status": strconv.Itoa(c.Response().Status),
		}
		s.metrics.RecordCounter(metrics.MetricHTTPRequests, 1, labels)
		s.metrics.RecordLatency(metrics.MetricHTTPDuration, time.Since(start), labels)
		return nil
	}
}

// requireUser rejects requests without a principal and records it on the
// request context.
func requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := strings.TrimSpace(c.Request().Header.Get(HeaderUserID))
		if userID == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		}
		c.Set(userIDKey, userID)
		req := c.Request()
		c.SetRequest(req.WithContext(logging.WithUserID(req.Context(), userID)))
		return next(c)
	}
}

func userFrom(c echo.Context) string {
	userID, _ := c.Get(userIDKey).(string)
	return userID
}
