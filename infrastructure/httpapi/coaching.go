package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/clarvoy/clarvoy/internal/application"
)

func (s *Server) coachingProviders(c echo.Context) error {
	return c.JSON(http.StatusOK, s.services.Coaching.Providers())
}

// coachingChat answers as server-sent events: one content frame followed
// by a done frame. Failures before the stream opens are plain JSON errors.
func (s *Server) coachingChat(c echo.Context) error {
	var req application.ChatRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	reply, err := s.services.Coaching.Chat(c.Request().Context(), req)
	if err != nil {
		return httpError(err, MsgDecisionNotFound)
	}

	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	frames := []map[string]any{
		{"content": reply.Content},
		{"done": true},
	}
	for _, frame := range frames {
		if err := writeEvent(c, frame); err != nil {
			s.logger.Warn("coaching stream write failed", zap.Error(err))
			return nil
		}
	}
	return nil
}

func writeEvent(c echo.Context, frame map[string]any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Response(), "data: %s\n\n", data); err != nil {
		return err
	}
	c.Response().Flush()
	return nil
}
