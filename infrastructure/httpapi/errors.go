package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/clarvoy/clarvoy/internal/domain"
	"github.com/clarvoy/clarvoy/internal/logging"
)

// User-facing error messages.
const (
	MsgUnauthorized        = "Unauthorized"
	MsgDecisionNotFound    = "Decision not found"
	MsgAttachmentNotFound  = "Attachment not found"
	MsgInvalidID           = "Invalid ID"
	MsgInvalidBody         = "Invalid request body"
	MsgDuplicateJudgment   = "You have already submitted a judgment for this decision."
	MsgDecisionClosed      = "This decision is no longer accepting judgments."
	MsgUnsupportedFileType = "Unsupported file type"
	MsgFileTooLarge        = "File too large. Maximum 10MB."
	MsgCoachingUnavailable = "AI coaching temporarily unavailable"
	MsgInternal            = "Internal server error"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Message string `json:"message"`
}

// httpError maps a service error to a status and message. notFound is the
// message used for domain.ErrNotFound.
func httpError(err error, notFound string) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, verr.Message()).SetInternal(err)
	case errors.Is(err, domain.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, notFound).SetInternal(err)
	case errors.Is(err, domain.ErrDuplicateJudgment):
		return echo.NewHTTPError(http.StatusBadRequest, MsgDuplicateJudgment).SetInternal(err)
	case errors.Is(err, domain.ErrDecisionClosed):
		return echo.NewHTTPError(http.StatusConflict, MsgDecisionClosed).SetInternal(err)
	case errors.Is(err, domain.ErrUnsupportedFileType):
		return echo.NewHTTPError(http.StatusBadRequest, MsgUnsupportedFileType).SetInternal(err)
	case errors.Is(err, domain.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusBadRequest, MsgFileTooLarge).SetInternal(err)
	case errors.Is(err, domain.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, MsgUnauthorized).SetInternal(err)
	case errors.Is(err, domain.ErrProviderUnavailable):
		return echo.NewHTTPError(http.StatusInternalServerError, MsgCoachingUnavailable).SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, MsgInternal).SetInternal(err)
	}
}

// handleError writes every failure as {"message": ...}.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he := httpError(err, "Not found")

	msg, ok := he.Message.(string)
	if !ok {
		msg = http.StatusText(he.Code)
	}
	if he.Code >= http.StatusInternalServerError {
		cause := err
		if he.Internal != nil {
			cause = he.Internal
		}
		logging.FromContext(c.Request().Context(), s.logger).Error("request failed",
			zap.String("path", c.Path()),
			zap.Error(cause),
		)
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(he.Code)
	} else {
		werr = c.JSON(he.Code, ErrorResponse{Message: msg})
	}
	if werr != nil {
		s.logger.Warn("write error response", zap.Error(werr))
	}
}
