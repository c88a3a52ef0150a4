package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clarvoy/clarvoy/internal/domain"
)

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, MsgInvalidID)
	}
	return id, nil
}

// decisionPathID parses the id of a single-decision route, which answers a
// malformed id as not found.
func decisionPathID(c echo.Context) (int64, error) {
	id, err := pathID(c)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusNotFound, MsgInvalidID)
	}
	return id, nil
}

func bindJSON(c echo.Context, v any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, MsgInvalidBody).SetInternal(err)
	}
	return nil
}

func (s *Server) listDecisions(c echo.Context) error {
	decisions, err := s.services.Decisions.List(c.Request().Context())
	if err != nil {
		return httpError(err, MsgDecisionNotFound)
	}
	return c.JSON(http.StatusOK, decisions)
}

func (s *Server) getDecision(c echo.Context) error {
	id, err := decisionPathID(c)
	if err != nil {
		return err
	}
	d, err := s.services.Decisions.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err, MsgDecisionNotFound)
	}
	return c.JSON(http.StatusOK, d)
}

func (s *Server) createDecision(c echo.Context) error {
	var in domain.NewDecision
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	d, err := s.services.Decisions.Create(c.Request().Context(), userFrom(c), in)
	if err != nil {
		return httpError(err, MsgDecisionNotFound)
	}
	return c.JSON(http.StatusCreated, d)
}

func (s *Server) updateDecision(c echo.Context) error {
	id, err := decisionPathID(c)
	if err != nil {
		return err
	}
	var in domain.DecisionUpdate
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	d, err := s.services.Decisions.Update(c.Request().Context(), userFrom(c), id, in)
	if err != nil {
		return httpError(err, MsgDecisionNotFound)
	}
	return c.JSON(http.StatusOK, d)
}

func (s *Server) deleteDecision(c echo.Context) error {
	id, err := decisionPathID(c)
	if err != nil {
		return err
	}
	if err := s.services.Decisions.Delete(c.Request().Context(), userFrom(c), id); err != nil {
		return httpError(err, MsgDecisionNotFound)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) submitJudgment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var in domain.NewJudgment
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	j, err := s.services.Judgments.Submit(c.Request().Context(), userFrom(c), id, in)
	if err != nil {
		return httpError(err, MsgDecisionNotFound)
	}
	return c.JSON(http.StatusCreated, j)
}

func (s *Server) listJudgments(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	judgments, err := s.services.Judgments.List(c.Request().Context(), userFrom(c), id)
	if err != nil {
		return httpError(err, MsgDecisionNotFound)
	}
	return c.JSON(http.StatusOK, judgments)
}

func (s *Server) variance(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	report, err := s.services.Noise.Variance(c.Request().Context(), id)
	if err != nil {
		return httpError(err, MsgDecisionNotFound)
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) postComment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var in domain.NewComment
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	comment, err := s.services.Comments.Post(c.Request().Context(), userFrom(c), id, in)
	if err != nil {
		return httpError(err, MsgDecisionNotFound)
	}
	return c.JSON(http.StatusCreated, comment)
}

func (s *Server) listComments(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	comments, err := s.services.Comments.List(c.Request().Context(), id)
	if err != nil {
		return httpError(err, MsgDecisionNotFound)
	}
	return c.JSON(http.StatusOK, comments)
}

func (s *Server) addAttachment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var in domain.NewAttachment
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	a, err := s.services.Attachments.Add(c.Request().Context(), userFrom(c), id, in)
	if err != nil {
		return httpError(err, MsgDecisionNotFound)
	}
	return c.JSON(http.StatusCreated, a)
}

func (s *Server) listAttachments(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	attachments, err := s.services.Attachments.List(c.Request().Context(), id)
	if err != nil {
		return httpError(err, MsgDecisionNotFound)
	}
	return c.JSON(http.StatusOK, attachments)
}

func (s *Server) attachmentText(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	text, err := s.services.Attachments.Text(c.Request().Context(), id)
	if err != nil {
		return httpError(err, MsgAttachmentNotFound)
	}
	return c.JSON(http.StatusOK, text)
}

func (s *Server) deleteAttachment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := s.services.Attachments.Delete(c.Request().Context(), userFrom(c), id); err != nil {
		return httpError(err, MsgAttachmentNotFound)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) auditLogs(c echo.Context) error {
	logs, err := s.services.Audit.List(c.Request().Context())
	if err != nil {
		return httpError(err, MsgInternal)
	}
	return c.JSON(http.StatusOK, logs)
}

func (s *Server) noiseByCategory(c echo.Context) error {
	noise, err := s.services.Analytics.NoiseByCategory(c.Request().Context())
	if err != nil {
		return httpError(err, MsgInternal)
	}
	return c.JSON(http.StatusOK, noise)
}
