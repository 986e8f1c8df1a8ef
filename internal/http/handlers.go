package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
	"github.com/Gabriell-Belmont/sam--product-management/internal/logging"
	"github.com/Gabriell-Belmont/sam--product-management/internal/pipeline"
	"github.com/Gabriell-Belmont/sam--product-management/internal/template"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// externalError is implemented by tracker, AI and store errors.
type externalError interface {
	ExternalService() string
}

func (s *Server) bindPrompt(c echo.Context) (PromptRequest, pipeline.ProjectContext, error) {
	var req PromptRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid request body", zap.Error(err))
		return req, pipeline.ProjectContext{}, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return req, pipeline.ProjectContext{}, echo.NewHTTPError(http.StatusBadRequest, "prompt field is required")
	}
	pc := pipeline.ProjectContext{
		Project:   req.Project,
		User:      req.User,
		Type:      req.Type,
		Hierarchy: req.Hierarchy,
	}
	return req, pc, nil
}

func withScope(ctx context.Context, pc pipeline.ProjectContext) context.Context {
	return logging.WithUser(logging.WithProject(ctx, pc.Project), pc.User)
}

// handleProcess runs the full pipeline. The result body is returned on
// failure too, with a status derived from the error.
func (s *Server) handleProcess(c echo.Context) error {
	req, pc, err := s.bindPrompt(c)
	if err != nil {
		return err
	}
	ctx := withScope(c.Request().Context(), pc)
	res := s.pipeline.Process(ctx, req.Prompt, pc)
	return c.JSON(statusFor(res), res)
}

func statusFor(res *pipeline.Result) int {
	if res.Error == nil {
		return http.StatusOK
	}
	var verr *item.ValidationError
	var terr *template.TemplateError
	var ext externalError
	switch {
	case errors.Is(res.Error, pipeline.ErrEmptyPrompt):
		return http.StatusBadRequest
	case errors.Is(res.Error, pipeline.ErrDeclined):
		return http.StatusConflict
	case errors.As(res.Error, &verr), errors.As(res.Error, &terr):
		return http.StatusUnprocessableEntity
	case errors.As(res.Error, &ext):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleClassify parses a prompt and extracts fields without creating
// anything.
func (s *Server) handleClassify(c echo.Context) error {
	req, pc, err := s.bindPrompt(c)
	if err != nil {
		return err
	}
	rec, fields := s.pipeline.Classify(withScope(c.Request().Context(), pc), req.Prompt, pc)

	t := rec.Type
	if t == item.TypeAuto {
		t = item.TypeStory
	}
	resp := ClassifyResponse{Prompt: rec, Type: t, Fields: fields}
	var verr *item.ValidationError
	if errors.As(item.Validate(t, fields), &verr) {
		resp.Missing = verr.Missing
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCheckConflicts(c echo.Context) error {
	req, pc, err := s.bindPrompt(c)
	if err != nil {
		return err
	}
	report, err := s.pipeline.CheckConflicts(withScope(c.Request().Context(), pc), req.Prompt, pc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleHistory(c echo.Context) error {
	t, ok := item.Normalize(c.Param("type"))
	if !ok || !t.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown item type: "+c.Param("type"))
	}
	limit := defaultHistoryLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxHistoryLimit)
	}
	project := c.QueryParam("project")

	recs, err := s.pipeline.History(c.Request().Context(), project, t, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, HistoryResponse{Project: project, Type: t, Items: recs})
}

func (s *Server) handleScrub(c echo.Context) error {
	var req ScrubRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid scrub request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content field is required")
	}

	result := s.scrubber.Scrub(req.Content)
	s.logger.Debug("scrubbed content",
		zap.Int("findings", len(result.Findings)),
		zap.Duration("duration", result.Duration))

	return c.JSON(http.StatusOK, ScrubResponse{
		Content:       result.Scrubbed,
		FindingsCount: len(result.Findings),
		ByRule:        result.ByRule,
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok", Version: s.version}
	if len(s.checks) > 0 {
		resp.Services = make(map[string]string, len(s.checks))
	}
	for name, check := range s.checks {
		if err := check(c.Request().Context()); err != nil {
			s.logger.Warn("health check failed", zap.String("service", name), zap.Error(err))
			resp.Services[name] = "unavailable"
			resp.Status = "degraded"
			continue
		}
		resp.Services[name] = "ok"
	}
	return c.JSON(http.StatusOK, resp)
}

// handleError maps pipeline and collaborator errors to status codes. Raw
// tracker payloads are logged, never returned.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	msg := http.StatusText(status)

	var he *echo.HTTPError
	var ext externalError
	switch {
	case errors.As(err, &he):
		status = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(status)
		}
	case errors.Is(err, pipeline.ErrEmptyPrompt):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, pipeline.ErrNoStore):
		status, msg = http.StatusServiceUnavailable, err.Error()
	case errors.As(err, &ext):
		status, msg = http.StatusBadGateway, ext.ExternalService()+" unavailable"
	}
	if status >= 500 {
		s.logger.Error("request failed", append(logging.ContextFields(c.Request().Context()), zap.Error(err))...)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, ErrorResponse{Error: msg})
	}
	if err != nil {
		s.logger.Warn("failed to write error response", zap.Error(err))
	}
}
