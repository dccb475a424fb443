package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"cartai/internal/core"
	"cartai/internal/ratelimit"
)

type chatRequest struct {
	UserID   string            `json:"user_id"`
	TaskType string            `json:"task_type"`
	Messages []core.Message    `json:"messages"`
	Options  *core.ChatOptions `json:"options,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type rateLimitedResponse struct {
	Error     string           `json:"error"`
	Message   string           `json:"message"`
	RateLimit ratelimit.Result `json:"rate_limit"`
}

func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "invalid_request",
			Message: "request body must be valid JSON",
		})
	}

	userID := req.UserID
	if userID == "" {
		userID = core.GetUserID(c.Request().Context())
	}
	if userID == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "invalid_request",
			Message: "user_id is required",
		})
	}

	task := core.TaskType(req.TaskType)
	if !task.Valid() {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "invalid_request",
			Message: "unknown task_type",
		})
	}
	if len(req.Messages) == 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "invalid_request",
			Message: "messages must not be empty",
		})
	}

	result, err := s.orch.Chat(c.Request().Context(), userID, task, req.Messages, req.Options)
	if err != nil {
		var gwErr *core.GatewayError
		if errors.As(err, &gwErr) {
			return c.JSON(gwErr.HTTPStatusCode(), errorResponse{
				Error:   string(gwErr.Type),
				Message: gwErr.UserMessage(),
			})
		}
		return c.JSON(http.StatusInternalServerError, errorResponse{
			Error:   "internal_error",
			Message: core.UnavailableMessage,
		})
	}

	if result.Rejected() {
		return c.JSON(http.StatusTooManyRequests, rateLimitedResponse{
			Error:     "rate_limited",
			Message:   result.RateLimit.UserMessage(),
			RateLimit: *result.RateLimit,
		})
	}

	return c.JSON(http.StatusOK, result.Response)
}

func (s *Server) handleRateLimit(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		userID = core.GetUserID(c.Request().Context())
	}
	if userID == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "invalid_request",
			Message: "user_id is required",
		})
	}
	return c.JSON(http.StatusOK, s.orch.CheckRateLimit(c.Request().Context(), userID))
}

func (s *Server) handleDailyUsage(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		userID = core.GetUserID(c.Request().Context())
	}
	if userID == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "invalid_request",
			Message: "user_id is required",
		})
	}

	day := time.Now().UTC()
	if raw := c.QueryParam("day"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{
				Error:   "invalid_request",
				Message: "day must be formatted YYYY-MM-DD",
			})
		}
		day = parsed
	}

	summary, err := s.orch.DailyUsage(c.Request().Context(), userID, day)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{
			Error:   "internal_error",
			Message: "failed to aggregate usage",
		})
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handlePurge(c echo.Context) error {
	report, err := s.orch.PurgeExpired(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{
			Error:   "internal_error",
			Message: "maintenance purge failed",
		})
	}
	return c.JSON(http.StatusOK, report)
}
