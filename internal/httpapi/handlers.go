package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/dispatch"
	"github.com/fyrsmithlabs/reportd/internal/report"
)

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// webhookMessage is the inbound chat webhook payload. Date is optional; when
// set it overrides the partition the report lands in.
type webhookMessage struct {
	MessageID string `json:"message_id"`
	ChatID    string `json:"chat_id"`
	UserID    string `json:"user_id"`
	Submitter string `json:"submitter"`
	Text      string `json:"text"`
	Date      string `json:"date"`
}

type webhookRecall struct {
	MessageID string `json:"message_id"`
}

type summaryRequest struct {
	Date string `json:"date"`
}

type vacationRequest struct {
	Name string `json:"name"`
	Date string `json:"date"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Service: "reportd"})
}

func (s *Server) handleWebhookMessage(c echo.Context) error {
	var payload webhookMessage
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
	}
	if payload.Text == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "text is required"})
	}
	if payload.Submitter == "" {
		payload.Submitter = payload.UserID
	}
	if payload.Submitter == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "submitter or user_id is required"})
	}
	if payload.Date != "" {
		if _, err := time.Parse(report.DateLayout, payload.Date); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "date must be YYYY-MM-DD"})
		}
	}
	// Platforms do not all supply message IDs; recall matching needs one.
	if payload.MessageID == "" {
		payload.MessageID = uuid.NewString()
	}

	msg := report.InboundMessage{
		Text:      payload.Text,
		Submitter: payload.Submitter,
		MessageID: payload.MessageID,
		Date:      payload.Date,
		ChatID:    payload.ChatID,
		UserID:    payload.UserID,
	}
	if err := s.publisher.PublishMessage(msg); err != nil {
		s.logger.Error("failed to publish webhook message", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "event bus unavailable"})
	}
	return c.JSON(http.StatusAccepted, map[string]string{"message_id": payload.MessageID})
}

func (s *Server) handleWebhookRecall(c echo.Context) error {
	var payload webhookRecall
	if err := c.Bind(&payload); err != nil || payload.MessageID == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "message_id is required"})
	}
	if err := s.publisher.PublishRecall(report.RecallEvent{MessageID: payload.MessageID}); err != nil {
		s.logger.Error("failed to publish recall event", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "event bus unavailable"})
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleSummary(c echo.Context) error {
	var payload summaryRequest
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
	}

	date, err := dispatch.ResolveTargetDate(payload.Date, time.Now())
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	if err := s.coordinator.DispatchNow(c.Request().Context(), date); err != nil {
		if errors.Is(err, dispatch.ErrAlreadyDispatched) {
			return c.JSON(http.StatusConflict, errorResponse{Error: "summary already dispatched"})
		}
		s.logger.Error("manual summary dispatch failed",
			zap.String("date", date), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"date":    date,
		"reports": s.store.Count(date),
	})
}

func (s *Server) handleReports(c echo.Context) error {
	date, err := dispatch.ResolveTargetDate(c.Param("date"), time.Now())
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"date":       date,
		"dispatched": s.store.IsDispatched(date),
		"reports":    s.store.All(date),
	})
}

func (s *Server) handleVacationList(c echo.Context) error {
	date, err := dispatch.ResolveTargetDate(c.Param("date"), time.Now())
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"date":  date,
		"names": s.vacations.List(date),
	})
}

func (s *Server) handleVacationSet(c echo.Context) error {
	var payload vacationRequest
	if err := c.Bind(&payload); err != nil || payload.Name == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "name is required"})
	}
	date, err := dispatch.ResolveTargetDate(payload.Date, time.Now())
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	created := s.vacations.Set(payload.Name, date)
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	return c.JSON(status, map[string]any{"name": payload.Name, "date": date})
}

func (s *Server) handleVacationCancel(c echo.Context) error {
	name := c.QueryParam("name")
	if name == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "name is required"})
	}
	date, err := dispatch.ResolveTargetDate(c.QueryParam("date"), time.Now())
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	if !s.vacations.Cancel(name, date) {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "no vacation entry"})
	}
	return c.NoContent(http.StatusNoContent)
}
