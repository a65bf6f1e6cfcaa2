// Package command parses and executes operator slash commands received in
// the chat group.
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/chat"
	"github.com/fyrsmithlabs/reportd/internal/dispatch"
	"github.com/fyrsmithlabs/reportd/internal/store"
	"github.com/fyrsmithlabs/reportd/internal/vacation"
)

// fullWidthSlash is accepted because chat input methods often substitute it.
const fullWidthSlash = "／"

const helpText = `Available commands:
/help - show this message
/summary [date] - dispatch the summary for a date (default today)
/vacation set [date] - mark yourself on vacation (default today)
/vacation cancel [date] - cancel your vacation entry
/vacation list [date] - list who is on vacation
/myreport [date] - show your stored report
Dates accept today, yesterday, or forms like 2026-01-15.`

// Request is one inbound slash command.
type Request struct {
	Text      string
	Submitter string
	ChatID    string
}

// Handler executes commands against the live daemon state.
type Handler struct {
	store       *store.Store
	coordinator *dispatch.Coordinator
	vacations   *vacation.Store
	messenger   chat.Messenger
	logger      *zap.Logger
	now         func() time.Time
}

// NewHandler wires a command handler. All collaborators are required.
func NewHandler(st *store.Store, c *dispatch.Coordinator, v *vacation.Store, m chat.Messenger, logger *zap.Logger) (*Handler, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if c == nil {
		return nil, errors.New("coordinator is required")
	}
	if v == nil {
		return nil, errors.New("vacation store is required")
	}
	if m == nil {
		return nil, errors.New("messenger is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:       st,
		coordinator: c,
		vacations:   v,
		messenger:   m,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// IsCommand reports whether text starts with a half- or full-width slash.
func IsCommand(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, fullWidthSlash)
}

// Handle parses req and posts the outcome back to the originating chat.
// The returned error covers reply delivery only; command mistakes are
// reported to the user, not to the caller.
func (h *Handler) Handle(ctx context.Context, req Request) error {
	reply := h.execute(ctx, req)
	if reply == "" {
		return nil
	}
	return h.messenger.SendText(ctx, req.ChatID, reply)
}

func (h *Handler) execute(ctx context.Context, req Request) string {
	text := strings.TrimSpace(req.Text)
	text = strings.TrimPrefix(text, fullWidthSlash)
	text = strings.TrimPrefix(text, "/")

	fields := strings.Fields(text)
	if len(fields) == 0 {
		return helpText
	}

	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	h.logger.Info("command received",
		zap.String("command", cmd),
		zap.String("submitter", req.Submitter))

	switch cmd {
	case "help":
		return helpText
	case "summary":
		return h.runSummary(ctx, args)
	case "vacation":
		return h.runVacation(req.Submitter, args)
	case "myreport":
		return h.runMyReport(req.Submitter, args)
	default:
		return fmt.Sprintf("Unknown command %q.\n%s", cmd, helpText)
	}
}

func (h *Handler) runSummary(ctx context.Context, args []string) string {
	date, err := h.resolveDate(args)
	if err != nil {
		return err.Error()
	}

	if err := h.coordinator.DispatchNow(ctx, date); err != nil {
		if errors.Is(err, dispatch.ErrAlreadyDispatched) {
			return fmt.Sprintf("The summary for %s was already sent.", dispatch.DisplayDate(date))
		}
		h.logger.Error("manual summary dispatch failed",
			zap.String("date", date), zap.Error(err))
		return fmt.Sprintf("Sending the summary for %s failed: %v", dispatch.DisplayDate(date), err)
	}
	return fmt.Sprintf("Summary for %s sent (%d report(s)).",
		dispatch.DisplayDate(date), h.store.Count(date))
}

func (h *Handler) runVacation(submitter string, args []string) string {
	if len(args) == 0 {
		return helpText
	}
	sub := strings.ToLower(args[0])

	date, err := h.resolveDate(args[1:])
	if err != nil {
		return err.Error()
	}
	display := dispatch.DisplayDate(date)

	switch sub {
	case "set":
		if !h.vacations.Set(submitter, date) {
			return fmt.Sprintf("%s, you are already marked off on %s.", submitter, display)
		}
		return fmt.Sprintf("%s, you are marked on vacation for %s.", submitter, display)
	case "cancel":
		if !h.vacations.Cancel(submitter, date) {
			return fmt.Sprintf("%s, you have no vacation entry for %s.", submitter, display)
		}
		return fmt.Sprintf("%s, your vacation for %s is cancelled.", submitter, display)
	case "list":
		names := h.vacations.List(date)
		if len(names) == 0 {
			return fmt.Sprintf("No one is on vacation on %s.", display)
		}
		return fmt.Sprintf("On vacation %s: %s.", display, strings.Join(names, ", "))
	default:
		return helpText
	}
}

func (h *Handler) runMyReport(submitter string, args []string) string {
	date, err := h.resolveDate(args)
	if err != nil {
		return err.Error()
	}
	display := dispatch.DisplayDate(date)

	for _, rec := range h.store.All(date) {
		if rec.Submitter != submitter {
			continue
		}
		return fmt.Sprintf(
			"Your report for %s:\nTracking issues: %s\nWork content: %s\nBlockers: %s\nNext plan: %s",
			display, rec.TrackingIssues, rec.WorkContent, rec.Blockers, rec.NextPlan)
	}
	return fmt.Sprintf("%s, no report of yours is stored for %s.", submitter, display)
}

func (h *Handler) resolveDate(args []string) (string, error) {
	expr := ""
	if len(args) > 0 {
		expr = args[0]
	}
	date, err := dispatch.ResolveTargetDate(expr, h.now())
	if err != nil {
		return "", fmt.Errorf("I could not understand the date %q. Try today, yesterday, or 2026-01-15.", expr)
	}
	return date, nil
}
