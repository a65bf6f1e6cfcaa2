// Package app wires the reportd services together and runs the event loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/alert"
	"github.com/fyrsmithlabs/reportd/internal/bus"
	"github.com/fyrsmithlabs/reportd/internal/chat"
	"github.com/fyrsmithlabs/reportd/internal/command"
	"github.com/fyrsmithlabs/reportd/internal/config"
	"github.com/fyrsmithlabs/reportd/internal/dispatch"
	"github.com/fyrsmithlabs/reportd/internal/httpapi"
	"github.com/fyrsmithlabs/reportd/internal/mail"
	"github.com/fyrsmithlabs/reportd/internal/report"
	"github.com/fyrsmithlabs/reportd/internal/roster"
	"github.com/fyrsmithlabs/reportd/internal/store"
	"github.com/fyrsmithlabs/reportd/internal/vacation"
	"github.com/fyrsmithlabs/reportd/internal/workday"
)

// event is one unit of work for the serial loop. Exactly one of the
// fields is set.
type event struct {
	message *report.InboundMessage
	recall  *report.RecallEvent
}

// App is the assembled reportd daemon.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	store       *store.Store
	vacations   *vacation.Store
	roster      *roster.Roster
	workdays    *workday.Checker
	coordinator *dispatch.Coordinator
	commands    *command.Handler
	alerts      *alert.Notifier
	messenger   chat.Messenger
	bus         *bus.Bus
	httpSrv     *httpapi.Server

	mode   dispatch.Mode
	events chan event
}

// logDispatcher stands in for the mail dispatcher when SMTP is not
// configured, so development setups still exercise the full pipeline.
type logDispatcher struct {
	logger *zap.Logger
}

func (d *logDispatcher) Send(_ context.Context, reports []report.Report, displayDate string) error {
	d.logger.Info("summary dispatch (log only)",
		zap.String("date", displayDate),
		zap.Int("reports", len(reports)))
	return nil
}

// fixedHeadcount is the config override for the roster-derived headcount.
type fixedHeadcount int

func (f fixedHeadcount) ExpectedHeadcount(string) int { return int(f) }

// New builds the full daemon from configuration.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mode, err := dispatch.ParseMode(cfg.Report.Mode)
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.Report.StoragePath, logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("failed to open report store: %w", err)
	}

	vacations, err := vacation.New(cfg.Vacation.Path, logger.Named("vacation"))
	if err != nil {
		return nil, fmt.Errorf("failed to open vacation store: %w", err)
	}

	team, err := roster.New(roster.Config{
		Path:      cfg.Roster.Path,
		Required:  cfg.Roster.Required,
		Protected: cfg.Roster.Protected,
	}, logger.Named("roster"))
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}

	workdays, err := workday.New(workday.Config{
		APIBaseURL:    cfg.Workday.APIBaseURL,
		CachePath:     cfg.Workday.CachePath,
		Holidays:      cfg.Workday.Holidays,
		ExtraWorkdays: cfg.Workday.ExtraWorkdays,
	}, logger.Named("workday"))
	if err != nil {
		return nil, fmt.Errorf("failed to create workday checker: %w", err)
	}

	var sender *mail.Sender
	var dispatcher dispatch.Dispatcher
	if cfg.SMTP.Host != "" {
		sender, err = mail.NewSender(mail.Config{
			Host:        cfg.SMTP.Host,
			Port:        cfg.SMTP.Port,
			Username:    cfg.SMTP.Username,
			Password:    cfg.SMTP.Password.Value(),
			FromAddress: cfg.SMTP.FromAddress,
			FromName:    cfg.SMTP.FromName,
			StartTLS:    cfg.SMTP.StartTLS,
			Timeout:     cfg.SMTP.Timeout.Duration(),
		}, logger.Named("mail"))
		if err != nil {
			return nil, fmt.Errorf("failed to create mail sender: %w", err)
		}
		dispatcher, err = mail.NewSummarySender(sender, mail.SummaryConfig{
			To:            cfg.Report.Recipients,
			Cc:            cfg.Report.Cc,
			Bcc:           cfg.Report.Bcc,
			SubjectPrefix: cfg.Report.SubjectPrefix,
		}, logger.Named("mail"))
		if err != nil {
			return nil, fmt.Errorf("failed to create summary sender: %w", err)
		}
	} else {
		logger.Warn("smtp not configured, summaries will only be logged")
		dispatcher = &logDispatcher{logger: logger.Named("dispatch")}
	}

	var members dispatch.MembershipSource
	if cfg.Report.ExpectedHeadcount > 0 {
		members = fixedHeadcount(cfg.Report.ExpectedHeadcount)
	} else {
		members = roster.NewHeadcount(team, vacations)
	}

	coordinator, err := dispatch.New(st, dispatcher, members, dispatch.Config{
		GracePeriod: cfg.Report.GracePeriod.Duration(),
	}, logger.Named("dispatch"))
	if err != nil {
		return nil, fmt.Errorf("failed to create coordinator: %w", err)
	}

	messenger := chat.NewLogMessenger(logger.Named("chat"))

	commands, err := command.NewHandler(st, coordinator, vacations, messenger, logger.Named("command"))
	if err != nil {
		return nil, fmt.Errorf("failed to create command handler: %w", err)
	}

	alertRules := make([]alert.Rule, len(cfg.Alerts))
	for i, r := range cfg.Alerts {
		alertRules[i] = alert.Rule{Name: r.Name, Keywords: r.Keywords, Recipients: r.Recipients}
	}
	alerts, err := alert.New(alertRules, sender, logger.Named("alert"))
	if err != nil {
		return nil, fmt.Errorf("failed to create alert notifier: %w", err)
	}

	eventBus, err := bus.Connect(bus.Config{
		URL:      cfg.NATS.URL,
		Embedded: cfg.NATS.Embedded,
	}, logger.Named("bus"))
	if err != nil {
		return nil, err
	}

	httpSrv, err := httpapi.New(httpapi.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
	}, eventBus, coordinator, st, vacations, logger.Named("http"))
	if err != nil {
		eventBus.Close()
		return nil, err
	}

	return &App{
		cfg:         cfg,
		logger:      logger,
		store:       st,
		vacations:   vacations,
		roster:      team,
		workdays:    workdays,
		coordinator: coordinator,
		commands:    commands,
		alerts:      alerts,
		messenger:   messenger,
		bus:         eventBus,
		httpSrv:     httpSrv,
		mode:        mode,
		events:      make(chan event, 256),
	}, nil
}

// Run starts the bus subscriptions, cron jobs, HTTP server, and the event
// loop, then blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	defer a.bus.Close()
	defer a.roster.Close()

	msgSub, err := a.bus.SubscribeMessages(func(msg report.InboundMessage) {
		select {
		case a.events <- event{message: &msg}:
		default:
			a.logger.Warn("event queue full, dropping message",
				zap.String("message_id", msg.MessageID))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to messages: %w", err)
	}
	defer msgSub.Unsubscribe()

	recallSub, err := a.bus.SubscribeRecalls(func(ev report.RecallEvent) {
		select {
		case a.events <- event{recall: &ev}:
		default:
			a.logger.Warn("event queue full, dropping recall",
				zap.String("message_id", ev.MessageID))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to recalls: %w", err)
	}
	defer recallSub.Unsubscribe()

	if a.cfg.Roster.Watch {
		if err := a.roster.Watch(); err != nil {
			return err
		}
	}

	cronRunner, err := a.startJobs(ctx)
	if err != nil {
		return err
	}
	if cronRunner != nil {
		defer cronRunner.Stop()
	}

	// One event at a time: handlers touch the store and coordinator
	// without racing each other.
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-a.events:
				a.handleEvent(ctx, ev)
			}
		}
	}()

	a.logger.Info("reportd started",
		zap.String("mode", string(a.mode)),
		zap.Int("port", a.cfg.Server.Port))

	err = a.httpSrv.Start(ctx)
	<-loopDone
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) handleEvent(ctx context.Context, ev event) {
	switch {
	case ev.message != nil:
		a.handleMessage(ctx, *ev.message)
	case ev.recall != nil:
		a.handleRecall(*ev.recall)
	}
}

// handleMessage classifies one chat message: a slash command, a daily
// report, or ordinary chatter that may still trip a keyword alert.
func (a *App) handleMessage(ctx context.Context, msg report.InboundMessage) {
	messagesReceived.Inc()

	if msg.UserID != "" && msg.Submitter != "" && msg.Submitter != msg.UserID {
		a.roster.SetName(msg.UserID, msg.Submitter)
	}

	if command.IsCommand(msg.Text) {
		if err := a.commands.Handle(ctx, command.Request{
			Text:      msg.Text,
			Submitter: msg.Submitter,
			ChatID:    msg.ChatID,
		}); err != nil {
			a.logger.Error("command reply failed", zap.Error(err))
		}
		return
	}

	a.alerts.Inspect(ctx, msg.Submitter, msg.Text)

	if !report.IsReport(msg.Text) {
		return
	}
	rec, ok := report.Parse(msg.Text, msg.Submitter)
	if !ok {
		a.logger.Debug("report keyword without extractable sections",
			zap.String("submitter", msg.Submitter))
		return
	}
	rec.MessageID = msg.MessageID
	rec.Date = msg.Date
	if rec.Date == "" {
		rec.Date = a.store.Today()
	}

	a.store.Upsert(*rec, rec.Date)
	reportsCollected.Inc()

	switch a.mode {
	case dispatch.ModeRealtime:
		if err := a.coordinator.SendSingle(ctx, *rec); err != nil {
			a.logger.Error("realtime send failed", zap.Error(err))
		}
	case dispatch.ModeAuto:
		a.coordinator.OnReportSubmitted(rec.Submitter, rec.Date, rec.MessageID)
	}
}

func (a *App) handleRecall(ev report.RecallEvent) {
	if a.coordinator.OnMessageRecalled(ev.MessageID) {
		recallsHandled.Inc()
		a.logger.Info("report withdrawn", zap.String("message_id", ev.MessageID))
	}
}
