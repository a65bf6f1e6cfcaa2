package mail

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/render"
	"github.com/fyrsmithlabs/reportd/internal/report"
)

// SummaryConfig names the delivery targets for aggregate summaries.
type SummaryConfig struct {
	To            []string
	Cc            []string
	Bcc           []string
	SubjectPrefix string
}

// SummarySender renders a day's reports into an HTML table and mails it.
// It is the production dispatcher behind the coordinator.
type SummarySender struct {
	sender *Sender
	cfg    SummaryConfig
	logger *zap.Logger
}

// NewSummarySender returns a SummarySender bound to one SMTP sender.
func NewSummarySender(sender *Sender, cfg SummaryConfig, logger *zap.Logger) (*SummarySender, error) {
	if sender == nil {
		return nil, errors.New("sender is required")
	}
	if len(cfg.To) == 0 {
		return nil, errors.New("summary recipients are required")
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "[Daily Report]"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SummarySender{sender: sender, cfg: cfg, logger: logger}, nil
}

// Send implements the coordinator's Dispatcher contract.
func (s *SummarySender) Send(ctx context.Context, reports []report.Report, displayDate string) error {
	body, err := render.HTMLTable(reports, displayDate)
	if err != nil {
		return err
	}

	msg := Message{
		To:       s.cfg.To,
		Cc:       s.cfg.Cc,
		Bcc:      s.cfg.Bcc,
		Subject:  render.Subject(s.cfg.SubjectPrefix, displayDate, reports),
		HTMLBody: body,
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return err
	}

	s.logger.Info("summary dispatched",
		zap.String("date", displayDate),
		zap.Int("reports", len(reports)))
	return nil
}
