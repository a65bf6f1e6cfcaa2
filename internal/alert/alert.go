// Package alert watches incoming chat messages for configured keywords and
// escalates matches by email, independent of the daily report flow.
package alert

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/mail"
)

// Rule maps a set of keywords to the people who want to hear about them.
type Rule struct {
	Name       string
	Keywords   []string
	Recipients []string
}

// Notifier matches messages against rules and mails the matches.
type Notifier struct {
	rules  []Rule
	sender *mail.Sender
	logger *zap.Logger
	now    func() time.Time
}

// New returns a Notifier. An empty rule set is valid and matches nothing.
func New(rules []Rule, sender *mail.Sender, logger *zap.Logger) (*Notifier, error) {
	if sender == nil && len(rules) > 0 {
		return nil, fmt.Errorf("mail sender is required when alert rules are configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	for i, r := range rules {
		if len(r.Keywords) == 0 {
			return nil, fmt.Errorf("alert rule %d has no keywords", i)
		}
		if len(r.Recipients) == 0 {
			return nil, fmt.Errorf("alert rule %q has no recipients", r.Name)
		}
	}
	return &Notifier{rules: rules, sender: sender, logger: logger, now: time.Now}, nil
}

// Inspect checks text against every rule and sends one email per matching
// rule. Delivery failures are logged, not returned: an alert must never
// break message handling.
func (n *Notifier) Inspect(ctx context.Context, submitter, text string) {
	for _, rule := range n.rules {
		keyword, ok := matchRule(rule, text)
		if !ok {
			continue
		}

		msg := mail.Message{
			To:       rule.Recipients,
			Subject:  fmt.Sprintf("[Alert] %s mentioned %q", submitter, keyword),
			HTMLBody: n.renderBody(submitter, keyword, text),
		}
		if err := n.sender.Send(ctx, msg); err != nil {
			n.logger.Error("keyword alert delivery failed",
				zap.String("rule", rule.Name),
				zap.String("keyword", keyword),
				zap.Error(err))
			continue
		}
		n.logger.Info("keyword alert sent",
			zap.String("rule", rule.Name),
			zap.String("keyword", keyword),
			zap.String("submitter", submitter))
	}
}

// matchRule returns the first keyword found in text, case-insensitively.
func matchRule(rule Rule, text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, kw := range rule.Keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return kw, true
		}
	}
	return "", false
}

func (n *Notifier) renderBody(submitter, keyword, text string) string {
	return fmt.Sprintf(
		`<p><b>%s</b> mentioned <b>%s</b> at %s:</p><blockquote style="white-space:pre-wrap">%s</blockquote>`,
		html.EscapeString(submitter),
		html.EscapeString(keyword),
		n.now().Format("2006-01-02 15:04:05"),
		html.EscapeString(text))
}
