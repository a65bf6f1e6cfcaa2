package dispatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/reportd/internal/report"
)

// dateLiteralLayouts are the accepted explicit forms for manual dispatch
// target dates.
var dateLiteralLayouts = []string{
	report.DateLayout,
	"2006/01/02",
	"2006.01.02",
	"20060102",
}

// ResolveTargetDate turns a manual-command date expression into a partition
// key. Empty and "today" resolve to now's date, "yesterday" to the previous
// calendar day; otherwise the expression must be a recognized date literal.
func ResolveTargetDate(expr string, now time.Time) (string, error) {
	switch strings.ToLower(strings.TrimSpace(expr)) {
	case "", "today":
		return now.Format(report.DateLayout), nil
	case "yesterday":
		return now.AddDate(0, 0, -1).Format(report.DateLayout), nil
	}

	expr = strings.TrimSpace(expr)
	for _, layout := range dateLiteralLayouts {
		if t, err := time.Parse(layout, expr); err == nil {
			return t.Format(report.DateLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognized date expression %q", expr)
}

// DisplayDate renders a partition key in the slash form used in summary
// subjects and table headers.
func DisplayDate(date string) string {
	if t, err := time.Parse(report.DateLayout, date); err == nil {
		return t.Format("2006/01/02")
	}
	return date
}
