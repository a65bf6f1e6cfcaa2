package report

import (
	"time"
)

// DateLayout is the calendar-day key format used across the store,
// coordinator, and command surfaces.
const DateLayout = "2006-01-02"

// None is the sentinel for an absent section ("no blockers", "no issues").
const None = "none"

// IssueDelimiter joins issue identifiers in a single field.
const IssueDelimiter = "、"

// Report is one submitter's daily status report. Within a date partition
// there is at most one live Report per submitter; a resubmission replaces
// the prior record wholesale.
type Report struct {
	// Submitter is the display name, stable for the day.
	Submitter string `json:"submitter"`

	// TrackingIssues holds issue identifiers joined with IssueDelimiter,
	// or None.
	TrackingIssues string `json:"tracking_issues"`

	// WorkContent is the free-text body of the day's work, or None.
	WorkContent string `json:"work_content"`

	// Blockers is free text, normalized to None when absent or empty.
	Blockers string `json:"blockers"`

	// NextPlan holds next-day issue identifiers joined with IssueDelimiter,
	// or None.
	NextPlan string `json:"next_plan"`

	// SubmittedAt is stamped by the store on every upsert.
	SubmittedAt time.Time `json:"submitted_at"`

	// Date is the calendar day partition key (YYYY-MM-DD).
	Date string `json:"date"`

	// MessageID is the source chat message id, used to correlate recalls.
	MessageID string `json:"message_id,omitempty"`
}

// InboundMessage is a chat message as delivered by the platform edge.
type InboundMessage struct {
	Text      string `json:"text"`
	Submitter string `json:"submitter"`
	MessageID string `json:"message_id"`
	Date      string `json:"date,omitempty"`
	ChatID    string `json:"chat_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// RecallEvent reports that a previously delivered message was recalled.
// The platform does not include the original date.
type RecallEvent struct {
	MessageID string `json:"message_id"`
}
