package report

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// gateKeywords is the liberal recognition set: any hit means the message is
// treated as a report candidate and handed to Parse.
var gateKeywords = []string{
	"tracking issue",
	"today's work",
	"work content",
}

// issuePattern matches issue identifiers such as ABC-123 or tstas-431.
var issuePattern = regexp.MustCompile(`(?i)\b[a-z][a-z0-9]*-\d+\b`)

// headerScanBytes bounds the fallback issue scan to the start of the message,
// where tracking issues conventionally appear. Scanning the whole text would
// pick up identifiers mentioned in the work body.
const headerScanBytes = 100

// Section anchor patterns. Go's regexp has no lookahead, so each capture is
// non-greedy up to a consumed (non-captured) terminator alternation; leaked
// anchors are stripped afterwards by the secondary splits below.
var (
	trackingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)tracking issues?\s*[:：]\s*(.+?)(?:\n|today|work content|block|$)`),
		regexp.MustCompile(`(?is)tracking issues?\s*\n\s*(.+?)(?:\n\n|today|work content|$)`),
	}

	workPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)today'?s work(?:\s+content)?\s*[:：]\s*(.+?)\s*(?:blocks?\s*point|blockers?\s*[:：]|next\s+(?:plan|day|workday)|tomorrow'?s?\s+plan|$)`),
		regexp.MustCompile(`(?is)work content\s*[:：]\s*(.+?)\s*(?:blocks?\s*point|blockers?\s*[:：]|next\s+(?:plan|day|workday)|tomorrow'?s?\s+plan|$)`),
	}

	blockerPattern = regexp.MustCompile(`(?is)(?:blocks?\s*point|blockers?)\s*[:：]?\s*(.+?)\s*(?:next\s+(?:plan|day|workday)|tomorrow'?s?\s+plan|$)`)

	planPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)next\s+(?:workday|work\s*day|day)(?:'s)?\s*(?:work\s+)?plan\s*[:：]\s*(.+)`),
		regexp.MustCompile(`(?is)next\s+plan\s*[:：]\s*(.+)`),
		regexp.MustCompile(`(?is)tomorrow'?s?\s*(?:work\s+)?plan\s*[:：]\s*(.+)`),
		regexp.MustCompile(`(?is)next\s+(?:workday|work\s*day|day)(?:'s)?\s*(?:work\s+)?plan\s+(.+)`),
		regexp.MustCompile(`(?is)next\s+plan\s+(.+)`),
		regexp.MustCompile(`(?is)tomorrow'?s?\s*(?:work\s+)?plan\s+(.+)`),
	}

	// Secondary splits: strip trailing anchor leakage from greedy-ish captures.
	blockerSplit = regexp.MustCompile(`(?i)blocks?\s*point`)
	planSplit    = regexp.MustCompile(`(?i)next\s+(?:plan|day|workday)|tomorrow'?s?\s+plan`)
)

// IsReport reports whether text loosely resembles a daily report. False
// positives are acceptable; Parse carries the burden of precision.
func IsReport(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range gateKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Parse extracts the structured fields of a daily report. The second return
// is false when the text is not a report, or resembles one by keyword but no
// section anchor actually parses; callers must treat that as "ignore".
//
// Parse is pure: SubmittedAt, Date, and MessageID are left for the store and
// the ingestion edge to stamp.
func Parse(text, submitter string) (*Report, bool) {
	if !IsReport(text) {
		return nil, false
	}

	tracking, trackingAnchored := extractTrackingIssues(text)
	work, workAnchored := extractWorkContent(text)
	blockers, blockersAnchored := extractBlockers(text)
	plan, planAnchored := extractNextPlan(text)

	if !trackingAnchored && !workAnchored && !blockersAnchored && !planAnchored {
		return nil, false
	}

	return &Report{
		Submitter:      submitter,
		TrackingIssues: tracking,
		WorkContent:    work,
		Blockers:       blockers,
		NextPlan:       plan,
	}, true
}

// ExtractIssues pulls issue identifiers out of free text: upper-cased,
// case-insensitively deduplicated, order preserved, joined with
// IssueDelimiter. Returns None when nothing matches.
func ExtractIssues(text string) string {
	matches := issuePattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return None
	}

	seen := make(map[string]struct{}, len(matches))
	unique := make([]string, 0, len(matches))
	for _, m := range matches {
		upper := strings.ToUpper(m)
		if _, ok := seen[upper]; ok {
			continue
		}
		seen[upper] = struct{}{}
		unique = append(unique, upper)
	}

	return strings.Join(unique, IssueDelimiter)
}

func extractTrackingIssues(text string) (string, bool) {
	for _, pat := range trackingPatterns {
		m := pat.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if issues := ExtractIssues(strings.TrimSpace(m[1])); issues != None {
			return issues, true
		}
	}

	// No anchored section: scan only the message header so identifiers in the
	// work body are not mistaken for tracking issues.
	return ExtractIssues(truncateToRuneBoundary(text, headerScanBytes)), false
}

func extractWorkContent(text string) (string, bool) {
	for _, pat := range workPatterns {
		m := pat.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		content := strings.TrimSpace(m[1])
		content = blockerSplit.Split(content, 2)[0]
		content = planSplit.Split(content, 2)[0]
		content = strings.TrimSpace(content)
		if content == "" {
			content = None
		}
		return content, true
	}
	return None, false
}

func extractBlockers(text string) (string, bool) {
	m := blockerPattern.FindStringSubmatch(text)
	if m == nil {
		return None, false
	}
	blockers := strings.TrimSpace(m[1])
	blockers = planSplit.Split(blockers, 2)[0]
	blockers = strings.TrimSpace(blockers)
	blockers = normalizeNone(blockers)
	if blockers == "" {
		blockers = None
	}
	return blockers, true
}

func extractNextPlan(text string) (string, bool) {
	for _, pat := range planPatterns {
		m := pat.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		return ExtractIssues(strings.TrimSpace(m[1])), true
	}
	return None, false
}

// normalizeNone collapses common "nothing to report" spellings to the
// sentinel so downstream rendering and tests see one canonical value.
func normalizeNone(s string) string {
	switch strings.ToLower(strings.TrimRight(strings.TrimSpace(s), ".。")) {
	case "none", "no", "n/a", "nothing", "无":
		return None
	}
	return s
}

// truncateToRuneBoundary cuts text at most n bytes in without splitting a
// multi-byte rune.
func truncateToRuneBoundary(text string, n int) string {
	if len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}
