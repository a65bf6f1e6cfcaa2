package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/reportd/internal/report"
)

func TestHTMLTable(t *testing.T) {
	reports := []report.Report{
		{
			Submitter:      "alice",
			TrackingIssues: "ABC-1、ABC-2",
			WorkContent:    "1. Cleaned up the patch series.\n2. Reviewed flow changes.",
			Blockers:       report.None,
			NextPlan:       "ABC-3",
		},
		{
			Submitter:      "bob",
			TrackingIssues: "DEF-9",
			WorkContent:    "Investigated the page-size rejection.",
			Blockers:       "waiting on infra",
			NextPlan:       report.None,
		},
	}

	html, err := HTMLTable(reports, "2026/02/02")
	require.NoError(t, err)

	assert.Contains(t, html, "2026/02/02")
	assert.Contains(t, html, "2 report(s)")
	assert.Contains(t, html, "alice")
	assert.Contains(t, html, "ABC-1、ABC-2")
	assert.Contains(t, html, "waiting on infra")
}

func TestHTMLTable_EscapesContent(t *testing.T) {
	reports := []report.Report{
		{
			Submitter:   "mallory",
			WorkContent: `<script>alert("x")</script>`,
			Blockers:    report.None,
		},
	}

	html, err := HTMLTable(reports, "2026/02/02")
	require.NoError(t, err)

	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestHTMLTable_EmptyDay(t *testing.T) {
	html, err := HTMLTable(nil, "2026/02/02")
	require.NoError(t, err)

	assert.Contains(t, html, "No reports collected")
	assert.Contains(t, html, "2026/02/02")
	assert.NotContains(t, html, "<table>")
}

func TestSubject(t *testing.T) {
	one := []report.Report{{Submitter: "alice"}}
	many := []report.Report{{Submitter: "alice"}, {Submitter: "bob"}}

	assert.Equal(t, "[Team] Daily Report 2026/02/02 - alice",
		Subject("[Team]", "2026/02/02", one))
	assert.Equal(t, "[Team] Daily Report 2026/02/02 - 2 report(s)",
		Subject("[Team]", "2026/02/02", many))
}
