// Package render turns a day's collected reports into the HTML email body.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/fyrsmithlabs/reportd/internal/report"
)

var summaryTmpl = template.Must(template.New("summary").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: Arial, sans-serif; margin: 20px; background-color: #f5f5f5; }
.header { background-color: #4a90e2; color: white; padding: 20px; border-radius: 5px 5px 0 0; }
.header h1 { margin: 0; font-size: 24px; }
.header p { margin: 5px 0 0 0; font-size: 14px; }
.content { background-color: white; padding: 20px; border-radius: 0 0 5px 5px; }
table { width: 100%; border-collapse: collapse; margin-top: 10px; }
th { background-color: #5a9fd4; color: white; padding: 12px 8px; text-align: left; border: 1px solid #ddd; }
td { padding: 10px 8px; border: 1px solid #ddd; vertical-align: top; }
tr:nth-child(even) { background-color: #f9f9f9; }
.name-col { width: 110px; font-weight: bold; text-align: center; background-color: #e8f4fd; }
.issue-col { width: 150px; }
.content-col { white-space: pre-wrap; word-wrap: break-word; }
.block-col { width: 120px; }
.plan-col { width: 150px; }
.footer { margin-top: 20px; padding: 15px; background-color: #f9f9f9; color: #666; font-size: 12px; }
</style>
</head>
<body>
<div class="header">
<h1>Team Daily Report Summary</h1>
<p>Date: {{.DisplayDate}} | {{.Count}} report(s) collected</p>
</div>
<div class="content">
<table>
<thead>
<tr>
<th class="name-col">Name</th>
<th class="issue-col">Tracking Issues</th>
<th class="content-col">Work Content</th>
<th class="block-col">Blockers</th>
<th class="plan-col">Next Plan</th>
</tr>
</thead>
<tbody>
{{- range .Reports}}
<tr>
<td class="name-col">{{.Submitter}}</td>
<td class="issue-col">{{.TrackingIssues}}</td>
<td class="content-col">{{.WorkContent}}</td>
<td class="block-col">{{.Blockers}}</td>
<td class="plan-col">{{.NextPlan}}</td>
</tr>
{{- end}}
</tbody>
</table>
</div>
<div class="footer">
<p>Generated automatically by reportd at {{.GeneratedAt}}.</p>
</div>
</body>
</html>
`))

var emptyTmpl = template.Must(template.New("empty").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body>
<div style="padding:30px;background-color:#fff3cd;border:1px solid #ffc107;border-radius:5px;text-align:center;">
<h2>No reports collected</h2>
<p>As of {{.GeneratedAt}}, no daily reports have been received for {{.DisplayDate}}.</p>
</div>
</body>
</html>
`))

type summaryData struct {
	DisplayDate string
	Count       int
	Reports     []report.Report
	GeneratedAt string
}

// HTMLTable renders the aggregate summary for a date. An empty report list
// produces the empty-day notice instead of a bare table.
func HTMLTable(reports []report.Report, displayDate string) (string, error) {
	data := summaryData{
		DisplayDate: displayDate,
		Count:       len(reports),
		Reports:     reports,
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
	}

	tmpl := summaryTmpl
	if len(reports) == 0 {
		tmpl = emptyTmpl
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render summary table: %w", err)
	}
	return buf.String(), nil
}

// Subject builds the summary email subject line.
func Subject(prefix, displayDate string, reports []report.Report) string {
	if len(reports) == 1 {
		return fmt.Sprintf("%s Daily Report %s - %s", prefix, displayDate, reports[0].Submitter)
	}
	return fmt.Sprintf("%s Daily Report %s - %d report(s)", prefix, displayDate, len(reports))
}
