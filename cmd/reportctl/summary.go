package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// summaryCmd triggers a summary dispatch
var summaryCmd = &cobra.Command{
	Use:   "summary [date]",
	Short: "Dispatch the summary for a date",
	Long: `Dispatch the aggregated report summary for a date.

The date accepts today, yesterday, or forms like 2026-01-15. With no
argument, today's summary is sent.

Examples:
  # Send today's summary now
  reportctl summary

  # Send a specific day
  reportctl summary 2026-01-15`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSummary,
}

// reportsCmd lists the collected reports for a date
var reportsCmd = &cobra.Command{
	Use:   "reports [date]",
	Short: "List collected reports for a date",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReports,
}

func dateArg(args []string) string {
	if len(args) == 0 {
		return "today"
	}
	return args[0]
}

func runSummary(cmd *cobra.Command, args []string) error {
	reqJSON, err := json.Marshal(map[string]string{"date": dateArg(args)})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/summary", serverURL)
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	var result struct {
		Date    string `json:"date"`
		Reports int    `json:"reports"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Summary for %s sent (%d report(s))\n", result.Date, result.Reports)
	return nil
}

func runReports(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/api/v1/reports/%s", serverURL, dateArg(args))
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	var result struct {
		Date       string `json:"date"`
		Dispatched bool   `json:"dispatched"`
		Reports    []struct {
			Submitter      string `json:"submitter"`
			TrackingIssues string `json:"tracking_issues"`
			WorkContent    string `json:"work_content"`
			Blockers       string `json:"blockers"`
			NextPlan       string `json:"next_plan"`
		} `json:"reports"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Date: %s  Dispatched: %v  Reports: %d\n",
		result.Date, result.Dispatched, len(result.Reports))
	for _, r := range result.Reports {
		fmt.Printf("\n%s\n  Issues:   %s\n  Work:     %s\n  Blockers: %s\n  Next:     %s\n",
			r.Submitter, r.TrackingIssues, r.WorkContent, r.Blockers, r.NextPlan)
	}
	return nil
}
