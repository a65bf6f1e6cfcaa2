package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

// vacationCmd manages vacation entries
var vacationCmd = &cobra.Command{
	Use:   "vacation",
	Short: "Manage vacation entries",
}

var vacationSetCmd = &cobra.Command{
	Use:   "set <name> [date]",
	Short: "Mark someone on vacation",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runVacationSet,
}

var vacationCancelCmd = &cobra.Command{
	Use:   "cancel <name> [date]",
	Short: "Cancel a vacation entry",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runVacationCancel,
}

var vacationListCmd = &cobra.Command{
	Use:   "list [date]",
	Short: "List who is on vacation",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runVacationList,
}

func init() {
	vacationCmd.AddCommand(vacationSetCmd)
	vacationCmd.AddCommand(vacationCancelCmd)
	vacationCmd.AddCommand(vacationListCmd)
}

func vacationDate(args []string, nameArgs int) string {
	if len(args) > nameArgs {
		return args[nameArgs]
	}
	return "today"
}

func runVacationSet(cmd *cobra.Command, args []string) error {
	reqJSON, err := json.Marshal(map[string]string{
		"name": args[0],
		"date": vacationDate(args, 1),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/vacations", serverURL)
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(endpoint, "application/json", bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	fmt.Printf("Vacation set for %s\n", args[0])
	return nil
}

func runVacationCancel(cmd *cobra.Command, args []string) error {
	endpoint := fmt.Sprintf("%s/api/v1/vacations?name=%s&date=%s",
		serverURL, url.QueryEscape(args[0]), url.QueryEscape(vacationDate(args, 1)))

	req, err := http.NewRequest(http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return statusError(resp)
	}
	fmt.Printf("Vacation cancelled for %s\n", args[0])
	return nil
}

func runVacationList(cmd *cobra.Command, args []string) error {
	endpoint := fmt.Sprintf("%s/api/v1/vacations/%s", serverURL, vacationDate(args, 0))
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	var result struct {
		Date  string   `json:"date"`
		Names []string `json:"names"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Names) == 0 {
		fmt.Printf("No one is on vacation on %s\n", result.Date)
		return nil
	}
	fmt.Printf("On vacation %s:\n", result.Date)
	for _, name := range result.Names {
		fmt.Printf("  %s\n", name)
	}
	return nil
}
