package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"splitguard/internal/engine"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running server",
	RunE:  runStatus,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset both controllers on a running server",
	RunE:  runReset,
}

var httpClient = &http.Client{Timeout: 5 * time.Second}

func apiDo(method, path string) ([]byte, error) {
	req, err := http.NewRequest(method, strings.TrimRight(apiAddr, "/")+path, nil)
	if err != nil {
		return nil, err
	}
	if apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+apiToken)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	body, err := apiDo(http.MethodGet, "/api/status")
	if err != nil {
		return err
	}

	var st engine.Status
	if err := json.Unmarshal(body, &st); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "frame %d  game time %.2f  in session %v\n", st.Frame, st.GameTime, st.InSession)
	fmt.Fprintf(out, "tranquil  enabled=%v  composite=%s  splits=%d\n",
		st.TranquilEnabled, st.Tranquil.Composite, st.Tranquil.Splits)
	fmt.Fprintf(out, "khanda    enabled=%v  composite=%s  splits=%d  intercepts=%d\n",
		st.KhandaEnabled, st.Khanda.Composite, st.Khanda.Splits, st.Khanda.Intercepts)
	fmt.Fprintf(out, "event log written=%d dropped=%d\n", st.EventLog.Total, st.EventLog.Dropped)
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	if _, err := apiDo(http.MethodPost, "/api/reset"); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Controllers reset.")
	return nil
}
