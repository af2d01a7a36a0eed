package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"splitguard/internal/config"
	"splitguard/internal/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the decision journal",
}

var journalSessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List journaled sessions, newest first",
	RunE:  runJournalSessions,
}

var journalDecisionsCmd = &cobra.Command{
	Use:   "decisions [session-id]",
	Short: "Show the decisions of one session",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDecisions,
}

var (
	journalPath  string
	journalLimit int
)

func init() {
	journalCmd.AddCommand(journalSessionsCmd, journalDecisionsCmd)
	journalCmd.PersistentFlags().StringVar(&journalPath, "db", config.ServerFromEnv().JournalPath, "Journal database path")
	journalSessionsCmd.Flags().IntVar(&journalLimit, "limit", 20, "Maximum sessions to list (0 = all)")
}

func openJournal() (*journal.Journal, error) {
	j, err := journal.Open(journalPath, 1)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", journalPath, err)
	}
	return j, nil
}

func runJournalSessions(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	sessions, err := j.Sessions(cmd.Context(), journalLimit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions journaled.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tDECISIONS\tEND")
	for _, s := range sessions {
		dur, end := "running", "-"
		if s.EndedAt != nil {
			dur = s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
			end = s.EndReason
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			s.ID, s.StartedAt.Format(time.DateTime), dur, s.Decisions, end)
	}
	return w.Flush()
}

func runJournalDecisions(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	recs, err := j.Decisions(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AT\tGAME TIME\tCONTROLLER\tACTION\tCAUSE\tITEM\tQUEUED\tREASON")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%.3f\t%s\t%s\t%s\t%s\t%v\t%s\n",
			r.At.Format("15:04:05.000"), r.GameTime, r.Controller, r.Action, r.Cause, r.Item, r.Queue, r.Reason)
	}
	return w.Flush()
}
