// ABOUTME: The triage command: inspect the unknown engine error store
// ABOUTME: Lists unresolved errors and the session lifecycle journal

package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/tdsession/internal/store"
)

var (
	triageLimit   int
	triageSession string
)

var triageCmd = &cobra.Command{
	Use:   "triage",
	Short: "List engine errors that did not resolve to a known kind",
	RunE:  runTriage,
}

var triageEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List session lifecycle events",
	RunE:  runTriageEvents,
}

func init() {
	triageCmd.PersistentFlags().IntVarP(&triageLimit, "limit", "n", 50, "maximum rows to show")
	triageEventsCmd.Flags().StringVar(&triageSession, "session", "", "only events of this session id")
	triageCmd.AddCommand(triageEventsCmd)
}

func openTriage() (*store.SQLiteStore, error) {
	cfg, _, err := loadConfig(false)
	if err != nil {
		return nil, err
	}
	path := cfg.TriagePath()
	if path == "" {
		return nil, errors.New("triage.path is not configured")
	}
	return store.NewSQLiteStore(path, cfg.Triage.Driver)
}

func runTriage(cmd *cobra.Command, _ []string) error {
	triage, err := openTriage()
	if err != nil {
		return err
	}
	defer triage.Close()

	errs, err := triage.ListUnknownErrors(cmd.Context(), triageLimit)
	if err != nil {
		return err
	}
	if len(errs) == 0 {
		color.Green("No unknown engine errors recorded.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	color.New(color.Bold).Fprintln(w, "CODE\tCOUNT\tLAST SEEN\tPATTERN\tMESSAGE")
	for _, e := range errs {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n",
			e.Code, e.Count, e.LastSeen.Local().Format(time.DateTime), e.Pattern, e.Message)
	}
	return w.Flush()
}

func runTriageEvents(cmd *cobra.Command, _ []string) error {
	triage, err := openTriage()
	if err != nil {
		return err
	}
	defer triage.Close()

	events, err := triage.ListSessionEvents(cmd.Context(), triageSession, triageLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	color.New(color.Bold).Fprintln(w, "TIME\tSESSION\tKIND\tDETAIL")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format(time.DateTime), e.SessionID, e.Kind, e.Detail)
	}
	return w.Flush()
}
