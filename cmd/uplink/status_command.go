package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCommand(cctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status [run-id]",
		Short: "Show recent runs, or one run's per-tracker outcomes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				runID, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("run id must be numeric, got %q", args[0])
				}
				run, err := store.GetRun(cmd.Context(), runID)
				if err != nil {
					return err
				}
				records, err := store.TrackerResults(cmd.Context(), runID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Run %d: %s (%s)\n", run.ID, run.ReleaseTitle, run.Status)
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					detail := rec.Reason
					if rec.Error != "" {
						detail = rec.Error
					}
					rows = append(rows, []string{
						rec.Tracker,
						colorizeState(out, rec.State),
						rec.TorrentID,
						rec.DetailsURL,
						detail,
						rec.Duration.Truncate(10 * time.Millisecond).String(),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Tracker", "State", "Torrent", "Link", "Detail", "Duration"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight},
				))
				return nil
			}

			runs, err := store.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				finished := ""
				if !run.FinishedAt.IsZero() {
					finished = run.FinishedAt.Local().Format(time.DateTime)
				}
				rows = append(rows, []string{
					strconv.FormatInt(run.ID, 10),
					run.ReleaseTitle,
					run.Status,
					run.StartedAt.Local().Format(time.DateTime),
					finished,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Release", "Status", "Started", "Finished"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	return cmd
}
