package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd(rt *runtime) *cobra.Command {
	var (
		remote bool
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List jobs started from this machine, or all account jobs with --remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()

			if remote {
				if err := rt.requireLogin(); err != nil {
					return err
				}
				jobs, err := rt.api.History(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "JOB ID\tSTATUS\tTITLE")
				for i, job := range jobs {
					if limit > 0 && i >= limit {
						break
					}
					title := ""
					if job.Result != nil {
						title = job.Result.Title
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", job.ID, job.Status, title)
				}
				return nil
			}

			history, err := rt.historyRepo(ctx)
			if err != nil {
				return err
			}
			records, err := history.List(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "JOB ID\tSTATUS\tSUBMITTED\tTOPIC")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.JobID, r.Status, r.SubmittedAt.Local().Format(time.DateTime), r.Topic)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "list the account's jobs from the service")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries to show (0 for all)")
	cmd.AddCommand(newHistoryRemoveCmd(rt))
	return cmd
}

func newHistoryRemoveCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <job-id>...",
		Short: "Forget jobs in the local history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			history, err := rt.historyRepo(ctx)
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := history.Delete(ctx, id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
