package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dvr/internal/api"
	"dvr/internal/ipc"
)

func newConflictsCommand(ctx *commandContext) *cobra.Command {
	var source, channel, start, end string
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Check whether a program could be recorded without a conflict",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			from, err := parseWhen(start, now)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			to := from.Add(duration)
			if end != "" {
				if to, err = parseWhen(end, now); err != nil {
					return fmt.Errorf("--end: %w", err)
				}
			}
			query := api.ConflictQuery{
				SourceID:  source,
				ChannelID: channel,
				Start:     api.FormatTime(from),
				End:       api.FormatTime(to),
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Conflicts(query)
				if err != nil {
					return err
				}
				return emit(ctx, cmd, resp.Result, func() error {
					out := cmd.OutOrStdout()
					if !resp.Result.HasConflict {
						fmt.Fprintln(out, "No conflicts")
						return nil
					}
					fmt.Fprintln(out, resp.Result.Message)
					printTable(cmd, "", []string{"ID", "Status", "Channel", "Program", "Start", "End", "Padding"},
						buildScheduleRows(resp.Result.Conflicts),
						[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
					)
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Source (provider) ID")
	cmd.Flags().StringVar(&channel, "channel", "", "Channel ID")
	cmd.Flags().StringVar(&start, "start", "", "Program start")
	cmd.Flags().StringVar(&end, "end", "", "Program end")
	cmd.Flags().DurationVarP(&duration, "duration", "d", time.Hour, "Program length when --end is omitted")
	return cmd
}
