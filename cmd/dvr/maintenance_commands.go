package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dvr/internal/cleanup"
	"dvr/internal/ipc"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Run a retention and disk-space cleanup pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Cleanup()
				if err != nil {
					return err
				}
				return emit(ctx, cmd, resp.Report, func() error {
					printCleanupReport(cmd, resp.Report)
					return nil
				})
			})
		},
	}
}

func printCleanupReport(cmd *cobra.Command, report cleanup.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Deleted %d recording(s), freed %s\n", report.Deleted(), formatBytes(report.BytesFreed))
	fmt.Fprintf(out, "  age: %d  quota: %d  emergency: %d  reconciled: %d\n",
		report.AgeDeleted, report.QuotaDeleted, report.EmergencyDeleted, report.Reconciled)
	if report.Usage != nil {
		fmt.Fprintf(out, "Disk: %s free of %s (%.1f%% used)\n",
			formatBytes(int64(report.Usage.Available)), formatBytes(int64(report.Usage.Total)), report.Usage.Percent)
	}
	if len(report.Removed) > 0 {
		rows := make([][]string, 0, len(report.Removed))
		for _, removal := range report.Removed {
			rows = append(rows, []string{
				strconv.FormatInt(removal.RecordingID, 10),
				string(removal.Pass),
				removal.Path,
				formatBytes(removal.Bytes),
			})
		}
		printTable(cmd, "", []string{"Recording", "Pass", "Path", "Size"}, rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight})
	}
	for _, failure := range report.Errors {
		fmt.Fprintf(out, "warn: recording #%d: %s\n", failure.RecordingID, failure.Error)
	}
}

func newPlaybackCommand(ctx *commandContext) *cobra.Command {
	playbackCmd := &cobra.Command{
		Use:   "playback",
		Short: "Report the channel a client is watching",
	}

	playbackCmd.AddCommand(&cobra.Command{
		Use:   "set <source-id> <channel-id>",
		Short: "Mark a channel as being watched",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Playback(args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Watching %s on %s\n", args[1], args[0])
				return nil
			})
		},
	})

	playbackCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Clear the watched channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Playback("", ""); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Playback cleared")
				return nil
			})
		},
	})

	return playbackCmd
}

func newSourcesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured stream sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Sources()
				if err != nil {
					return err
				}
				return emit(ctx, cmd, resp.Sources, func() error {
					printTable(cmd, "No sources configured",
						[]string{"ID", "Name", "Kind", "URL", "Connections"},
						buildSourceRows(resp.Sources),
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
					)
					return nil
				})
			})
		},
	}
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("missing notification response")
				}
				switch {
				case resp.Message != "":
					fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				case resp.Sent:
					fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
				default:
					fmt.Fprintln(cmd.OutOrStdout(), "Notification not sent")
				}
				return nil
			})
		},
	}
}
