package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dvr/internal/ipc"
)

func newRecordingsCommand(ctx *commandContext) *cobra.Command {
	recordingsCmd := &cobra.Command{
		Use:     "recordings",
		Aliases: []string{"recording", "rec"},
		Short:   "Inspect and manage recordings",
	}

	recordingsCmd.AddCommand(newRecordingsListCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsActiveCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsStopCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsDeleteCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsThumbnailCommand(ctx))

	return recordingsCmd
}

func newRecordingsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List finished recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordingList()
				if err != nil {
					return err
				}
				return emit(ctx, cmd, resp.Recordings, func() error {
					printTable(cmd, "No recordings", recordingHeaders, buildRecordingRows(resp.Recordings), recordingAligns)
					return nil
				})
			})
		},
	}
}

func newRecordingsActiveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "active",
		Short: "Show captures in progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordingActive()
				if err != nil {
					return err
				}
				return emit(ctx, cmd, resp.Active, func() error {
					printTable(cmd, "Nothing is recording",
						[]string{"Schedule", "State", "Channel", "Program", "Elapsed", "Written"},
						buildActiveRows(resp.Active),
						[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
					)
					return nil
				})
			})
		},
	}
}

func newRecordingsStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <schedule-id>",
		Short: "Stop a live capture early and keep what was recorded",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.RecordingStop(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stop requested for schedule #%d\n", id)
				return nil
			})
		},
	}
}

func newRecordingsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete recordings and their files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				var total int64
				for _, id := range ids {
					resp, err := client.RecordingDelete(id)
					if err != nil {
						return fmt.Errorf("delete recording #%d: %w", id, err)
					}
					total += resp.BytesFreed
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted recording #%d (%s)\n", id, formatBytes(resp.BytesFreed))
				}
				if len(ids) > 1 {
					fmt.Fprintf(cmd.OutOrStdout(), "Freed %s\n", formatBytes(total))
				}
				return nil
			})
		},
	}
}

func newRecordingsThumbnailCommand(ctx *commandContext) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "thumbnail <id>",
		Short: "Save the preview image of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			target := strings.TrimSpace(outPath)
			if target == "" {
				target = fmt.Sprintf("recording-%d.jpg", id)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordingThumbnail(id)
				if err != nil {
					return err
				}
				if err := os.WriteFile(target, resp.Data, 0o644); err != nil {
					return fmt.Errorf("write thumbnail: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", target)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Destination file (default recording-<id>.jpg)")
	return cmd
}
