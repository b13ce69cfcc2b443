package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dvr/internal/api"
	"dvr/internal/ipc"
)

func newScheduleCommand(ctx *commandContext) *cobra.Command {
	scheduleCmd := &cobra.Command{
		Use:     "schedule",
		Aliases: []string{"schedules"},
		Short:   "Create and manage scheduled recordings",
	}

	scheduleCmd.AddCommand(newScheduleAddCommand(ctx))
	scheduleCmd.AddCommand(newScheduleListCommand(ctx))
	scheduleCmd.AddCommand(newScheduleShowCommand(ctx))
	scheduleCmd.AddCommand(newScheduleCancelCommand(ctx))
	scheduleCmd.AddCommand(newScheduleDeleteCommand(ctx))
	scheduleCmd.AddCommand(newSchedulePaddingCommand(ctx))
	scheduleCmd.AddCommand(newScheduleStreamURLCommand(ctx))

	return scheduleCmd
}

type scheduleAddFlags struct {
	source       string
	channel      string
	channelName  string
	title        string
	start        string
	end          string
	duration     time.Duration
	startPadding int64
	endPadding   int64
	recurrence   string
	url          string
	channelURL   string
	force        bool
}

func (f scheduleAddFlags) toCreate(cmd *cobra.Command, now time.Time) (api.ScheduleCreate, error) {
	if strings.TrimSpace(f.source) == "" || strings.TrimSpace(f.channel) == "" {
		return api.ScheduleCreate{}, errors.New("--source and --channel are required")
	}
	start, err := parseWhen(f.start, now)
	if err != nil {
		return api.ScheduleCreate{}, fmt.Errorf("--start: %w", err)
	}
	var end time.Time
	switch {
	case strings.TrimSpace(f.end) != "":
		end, err = parseWhen(f.end, now)
		if err != nil {
			return api.ScheduleCreate{}, fmt.Errorf("--end: %w", err)
		}
	case f.duration > 0:
		end = start.Add(f.duration)
	default:
		return api.ScheduleCreate{}, errors.New("one of --end or --duration is required")
	}

	create := api.ScheduleCreate{
		SourceID:     f.source,
		ChannelID:    f.channel,
		ChannelName:  f.channelName,
		ProgramTitle: f.title,
		Start:        api.FormatTime(start),
		End:          api.FormatTime(end),
		Recurrence:   f.recurrence,
		ResolvedURL:  f.url,
		ChannelURL:   f.channelURL,
		Force:        f.force,
	}
	if create.ChannelName == "" {
		create.ChannelName = f.channel
	}
	if cmd.Flags().Changed("start-padding") {
		value := f.startPadding
		create.StartPaddingSec = &value
	}
	if cmd.Flags().Changed("end-padding") {
		value := f.endPadding
		create.EndPaddingSec = &value
	}
	return create, nil
}

func newScheduleAddCommand(ctx *commandContext) *cobra.Command {
	var flags scheduleAddFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Schedule a recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			create, err := flags.toCreate(cmd, time.Now())
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ScheduleAdd(ipc.ScheduleAddRequest{Schedule: create})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if err := writeJSON(cmd, resp); err != nil {
						return err
					}
				} else {
					printScheduleAdd(cmd, resp)
				}
				if resp.Refused {
					return errors.New("schedule refused because of a conflict (use --force to record anyway)")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&flags.source, "source", "", "Source (provider) ID")
	cmd.Flags().StringVar(&flags.channel, "channel", "", "Channel ID within the source")
	cmd.Flags().StringVar(&flags.channelName, "channel-name", "", "Channel display name")
	cmd.Flags().StringVarP(&flags.title, "title", "t", "", "Program title")
	cmd.Flags().StringVar(&flags.start, "start", "", "Program start (RFC3339, \"YYYY-MM-DD HH:MM\", or \"HH:MM\" today)")
	cmd.Flags().StringVar(&flags.end, "end", "", "Program end, same formats as --start")
	cmd.Flags().DurationVarP(&flags.duration, "duration", "d", 0, "Program length, instead of --end")
	cmd.Flags().Int64Var(&flags.startPadding, "start-padding", 0, "Seconds to record before the start (default from settings)")
	cmd.Flags().Int64Var(&flags.endPadding, "end-padding", 0, "Seconds to record after the end (default from settings)")
	cmd.Flags().StringVar(&flags.recurrence, "recurrence", "", "Recurrence rule, stored as given")
	cmd.Flags().StringVar(&flags.url, "url", "", "Stream URL already resolved by the client")
	cmd.Flags().StringVar(&flags.channelURL, "channel-url", "", "Raw channel URL the stream is regenerated from")
	cmd.Flags().BoolVar(&flags.force, "force", false, "Schedule even when a conflict is reported")
	return cmd
}

func printScheduleAdd(cmd *cobra.Command, resp *ipc.ScheduleAddResponse) {
	out := cmd.OutOrStdout()
	if resp.Conflict != nil {
		fmt.Fprintln(out, resp.Conflict.Message)
		for _, other := range resp.Conflict.Conflicts {
			fmt.Fprintf(out, "  #%d %s on %s, %s to %s\n", other.ID, dash(other.ProgramTitle), other.ChannelName,
				displayTime(other.CaptureStart), displayTime(other.CaptureEnd))
		}
	}
	if !resp.Refused {
		fmt.Fprintf(out, "Scheduled recording #%d\n", resp.ID)
	}
}

func newScheduleListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules (pending ones by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := statuses
			if len(filter) == 0 && !all {
				filter = []string{"scheduled", "recording"}
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ScheduleList(filter)
				if err != nil {
					return err
				}
				return emit(ctx, cmd, resp.Schedules, func() error {
					printTable(cmd, "No schedules",
						[]string{"ID", "Status", "Channel", "Program", "Start", "End", "Padding"},
						buildScheduleRows(resp.Schedules),
						[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
					)
					return nil
				})
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (scheduled, recording, completed, failed, canceled)")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include finished and canceled schedules")
	return cmd
}

func newScheduleShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a schedule and its recordings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ScheduleShow(id)
				if err != nil {
					return err
				}
				return emit(ctx, cmd, resp, func() error {
					printScheduleDetail(cmd, resp.Schedule)
					if len(resp.Recordings) > 0 {
						fmt.Fprintln(cmd.OutOrStdout())
						printTable(cmd, "", recordingHeaders, buildRecordingRows(resp.Recordings), recordingAligns)
					}
					return nil
				})
			})
		},
	}
}

func newScheduleCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>...",
		Short: "Cancel schedules; a live recording is stopped",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				for _, id := range ids {
					if _, err := client.ScheduleCancel(id); err != nil {
						return fmt.Errorf("cancel #%d: %w", id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Canceled schedule #%d\n", id)
				}
				return nil
			})
		},
	}
}

func newScheduleDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete schedules together with their recording files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				for _, id := range ids {
					if _, err := client.ScheduleDelete(id); err != nil {
						return fmt.Errorf("delete #%d: %w", id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted schedule #%d\n", id)
				}
				return nil
			})
		},
	}
}

func newSchedulePaddingCommand(ctx *commandContext) *cobra.Command {
	var startPadding, endPadding int64

	cmd := &cobra.Command{
		Use:   "padding <id>",
		Short: "Change the paddings of a pending schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				current, err := client.ScheduleShow(id)
				if err != nil {
					return err
				}
				req := ipc.SchedulePaddingRequest{
					ID:              id,
					StartPaddingSec: current.Schedule.StartPaddingSec,
					EndPaddingSec:   current.Schedule.EndPaddingSec,
				}
				if cmd.Flags().Changed("start") {
					req.StartPaddingSec = startPadding
				}
				if cmd.Flags().Changed("end") {
					req.EndPaddingSec = endPadding
				}
				resp, err := client.SchedulePadding(req)
				if err != nil {
					return err
				}
				return emit(ctx, cmd, resp.Schedule, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "Schedule #%d now records %s to %s\n", id,
						displayTime(resp.Schedule.CaptureStart), displayTime(resp.Schedule.CaptureEnd))
					return nil
				})
			})
		},
	}
	cmd.Flags().Int64Var(&startPadding, "start", 0, "Seconds to record before the start")
	cmd.Flags().Int64Var(&endPadding, "end", 0, "Seconds to record after the end")
	return cmd
}

func newScheduleStreamURLCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stream-url <id> <url>",
		Short: "Supply a freshly resolved stream URL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ScheduleStreamURL(id, args[1])
				if err != nil {
					return err
				}
				return emit(ctx, cmd, resp, func() error {
					if resp.Delivered {
						fmt.Fprintf(cmd.OutOrStdout(), "Stream URL delivered to the waiting recording #%d\n", id)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "Stream URL stored for schedule #%d\n", id)
					}
					return nil
				})
			})
		},
	}
}

func printScheduleDetail(cmd *cobra.Command, s api.Schedule) {
	out := cmd.OutOrStdout()
	rows := [][2]string{
		{"ID", strconv.FormatInt(s.ID, 10)},
		{"Status", s.Status},
		{"Source", s.SourceID},
		{"Channel", fmt.Sprintf("%s (%s)", s.ChannelName, s.ChannelID)},
		{"Program", dash(s.ProgramTitle)},
		{"Start", displayTime(s.Start)},
		{"End", displayTime(s.End)},
		{"Padding", fmt.Sprintf("%ds before, %ds after", s.StartPaddingSec, s.EndPaddingSec)},
		{"Capture", displayTime(s.CaptureStart) + " to " + displayTime(s.CaptureEnd)},
		{"Recurrence", dash(s.Recurrence)},
		{"Stream URL", yesNo(s.HasResolvedURL)},
		{"Created", displayTime(s.CreatedAt)},
	}
	for _, row := range rows {
		fmt.Fprintf(out, "%-12s %s\n", row[0]+":", row[1])
	}
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(value), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", value)
	}
	return id, nil
}

func parseIDs(values []string) ([]int64, error) {
	ids := make([]int64, 0, len(values))
	for _, value := range values {
		id, err := parseID(value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

var localLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// parseWhen accepts RFC3339, a local date and time, or a bare local HH:MM
// meaning today.
func parseWhen(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("time is required")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, now.Location()); err == nil {
			return t, nil
		}
	}
	if clock, err := time.ParseInLocation("15:04", value, now.Location()); err == nil {
		year, month, day := now.Date()
		return time.Date(year, month, day, clock.Hour(), clock.Minute(), 0, 0, now.Location()), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", value)
}
