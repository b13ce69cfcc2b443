package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dvr/internal/daemonrun"
	"dvr/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the daemon log of the current run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			pointer := filepath.Join(cfg.Paths.LogDir, daemonrun.LogPointer)
			out := cmd.OutOrStdout()

			if !follow {
				result, err := logs.Tail(cmd.Context(), logs.Resolve(pointer), logs.Options{Offset: -1, Limit: lines})
				if err != nil {
					return err
				}
				if len(result.Lines) == 0 {
					fmt.Fprintf(out, "No log output at %s\n", pointer)
				}
				for _, line := range result.Lines {
					fmt.Fprintln(out, line)
				}
				return nil
			}

			followCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			err = logs.Follow(followCtx, pointer, lines, time.Second, func(line string) {
				fmt.Fprintln(out, line)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines, across daemon restarts")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to print first")
	return cmd
}
