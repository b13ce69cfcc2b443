package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dvr/internal/ipc"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and change persisted recorder settings",
	}

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every setting with its effective value",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SettingsList()
				if err != nil {
					return err
				}
				return emit(ctx, cmd, resp.Settings, func() error {
					rows := make([][]string, 0, len(resp.Settings))
					for _, setting := range resp.Settings {
						rows = append(rows, []string{setting.Key, setting.Value})
					}
					printTable(cmd, "No settings", []string{"Key", "Value"}, rows, nil)
					return nil
				})
			})
		},
	})

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SettingGet(args[0])
				if err != nil {
					return err
				}
				return emit(ctx, cmd, resp.Setting, func() error {
					fmt.Fprintln(cmd.OutOrStdout(), resp.Setting.Value)
					return nil
				})
			})
		},
	})

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SettingSet(args[0], args[1])
				if err != nil {
					return err
				}
				return emit(ctx, cmd, resp.Setting, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", resp.Setting.Key, resp.Setting.Value)
					return nil
				})
			})
		},
	})

	return settingsCmd
}
