package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dvr/internal/daemon"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var client string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP API",
		Long: "Issue a bearer token signed with [paths] api_secret. Clients send it as\n" +
			"\"Authorization: Bearer <token>\", or as ?token= on the event stream.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if strings.TrimSpace(cfg.Paths.APISecret) == "" {
				return errors.New("api_secret is not set; the HTTP API runs without authentication")
			}
			if strings.TrimSpace(client) == "" {
				return errors.New("--client is required")
			}
			lifetime := time.Duration(cfg.Paths.TokenTTLHours) * time.Hour
			if cmd.Flags().Changed("ttl") {
				lifetime = ttl
			}
			token, err := daemon.IssueToken(cfg.Paths.APISecret, client, lifetime)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]string{"client": client, "token": token})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&client, "client", "", "Name of the client the token is issued to")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime; 0 never expires (default from token_ttl_hours)")
	return cmd
}
