package main

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/openmined/syftvault/internal/client"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var importKey string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new vault account, or import one with --key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			var key []byte
			if importKey != "" {
				if key, err = base64.StdEncoding.DecodeString(strings.TrimSpace(importKey)); err != nil {
					return fmt.Errorf("invalid account key: %w", err)
				}
			}

			logFile, err := setupLogging(cmd, cfg)
			if err != nil {
				return err
			}
			defer logFile.Close()

			c, err := client.Init(cfg, key)
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			if key != nil {
				fmt.Fprintln(out, "Vault account imported, run `vault sync` to pull your files")
			} else {
				fmt.Fprintln(out, "Vault account created")
			}
			fmt.Fprintf(out, "Config:   %s\n", green.Render(cfg.Path))
			fmt.Fprintf(out, "Username: %s\n", cyan.Render(cfg.Username))
			fmt.Fprintf(out, "Data Dir: %s\n", cyan.Render(cfg.DataDir))
			fmt.Fprintf(out, "Server:   %s\n", cyan.Render(cfg.ServerURL))
			if key == nil {
				fmt.Fprintln(out, gray.Render("Back up your account key with `vault key`, it is the only way to decrypt your files"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&importKey, "key", "k", "", "Import an existing account from its base64 key")
	return cmd
}

func newKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "key",
		Short: "Print the account key for importing on another device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(c *client.Client) error {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(c.Account().Key))
				return err
			})
		},
	}
}
