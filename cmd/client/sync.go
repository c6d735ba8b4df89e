package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openmined/syftvault/internal/client"
	"github.com/openmined/syftvault/internal/client/sync"
	"github.com/openmined/syftvault/internal/model"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newSyncCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the vault with the server once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(c *client.Client) error {
				out := cmd.OutOrStdout()
				start := time.Now()

				var onProgress sync.ProgressFunc
				if !quiet {
					onProgress = func(p *model.SyncProgress) {
						fmt.Fprintf(out, "%s %s\n", gray.Render(fmt.Sprintf("[%d/%d]", p.Progress+1, p.Total)), renderUnit(p.CurrentWorkUnit))
					}
				}

				err := c.Sync(cmd.Context(), onProgress)
				printConflicts(out, c)

				var workErrs *sync.WorkErrors
				if errors.As(err, &workErrs) {
					ids := make([]string, 0, len(workErrs.Errors))
					for id, unitErr := range workErrs.Errors {
						ids = append(ids, fmt.Sprintf("  %s: %s", id, unitErr))
					}
					sort.Strings(ids)
					for _, line := range ids {
						fmt.Fprintln(out, red.Render(line))
					}
				}
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "%s in %s\n", green.Render("Synced"), time.Since(start).Round(time.Millisecond))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print each unit of work")
	return cmd
}

func renderUnit(unit model.ClientWorkUnit) string {
	switch unit.Kind {
	case model.ClientWorkUnitLocal:
		return pushColor("push ") + unit.Name
	case model.ClientWorkUnitServer:
		return pullColor("pull ") + unit.Name
	default:
		return pullColor("pull ") + gray.Render(unit.ID.String())
	}
}

func printConflicts(out io.Writer, c *client.Client) {
	for id, status := range c.Status().Snapshot() {
		if status.ConflictState != sync.ConflictStateConflicted {
			continue
		}
		path, err := c.Files().Path(id)
		if err != nil {
			path = id.String()
		}
		fmt.Fprintf(out, "%s %s\n", conflictColor("conflict"), path)
	}
}

type statusReport struct {
	Server     string                 `yaml:"server"`
	Username   string                 `yaml:"username"`
	LastSynced uint64                 `yaml:"last_synced"`
	Pending    []model.ClientWorkUnit `yaml:"pending"`
}

func newStatusCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show what the next sync would do, without syncing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(c *client.Client) error {
				lastSynced, err := c.LastSynced()
				if err != nil {
					return err
				}
				pending, err := c.PendingWork(cmd.Context())
				if err != nil {
					return err
				}

				report := statusReport{
					Server:     c.Account().APIURL,
					Username:   c.Account().Username,
					LastSynced: lastSynced,
					Pending:    pending,
				}

				out := cmd.OutOrStdout()
				switch output {
				case "yaml":
					enc := yaml.NewEncoder(out)
					enc.SetIndent(2)
					defer enc.Close()
					return enc.Encode(report)
				case "text":
					fmt.Fprintf(out, "Server:      %s\n", cyan.Render(report.Server))
					fmt.Fprintf(out, "Username:    %s\n", cyan.Render(report.Username))
					fmt.Fprintf(out, "Last synced: version %s\n", humanize.Comma(int64(report.LastSynced)))
					if len(pending) == 0 {
						fmt.Fprintln(out, green.Render("Up to date"))
						return nil
					}
					fmt.Fprintf(out, "%s pending:\n", humanize.Comma(int64(len(pending))))
					for _, unit := range pending {
						fmt.Fprintf(out, "  %s\n", renderUnit(unit))
					}
					return nil
				default:
					return fmt.Errorf("unknown output format %q", output)
				}
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text or yaml")
	return cmd
}

func newDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Keep the vault in sync until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(c *client.Client) error {
				return c.RunDaemon(cmd.Context())
			})
		},
	}
}
