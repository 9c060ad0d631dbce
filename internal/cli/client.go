package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"workbench-backend/internal/di"

	"github.com/spf13/cobra"
)

// NewClientCommand creates the client command group.
func NewClientCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage clients",
	}
	cmd.AddCommand(newClientAddCommand(rootOpts))
	cmd.AddCommand(newClientListCommand(rootOpts))
	cmd.AddCommand(newClientGetCommand(rootOpts))
	cmd.AddCommand(newClientSummarizeCommand(rootOpts))
	return cmd
}

func newClientAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Add a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, rootOpts, func(c *di.Container) error {
				id, err := c.Clients.AddClient(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return newFormatter(rootOpts, cmd.OutOrStdout()).Print(
					map[string]int64{"id": id},
					func(w io.Writer) error {
						_, err := fmt.Fprintf(w, "added client %d\n", id)
						return err
					})
			})
		},
	}
}

func newClientListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active clients in creation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, rootOpts, func(c *di.Container) error {
				clients, err := c.Clients.GetClients(cmd.Context())
				if err != nil {
					return err
				}
				f := newFormatter(rootOpts, cmd.OutOrStdout())
				return f.Print(clients, func(io.Writer) error {
					rows := make([][]string, 0, len(clients))
					for _, cl := range clients {
						rows = append(rows, []string{formatInt(cl.ID), cl.Name, formatTime(cl.CreatedAt)})
					}
					return f.Table([]string{"ID", "NAME", "CREATED"}, rows)
				})
			})
		},
	}
}

func newClientGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a client with its documents and summaries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withContainer(cmd, rootOpts, func(c *di.Container) error {
				client, err := c.Clients.GetClientByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				f := newFormatter(rootOpts, cmd.OutOrStdout())
				return f.Print(client, func(w io.Writer) error {
					fmt.Fprintf(w, "%d  %s  active=%t  created=%s\n", client.ID, client.Name, client.IsActive, formatTime(client.CreatedAt))
					for _, d := range client.Documents {
						fmt.Fprintf(w, "  document %d: %s (%s)\n", d.ID, d.Name, d.Type)
					}
					for _, s := range client.Summaries {
						fmt.Fprintf(w, "  summary %s\n", formatTime(s.CreatedAt))
					}
					return nil
				})
			})
		},
	}
}

func newClientSummarizeCommand(rootOpts *RootOptions) *cobra.Command {
	var since time.Duration
	cmd := &cobra.Command{
		Use:   "summarize <id>",
		Short: "Draft and store a client summary from recent work-item activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withContainer(cmd, rootOpts, func(c *di.Container) error {
				until := time.Now()
				summary, err := c.Summaries.DraftClientSummary(cmd.Context(), id, until.Add(-since), until)
				if err != nil {
					return err
				}
				return newFormatter(rootOpts, cmd.OutOrStdout()).Print(summary, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, summary.Content)
					return err
				})
			})
		},
	}
	cmd.Flags().DurationVar(&since, "since", 7*24*time.Hour, "how far back to collect activity")
	return cmd
}

func withContainer(cmd *cobra.Command, rootOpts *RootOptions, fn func(c *di.Container) error) error {
	c, cleanup, err := rootOpts.open(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(c)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
