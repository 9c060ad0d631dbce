package cli

import (
	"fmt"
	"io"
	"strings"

	"workbench-backend/internal/di"

	"github.com/spf13/cobra"
)

// NewWorkItemCommand creates the work-item command group.
func NewWorkItemCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "work-item",
		Aliases: []string{"wi"},
		Short:   "Inspect work items",
	}
	cmd.AddCommand(newWorkItemGetCommand(rootOpts))
	cmd.AddCommand(newWorkItemEventsCommand(rootOpts))
	return cmd
}

func newWorkItemGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a work item with its documents, children and product-element links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withContainer(cmd, rootOpts, func(c *di.Container) error {
				wi, err := c.WorkItems.GetWorkItemByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				return newFormatter(rootOpts, cmd.OutOrStdout()).Print(wi, func(w io.Writer) error {
					fmt.Fprintf(w, "%d  %s  [%s/%s]  client=%s  version=%d\n",
						wi.ID, wi.Name, wi.Type, wi.Status, wi.ClientName, wi.Version)
					if !wi.IsTopLevel() {
						fmt.Fprintf(w, "  parent: %d %s\n", wi.ParentID, wi.ParentName)
					}
					for _, child := range wi.Children {
						fmt.Fprintf(w, "  child %d: %s [%s]\n", child.ID, child.Name, child.Status)
					}
					for _, d := range wi.Documents {
						fmt.Fprintf(w, "  document %d: %s\n", d.ID, d.Name)
					}
					if len(wi.ProductElementIDs) > 0 {
						fmt.Fprintf(w, "  product elements: %v\n", wi.ProductElementIDs)
					}
					return nil
				})
			})
		},
	}
}

func newWorkItemEventsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "events <id>",
		Short: "List change events of a work item, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withContainer(cmd, rootOpts, func(c *di.Container) error {
				events, err := c.WorkItems.GetEventsForWorkItem(cmd.Context(), id)
				if err != nil {
					return err
				}
				f := newFormatter(rootOpts, cmd.OutOrStdout())
				return f.Print(events, func(io.Writer) error {
					rows := make([][]string, 0, len(events))
					for _, e := range events {
						rows = append(rows, []string{formatTime(e.CreatedAt), strings.ReplaceAll(e.Content, "\n", "; ")})
					}
					return f.Table([]string{"AT", "CHANGES"}, rows)
				})
			})
		},
	}
}
