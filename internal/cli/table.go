package cli

import (
	"errors"
	"io"
	"time"

	"workbench-backend/internal/di"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"
)

var errNoTable = errors.New("table commands need DynamoDB; drop --memory")

// NewTableCommand creates the table command group.
func NewTableCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Create and inspect the DynamoDB table",
	}
	cmd.AddCommand(newTableCreateCommand(rootOpts))
	cmd.AddCommand(newTableDescribeCommand(rootOpts))
	return cmd
}

func newTableCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the table and its secondary indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTable(cmd, rootOpts, func(c *di.Container) error {
				if err := c.Table.CreateTable(cmd.Context(), c.TableLayout.Indexes(), wait); err != nil {
					return err
				}
				return newFormatter(rootOpts, cmd.OutOrStdout()).Print(
					map[string]string{"table": c.TableLayout.TableName, "status": "created"},
					func(w io.Writer) error {
						_, err := io.WriteString(w, "created table "+c.TableLayout.TableName+"\n")
						return err
					})
			})
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 2*time.Minute, "how long to wait for the table to become active (0 to return immediately)")
	return cmd
}

type tableDescription struct {
	Name      string   `json:"name"`
	Status    string   `json:"status"`
	ItemCount int64    `json:"itemCount"`
	Indexes   []string `json:"indexes"`
	Verified  bool     `json:"verified"`
	Problem   string   `json:"problem,omitempty"`
}

func newTableDescribeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Show the table status and verify its indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTable(cmd, rootOpts, func(c *di.Container) error {
				table, err := c.Table.Describe(cmd.Context())
				if err != nil {
					return err
				}
				desc := tableDescription{
					Name:      aws.ToString(table.TableName),
					Status:    string(table.TableStatus),
					ItemCount: aws.ToInt64(table.ItemCount),
					Verified:  true,
				}
				for _, gsi := range table.GlobalSecondaryIndexes {
					desc.Indexes = append(desc.Indexes, aws.ToString(gsi.IndexName)+" ("+string(gsi.IndexStatus)+")")
				}
				if err := c.Table.VerifyTable(cmd.Context(), c.TableLayout.Indexes()); err != nil {
					desc.Verified = false
					desc.Problem = err.Error()
				}

				f := newFormatter(rootOpts, cmd.OutOrStdout())
				return f.Print(desc, func(w io.Writer) error {
					rows := [][]string{
						{"name", desc.Name},
						{"status", desc.Status},
						{"items", formatInt(desc.ItemCount)},
					}
					for _, idx := range desc.Indexes {
						rows = append(rows, []string{"index", idx})
					}
					if desc.Problem != "" {
						rows = append(rows, []string{"problem", desc.Problem})
					}
					return f.Table([]string{"FIELD", "VALUE"}, rows)
				})
			})
		},
	}
}

func withTable(cmd *cobra.Command, rootOpts *RootOptions, fn func(c *di.Container) error) error {
	c, cleanup, err := rootOpts.open(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()
	if c.Table == nil {
		return errNoTable
	}
	return fn(c)
}
