// Package cli implements the workbench command line.
package cli

import (
	"context"
	"fmt"
	"slices"

	"workbench-backend/internal/config"
	"workbench-backend/internal/di"

	"github.com/spf13/cobra"
)

// Builder assembles a container from a loaded configuration.
type Builder func(ctx context.Context, cfg *config.Config) (*di.Container, func(), error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Memory     bool
	Format     string // "json" | "text"

	build Builder
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command wired against DynamoDB, or the
// in-memory store with --memory.
func NewRootCommand() *cobra.Command {
	return newRootCommand(nil)
}

func newRootCommand(build Builder) *cobra.Command {
	opts := &RootOptions{build: build}

	cmd := &cobra.Command{
		Use:   "workbench",
		Short: "Client and work-item tracking backend",
		Long:  "Workbench stores clients, product elements, work items and their documents in a single DynamoDB table.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML configuration file")
	cmd.PersistentFlags().BoolVar(&opts.Memory, "memory", false, "use the in-memory store instead of DynamoDB")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTableCommand(opts))
	cmd.AddCommand(NewClientCommand(opts))
	cmd.AddCommand(NewWorkItemCommand(opts))

	return cmd
}

// loadConfig reads the configuration the flags point at.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	return config.Load(o.ConfigPath)
}

// open builds the container for one command invocation.
func (o *RootOptions) open(ctx context.Context) (*di.Container, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	build := o.build
	switch {
	case build != nil:
	case o.Memory:
		build = di.InitializeInMemoryContainer
	default:
		build = di.InitializeContainer
	}
	return build(ctx, cfg)
}
