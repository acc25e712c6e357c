// Package main is the cli implementation of relstore. It uses cobra for
// command dispatch over the store/layout packages: a migrate command that
// materializes a GraphQL schema as a relational layout, and a query command
// that runs a single point lookup or filtered collection query, for
// smoke-testing a deployment against a real Postgres instance.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/K-Ho/ovm-graph-node/internal/config"
)

func zapErr(err error) zap.Field { return zap.Error(err) }

// newRootCommand builds the relstore root command with migrate and query
// wired in as subcommands.
func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "relstore",
		Short: "Relational storage layer for subgraph entities",
		Long: `relstore materializes a GraphQL entity schema into a versioned relational
layout (one table per type, block-range row versioning, full-text and
prefix indexes) and exposes migrate/query smoke commands against it.`,
		SilenceUsage: true,
	}

	root.AddCommand(newMigrateCommand())
	root.AddCommand(newQueryCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1) //revive:disable-line:deep-exit
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := config.New()
	config.BindFlags(v, cmd.Flags())
	return config.Load(v)
}
