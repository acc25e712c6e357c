package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/K-Ho/ovm-graph-node/dialect"
	dsql "github.com/K-Ho/ovm-graph-node/dialect/sql"
	"github.com/K-Ho/ovm-graph-node/internal/logging"
	"github.com/K-Ho/ovm-graph-node/layout"
	"github.com/K-Ho/ovm-graph-node/schema"
)

func newMigrateCommand() *cobra.Command {
	var schemaPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the relational layout for a GraphQL entity schema",
		Long: `migrate parses a GraphQL SDL file describing @entity types (and any
@fulltext search configurations), compiles it into a relational layout, and
applies the resulting CREATE SCHEMA/TABLE/INDEX statements.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			sdl, err := os.ReadFile(schemaPath)
			if err != nil {
				return fmt.Errorf("relstore: reading schema file: %w", err)
			}
			doc, err := schema.ParseDocument(string(sdl))
			if err != nil {
				return fmt.Errorf("relstore: parsing schema: %w", err)
			}

			drv, err := dsql.Open(dialect.Postgres, cfg.DSN)
			if err != nil {
				return fmt.Errorf("relstore: connecting: %w", err)
			}
			defer drv.Close()

			l, err := layout.CreateRelationalSchema(context.Background(), drv, cfg.Namespace, cfg.SubgraphID, doc)
			if err != nil {
				logger.Error("migrate failed", zapErr(err))
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created relational layout for %d entity type(s) in namespace %q\n",
				len(l.Tables), cfg.Namespace)
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "path to the GraphQL SDL file to migrate (required)")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}
