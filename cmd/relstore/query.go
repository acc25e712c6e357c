package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	velox "github.com/K-Ho/ovm-graph-node"
	"github.com/K-Ho/ovm-graph-node/dialect"
	dsql "github.com/K-Ho/ovm-graph-node/dialect/sql"
	"github.com/K-Ho/ovm-graph-node/filter"
	"github.com/K-Ho/ovm-graph-node/internal/logging"
	"github.com/K-Ho/ovm-graph-node/layout"
	"github.com/K-Ho/ovm-graph-node/schema"
	"github.com/K-Ho/ovm-graph-node/store"
	"github.com/K-Ho/ovm-graph-node/store/query"
	"github.com/K-Ho/ovm-graph-node/value"
)

func newQueryCommand() *cobra.Command {
	var (
		schemaPath string
		entityType string
		id         string
		block      int64
		equal      string
		orderBy    string
		desc       bool
		first      int
		skip       int
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a single point lookup or filtered collection query",
		Long: `query is a smoke-test command: with --id it runs a single Find, otherwise it
runs a collection Query over --type (optionally restricted by one
"field=value" --equal filter), printing one line per matching entity.`,
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
			store.SetLogger(logger)

			sdl, err := os.ReadFile(schemaPath)
			if err != nil {
				return fmt.Errorf("relstore: reading schema file: %w", err)
			}
			doc, err := schema.ParseDocument(string(sdl))
			if err != nil {
				return fmt.Errorf("relstore: parsing schema: %w", err)
			}
			l, err := layout.Compile(doc, cfg.Namespace, cfg.SubgraphID)
			if err != nil {
				return fmt.Errorf("relstore: compiling layout: %w", err)
			}

			drv, err := dsql.Open(dialect.Postgres, cfg.DSN)
			if err != nil {
				return fmt.Errorf("relstore: connecting: %w", err)
			}
			defer drv.Close()

			ctx := context.Background()
			if id != "" {
				e, err := store.Find(ctx, drv, l, entityType, id, block)
				if err != nil {
					return err
				}
				if e == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "not found")
					return nil
				}
				printEntity(cmd, *e)
				return nil
			}

			q := query.Query{Types: []string{entityType}, Block: block, Skip: skip}
			if first > 0 {
				q.First = &first
			}
			if orderBy != "" {
				q.Order = &query.Order{Attr: orderBy, Desc: desc}
			}
			if equal != "" {
				f, err := parseEqualFilter(equal)
				if err != nil {
					return err
				}
				q.Filter = f
			}

			entities, err := store.Query(ctx, drv, l, q)
			if err != nil {
				return err
			}
			for _, e := range entities {
				printEntity(cmd, e)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d entities\n", len(entities))
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "path to the GraphQL SDL file describing the layout (required)")
	cmd.Flags().StringVar(&entityType, "type", "", "entity type to query (required)")
	cmd.Flags().StringVar(&id, "id", "", "entity id for a point lookup; omit to run a collection query")
	cmd.Flags().Int64Var(&block, "block", 0, "block number the query is visible as of")
	cmd.Flags().StringVar(&equal, "equal", "", `a single "field=value" string-equality filter`)
	cmd.Flags().StringVar(&orderBy, "order-by", "", "field to order a collection query by (default id)")
	cmd.Flags().BoolVar(&desc, "desc", false, "order descending")
	cmd.Flags().IntVar(&first, "first", 0, "max rows to return (0 = unlimited)")
	cmd.Flags().IntVar(&skip, "skip", 0, "rows to skip")
	_ = cmd.MarkFlagRequired("schema")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func parseEqualFilter(expr string) (filter.Filter, error) {
	field, val, ok := strings.Cut(expr, "=")
	if !ok {
		return nil, fmt.Errorf("relstore: --equal must be \"field=value\", got %q", expr)
	}
	return filter.Equal(field, value.NewString(val)), nil
}

func printEntity(cmd *cobra.Command, e velox.Entity) {
	var b strings.Builder
	for i, f := range e.Fields() {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%s=%v", f.Name, fieldString(f.Value))
	}
	fmt.Fprintln(cmd.OutOrStdout(), b.String())
}

func fieldString(v value.Value) string {
	switch v.Kind() {
	case value.KindString:
		s, _ := v.String()
		return s
	case value.KindEnum:
		s, _ := v.Enum()
		return s
	case value.KindBool:
		b, _ := v.Bool()
		return fmt.Sprintf("%v", b)
	case value.KindInt32:
		n, _ := v.Int32()
		return fmt.Sprintf("%d", n)
	case value.KindBigDecimal:
		d, _ := v.BigDecimal()
		return d.String()
	case value.KindBigInt:
		n, _ := v.BigInt()
		return n.String()
	case value.KindBytes:
		s, _ := v.AsHexString()
		return s
	case value.KindNull:
		return "null"
	default:
		return fmt.Sprintf("%v", v)
	}
}
