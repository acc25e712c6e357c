// Package config loads the relational store's runtime configuration: the
// Postgres DSN, the schema namespace and subgraph id a Layout is bound to,
// the text-prefix index size, and the log level, via spf13/viper so every
// field can come from a flag or an environment variable. No config file is
// read.
package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/K-Ho/ovm-graph-node/layout"
)

const envPrefix = "RELSTORE"

// Config is the resolved set of values cmd/relstore needs to open a
// connection and bind it to a namespace.
type Config struct {
	DSN        string `mapstructure:"dsn"`
	Namespace  string `mapstructure:"namespace"`
	SubgraphID string `mapstructure:"subgraph-id"`
	PrefixSize int    `mapstructure:"prefix-size"`
	LogLevel   string `mapstructure:"log-level"`
}

// BindFlags registers the config's flags on fs and binds each to v; Load
// then adds the RELSTORE_-prefixed environment variables, so that a flag or
// an env var can supply the same value, in that precedence order.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.String("dsn", "", "PostgreSQL connection string")
	fs.String("namespace", "", "schema namespace the layout is created under (empty = search_path default)")
	fs.String("subgraph-id", "", "subgraph id the layout is bound to")
	fs.Int("prefix-size", layout.StringPrefixSize, "LEFT(v,P) prefix length, read into Config.PrefixSize (layouts are compiled with layout.StringPrefixSize)")
	fs.String("log-level", "info", "zap log level (debug, info, warn, error)")

	for _, name := range []string{"dsn", "namespace", "subgraph-id", "prefix-size", "log-level"} {
		_ = v.BindPFlag(name, fs.Lookup(name))
	}
}

// Load resolves a Config from v, which must already have had BindFlags
// applied to the FlagSet it wraps. Flags override environment variables
// (RELSTORE_DSN, RELSTORE_NAMESPACE, ...), which override the registered
// defaults.
func Load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if c.DSN == "" {
		return nil, fmt.Errorf("config: dsn is required (--dsn or RELSTORE_DSN)")
	}
	if c.PrefixSize <= 0 {
		c.PrefixSize = layout.StringPrefixSize
	}
	return &c, nil
}

// New returns a fresh viper instance scoped to one command invocation; a
// package-level viper.GetViper() would leak flag bindings across repeated
// NewRootCommand calls in tests.
func New() *viper.Viper { return viper.New() }
