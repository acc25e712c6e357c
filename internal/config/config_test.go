package config_test

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/K-Ho/ovm-graph-node/internal/config"
)

func newBoundFlags() (*pflag.FlagSet, *config.Config, func() (*config.Config, error)) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	v := config.New()
	config.BindFlags(v, fs)
	return fs, nil, func() (*config.Config, error) { return config.Load(v) }
}

func TestLoad_RequiresDSN(t *testing.T) {
	_, _, load := newBoundFlags()
	_, err := load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn is required")
}

func TestLoad_FlagsResolve(t *testing.T) {
	fs, _, load := newBoundFlags()
	require.NoError(t, fs.Parse([]string{
		"--dsn", "postgres://localhost/db",
		"--namespace", "sg1",
		"--subgraph-id", "Qm123",
		"--prefix-size", "128",
		"--log-level", "debug",
	}))

	c, err := load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/db", c.DSN)
	assert.Equal(t, "sg1", c.Namespace)
	assert.Equal(t, "Qm123", c.SubgraphID)
	assert.Equal(t, 128, c.PrefixSize)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestLoad_DefaultsPrefixSizeWhenZero(t *testing.T) {
	fs, _, load := newBoundFlags()
	require.NoError(t, fs.Parse([]string{"--dsn", "postgres://localhost/db", "--prefix-size", "0"}))

	c, err := load()
	require.NoError(t, err)
	assert.Greater(t, c.PrefixSize, 0)
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	t.Setenv("RELSTORE_DSN", "postgres://env/db")
	fs, _, load := newBoundFlags()
	require.NoError(t, fs.Parse(nil))

	c, err := load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", c.DSN)
}
