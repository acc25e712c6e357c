package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/K-Ho/ovm-graph-node/value"
)

func TestParseEqualFilter_Valid(t *testing.T) {
	f, err := parseEqualFilter("name=garfield")
	require.NoError(t, err)
	require.NotNil(t, f)
}

func TestParseEqualFilter_MissingEquals(t *testing.T) {
	_, err := parseEqualFilter("name")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field=value")
}

func TestFieldString_KindsRenderReadably(t *testing.T) {
	assert.Equal(t, "hi", fieldString(value.NewString("hi")))
	assert.Equal(t, "true", fieldString(value.NewBool(true)))
	assert.Equal(t, "42", fieldString(value.NewInt32(42)))
	assert.Equal(t, "null", fieldString(value.Null()))
	assert.Equal(t, "0x01ff", fieldString(value.NewBytes([]byte{0x01, 0xff})))
}
