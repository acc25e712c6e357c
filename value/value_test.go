package value_test

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/K-Ho/ovm-graph-node/value"
)

func TestNullEqualsOnlyNull(t *testing.T) {
	assert.True(t, value.Null().Equal(value.Null()))
	assert.False(t, value.Null().Equal(value.NewInt32(0)))
	assert.False(t, value.NewString("").Equal(value.Null()))
}

func TestBigDecimalEqualityIsNumeric(t *testing.T) {
	// 5000 at scale -2 (50 * 10^2) must compare equal to a differently
	// scaled representation of the same number, per spec.md §4.1.
	a := decimal.New(50, 2)  // 50 * 10^2 = 5000
	b := decimal.New(5000, 0)
	require.True(t, a.Equal(b))
	assert.True(t, value.NewBigDecimal(a).Equal(value.NewBigDecimal(b)))

	cmp, ok := value.Compare(value.NewBigDecimal(a), value.NewBigDecimal(b))
	require.True(t, ok)
	assert.Equal(t, 0, cmp)
}

func TestBytesEqualityIsBytewise(t *testing.T) {
	a := value.NewBytes([]byte{0xde, 0xad})
	b := value.NewBytes([]byte{0xde, 0xad})
	c := value.NewBytes([]byte{0xbe, 0xef})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))

	hexVal, err := value.NewBytesFromHex("0xdead")
	require.NoError(t, err)
	assert.True(t, a.Equal(hexVal))
}

func TestBigIntRoundTrip(t *testing.T) {
	huge := new(big.Int).Exp(big.NewInt(2), big.NewInt(128), nil)
	v := value.NewBigInt(huge)
	got, ok := v.BigInt()
	require.True(t, ok)
	assert.Equal(t, 0, huge.Cmp(got))
}

func TestListEqualityIsOrderedElementwise(t *testing.T) {
	a := value.NewList([]value.Value{value.NewString("x"), value.NewString("y")})
	b := value.NewList([]value.Value{value.NewString("x"), value.NewString("y")})
	c := value.NewList([]value.Value{value.NewString("y"), value.NewString("x")})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestListContainsAllIsOrderIndependent(t *testing.T) {
	l := value.NewList([]value.Value{value.NewString("left"), value.NewString("right"), value.NewString("middle")})
	assert.True(t, l.ListContainsAll([]value.Value{value.NewString("middle")}))
	assert.True(t, l.ListContainsAll([]value.Value{value.NewString("right"), value.NewString("left")}))
	assert.False(t, l.ListContainsAll([]value.Value{value.NewString("bottom")}))
}

func TestListMayNotNest(t *testing.T) {
	assert.Panics(t, func() {
		value.NewList([]value.Value{value.NewList(nil)})
	})
}

func TestStringTotalOrderIsCodepointLexicographic(t *testing.T) {
	lo := value.NewString("Cindini")
	hi := value.NewString("ZZZ")
	cmp, ok := value.Compare(lo, hi)
	require.True(t, ok)
	assert.Negative(t, cmp)
}

func TestCompareUndefinedAcrossKindsOrForNull(t *testing.T) {
	_, ok := value.Compare(value.NewString("a"), value.NewInt32(1))
	assert.False(t, ok)
	_, ok = value.Compare(value.Null(), value.Null())
	assert.False(t, ok)
	_, ok = value.Compare(value.NewBool(true), value.NewBool(false))
	assert.False(t, ok)
}

func TestEnumComparesByStringForm(t *testing.T) {
	a := value.NewEnum("red")
	b := value.NewString("red")
	// Enum equality against String compares by string form (spec.md §4.3
	// item 6); Value.Equal requires matching kinds, so callers normalize
	// before comparing — exercised here directly.
	as, _ := a.Enum()
	bs, _ := b.String()
	assert.Equal(t, as, bs)
}
