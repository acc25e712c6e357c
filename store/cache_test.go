package store_test

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	velox "github.com/K-Ho/ovm-graph-node"
	dsql "github.com/K-Ho/ovm-graph-node/dialect/sql"
	"github.com/K-Ho/ovm-graph-node/store"
	"github.com/K-Ho/ovm-graph-node/value"
)

// memCache is a trivial in-process velox.Cache used only to exercise
// store.FindCached without a real backend.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *memCache) Set(_ context.Context, key string, v []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = v
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) DeletePrefix(_ context.Context, _ string) error { return nil }
func (c *memCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	return nil
}

func TestFindCached_MissThenHit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	conn := dsql.OpenDB("postgres", db)
	l := testLayout()
	c := newMemCache()

	mock.ExpectQuery(`SELECT id, name FROM "cat" WHERE`).
		WithArgs(int64(5), "c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("c1", "Whiskers"))

	e1, err := store.FindCached(context.Background(), conn, l, c, "Cat", "c1", 5)
	require.NoError(t, err)
	require.NotNil(t, e1)
	assert.Equal(t, "c1", e1.ID())

	// Second call must be served from cache: no new expectation registered.
	e2, err := store.FindCached(context.Background(), conn, l, c, "Cat", "c1", 5)
	require.NoError(t, err)
	require.NotNil(t, e2)
	assert.Equal(t, e1.ID(), e2.ID())
	name1, _ := e1.Get("name")
	name2, _ := e2.Get("name")
	assert.True(t, name1.Equal(name2))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindCached_NotFoundIsNotCached(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	conn := dsql.OpenDB("postgres", db)
	l := testLayout()
	c := newMemCache()

	mock.ExpectQuery(`SELECT id, name FROM "cat" WHERE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	e, err := store.FindCached(context.Background(), conn, l, c, "Cat", "missing", 5)
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestInvalidateCached_RemovesEntry(t *testing.T) {
	c := newMemCache()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "Cat:find:c1@5:", []byte("x"), 0))
	require.NoError(t, store.InvalidateCached(ctx, c, "Cat", "c1", 5))
	raw, err := c.Get(ctx, "Cat:find:c1@5:")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestCacheValueRoundTrip_AllKinds(t *testing.T) {
	big1, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	e := velox.NewEntity(
		velox.EntityField{Name: "id", Value: value.NewString("e1")},
		velox.EntityField{Name: "flag", Value: value.NewBool(true)},
		velox.EntityField{Name: "count", Value: value.NewInt32(42)},
		velox.EntityField{Name: "price", Value: value.NewBigDecimal(decimal.NewFromFloat(3.14))},
		velox.EntityField{Name: "amount", Value: value.NewBigInt(big1)},
		velox.EntityField{Name: "name", Value: value.NewString("hello")},
		velox.EntityField{Name: "data", Value: value.NewBytes([]byte{0x01, 0x02, 0xff})},
		velox.EntityField{Name: "status", Value: value.NewEnum("ACTIVE")},
		velox.EntityField{Name: "tags", Value: value.NewList([]value.Value{value.NewString("a"), value.NewString("b")})},
		velox.EntityField{Name: "missing", Value: value.Null()},
	)

	c := newMemCache()
	require.NoError(t, store.CacheSet(context.Background(), c, "Thing", "e1", 5, e))
	got, err := store.CacheGet(context.Background(), c, "Thing", "e1", 5)
	require.NoError(t, err)
	require.NotNil(t, got)

	for _, f := range e.Fields() {
		gv, ok := got.Get(f.Name)
		require.True(t, ok, f.Name)
		assert.True(t, f.Value.Equal(gv), "field %s: want %v got %v", f.Name, f.Value, gv)
	}
}
