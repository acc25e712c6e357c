package query_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	velox "github.com/K-Ho/ovm-graph-node"
	"github.com/K-Ho/ovm-graph-node/dialect"
	dsql "github.com/K-Ho/ovm-graph-node/dialect/sql"
	"github.com/K-Ho/ovm-graph-node/filter"
	"github.com/K-Ho/ovm-graph-node/layout"
	"github.com/K-Ho/ovm-graph-node/store/query"
	"github.com/K-Ho/ovm-graph-node/value"
)

func petTable() *layout.Table {
	return &layout.Table{
		EntityType: "Pet",
		Name:       "pet",
		Columns: []layout.Column{
			{Name: "name", Storage: layout.StorageText},
			{Name: "age", Storage: layout.StorageInt32, Nullable: true},
		},
	}
}

func testLayout(t *layout.Table) *layout.Layout {
	return &layout.Layout{
		Tables: map[string]*layout.Table{t.EntityType: t},
	}
}

func TestRun_SingleType(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := dsql.OpenDB(dialect.Postgres, db)
	l := testLayout(petTable())

	mock.ExpectQuery(`SELECT id, name, age FROM "pet" WHERE block_range`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age"}).
			AddRow("p1", "garfield", 5).
			AddRow("p2", "odie", 3))

	out, err := query.Run(context.Background(), drv, l, query.Query{
		Types: []string{"Pet"},
		Block: 100,
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "p1", out[0].ID())
	name, _ := mustGet(out[0], "name").String()
	assert.Equal(t, "garfield", name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_SingleType_WithFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := dsql.OpenDB(dialect.Postgres, db)
	l := testLayout(petTable())

	mock.ExpectQuery(`SELECT id, name, age FROM "pet" WHERE block_range.*AND.*age`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age"}).
			AddRow("p1", "garfield", 5))

	out, err := query.Run(context.Background(), drv, l, query.Query{
		Types:  []string{"Pet"},
		Filter: filter.LessThan("age", value.NewInt32(10)),
		Block:  100,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_UnknownType(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := dsql.OpenDB(dialect.Postgres, db)
	l := testLayout(petTable())

	_, err = query.Run(context.Background(), drv, l, query.Query{Types: []string{"Chair"}})
	require.Error(t, err)
	assert.True(t, velox.IsUnknownTable(err))
	assert.Contains(t, err.Error(), "unknown table 'Chair'")
}

func TestRun_EmptyTypes(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := dsql.OpenDB(dialect.Postgres, db)
	l := testLayout(petTable())

	out, err := query.Run(context.Background(), drv, l, query.Query{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRun_BadOrderField(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := dsql.OpenDB(dialect.Postgres, db)
	l := testLayout(petTable())

	_, err = query.Run(context.Background(), drv, l, query.Query{
		Types: []string{"Pet"},
		Order: &query.Order{Attr: "nope"},
	})
	require.Error(t, err)
	assert.True(t, velox.IsSchemaMismatch(err))
}

func TestRun_Pagination(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := dsql.OpenDB(dialect.Postgres, db)
	l := testLayout(petTable())

	mock.ExpectQuery(`SELECT id, name, age FROM "pet" WHERE block_range.*LIMIT 2 OFFSET 1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age"}).
			AddRow("p2", "odie", 3))

	first := 2
	out, err := query.Run(context.Background(), drv, l, query.Query{
		Types: []string{"Pet"},
		First: &first,
		Skip:  1,
		Block: 100,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_MultiType_UnionOrdersAcrossTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := dsql.OpenDB(dialect.Postgres, db)

	dogTable := &layout.Table{EntityType: "Dog", Name: "dog", Columns: []layout.Column{{Name: "name", Storage: layout.StorageText}}}
	catTable := &layout.Table{EntityType: "Cat", Name: "cat", Columns: []layout.Column{{Name: "name", Storage: layout.StorageText}}}
	l := &layout.Layout{Tables: map[string]*layout.Table{"Dog": dogTable, "Cat": catTable}}

	mock.ExpectQuery(`SELECT id, entity_type FROM \(.*UNION ALL.*\) AS u ORDER BY order_key ASC, id ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "entity_type"}).
			AddRow("d1", "Dog").
			AddRow("c1", "Cat"))
	mock.ExpectQuery(`SELECT id, name FROM "dog" WHERE block_range`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("d1", "rex"))
	mock.ExpectQuery(`SELECT id, name FROM "cat" WHERE block_range`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("c1", "tom"))

	out, err := query.Run(context.Background(), drv, l, query.Query{
		Types: []string{"Dog", "Cat"},
		Block: 100,
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "d1", out[0].ID())
	assert.Equal(t, "c1", out[1].ID())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_MultiType_UnionOrdersNumericFieldNumerically(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := dsql.OpenDB(dialect.Postgres, db)

	dogTable := &layout.Table{EntityType: "Dog", Name: "dog", Columns: []layout.Column{{Name: "age", Storage: layout.StorageInt32}}}
	catTable := &layout.Table{EntityType: "Cat", Name: "cat", Columns: []layout.Column{{Name: "age", Storage: layout.StorageInt32}}}
	l := &layout.Layout{Tables: map[string]*layout.Table{"Dog": dogTable, "Cat": catTable}}

	mock.ExpectQuery(`SELECT id, entity_type FROM \(.*"age"::numeric AS order_key.*UNION ALL.*"age"::numeric AS order_key.*\) AS u ORDER BY order_key ASC, id ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "entity_type"}).
			AddRow("c1", "Cat").
			AddRow("d1", "Dog"))
	mock.ExpectQuery(`SELECT id, age FROM "dog" WHERE block_range`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "age"}).AddRow("d1", 10))
	mock.ExpectQuery(`SELECT id, age FROM "cat" WHERE block_range`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "age"}).AddRow("c1", 9))

	out, err := query.Run(context.Background(), drv, l, query.Query{
		Types: []string{"Dog", "Cat"},
		Block: 100,
		Order: &query.Order{Attr: "age"},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "c1", out[0].ID())
	assert.Equal(t, "d1", out[1].ID())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_MultiType_UnionRejectsMismatchedOrderFieldStorage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := dsql.OpenDB(dialect.Postgres, db)

	dogTable := &layout.Table{EntityType: "Dog", Name: "dog", Columns: []layout.Column{{Name: "rank", Storage: layout.StorageInt32}}}
	catTable := &layout.Table{EntityType: "Cat", Name: "cat", Columns: []layout.Column{{Name: "rank", Storage: layout.StorageText}}}
	l := &layout.Layout{Tables: map[string]*layout.Table{"Dog": dogTable, "Cat": catTable}}

	_, err = query.Run(context.Background(), drv, l, query.Query{
		Types: []string{"Dog", "Cat"},
		Block: 100,
		Order: &query.Order{Attr: "rank"},
	})
	require.Error(t, err)
}

func TestRun_SingleType_MixedCaseColumnIsQuoted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := dsql.OpenDB(dialect.Postgres, db)
	table := &layout.Table{
		EntityType: "Pet",
		Name:       "pet",
		Columns:    []layout.Column{{Name: "ownerId", Storage: layout.StorageText}},
	}
	l := testLayout(table)

	mock.ExpectQuery(`SELECT id, "ownerId" FROM "pet" WHERE block_range`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ownerId"}).AddRow("p1", "fred"))

	out, err := query.Run(context.Background(), drv, l, query.Query{
		Types: []string{"Pet"},
		Block: 100,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	owner, _ := mustGet(out[0], "ownerId").String()
	assert.Equal(t, "fred", owner)
	require.NoError(t, mock.ExpectationsWereMet())
}

func mustGet(e velox.Entity, name string) value.Value {
	v, _ := e.Get(name)
	return v
}
