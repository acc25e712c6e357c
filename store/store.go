// Package store implements the write path and point lookups against a
// layout.Layout: insert, update (replace-as-new-version), delete, find, and
// the conflicting_entity identity check (spec.md §4.5). Collection queries
// are store/query's responsibility; store delegates Query to it directly.
package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	velox "github.com/K-Ho/ovm-graph-node"
	"github.com/K-Ho/ovm-graph-node/dialect"
	dsql "github.com/K-Ho/ovm-graph-node/dialect/sql"
	"github.com/K-Ho/ovm-graph-node/dialect/sql/dberr"
	"github.com/K-Ho/ovm-graph-node/filter"
	"github.com/K-Ho/ovm-graph-node/fulltext"
	"github.com/K-Ho/ovm-graph-node/layout"
	"github.com/K-Ho/ovm-graph-node/store/query"
	"github.com/K-Ho/ovm-graph-node/value"
)

// logger is the structured logger every exported store operation reports its
// final error to, exactly once, at the boundary. It defaults to a no-op so
// the package works without setup; cmd/relstore calls SetLogger with a real
// *zap.Logger built from the configured log level.
var logger = zap.NewNop()

// SetLogger replaces the package logger used to report write/query errors.
// A nil l is treated as a no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

func logBoundaryErr(op, entityType string, block int64, err error) {
	if err == nil {
		return
	}
	logger.Error("store operation failed",
		zap.String("op", op),
		zap.String("entity_type", entityType),
		zap.Int64("block", block),
		zap.Error(err))
}

// Insert writes a new, open-ended row for key starting at block. It fails
// with a Constraint error if key.EntityID already exists in another type of
// key.EntityType's identity group, or if the row's nullability/uniqueness
// constraints are violated at the database (spec.md §4.5).
func Insert(ctx context.Context, conn dialect.ExecQuerier, l *layout.Layout, key velox.EntityKey, e velox.Entity, block int64) (err error) {
	defer func() { logBoundaryErr("insert", key.EntityType, block, err) }()

	if e.ID() != key.EntityID {
		return velox.NewConstraintError(fmt.Sprintf("entity id %q does not match key id %q", e.ID(), key.EntityID), nil)
	}
	t, terr := l.TableFor(key.EntityType)
	if terr != nil {
		return velox.NewUnknownTableError(key.EntityType)
	}

	if err := checkIdentityConflict(ctx, conn, l, key); err != nil {
		return err
	}
	return insertRow(ctx, conn, l, t, key.EntityID, e, block)
}

// Update replaces the entity stored for key as of block. A block equal to
// the current open row's starting block replaces that row in place; a
// later block closes the current row and opens a new one; an earlier block
// is a Constraint error. Fields absent from e are stored as NULL (spec.md
// §4.5).
func Update(ctx context.Context, conn dialect.ExecQuerier, l *layout.Layout, key velox.EntityKey, e velox.Entity, block int64) (err error) {
	defer func() { logBoundaryErr("update", key.EntityType, block, err) }()

	if e.ID() != key.EntityID {
		return velox.NewConstraintError(fmt.Sprintf("entity id %q does not match key id %q", e.ID(), key.EntityID), nil)
	}
	t, terr := l.TableFor(key.EntityType)
	if terr != nil {
		return velox.NewUnknownTableError(key.EntityType)
	}

	currentBlock, found, err := currentOpenBlock(ctx, conn, l, t, key.EntityID)
	if err != nil {
		return err
	}
	if !found {
		if err := checkIdentityConflict(ctx, conn, l, key); err != nil {
			return err
		}
		return insertRow(ctx, conn, l, t, key.EntityID, e, block)
	}
	if block < currentBlock {
		return velox.NewConstraintError(
			fmt.Sprintf("update block %d precedes %s %q's current block %d", block, key.EntityType, key.EntityID, currentBlock), nil)
	}
	if block == currentBlock {
		return updateRowInPlace(ctx, conn, l, t, key.EntityID, e)
	}
	if err := closeOpenRow(ctx, conn, l, t, key.EntityID, block); err != nil {
		return err
	}
	return insertRow(ctx, conn, l, t, key.EntityID, e, block)
}

// Delete removes the physical row of key that began at exactly block,
// returning the number of rows removed (0 or 1). Deleting a missing key is
// not an error (spec.md §4.5).
func Delete(ctx context.Context, conn dialect.ExecQuerier, l *layout.Layout, key velox.EntityKey, block int64) (n int, err error) {
	defer func() { logBoundaryErr("delete", key.EntityType, block, err) }()

	t, terr := l.TableFor(key.EntityType)
	if terr != nil {
		return 0, velox.NewUnknownTableError(key.EntityType)
	}
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND lower(block_range) = $2`, l.QualifiedTable(t.Name))
	var res dsql.Result
	if err := conn.Exec(ctx, stmt, []any{key.EntityID, block}, &res); err != nil {
		return 0, velox.NewBackendError("delete", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, velox.NewBackendError("delete", err)
	}
	return int(rows), nil
}

// Find returns the entity stored for (entityType, id) visible at block, or
// nil if none exists.
func Find(ctx context.Context, conn dialect.ExecQuerier, l *layout.Layout, entityType, id string, block int64) (e *velox.Entity, err error) {
	defer func() { logBoundaryErr("find", entityType, block, err) }()

	t, terr := l.TableFor(entityType)
	if terr != nil {
		return nil, velox.NewUnknownTableError(entityType)
	}
	cols := query.SelectColumns(t)
	sel := dsql.Select(query.QuotedSelectColumns(cols)...).From(dsql.Table(query.TableRef(l, t.Name))).
		Where(query.BlockVisible(block)).Where(dsql.EQ("id", id))
	queryStr, args := sel.Query()

	var rows dsql.Rows
	if err := conn.Query(ctx, queryStr, args, &rows); err != nil {
		return nil, velox.NewQueryError(entityType, "find", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, velox.NewQueryError(entityType, "find", err)
		}
		return nil, nil
	}
	found, err := query.ScanRow(t, cols, &rows)
	if err != nil {
		return nil, err
	}
	return &found, nil
}

// Query runs a collection selection and returns its matching entities. It
// is a direct pass-through to store/query.Run, kept on store so callers
// have one import for every operation in spec.md §6.
func Query(ctx context.Context, conn dialect.ExecQuerier, l *layout.Layout, q query.Query) (out []velox.Entity, err error) {
	typ := ""
	if len(q.Types) > 0 {
		typ = q.Types[0]
	}
	defer func() { logBoundaryErr("query", typ, q.Block, err) }()

	out, err = query.Run(ctx, conn, l, q)
	return out, err
}

// ConflictingEntity returns the first type (by input order) among types in
// which an entity with id exists, or nil if none does. An unknown type
// name fails the call (spec.md §4.5).
func ConflictingEntity(ctx context.Context, conn dialect.ExecQuerier, l *layout.Layout, id string, types []string) (found *string, err error) {
	typ0 := ""
	if len(types) > 0 {
		typ0 = types[0]
	}
	defer func() { logBoundaryErr("conflicting-entity", typ0, 0, err) }()

	return conflictingEntity(ctx, conn, l, id, types)
}

// conflictingEntity is ConflictingEntity without the boundary log, for
// package callers whose own exported operation reports the error.
func conflictingEntity(ctx context.Context, conn dialect.ExecQuerier, l *layout.Layout, id string, types []string) (*string, error) {
	for _, typ := range types {
		t, err := l.TableFor(typ)
		if err != nil {
			return nil, velox.NewUnknownTableError(typ)
		}
		exists, err := rowExistsByID(ctx, conn, l, t, id)
		if err != nil {
			return nil, err
		}
		if exists {
			found := typ
			return &found, nil
		}
	}
	return nil, nil
}

func checkIdentityConflict(ctx context.Context, conn dialect.ExecQuerier, l *layout.Layout, key velox.EntityKey) error {
	siblings := identityGroupSiblings(l, key.EntityType)
	if len(siblings) == 0 {
		return nil
	}
	conflict, err := conflictingEntity(ctx, conn, l, key.EntityID, siblings)
	if err != nil {
		return err
	}
	if conflict != nil {
		return velox.NewConstraintError(
			fmt.Sprintf("identity conflict: id %q already exists as type %q", key.EntityID, *conflict), nil)
	}
	return nil
}

func identityGroupSiblings(l *layout.Layout, typ string) []string {
	if l.Doc == nil {
		return nil
	}
	group := l.Doc.IdentityGroup(typ)
	out := make([]string, 0, len(group))
	for _, g := range group {
		if g != typ {
			out = append(out, g)
		}
	}
	return out
}

func rowExistsByID(ctx context.Context, conn dialect.ExecQuerier, l *layout.Layout, t *layout.Table, id string) (bool, error) {
	stmt := fmt.Sprintf(`SELECT 1 FROM %s WHERE id = $1 LIMIT 1`, l.QualifiedTable(t.Name))
	var rows dsql.Rows
	if err := conn.Query(ctx, stmt, []any{id}, &rows); err != nil {
		return false, velox.NewBackendError("conflicting-entity", err)
	}
	defer rows.Close()
	exists := rows.Next()
	if err := rows.Err(); err != nil {
		return false, velox.NewBackendError("conflicting-entity", err)
	}
	return exists, nil
}

func currentOpenBlock(ctx context.Context, conn dialect.ExecQuerier, l *layout.Layout, t *layout.Table, id string) (int64, bool, error) {
	stmt := fmt.Sprintf(`SELECT lower(block_range) FROM %s WHERE id = $1 AND upper_inf(block_range)`, l.QualifiedTable(t.Name))
	var rows dsql.Rows
	if err := conn.Query(ctx, stmt, []any{id}, &rows); err != nil {
		return 0, false, velox.NewBackendError("update-lookup", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, false, velox.NewBackendError("update-lookup", err)
		}
		return 0, false, nil
	}
	var block int64
	if err := rows.Scan(&block); err != nil {
		return 0, false, velox.NewBackendError("update-lookup", err)
	}
	return block, true, nil
}

func closeOpenRow(ctx context.Context, conn dialect.ExecQuerier, l *layout.Layout, t *layout.Table, id string, block int64) error {
	stmt := fmt.Sprintf(
		`UPDATE %s SET block_range = int8range(lower(block_range), $2) WHERE id = $1 AND upper_inf(block_range)`,
		l.QualifiedTable(t.Name))
	if err := conn.Exec(ctx, stmt, []any{id, block}, nil); err != nil {
		return classifyWriteErr(t.EntityType, "update", err)
	}
	return nil
}

// insertRow writes a brand-new open-ended row for id at block, then
// recomputes any tsvector columns the table declares.
func insertRow(ctx context.Context, conn dialect.ExecQuerier, l *layout.Layout, t *layout.Table, id string, e velox.Entity, block int64) error {
	cols, args, err := rowArgs(t, e)
	if err != nil {
		return err
	}

	colNames := make([]string, 0, len(cols)+2)
	placeholders := make([]string, 0, len(cols)+2)
	allArgs := make([]any, 0, len(args)+2)

	colNames = append(colNames, "id")
	placeholders = append(placeholders, "$1")
	allArgs = append(allArgs, id)

	for i, c := range cols {
		colNames = append(colNames, quoteIdent(c))
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
		allArgs = append(allArgs, args[i])
	}

	blockPos := len(allArgs) + 1
	colNames = append(colNames, "block_range")
	placeholders = append(placeholders, fmt.Sprintf("int8range($%d, NULL)", blockPos))
	allArgs = append(allArgs, block)

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id, block_range) DO NOTHING",
		l.QualifiedTable(t.Name), joinComma(colNames), joinComma(placeholders))

	var res dsql.Result
	if err := conn.Exec(ctx, stmt, allArgs, &res); err != nil {
		return classifyWriteErr(t.EntityType, "insert", err)
	}
	// ON CONFLICT DO NOTHING swallows the unique violation Postgres would
	// otherwise raise; defense-in-depth against a concurrent duplicate
	// (id, block) insert racing the identity/open-row checks above.
	rows, err := res.RowsAffected()
	if err != nil {
		return velox.NewBackendError("insert", err)
	}
	if rows == 0 {
		return velox.NewConstraintError(
			fmt.Sprintf("%s %q already has a row starting at block %d", t.EntityType, id, block), nil)
	}
	return recomputeTSVectors(ctx, conn, l, t, id)
}

// updateRowInPlace overwrites every column of the currently open row for id
// without touching its block_range, used when Update targets the same
// block the row is already open at.
func updateRowInPlace(ctx context.Context, conn dialect.ExecQuerier, l *layout.Layout, t *layout.Table, id string, e velox.Entity) error {
	cols, args, err := rowArgs(t, e)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return nil
	}
	sets := make([]string, len(cols))
	allArgs := make([]any, 0, len(args)+1)
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", quoteIdent(c), i+1)
		allArgs = append(allArgs, args[i])
	}
	allArgs = append(allArgs, id)
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d AND upper_inf(block_range)",
		l.QualifiedTable(t.Name), joinComma(sets), len(allArgs))

	if err := conn.Exec(ctx, stmt, allArgs, nil); err != nil {
		return classifyWriteErr(t.EntityType, "update", err)
	}
	return recomputeTSVectors(ctx, conn, l, t, id)
}

// rowArgs converts e's fields into t's column order, resolving absent
// fields to NULL and rejecting NULL for non-nullable columns (spec.md §7,
// "missing required fields on write are Constraint errors").
func rowArgs(t *layout.Table, e velox.Entity) ([]string, []any, error) {
	cols := make([]string, len(t.Columns))
	args := make([]any, len(t.Columns))
	for i, col := range t.Columns {
		cols[i] = col.Name
		v, ok := e.Get(col.Name)
		if !ok {
			v = value.Null()
		}
		if v.IsNull() {
			if !col.Nullable {
				return nil, nil, velox.NewConstraintError(
					fmt.Sprintf("%s.%s is required and cannot be NULL", t.EntityType, col.Name), nil)
			}
			args[i] = nil
			continue
		}
		arg, err := filter.ValueToArg(col, v)
		if err != nil {
			return nil, nil, err
		}
		args[i] = arg
	}
	return cols, args, nil
}

// recomputeTSVectors refreshes every generated tsvector column of t for id,
// using fulltext.BuildExpr (which references source columns by identifier,
// so it must run as a follow-up statement after the row exists).
func recomputeTSVectors(ctx context.Context, conn dialect.ExecQuerier, l *layout.Layout, t *layout.Table, id string) error {
	if len(t.TSVectors) == 0 {
		return nil
	}
	sets := make([]string, len(t.TSVectors))
	for i, tv := range t.TSVectors {
		sets[i] = fmt.Sprintf("%s = %s", quoteIdent(tv.Name), fulltext.BuildExpr(tv))
	}
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE id = $1 AND upper_inf(block_range)",
		l.QualifiedTable(t.Name), joinComma(sets))
	if err := conn.Exec(ctx, stmt, []any{id}, nil); err != nil {
		return classifyWriteErr(t.EntityType, "tsvector-update", err)
	}
	return nil
}

// classifyWriteErr turns a raw driver error into the spec.md §7 taxonomy:
// unique/check violations (such as a duplicate (id, block_range) primary
// key) become Constraint errors, everything else is a MutationError.
func classifyWriteErr(entityType, op string, err error) error {
	if dberr.IsUniqueViolation(err) || dberr.IsCheckViolation(err) {
		return velox.NewConstraintError(fmt.Sprintf("%s %s violates a constraint", entityType, op), err)
	}
	return velox.NewMutationError(entityType, op, err)
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
