// Package filter is the predicate algebra of spec.md §4.3: a schema-generic
// AST (Equal/Not/.../And/Or) and its compilation to a *sql.Predicate against
// a *layout.Table, including the prefix-index usability analysis of
// spec.md §4.6.
package filter

import (
	"fmt"

	"github.com/lib/pq"

	velox "github.com/K-Ho/ovm-graph-node"
	"github.com/K-Ho/ovm-graph-node/dialect/sql"
	"github.com/K-Ho/ovm-graph-node/fulltext"
	"github.com/K-Ho/ovm-graph-node/layout"
	"github.com/K-Ho/ovm-graph-node/value"
)

// Op is a filter leaf's comparison operator.
type Op uint8

const (
	OpEqual Op = iota
	OpNot
	OpLessThan
	OpLessOrEqual
	OpGreaterThan
	OpGreaterOrEqual
	OpIn
	OpNotIn
	OpContains
	OpNotContains
	OpStartsWith
	OpNotStartsWith
	OpEndsWith
	OpNotEndsWith
)

// Filter is a node in the predicate AST: a *Leaf or a combinator (*And, *Or).
type Filter interface {
	isFilter()
}

// Leaf compares one attribute. Single-valued ops (Equal, Not, LessThan, ...,
// Contains, StartsWith, EndsWith) use Value; set ops (In, NotIn) use Values.
type Leaf struct {
	Attr   string
	Op     Op
	Value  value.Value
	Values []value.Value
}

func (*Leaf) isFilter() {}

// And is the conjunction combinator. And of no filters is true (spec.md
// §4.3 item 2).
type And struct{ Filters []Filter }

func (*And) isFilter() {}

// Or is the disjunction combinator. Or of no filters is false (spec.md
// §4.3 item 2).
type Or struct{ Filters []Filter }

func (*Or) isFilter() {}

func Equal(attr string, v value.Value) Filter          { return &Leaf{Attr: attr, Op: OpEqual, Value: v} }
func Not(attr string, v value.Value) Filter             { return &Leaf{Attr: attr, Op: OpNot, Value: v} }
func LessThan(attr string, v value.Value) Filter        { return &Leaf{Attr: attr, Op: OpLessThan, Value: v} }
func LessOrEqual(attr string, v value.Value) Filter     { return &Leaf{Attr: attr, Op: OpLessOrEqual, Value: v} }
func GreaterThan(attr string, v value.Value) Filter     { return &Leaf{Attr: attr, Op: OpGreaterThan, Value: v} }
func GreaterOrEqual(attr string, v value.Value) Filter  { return &Leaf{Attr: attr, Op: OpGreaterOrEqual, Value: v} }
func In(attr string, vs ...value.Value) Filter          { return &Leaf{Attr: attr, Op: OpIn, Values: vs} }
func NotIn(attr string, vs ...value.Value) Filter       { return &Leaf{Attr: attr, Op: OpNotIn, Values: vs} }
func Contains(attr string, v value.Value) Filter        { return &Leaf{Attr: attr, Op: OpContains, Value: v} }
func NotContains(attr string, v value.Value) Filter     { return &Leaf{Attr: attr, Op: OpNotContains, Value: v} }
func StartsWith(attr string, v value.Value) Filter      { return &Leaf{Attr: attr, Op: OpStartsWith, Value: v} }
func NotStartsWith(attr string, v value.Value) Filter   { return &Leaf{Attr: attr, Op: OpNotStartsWith, Value: v} }
func EndsWith(attr string, v value.Value) Filter        { return &Leaf{Attr: attr, Op: OpEndsWith, Value: v} }
func NotEndsWith(attr string, v value.Value) Filter     { return &Leaf{Attr: attr, Op: OpNotEndsWith, Value: v} }

func AndOf(fs ...Filter) Filter { return &And{Filters: fs} }
func OrOf(fs ...Filter) Filter  { return &Or{Filters: fs} }

// Compile lowers f to a *sql.Predicate against t, per spec.md §4.3-§4.6.
func Compile(t *layout.Table, f Filter) (*sql.Predicate, error) {
	switch n := f.(type) {
	case *And:
		preds, err := compileAll(t, n.Filters)
		if err != nil {
			return nil, err
		}
		return sql.And(preds...), nil
	case *Or:
		preds, err := compileAll(t, n.Filters)
		if err != nil {
			return nil, err
		}
		return sql.Or(preds...), nil
	case *Leaf:
		return compileLeaf(t, n)
	default:
		return nil, fmt.Errorf("filter: unknown node type %T", f)
	}
}

func compileAll(t *layout.Table, fs []Filter) ([]*sql.Predicate, error) {
	preds := make([]*sql.Predicate, 0, len(fs))
	for _, f := range fs {
		p, err := Compile(t, f)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

func compileLeaf(t *layout.Table, l *Leaf) (*sql.Predicate, error) {
	if tv, ok := t.TSVectorByName(l.Attr); ok {
		if l.Op != OpEqual {
			return nil, velox.NewSchemaMismatchError(t.EntityType, l.Attr,
				"full-text configurations only support Equal(<name>, <query>)")
		}
		q, ok := l.Value.String()
		if !ok {
			return nil, velox.NewSchemaMismatchError(t.EntityType, l.Attr,
				"full-text query must be a String value")
		}
		return fulltext.MatchPredicate(tv, q), nil
	}

	col, ok := t.ColumnByName(l.Attr)
	if !ok {
		return nil, velox.NewSchemaMismatchError(t.EntityType, l.Attr, "unknown field")
	}

	switch l.Op {
	case OpEqual:
		return equalPredicate(t, col, l.Value)
	case OpNot:
		return notPredicate(t, col, l.Value)
	case OpLessThan:
		return comparePredicate(col, l.Value, sql.LT)
	case OpLessOrEqual:
		return comparePredicate(col, l.Value, sql.LTE)
	case OpGreaterThan:
		return comparePredicate(col, l.Value, sql.GT)
	case OpGreaterOrEqual:
		return comparePredicate(col, l.Value, sql.GTE)
	case OpIn:
		return inPredicate(t, col, l.Values, false)
	case OpNotIn:
		return inPredicate(t, col, l.Values, true)
	case OpContains:
		return containsPredicate(col, l.Value, false)
	case OpNotContains:
		return containsPredicate(col, l.Value, true)
	case OpStartsWith:
		return stringAffixPredicate(col, l.Value, false, false)
	case OpNotStartsWith:
		return stringAffixPredicate(col, l.Value, false, true)
	case OpEndsWith:
		return stringAffixPredicate(col, l.Value, true, false)
	case OpNotEndsWith:
		return stringAffixPredicate(col, l.Value, true, true)
	default:
		return nil, fmt.Errorf("filter: unknown op %d", l.Op)
	}
}

func equalPredicate(t *layout.Table, col layout.Column, v value.Value) (*sql.Predicate, error) {
	if v.IsNull() {
		return sql.IsNull(col.Name), nil
	}
	arg, err := argValue(col, v)
	if err != nil {
		return nil, err
	}
	if col.IsText() {
		return prefixGuardedEqual(col.Name, layout.StringPrefixSize, arg), nil
	}
	return sql.EQ(col.Name, arg), nil
}

func notPredicate(t *layout.Table, col layout.Column, v value.Value) (*sql.Predicate, error) {
	if v.IsNull() {
		return sql.NotNull(col.Name), nil
	}
	arg, err := argValue(col, v)
	if err != nil {
		return nil, err
	}
	return sql.NEQ(col.Name, arg), nil
}

func comparePredicate(col layout.Column, v value.Value, ctor func(string, any) *sql.Predicate) (*sql.Predicate, error) {
	arg, err := argValue(col, v)
	if err != nil {
		return nil, err
	}
	return ctor(col.Name, arg), nil
}

// inPredicate lowers In/NotIn per spec.md §4.3 item 1 and item 5: a literal
// Null inside the value list is split out into its own IS [NOT] NULL clause
// so NotIn([..., Null, ...]) also excludes NULL rows, and In([..., Null,
// ...]) also matches NULL rows.
func inPredicate(t *layout.Table, col layout.Column, vs []value.Value, negate bool) (*sql.Predicate, error) {
	var args []any
	hasNull := false
	for _, v := range vs {
		if v.IsNull() {
			hasNull = true
			continue
		}
		arg, err := argValue(col, v)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	if !negate {
		in := sql.In(col.Name, args...)
		if col.IsText() && len(args) > 0 {
			in = sql.And(prefixGuardedIn(col.Name, layout.StringPrefixSize, args), in)
		}
		if hasNull {
			return sql.Or(in, sql.IsNull(col.Name)), nil
		}
		return in, nil
	}

	notIn := sql.NotIn(col.Name, args...)
	if hasNull {
		// NotIn(a, vs ∪ {Null}) additionally excludes a IS NULL rows
		// (spec.md §4.3 item 1); NotIn([]) with no Null in the list still
		// matches everything, including NULL rows.
		notIn = sql.And(notIn, sql.NotNull(col.Name))
	}
	return notIn, nil
}

// containsPredicate handles both String substring match and List membership
// (spec.md §4.3 item 3).
func containsPredicate(col layout.Column, v value.Value, negate bool) (*sql.Predicate, error) {
	if col.List {
		arr, err := listArg(col, v)
		if err != nil {
			return nil, err
		}
		p := arrayContains(col.Name, arr)
		if negate {
			return sql.Not(p), nil
		}
		return p, nil
	}
	s, ok := v.String()
	if !ok {
		return nil, fmt.Errorf("filter: Contains on %q requires a String or List value", col.Name)
	}
	if negate {
		return sql.Not(sql.FieldContains(col.Name, s)), nil
	}
	return sql.FieldContains(col.Name, s), nil
}

func stringAffixPredicate(col layout.Column, v value.Value, suffix, negate bool) (*sql.Predicate, error) {
	s, ok := v.String()
	if !ok {
		return nil, fmt.Errorf("filter: prefix/suffix match on %q requires a String value", col.Name)
	}
	var p *sql.Predicate
	if suffix {
		p = sql.FieldHasSuffix(col.Name, s)
	} else {
		p = sql.FieldHasPrefix(col.Name, s)
	}
	if negate {
		return sql.Not(p), nil
	}
	return p, nil
}

// prefixGuardedEqual ANDs the index-usable LEFT(col,P)=LEFT(needle,P)
// pre-filter with the exact equality check (spec.md §4.6).
func prefixGuardedEqual(col string, prefixSize int, needle any) *sql.Predicate {
	s, ok := needle.(string)
	if !ok {
		return sql.EQ(col, needle)
	}
	return sql.And(leftEQ(col, prefixSize, leftString(s, prefixSize)), sql.EQ(col, needle))
}

func prefixGuardedIn(col string, prefixSize int, args []any) *sql.Predicate {
	prefixes := make([]any, 0, len(args))
	for _, a := range args {
		if s, ok := a.(string); ok {
			prefixes = append(prefixes, leftString(s, prefixSize))
		}
	}
	if len(prefixes) == 0 {
		return sql.And()
	}
	return leftIn(col, prefixSize, prefixes)
}

func leftString(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

func leftEQ(col string, n int, prefix string) *sql.Predicate {
	p := sql.Predicate(func(b *sql.Builder) {
		b.WriteString("LEFT(").Ident(col).WriteString(fmt.Sprintf(", %d) = ", n)).Arg(prefix)
	})
	return &p
}

func leftIn(col string, n int, prefixes []any) *sql.Predicate {
	p := sql.Predicate(func(b *sql.Builder) {
		b.WriteString("LEFT(").Ident(col).WriteString(fmt.Sprintf(", %d) IN (", n))
		for i, v := range prefixes {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Arg(v)
		}
		b.WriteString(")")
	})
	return &p
}

func arrayContains(col string, arr any) *sql.Predicate {
	p := sql.Predicate(func(b *sql.Builder) {
		b.Ident(col).WriteString(" @> ").Arg(arr)
	})
	return &p
}

// ValueToArg converts a Value to the Go value a SQL driver binds for col,
// normalizing Enum-as-text and Bytes-as-hex-string. Exported so store can
// reuse the same conversion for INSERT/UPDATE argument lists instead of
// duplicating it.
func ValueToArg(col layout.Column, v value.Value) (any, error) { return argValue(col, v) }

// argValue converts a filter Value to the Go value the SQL driver should
// bind, normalizing Enum-as-text (item 6) and Bytes-as-hex-string (item 7).
func argValue(col layout.Column, v value.Value) (any, error) {
	switch v.Kind() {
	case value.KindBool:
		b, _ := v.Bool()
		return b, nil
	case value.KindInt32:
		i, _ := v.Int32()
		return i, nil
	case value.KindBigDecimal:
		d, _ := v.BigDecimal()
		return d, nil
	case value.KindBigInt:
		b, _ := v.BigInt()
		return b.String(), nil
	case value.KindEnum:
		s, _ := v.Enum()
		return s, nil
	case value.KindString:
		s, _ := v.String()
		if col.Storage == layout.StorageBytes {
			bv, err := value.NewBytesFromHex(s)
			if err != nil {
				return nil, velox.NewSchemaMismatchError("", col.Name,
					fmt.Sprintf("value for bytes field %q is not valid hex: %v", col.Name, err))
			}
			bs, _ := bv.Bytes()
			return []byte(bs), nil
		}
		return s, nil
	case value.KindBytes:
		bs, _ := v.Bytes()
		return []byte(bs), nil
	default:
		return nil, velox.NewSchemaMismatchError("", col.Name,
			fmt.Sprintf("unsupported value kind %s for field %q", v.Kind(), col.Name))
	}
}

func listArg(col layout.Column, v value.Value) (any, error) {
	items, ok := v.List()
	if !ok {
		return nil, fmt.Errorf("filter: Contains on list field %q requires a List value", col.Name)
	}
	switch col.Storage {
	case layout.StorageText:
		ss := make([]string, 0, len(items))
		for _, it := range items {
			s, _ := it.String()
			ss = append(ss, s)
		}
		return pq.Array(ss), nil
	case layout.StorageInt32:
		is := make([]int32, 0, len(items))
		for _, it := range items {
			i, _ := it.Int32()
			is = append(is, i)
		}
		return pq.Array(is), nil
	default:
		vs := make([]any, 0, len(items))
		for _, it := range items {
			a, err := argValue(col, it)
			if err != nil {
				return nil, err
			}
			vs = append(vs, a)
		}
		return pq.Array(vs), nil
	}
}
