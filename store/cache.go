package store

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"

	velox "github.com/K-Ho/ovm-graph-node"
	"github.com/K-Ho/ovm-graph-node/dialect"
	"github.com/K-Ho/ovm-graph-node/layout"
	"github.com/K-Ho/ovm-graph-node/value"
)

// FindCached is Find with an optional read-through cache in front of it,
// keyed by (entityType, id, block). A cache hit skips the round trip
// entirely; a miss falls through to Find and populates the cache on
// success. A cache read/decode failure is treated as a miss, never an
// error — the cache is an optimization, not a source of truth.
func FindCached(ctx context.Context, conn dialect.ExecQuerier, l *layout.Layout, c velox.Cache, entityType, id string, block int64) (*velox.Entity, error) {
	key := cacheKey(entityType, id, block)

	if raw, err := c.Get(ctx, key); err == nil && raw != nil {
		if e, err := decodeEntity(raw); err == nil {
			return &e, nil
		}
	}

	e, err := Find(ctx, conn, l, entityType, id, block)
	if err != nil || e == nil {
		return e, err
	}
	if raw, err := encodeEntity(*e); err == nil {
		_ = c.Set(ctx, key, raw, 0)
	}
	return e, nil
}

// CacheSet stores e under the (entityType, id, block) cache key directly,
// letting a caller pre-warm the cache (e.g. right after an Insert) instead
// of waiting for the next FindCached miss.
func CacheSet(ctx context.Context, c velox.Cache, entityType, id string, block int64, e velox.Entity) error {
	raw, err := encodeEntity(e)
	if err != nil {
		return err
	}
	return c.Set(ctx, cacheKey(entityType, id, block), raw, 0)
}

// CacheGet reads back whatever CacheSet or FindCached last stored for
// (entityType, id, block), or (nil, nil) on a miss.
func CacheGet(ctx context.Context, c velox.Cache, entityType, id string, block int64) (*velox.Entity, error) {
	raw, err := c.Get(ctx, cacheKey(entityType, id, block))
	if err != nil || raw == nil {
		return nil, err
	}
	e, err := decodeEntity(raw)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// InvalidateCached removes the cached Find result for the exact
// (entityType, id, block) entry a caller knows is stale. Entries cached for
// the same entity at other blocks are left in place (the cache key is
// block-scoped, so a write at a new block simply misses until re-populated).
func InvalidateCached(ctx context.Context, c velox.Cache, entityType, id string, block int64) error {
	return c.Delete(ctx, cacheKey(entityType, id, block))
}

func cacheKey(entityType, id string, block int64) string {
	return velox.CacheKey{
		Table:     entityType,
		Operation: "find",
		Predicates: fmt.Sprintf("%s@%d", id, block),
	}.String()
}

// cachedValue is the msgpack wire shape for one value.Value: a Kind tag
// plus whichever payload field that kind uses. BigDecimal/BigInt are
// carried as their canonical string form so precision and sign survive
// the round trip exactly.
type cachedValue struct {
	Kind  value.Kind
	Bool  bool `msgpack:",omitempty"`
	Int32 int32 `msgpack:",omitempty"`
	Text  string `msgpack:",omitempty"`
	Bytes []byte `msgpack:",omitempty"`
	List  []cachedValue `msgpack:",omitempty"`
}

type cachedField struct {
	Name  string
	Value cachedValue
}

func encodeEntity(e velox.Entity) ([]byte, error) {
	fields := e.Fields()
	out := make([]cachedField, len(fields))
	for i, f := range fields {
		out[i] = cachedField{Name: f.Name, Value: encodeValue(f.Value)}
	}
	return msgpack.Marshal(out)
}

func decodeEntity(raw []byte) (velox.Entity, error) {
	var fields []cachedField
	if err := msgpack.Unmarshal(raw, &fields); err != nil {
		return velox.Entity{}, err
	}
	out := make([]velox.EntityField, len(fields))
	for i, f := range fields {
		v, err := decodeValue(f.Value)
		if err != nil {
			return velox.Entity{}, err
		}
		out[i] = velox.EntityField{Name: f.Name, Value: v}
	}
	return velox.NewEntity(out...), nil
}

func encodeValue(v value.Value) cachedValue {
	switch v.Kind() {
	case value.KindBool:
		b, _ := v.Bool()
		return cachedValue{Kind: value.KindBool, Bool: b}
	case value.KindInt32:
		n, _ := v.Int32()
		return cachedValue{Kind: value.KindInt32, Int32: n}
	case value.KindBigDecimal:
		d, _ := v.BigDecimal()
		return cachedValue{Kind: value.KindBigDecimal, Text: d.String()}
	case value.KindBigInt:
		b, _ := v.BigInt()
		return cachedValue{Kind: value.KindBigInt, Text: b.String()}
	case value.KindString:
		s, _ := v.String()
		return cachedValue{Kind: value.KindString, Text: s}
	case value.KindBytes:
		b, _ := v.Bytes()
		return cachedValue{Kind: value.KindBytes, Bytes: b}
	case value.KindEnum:
		s, _ := v.Enum()
		return cachedValue{Kind: value.KindEnum, Text: s}
	case value.KindList:
		items, _ := v.List()
		list := make([]cachedValue, len(items))
		for i, it := range items {
			list[i] = encodeValue(it)
		}
		return cachedValue{Kind: value.KindList, List: list}
	default:
		return cachedValue{Kind: value.KindNull}
	}
}

func decodeValue(c cachedValue) (value.Value, error) {
	switch c.Kind {
	case value.KindNull:
		return value.Null(), nil
	case value.KindBool:
		return value.NewBool(c.Bool), nil
	case value.KindInt32:
		return value.NewInt32(c.Int32), nil
	case value.KindBigDecimal:
		d, err := decimal.NewFromString(c.Text)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewBigDecimal(d), nil
	case value.KindBigInt:
		b, ok := new(big.Int).SetString(c.Text, 10)
		if !ok {
			return value.Value{}, fmt.Errorf("store: invalid cached BigInt %q", c.Text)
		}
		return value.NewBigInt(b), nil
	case value.KindString:
		return value.NewString(c.Text), nil
	case value.KindBytes:
		return value.NewBytes(c.Bytes), nil
	case value.KindEnum:
		return value.NewEnum(c.Text), nil
	case value.KindList:
		items := make([]value.Value, len(c.List))
		for i, cv := range c.List {
			v, err := decodeValue(cv)
			if err != nil {
				return value.Value{}, err
			}
			items[i] = v
		}
		return value.NewList(items), nil
	default:
		return value.Value{}, fmt.Errorf("store: unknown cached value kind %d", c.Kind)
	}
}
