// Package value implements the closed set of scalar kinds that entities are
// built from, along with their equality, ordering, and encoding rules.
package value

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt32
	KindBigDecimal
	KindBigInt
	KindString
	KindBytes
	KindEnum
	KindList
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindInt32:
		return "Int32"
	case KindBigDecimal:
		return "BigDecimal"
	case KindBigInt:
		return "BigInt"
	case KindString:
		return "String"
	case KindBytes:
		return "Bytes"
	case KindEnum:
		return "Enum"
	case KindList:
		return "List"
	default:
		return "Unknown"
	}
}

// Value is a tagged union over the scalar kinds an Entity field can hold.
// A zero Value is Null.
type Value struct {
	kind    Kind
	b       bool
	i32     int32
	dec     decimal.Decimal
	bigInt  *big.Int
	str     string // also backs Enum (the enum's string form)
	bytes   []byte
	list    []Value
}

// Null returns the Null value.
func Null() Value { return Value{kind: KindNull} }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Kind returns the tag of v.
func (v Value) Kind() Kind { return v.kind }

// NewBool constructs a Bool value.
func NewBool(b bool) Value { return Value{kind: KindBool, b: b} }

// NewInt32 constructs an Int32 value.
func NewInt32(i int32) Value { return Value{kind: KindInt32, i32: i} }

// NewBigDecimal constructs a BigDecimal value.
func NewBigDecimal(d decimal.Decimal) Value { return Value{kind: KindBigDecimal, dec: d} }

// NewBigDecimalFromString parses a decimal literal (accepts negative-scale
// forms such as "5E2") into a BigDecimal value.
func NewBigDecimalFromString(s string) (Value, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Value{}, fmt.Errorf("value: invalid BigDecimal %q: %w", s, err)
	}
	return NewBigDecimal(d), nil
}

// NewBigInt constructs a BigInt value. A nil b is treated as zero.
func NewBigInt(b *big.Int) Value {
	if b == nil {
		b = new(big.Int)
	}
	return Value{kind: KindBigInt, bigInt: new(big.Int).Set(b)}
}

// NewBigIntFromString parses a base-10 integer literal into a BigInt value.
func NewBigIntFromString(s string) (Value, error) {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Value{}, fmt.Errorf("value: invalid BigInt %q", s)
	}
	return NewBigInt(b), nil
}

// NewString constructs a String value.
func NewString(s string) Value { return Value{kind: KindString, str: s} }

// NewBytes constructs a Bytes value from raw bytes.
func NewBytes(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{kind: KindBytes, bytes: cp}
}

// NewBytesFromHex constructs a Bytes value from a hex string. The caller may
// pass Bytes either as raw bytes or as a hex-encoded String (with or without
// a leading "0x"); this is the latter path, used by the filter planner to
// normalize string literals compared against byte columns.
func NewBytesFromHex(s string) (Value, error) {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return Value{}, fmt.Errorf("value: invalid hex Bytes %q: %w", s, err)
	}
	return NewBytes(b), nil
}

// NewEnum constructs an Enum value. Enum equality/order compares by the
// string form, same as a plain String.
func NewEnum(s string) Value { return Value{kind: KindEnum, str: s} }

// NewList constructs a homogeneous List value. Lists may not be nested;
// NewList panics if any element is itself a List, since the schema
// projection never produces such lists (see layout.Column).
func NewList(items []Value) Value {
	for _, it := range items {
		if it.kind == KindList {
			panic("value: lists may not be nested")
		}
	}
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// Bool returns the boolean payload and whether v is a Bool.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Int32 returns the int32 payload and whether v is an Int32.
func (v Value) Int32() (int32, bool) { return v.i32, v.kind == KindInt32 }

// BigDecimal returns the decimal payload and whether v is a BigDecimal.
func (v Value) BigDecimal() (decimal.Decimal, bool) { return v.dec, v.kind == KindBigDecimal }

// BigInt returns the big.Int payload and whether v is a BigInt.
func (v Value) BigInt() (*big.Int, bool) {
	if v.kind != KindBigInt {
		return nil, false
	}
	return new(big.Int).Set(v.bigInt), true
}

// String returns the string payload and whether v is a String.
func (v Value) String() (string, bool) { return v.str, v.kind == KindString }

// Bytes returns the byte payload and whether v is Bytes.
func (v Value) Bytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	cp := make([]byte, len(v.bytes))
	copy(cp, v.bytes)
	return cp, true
}

// Enum returns the enum's string form and whether v is an Enum.
func (v Value) Enum() (string, bool) { return v.str, v.kind == KindEnum }

// List returns the list payload and whether v is a List.
func (v Value) List() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	cp := make([]Value, len(v.list))
	copy(cp, v.list)
	return cp, true
}

// AsHexString renders a Bytes value as a "0x"-prefixed hex string; used when
// surfacing Bytes columns through interfaces that expect a String.
func (v Value) AsHexString() (string, bool) {
	if v.kind != KindBytes {
		return "", false
	}
	return "0x" + hex.EncodeToString(v.bytes), true
}

// Equal implements structural equality per spec.md §4.1: Bytes compares by
// bytewise content, BigDecimal by numeric value (independent of scale or
// unscaled representation), Null equals only Null, and List compares
// element-wise in order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt32:
		return v.i32 == o.i32
	case KindBigDecimal:
		return v.dec.Equal(o.dec)
	case KindBigInt:
		return v.bigInt.Cmp(o.bigInt) == 0
	case KindString:
		return v.str == o.str
	case KindBytes:
		return bytes.Equal(v.bytes, o.bytes)
	case KindEnum:
		return v.str == o.str
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ListContainsAll reports whether every value in want is present in the
// receiver's list, order-independent (spec.md §4.3 item 3). It panics if v
// is not a List.
func (v Value) ListContainsAll(want []Value) bool {
	items, ok := v.List()
	if !ok {
		panic("value: ListContainsAll called on a non-List value")
	}
	for _, w := range want {
		found := false
		for _, it := range items {
			if it.Equal(w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Compare defines the total order described in spec.md §4.1 for String,
// Int32, BigDecimal, BigInt, Bytes, and Enum. It returns -1, 0, or 1. Compare
// is undefined (returns 0, false) for Null or for a Bool/List operand, or
// when the two values don't share a kind, matching "any non-equality
// comparison against Null yields 'does not match'".
func Compare(a, b Value) (int, bool) {
	if a.kind != b.kind {
		return 0, false
	}
	switch a.kind {
	case KindString, KindEnum:
		return strings.Compare(a.str, b.str), true
	case KindInt32:
		switch {
		case a.i32 < b.i32:
			return -1, true
		case a.i32 > b.i32:
			return 1, true
		default:
			return 0, true
		}
	case KindBigDecimal:
		return a.dec.Cmp(b.dec), true
	case KindBigInt:
		return a.bigInt.Cmp(b.bigInt), true
	case KindBytes:
		return bytes.Compare(a.bytes, b.bytes), true
	default:
		return 0, false
	}
}

// SortValues sorts a slice of Values that share a comparable kind, using
// Compare. Values of an incomparable kind are left in their relative
// position (stable sort).
func SortValues(vs []Value) {
	sort.SliceStable(vs, func(i, j int) bool {
		c, ok := Compare(vs[i], vs[j])
		return ok && c < 0
	})
}
