package query

import (
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	velox "github.com/K-Ho/ovm-graph-node"
	"github.com/K-Ho/ovm-graph-node/layout"
	"github.com/K-Ho/ovm-graph-node/schema"
	"github.com/K-Ho/ovm-graph-node/value"
)

// ScanToValue converts one driver-scanned column back into a value.Value,
// the inverse of filter.ValueToArg. store reuses this for Find's single-row
// reconstruction.
func ScanToValue(typ string, col layout.Column, raw any) (value.Value, error) {
	if raw == nil {
		return value.Null(), nil
	}
	if col.List {
		return scanListValue(typ, col, raw)
	}
	switch col.Storage {
	case layout.StorageBoolean:
		b, ok := raw.(bool)
		if !ok {
			return value.Value{}, velox.NewSerializationError(typ, col.Name, fmt.Errorf("expected bool, got %T", raw))
		}
		return value.NewBool(b), nil
	case layout.StorageInt32:
		n, err := toInt64(raw)
		if err != nil {
			return value.Value{}, velox.NewSerializationError(typ, col.Name, err)
		}
		return value.NewInt32(int32(n)), nil
	case layout.StorageNumeric:
		d, err := toDecimal(raw)
		if err != nil {
			return value.Value{}, velox.NewSerializationError(typ, col.Name, err)
		}
		return value.NewBigDecimal(d), nil
	case layout.StorageBigNumeric:
		d, err := toDecimal(raw)
		if err != nil {
			return value.Value{}, velox.NewSerializationError(typ, col.Name, err)
		}
		return value.NewBigInt(d.BigInt()), nil
	case layout.StorageBytes:
		b, ok := raw.([]byte)
		if !ok {
			return value.Value{}, velox.NewSerializationError(typ, col.Name, fmt.Errorf("expected bytes, got %T", raw))
		}
		return value.NewBytes(b), nil
	default: // StorageText: String or Enum
		s, ok := raw.(string)
		if !ok {
			b, ok := raw.([]byte)
			if !ok {
				return value.Value{}, velox.NewSerializationError(typ, col.Name, fmt.Errorf("expected text, got %T", raw))
			}
			s = string(b)
		}
		if col.Scalar == schema.ScalarEnum {
			return value.NewEnum(s), nil
		}
		return value.NewString(s), nil
	}
}

func scanListValue(typ string, col layout.Column, raw any) (value.Value, error) {
	switch col.Storage {
	case layout.StorageText:
		var items []string
		if err := pq.Array(&items).Scan(raw); err != nil {
			return value.Value{}, velox.NewSerializationError(typ, col.Name, err)
		}
		vs := make([]value.Value, len(items))
		for i, s := range items {
			if col.Scalar == schema.ScalarEnum {
				vs[i] = value.NewEnum(s)
			} else {
				vs[i] = value.NewString(s)
			}
		}
		return value.NewList(vs), nil
	case layout.StorageInt32:
		var items []int32
		if err := pq.Array(&items).Scan(raw); err != nil {
			return value.Value{}, velox.NewSerializationError(typ, col.Name, err)
		}
		vs := make([]value.Value, len(items))
		for i, n := range items {
			vs[i] = value.NewInt32(n)
		}
		return value.NewList(vs), nil
	case layout.StorageBoolean:
		var items []bool
		if err := pq.Array(&items).Scan(raw); err != nil {
			return value.Value{}, velox.NewSerializationError(typ, col.Name, err)
		}
		vs := make([]value.Value, len(items))
		for i, b := range items {
			vs[i] = value.NewBool(b)
		}
		return value.NewList(vs), nil
	default:
		var items []string
		if err := pq.Array(&items).Scan(raw); err != nil {
			return value.Value{}, velox.NewSerializationError(typ, col.Name, err)
		}
		vs := make([]value.Value, len(items))
		for i, s := range items {
			d, err := decimal.NewFromString(s)
			if err != nil {
				return value.Value{}, velox.NewSerializationError(typ, col.Name, err)
			}
			if col.Storage == layout.StorageBigNumeric {
				vs[i] = value.NewBigInt(d.BigInt())
			} else {
				vs[i] = value.NewBigDecimal(d)
			}
		}
		return value.NewList(vs), nil
	}
}

func toInt64(raw any) (int64, error) {
	switch n := raw.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", raw)
	}
}

func toDecimal(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		return decimal.NewFromString(v)
	case []byte:
		return decimal.NewFromString(string(v))
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("expected decimal, got %T", raw)
	}
}
