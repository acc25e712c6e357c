package velox

import "github.com/K-Ho/ovm-graph-node/value"

// EntityField is one named value in an Entity, preserving declaration order.
type EntityField struct {
	Name  string
	Value value.Value
}

// Entity is an ordered mapping from field name to Value (spec.md §3). It is
// a value type: all mutation is by rewrite, never in place.
type Entity struct {
	fields []EntityField
}

// NewEntity builds an Entity from an ordered field list.
func NewEntity(fields ...EntityField) Entity {
	cp := make([]EntityField, len(fields))
	copy(cp, fields)
	return Entity{fields: cp}
}

// Get returns the value stored for name and whether it was present. A field
// absent from the entity is indistinguishable from the caller's perspective
// from one explicitly stored as Null, except that Get's second return value
// is false for the absent case (spec.md §3, "NULL is distinct from
// missing... both read back as Null" refers to the stored column; Get
// preserves the distinction for in-memory entities built from a row scan,
// where every declared column is always present).
func (e Entity) Get(name string) (value.Value, bool) {
	for _, f := range e.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return value.Null(), false
}

// ID returns the mandatory `id` field's string form.
func (e Entity) ID() string {
	v, ok := e.Get("id")
	if !ok {
		return ""
	}
	s, _ := v.String()
	return s
}

// Fields returns the entity's fields in declaration order. The returned
// slice is a copy; mutating it does not affect the entity.
func (e Entity) Fields() []EntityField {
	cp := make([]EntityField, len(e.fields))
	copy(cp, e.fields)
	return cp
}

// With returns a copy of e with name set to v, replacing any existing field
// of that name or appending it.
func (e Entity) With(name string, v value.Value) Entity {
	out := make([]EntityField, 0, len(e.fields)+1)
	replaced := false
	for _, f := range e.fields {
		if f.Name == name {
			out = append(out, EntityField{Name: name, Value: v})
			replaced = true
			continue
		}
		out = append(out, f)
	}
	if !replaced {
		out = append(out, EntityField{Name: name, Value: v})
	}
	return Entity{fields: out}
}

// EntityKey identifies an entity within a subgraph: (subgraph_id,
// entity_type, entity_id) per spec.md §3.
type EntityKey struct {
	SubgraphID string
	EntityType string
	EntityID   string
}
