// Package schema holds the parsed representation of a GraphQL schema
// document: entity types, interfaces, enums, and full-text search
// configurations. It is the input to the layout package's schema
// projection; it never touches a database.
package schema

import "fmt"

// ScalarKind is the closed set of GraphQL scalar kinds this layer
// recognizes, per spec.md §3. Fields whose underlying type isn't one of
// these (or a declared enum) are rejected by ParseDocument.
type ScalarKind uint8

const (
	ScalarUnknown ScalarKind = iota
	ScalarID
	ScalarBoolean
	ScalarInt
	ScalarBigDecimal
	ScalarBigInt
	ScalarString
	ScalarBytes
	ScalarEnum
)

// String returns the scalar kind's GraphQL-facing name.
func (k ScalarKind) String() string {
	switch k {
	case ScalarID:
		return "ID"
	case ScalarBoolean:
		return "Boolean"
	case ScalarInt:
		return "Int"
	case ScalarBigDecimal:
		return "BigDecimal"
	case ScalarBigInt:
		return "BigInt"
	case ScalarString:
		return "String"
	case ScalarBytes:
		return "Bytes"
	case ScalarEnum:
		return "Enum"
	default:
		return "Unknown"
	}
}

// builtinScalars maps the GraphQL scalar names this layer understands
// natively to their ScalarKind. "ID" is only valid for the reserved `id`
// field; every other field must use one of the remaining names or a
// declared enum type.
var builtinScalars = map[string]ScalarKind{
	"ID":         ScalarID,
	"Boolean":    ScalarBoolean,
	"Int":        ScalarInt,
	"BigDecimal": ScalarBigDecimal,
	"BigInt":     ScalarBigInt,
	"String":     ScalarString,
	"Bytes":      ScalarBytes,
}

// Field is one scalar field of an entity type.
type Field struct {
	Name     string
	Scalar   ScalarKind
	EnumName string // set when Scalar == ScalarEnum
	Nullable bool
	List     bool
}

// EntityType is one `type ... @entity` declaration.
type EntityType struct {
	Name       string
	Fields     []Field
	Implements []string // interface names this type implements
}

// FieldByName returns the field with the given name, if present.
func (e *EntityType) FieldByName(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Interface is an `interface ...` declaration; its Implementers form an
// identity group (spec.md §3).
type Interface struct {
	Name         string
	Implementers []string
}

// Enum is an `enum ...` declaration and the set of strings it permits.
type Enum struct {
	Name   string
	Values []string
}

// Has reports whether v is one of the enum's declared values.
func (e Enum) Has(v string) bool {
	for _, cand := range e.Values {
		if cand == v {
			return true
		}
	}
	return false
}

// FullTextAlgorithm selects the tsvector weighting/aggregation function.
type FullTextAlgorithm uint8

const (
	AlgorithmRank FullTextAlgorithm = iota
	AlgorithmProximityRank
)

// FullTextInclude names the fields of one entity type contributed to a
// full-text configuration.
type FullTextInclude struct {
	Entity string
	Fields []string
}

// FullText is one `@fulltext(...)` configuration declared on `_Schema_`.
type FullText struct {
	Name      string
	Language  string
	Algorithm FullTextAlgorithm
	Include   []FullTextInclude
}

// Document is the fully parsed schema: entity types, interfaces, enums, and
// full-text configurations. It is immutable once returned by ParseDocument.
type Document struct {
	Types      map[string]*EntityType
	Interfaces map[string]*Interface
	Enums      map[string]*Enum
	FullText   []FullText
}

// ResolveFullText finds the full-text configuration with the given name.
func (d *Document) ResolveFullText(name string) (*FullText, bool) {
	for i := range d.FullText {
		if d.FullText[i].Name == name {
			return &d.FullText[i], true
		}
	}
	return nil, false
}

// IdentityGroup returns the set of entity types (including typ itself) that
// share typ's id namespace: every interface typ implements contributes its
// implementers to the group (spec.md §3's "identity group").
func (d *Document) IdentityGroup(typ string) []string {
	seen := map[string]struct{}{typ: {}}
	et, ok := d.Types[typ]
	if !ok {
		return []string{typ}
	}
	for _, ifaceName := range et.Implements {
		iface, ok := d.Interfaces[ifaceName]
		if !ok {
			continue
		}
		for _, impl := range iface.Implementers {
			seen[impl] = struct{}{}
		}
	}
	group := make([]string, 0, len(seen))
	for t := range seen {
		group = append(group, t)
	}
	return group
}

// DocumentError reports a schema that fails projection, e.g. an unknown
// scalar kind or a reserved-identifier collision (spec.md §4.2).
type DocumentError struct {
	Type    string
	Field   string
	Message string
}

func (e *DocumentError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema: %s.%s: %s", e.Type, e.Field, e.Message)
	}
	return fmt.Sprintf("schema: %s: %s", e.Type, e.Message)
}
