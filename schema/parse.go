package schema

import (
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// schemaTypeName is the reserved GraphQL type carrying @fulltext directives,
// per spec.md §4.2 ("the reserved `_Schema_` type").
const schemaTypeName = "_Schema_"

// preambleSDL declares the scalars and directives schema documents in this
// system are written against but don't redeclare themselves, mirroring how
// the indexer's schema loader injects them ahead of the user's document.
const preambleSDL = `
scalar BigDecimal
scalar BigInt
scalar Bytes

directive @entity on OBJECT
directive @fulltext(name: String!, language: String!, algorithm: String!, include: [FulltextInclude!]!) on OBJECT

input FulltextInclude {
	entity: String!
	fields: [FulltextIncludedField!]!
}

input FulltextIncludedField {
	name: String!
}
`

// reservedFieldNames collide with columns the layout always emits.
var reservedFieldNames = map[string]bool{
	"id":          true,
	"block_range": true,
}

// ParseDocument parses a GraphQL SDL string into a Document, recognizing
// `@entity` object types, `interface` declarations, `enum` declarations, and
// the `_Schema_` type's `@fulltext` directives. It rejects unknown scalar
// kinds, duplicate case-insensitive field names, and fields whose name
// collides with a reserved identifier (spec.md §4.2).
func ParseDocument(sdl string) (*Document, error) {
	schemaDoc, err := parser.ParseSchemas(
		&ast.Source{Input: preambleSDL, Name: "preamble.graphql", BuiltIn: true},
		&ast.Source{Input: sdl, Name: "schema.graphql"},
	)
	if err != nil {
		return nil, err
	}
	defs := schemaDoc.Definitions

	doc := &Document{
		Types:      map[string]*EntityType{},
		Interfaces: map[string]*Interface{},
		Enums:      map[string]*Enum{},
	}

	// Enums first: entity fields may reference them regardless of
	// declaration order in the source text.
	for _, def := range defs {
		if def.Kind != ast.Enum || isBuiltinIntrospection(def.Name) {
			continue
		}
		e := &Enum{Name: def.Name}
		for _, v := range def.EnumValues {
			e.Values = append(e.Values, v.Name)
		}
		doc.Enums[def.Name] = e
	}

	// Interfaces: implementers are filled in during the object-type pass
	// below, since the parser records the relation on the implementer, not
	// the interface.
	for _, def := range defs {
		if def.Kind != ast.Interface || isBuiltinIntrospection(def.Name) {
			continue
		}
		doc.Interfaces[def.Name] = &Interface{Name: def.Name}
	}

	for _, def := range defs {
		if def.Kind != ast.Object || isBuiltinIntrospection(def.Name) {
			continue
		}
		if def.Name == schemaTypeName {
			ft, err := parseFullText(def)
			if err != nil {
				return nil, err
			}
			doc.FullText = append(doc.FullText, ft...)
			continue
		}
		if findDirective(def.Directives, "entity") == nil {
			// Non-entity object types (e.g. plain GraphQL payload types)
			// are ignored per spec.md §4.2.
			continue
		}
		et, err := parseEntityType(def.Name, def, doc)
		if err != nil {
			return nil, err
		}
		doc.Types[def.Name] = et
		for _, ifaceName := range def.Interfaces {
			iface, ok := doc.Interfaces[ifaceName]
			if !ok {
				iface = &Interface{Name: ifaceName}
				doc.Interfaces[ifaceName] = iface
			}
			iface.Implementers = append(iface.Implementers, def.Name)
			et.Implements = append(et.Implements, ifaceName)
		}
	}

	return doc, nil
}

func isBuiltinIntrospection(name string) bool {
	return strings.HasPrefix(name, "__") ||
		name == "Query" || name == "Mutation" || name == "Subscription"
}

func findDirective(list ast.DirectiveList, name string) *ast.Directive {
	for _, d := range list {
		if d.Name == name {
			return d
		}
	}
	return nil
}

func parseEntityType(name string, def *ast.Definition, doc *Document) (*EntityType, error) {
	et := &EntityType{Name: name}
	seenLower := map[string]string{}
	for _, fd := range def.Fields {
		if strings.HasPrefix(fd.Name, "__") {
			continue
		}
		if reservedFieldNames[fd.Name] && fd.Name != "id" {
			return nil, &DocumentError{Type: name, Field: fd.Name, Message: "collides with a reserved identifier"}
		}
		lower := strings.ToLower(fd.Name)
		if other, ok := seenLower[lower]; ok && other != fd.Name {
			return nil, &DocumentError{Type: name, Field: fd.Name, Message: "differs from field '" + other + "' only by case"}
		}
		seenLower[lower] = fd.Name

		f, err := parseField(fd, doc)
		if err != nil {
			return nil, &DocumentError{Type: name, Field: fd.Name, Message: err.Error()}
		}
		et.Fields = append(et.Fields, f)
	}
	if _, ok := et.FieldByName("id"); !ok {
		return nil, &DocumentError{Type: name, Message: "entity type has no 'id' field"}
	}
	return et, nil
}

func parseField(fd *ast.FieldDefinition, doc *Document) (Field, error) {
	t := fd.Type
	nullable := !t.NonNull
	list := false
	if t.Elem != nil {
		list = true
		// The element's own nullability controls list-of-nullable, which
		// this layer does not distinguish from list-of-required; only the
		// list's own nullability is tracked (spec.md's Field shape).
		t = t.Elem
	}

	name := t.NamedType
	if kind, ok := builtinScalars[name]; ok {
		return Field{Name: fd.Name, Scalar: kind, Nullable: nullable, List: list}, nil
	}
	if e, ok := doc.Enums[name]; ok {
		return Field{Name: fd.Name, Scalar: ScalarEnum, EnumName: e.Name, Nullable: nullable, List: list}, nil
	}
	return Field{}, &DocumentError{Message: "unknown scalar kind '" + name + "'"}
}

// parseFullText compiles every `@fulltext` directive on `_Schema_` into a
// FullText configuration (spec.md §4.2). It records each include's type and
// field names as written and does not check them against the entity types;
// layout.Compile rejects an include whose type or field does not exist.
func parseFullText(def *ast.Definition) ([]FullText, error) {
	var out []FullText
	for _, d := range def.Directives {
		if d.Name != "fulltext" {
			continue
		}
		ft := FullText{}
		if a := d.Arguments.ForName("name"); a != nil {
			ft.Name = a.Value.Raw
		}
		if a := d.Arguments.ForName("language"); a != nil {
			ft.Language = a.Value.Raw
		}
		if a := d.Arguments.ForName("algorithm"); a != nil {
			switch {
			case strings.EqualFold(a.Value.Raw, "rank"):
				ft.Algorithm = AlgorithmRank
			case strings.EqualFold(a.Value.Raw, "proximityRank"):
				ft.Algorithm = AlgorithmProximityRank
			default:
				return nil, &DocumentError{Type: "_Schema_", Field: ft.Name,
					Message: fmt.Sprintf("unknown fulltext algorithm %q", a.Value.Raw)}
			}
		}
		if a := d.Arguments.ForName("include"); a != nil {
			includes, err := parseFullTextInclude(a.Value)
			if err != nil {
				return nil, err
			}
			ft.Include = includes
		}
		out = append(out, ft)
	}
	return out, nil
}

func parseFullTextInclude(v *ast.Value) ([]FullTextInclude, error) {
	var out []FullTextInclude
	for _, item := range v.Children {
		obj := item.Value
		inc := FullTextInclude{}
		for _, kv := range obj.Children {
			switch kv.Name {
			case "entity":
				inc.Entity = kv.Value.Raw
			case "fields":
				for _, fieldEntry := range kv.Value.Children {
					for _, fkv := range fieldEntry.Value.Children {
						if fkv.Name == "name" {
							inc.Fields = append(inc.Fields, fkv.Value.Raw)
						}
					}
				}
			}
		}
		out = append(out, inc)
	}
	return out, nil
}
