package lex

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// FromGo converts ordinary Go data into a Value. Anything implementing
// fmt.Stringer becomes a StringLike. Otherwise maps become mappings with
// their keys sorted and structs become mappings in field order (honouring
// `mapstructure` tags). Slices and arrays become sequences. Keys keep their case.
func FromGo(v interface{}) (Value, error) {
	return fromGo(reflect.ValueOf(v), 0)
}

// MustFromGo is like FromGo but panics on error. Handy for tests and
// examples with literal data.
func MustFromGo(v interface{}) Value {
	out, err := FromGo(v)
	if err != nil {
		panic(err)
	}
	return out
}

const maxConvertDepth = 512

var (
	valueType    = reflect.TypeOf(Value{})
	stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
)

func fromGo(rv reflect.Value, depth int) (Value, error) {
	if depth > maxConvertDepth {
		return Value{}, fmt.Errorf("data nested deeper than %d levels", maxConvertDepth)
	}
	if !rv.IsValid() {
		return Null(), nil
	}

	if rv.Type() == valueType {
		return rv.Interface().(Value), nil
	}
	if rv.Type() == reflect.TypeOf(&Mapping{}) {
		return MapValue(rv.Interface().(*Mapping)), nil
	}

	if rv.Kind() != reflect.Interface && rv.Type().Implements(stringerType) {
		if rv.Kind() == reflect.Ptr && rv.IsNil() {
			return Null(), nil
		}
		return StringLike(rv.Interface().(fmt.Stringer)), nil
	}

	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return fromGo(rv.Elem(), depth+1)

	case reflect.Bool:
		return Bool(rv.Bool()), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Number(float64(rv.Int())), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Number(float64(rv.Uint())), nil

	case reflect.Float32, reflect.Float64:
		return Number(rv.Float()), nil

	case reflect.String:
		return String(rv.String()), nil

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Seq(), nil
		}
		items := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item, err := fromGo(rv.Index(i), depth+1)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = item
		}
		return Seq(items...), nil

	case reflect.Map:
		return mapFromGo(rv, depth)

	case reflect.Struct:
		return structFromGo(rv, depth)
	}
	return Value{}, fmt.Errorf("cannot convert %s to a template value", rv.Type())
}

func mapFromGo(rv reflect.Value, depth int) (Value, error) {
	type entry struct {
		key string
		val reflect.Value
	}
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		entries = append(entries, entry{key: fmt.Sprint(iter.Key().Interface()), val: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	m := NewMapping()
	for _, e := range entries {
		v, err := fromGo(e.val, depth+1)
		if err != nil {
			return Value{}, fmt.Errorf("key %q: %w", e.key, err)
		}
		m.Set(e.key, v)
	}
	return MapValue(m), nil
}

// structFromGo decodes a struct into a map with mapstructure, then emits the
// keys in field declaration order
func structFromGo(rv reflect.Value, depth int) (Value, error) {
	var decoded map[string]interface{}
	if err := mapstructure.Decode(rv.Interface(), &decoded); err != nil {
		return Value{}, fmt.Errorf("failed to decode %s: %w", rv.Type(), err)
	}

	m := NewMapping()
	for _, key := range structKeys(rv.Type()) {
		raw, ok := decoded[key]
		if !ok {
			continue
		}
		v, err := fromGo(reflect.ValueOf(raw), depth+1)
		if err != nil {
			return Value{}, fmt.Errorf("field %q: %w", key, err)
		}
		m.Set(key, v)
		delete(decoded, key)
	}

	// Squashed embedded fields and anything else mapstructure produced.
	rest := make([]string, 0, len(decoded))
	for key := range decoded {
		rest = append(rest, key)
	}
	sort.Strings(rest)
	for _, key := range rest {
		v, err := fromGo(reflect.ValueOf(decoded[key]), depth+1)
		if err != nil {
			return Value{}, fmt.Errorf("field %q: %w", key, err)
		}
		m.Set(key, v)
	}
	return MapValue(m), nil
}

// structKeys lists the map keys mapstructure uses for t's exported fields
func structKeys(t reflect.Type) []string {
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}
		name := field.Name
		if tag, ok := field.Tag.Lookup("mapstructure"); ok {
			tagName := strings.Split(tag, ",")[0]
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		keys = append(keys, name)
	}
	return keys
}

// DecodeYAML parses a YAML (or JSON) document into a Value, keeping the
// order in which mapping keys were written.
func DecodeYAML(data []byte) (Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Value{}, fmt.Errorf("failed to parse data: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return MapValue(nil), nil
	}
	return fromYAMLNode(doc.Content[0], 0)
}

func fromYAMLNode(node *yaml.Node, depth int) (Value, error) {
	if depth > maxConvertDepth {
		return Value{}, fmt.Errorf("data nested deeper than %d levels", maxConvertDepth)
	}

	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return Null(), nil
		}
		return fromYAMLNode(node.Content[0], depth+1)

	case yaml.AliasNode:
		return fromYAMLNode(node.Alias, depth+1)

	case yaml.MappingNode:
		m := NewMapping()
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			v, err := fromYAMLNode(node.Content[i+1], depth+1)
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", key, err)
			}
			m.Set(key, v)
		}
		return MapValue(m), nil

	case yaml.SequenceNode:
		items := make([]Value, 0, len(node.Content))
		for i, child := range node.Content {
			v, err := fromYAMLNode(child, depth+1)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items = append(items, v)
		}
		return Seq(items...), nil

	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!null":
			return Null(), nil
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err != nil {
				return Value{}, err
			}
			return Bool(b), nil
		case "!!int", "!!float":
			var f float64
			if err := node.Decode(&f); err != nil {
				return Value{}, err
			}
			return Number(f), nil
		default:
			return String(node.Value), nil
		}
	}
	return Value{}, fmt.Errorf("unsupported YAML node at line %d", node.Line)
}
