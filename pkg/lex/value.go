package lex

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind identifies which member of the Value union is populated
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMapping
	KindStringLike

	kindMissing
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	case KindStringLike:
		return "stringlike"
	case kindMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// Mapping is an insertion-ordered string keyed map of values.
type Mapping = orderedmap.OrderedMap[string, Value]

// Value is the data model every pass operates on. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	seq  []Value
	m    *Mapping
	str  fmt.Stringer
}

// Null returns the null value
func Null() Value { return Value{} }

// Bool wraps a boolean
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a float
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Int wraps an integer
func Int(i int) Value { return Value{kind: KindNumber, n: float64(i)} }

// String wraps a string
func String(s string) Value { return Value{kind: KindString, s: s} }

// Seq builds a sequence from the given values, preserving order
func Seq(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindSequence, seq: items}
}

// StringLike wraps an opaque object that only exposes a string conversion.
// A nil Stringer yields Null.
func StringLike(s fmt.Stringer) Value {
	if s == nil {
		return Null()
	}
	return Value{kind: KindStringLike, str: s}
}

// NewMapping returns an empty ordered mapping
func NewMapping() *Mapping {
	return orderedmap.New[string, Value]()
}

// MapValue wraps an existing mapping. A nil mapping is treated as empty.
func MapValue(m *Mapping) Value {
	if m == nil {
		m = NewMapping()
	}
	return Value{kind: KindMapping, m: m}
}

// Pair is a key/value entry used to build mappings in order
type Pair struct {
	Key   string
	Value Value
}

// P is shorthand for building a Pair
func P(key string, v Value) Pair { return Pair{Key: key, Value: v} }

// Map builds a mapping from pairs, in the order given
func Map(pairs ...Pair) Value {
	m := NewMapping()
	for _, p := range pairs {
		m.Set(p.Key, p.Value)
	}
	return MapValue(m)
}

// Kind reports the populated member
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsCollection reports whether v is a sequence or a mapping
func (v Value) IsCollection() bool {
	return v.kind == KindSequence || v.kind == KindMapping
}

// AsBool returns the boolean payload
func (v Value) AsBool() bool { return v.b }

// AsNumber returns the numeric payload
func (v Value) AsNumber() float64 { return v.n }

// AsSequence returns the sequence items (nil for other kinds)
func (v Value) AsSequence() []Value { return v.seq }

// AsMapping returns the mapping (nil for other kinds)
func (v Value) AsMapping() *Mapping { return v.m }

// Len returns the number of items of a collection, 0 otherwise
func (v Value) Len() int {
	switch v.kind {
	case KindSequence:
		return len(v.seq)
	case KindMapping:
		return v.m.Len()
	default:
		return 0
	}
}

// Get looks up a key in a mapping
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMapping {
		return Value{}, false
	}
	return v.m.Get(key)
}

// Items returns the elements to iterate: sequence items or mapping values, in order
func (v Value) Items() []Value {
	switch v.kind {
	case KindSequence:
		return v.seq
	case KindMapping:
		items := make([]Value, 0, v.m.Len())
		for pair := v.m.Oldest(); pair != nil; pair = pair.Next() {
			items = append(items, pair.Value)
		}
		return items
	default:
		return nil
	}
}

// Truthy is the single truthiness rule: null, false, 0, "", "0" and empty
// collections are false. StringLike values are judged by their string form.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0
	case KindString:
		return v.s != "" && v.s != "0"
	case KindSequence:
		return len(v.seq) > 0
	case KindMapping:
		return v.m.Len() > 0
	case KindStringLike:
		s := v.str.String()
		return s != "" && s != "0"
	default:
		return false
	}
}

// String renders v the way a variable tag outputs it
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		if v.b {
			return "1"
		}
		return ""
	case KindNumber:
		return formatNumber(v.n)
	case KindString:
		return v.s
	case KindStringLike:
		return v.str.String()
	default:
		return ""
	}
}

// GoString helps when values show up in test failures
func (v Value) GoString() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.s)
	case KindSequence:
		parts := make([]string, len(v.seq))
		for i, item := range v.seq {
			parts[i] = item.GoString()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMapping:
		var parts []string
		for pair := v.m.Oldest(); pair != nil; pair = pair.Next() {
			parts = append(parts, pair.Key+": "+pair.Value.GoString())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.String()
	}
}

// Equal reports deep equality; StringLike values compare by string form
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull, kindMissing:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindString:
		return v.s == o.s
	case KindStringLike:
		return v.str.String() == o.str.String()
	case KindSequence:
		if len(v.seq) != len(o.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(o.seq[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		if v.m.Len() != o.m.Len() {
			return false
		}
		for pair := v.m.Oldest(); pair != nil; pair = pair.Next() {
			other, ok := o.m.Get(pair.Key)
			if !ok || !pair.Value.Equal(other) {
				return false
			}
		}
		return true
	}
	return false
}

// Merge overlays the keys of over on a copy of base. Keys of over win.
// When over is not a mapping, base is returned unchanged; a non-mapping base
// contributes nothing.
func Merge(base, over Value) Value {
	if over.kind != KindMapping {
		return base
	}
	merged := NewMapping()
	if base.kind == KindMapping {
		for pair := base.m.Oldest(); pair != nil; pair = pair.Next() {
			merged.Set(pair.Key, pair.Value)
		}
	}
	for pair := over.m.Oldest(); pair != nil; pair = pair.Next() {
		merged.Set(pair.Key, pair.Value)
	}
	return MapValue(merged)
}

// cloneMapping copies the top level of a mapping
func cloneMapping(m *Mapping) *Mapping {
	out := NewMapping()
	if m == nil {
		return out
	}
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		out.Set(pair.Key, pair.Value)
	}
	return out
}

func formatNumber(n float64) string {
	if math.IsInf(n, 0) || math.IsNaN(n) {
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', 15, 64)
}
