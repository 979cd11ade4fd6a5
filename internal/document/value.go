// Package document implements the tagged JSON document model used for account
// records: a recursive variant of object, array, string, number, bool and null.
package document

import (
	"encoding/json"
	"slices"
	"strconv"
)

// Kind identifies which variant a Value holds
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
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
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is an immutable JSON value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	num  json.Number
	str  string
	arr  []Value
	obj  *Object
}

// Object is an ordered set of named fields. Field order follows first insertion.
type Object struct {
	keys   []string
	fields map[string]Value
}

// Null returns the null value
func Null() Value { return Value{} }

// Bool wraps a boolean
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a JSON number literal
func Number(n json.Number) Value { return Value{kind: KindNumber, num: n} }

// Int wraps an integer
func Int(n int64) Value { return Number(json.Number(strconv.FormatInt(n, 10))) }

// String wraps a string
func String(s string) Value { return Value{kind: KindString, str: s} }

// Array wraps a list of values
func Array(items ...Value) Value {
	return Value{kind: KindArray, arr: slices.Clone(items)}
}

// ObjectValue wraps an object
func ObjectValue(o *Object) Value {
	if o == nil {
		o = NewObject()
	}
	return Value{kind: KindObject, obj: o}
}

// Field is a key/value pair used to build objects
type Field struct {
	Key   string
	Value Value
}

// F builds a Field
func F(key string, v Value) Field { return Field{Key: key, Value: v} }

// Obj builds an object value from fields, in order
func Obj(fields ...Field) Value {
	o := NewObject()
	for _, f := range fields {
		o.Set(f.Key, f.Value)
	}
	return ObjectValue(o)
}

// NewObject returns an empty object
func NewObject() *Object {
	return &Object{fields: make(map[string]Value)}
}

// Kind returns the variant held by v
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean and whether v is a bool
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsNumber returns the number literal and whether v is a number
func (v Value) AsNumber() (json.Number, bool) { return v.num, v.kind == KindNumber }

// AsString returns the string and whether v is a string
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsArray returns a copy of the items and whether v is an array
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return slices.Clone(v.arr), true
}

// AsObject returns the object and whether v is an object.
// The returned object must not be mutated; use Clone first.
func (v Value) AsObject() (*Object, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	return v.obj, true
}

// Get returns the named field of an object value
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	return v.obj.Get(key)
}

// Path walks nested objects by key
func (v Value) Path(keys ...string) (Value, bool) {
	cur := v
	for _, k := range keys {
		next, ok := cur.Get(k)
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return cur, true
}

// Equal reports deep equality. Numbers compare by literal text.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.num == other.num
	case KindString:
		return v.str == other.str
	case KindArray:
		return slices.EqualFunc(v.arr, other.arr, Value.Equal)
	case KindObject:
		return v.obj.Equal(other.obj)
	}
	return false
}

// Len returns the number of fields
func (o *Object) Len() int { return len(o.keys) }

// Keys returns the field names in order
func (o *Object) Keys() []string { return slices.Clone(o.keys) }

// Get returns a field
func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.fields[key]
	return v, ok
}

// Set adds or replaces a field, keeping the position of an existing key
func (o *Object) Set(key string, v Value) {
	if _, ok := o.fields[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.fields[key] = v
}

// Clone returns a shallow copy; nested values are immutable so sharing them is safe
func (o *Object) Clone() *Object {
	c := &Object{
		keys:   slices.Clone(o.keys),
		fields: make(map[string]Value, len(o.fields)),
	}
	for k, v := range o.fields {
		c.fields[k] = v
	}
	return c
}

// Equal compares fields regardless of order
func (o *Object) Equal(other *Object) bool {
	if len(o.fields) != len(other.fields) {
		return false
	}
	for k, v := range o.fields {
		ov, ok := other.fields[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
