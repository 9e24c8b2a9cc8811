// Package canon turns arbitrary key values into deterministic strings.
//
// The output is JSON-shaped: numbers and booleans as literals, strings quoted,
// slices in order and maps/structs with their keys sorted. Two values that are
// structurally equal produce the same string regardless of pointer identity or
// map iteration order. Nil pointers, nil interfaces, nil maps and nil slices all
// produce "null".
package canon

import (
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const null = "null"

var (
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// CycleError is the panic value raised by Stringify when v refers back to
// itself through a pointer, map or slice.
type CycleError struct {
	Type reflect.Type
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("canon: cyclic value through %s", e.Type)
}

// Stringify returns the canonical form of v. A cyclic v panics with
// *CycleError; use Canonical to get it as an error instead.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return null
	case string:
		return quote(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return formatFloat(x, 64)
	}
	e := &encoder{}
	e.write(reflect.ValueOf(v))
	return e.sb.String()
}

// Canonical is Stringify with cycles reported as a *CycleError.
func Canonical(v any) (s string, err error) {
	defer func() {
		if r := recover(); r != nil {
			ce, ok := r.(*CycleError)
			if !ok {
				panic(r)
			}
			err = ce
		}
	}()
	return Stringify(v), nil
}

// Scalar reports whether v skips canonicalization when used as a map key and
// returns its string form. Strings pass through verbatim.
func Scalar(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return null, true
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.FormatInt(int64(x), 10), true
	case int8:
		return strconv.FormatInt(int64(x), 10), true
	case int16:
		return strconv.FormatInt(int64(x), 10), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint:
		return strconv.FormatUint(uint64(x), 10), true
	case uint8:
		return strconv.FormatUint(uint64(x), 10), true
	case uint16:
		return strconv.FormatUint(uint64(x), 10), true
	case uint32:
		return strconv.FormatUint(uint64(x), 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float32:
		return formatFloat(float64(x), 32), true
	case float64:
		return formatFloat(x, 64), true
	}
	// Named scalar types (type UserID string, ...) take the same fast path.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32:
		return formatFloat(rv.Float(), 32), true
	case reflect.Float64:
		return formatFloat(rv.Float(), 64), true
	}
	return "", false
}

type visit struct {
	ptr uintptr
	typ reflect.Type
	len int
}

// encoder tracks the pointers, maps and slices on the current path so a value
// shared by two siblings is encoded twice while a value containing itself is
// rejected.
type encoder struct {
	sb   strings.Builder
	path map[visit]struct{}
}

func (e *encoder) enter(v reflect.Value) visit {
	k := visit{ptr: v.Pointer(), typ: v.Type()}
	if v.Kind() == reflect.Slice {
		k.len = v.Len()
	}
	if e.path == nil {
		e.path = make(map[visit]struct{})
	}
	if _, ok := e.path[k]; ok {
		panic(&CycleError{Type: v.Type()})
	}
	e.path[k] = struct{}{}
	return k
}

func (e *encoder) leave(k visit) { delete(e.path, k) }

func (e *encoder) write(v reflect.Value) {
	if !v.IsValid() {
		e.sb.WriteString(null)
		return
	}

	t := v.Type()
	if v.CanInterface() && t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface {
		if t.Implements(jsonMarshalerType) {
			e.writeMarshaled(v)
			return
		}
		if t.Implements(textMarshalerType) {
			b, err := v.Interface().(encoding.TextMarshaler).MarshalText()
			if err != nil {
				e.sb.WriteString(null)
				return
			}
			e.sb.WriteString(quote(string(b)))
			return
		}
	}

	switch t.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			e.sb.WriteString(null)
			return
		}
		if t.Kind() == reflect.Pointer && v.CanInterface() && t.Implements(jsonMarshalerType) {
			e.writeMarshaled(v)
			return
		}
		if t.Kind() == reflect.Pointer {
			defer e.leave(e.enter(v))
		}
		e.write(v.Elem())
	case reflect.String:
		e.sb.WriteString(quote(v.String()))
	case reflect.Bool:
		e.sb.WriteString(strconv.FormatBool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.sb.WriteString(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		e.sb.WriteString(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32:
		e.sb.WriteString(formatFloat(v.Float(), 32))
	case reflect.Float64:
		e.sb.WriteString(formatFloat(v.Float(), 64))
	case reflect.Slice:
		if v.IsNil() {
			e.sb.WriteString(null)
			return
		}
		defer e.leave(e.enter(v))
		e.writeList(v)
	case reflect.Array:
		e.writeList(v)
	case reflect.Map:
		if v.IsNil() {
			e.sb.WriteString(null)
			return
		}
		defer e.leave(e.enter(v))
		e.writeMap(v)
	case reflect.Struct:
		e.writeStruct(v)
	default:
		// chan, func, complex, unsafe pointers have no JSON form.
		e.sb.WriteString(null)
	}
}

func (e *encoder) writeList(v reflect.Value) {
	e.sb.WriteByte('[')
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			e.sb.WriteByte(',')
		}
		e.write(v.Index(i))
	}
	e.sb.WriteByte(']')
}

type member struct {
	name string
	val  reflect.Value
}

func (e *encoder) writeMap(v reflect.Value) {
	members := make([]member, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		members = append(members, member{name: e.mapKey(iter.Key()), val: iter.Value()})
	}
	e.writeObject(members)
}

func (e *encoder) mapKey(k reflect.Value) string {
	for k.Kind() == reflect.Interface || k.Kind() == reflect.Pointer {
		if k.IsNil() {
			return null
		}
		if k.Kind() == reflect.Pointer {
			defer e.leave(e.enter(k))
		}
		k = k.Elem()
	}
	if k.Kind() == reflect.String {
		return k.String()
	}
	if k.CanInterface() {
		if s, ok := Scalar(k.Interface()); ok {
			return s
		}
	}
	sub := &encoder{path: e.path}
	sub.write(k)
	return sub.sb.String()
}

func (e *encoder) writeStruct(v reflect.Value) {
	fields := structFields(v.Type())
	members := make([]member, 0, len(fields))
	for _, f := range fields {
		fv, ok := fieldByIndex(v, f.index)
		if !ok {
			continue
		}
		if f.omitEmpty && fv.IsZero() {
			continue
		}
		members = append(members, member{name: f.name, val: fv})
	}
	e.writeObject(members)
}

func (e *encoder) writeObject(members []member) {
	sort.Slice(members, func(i, j int) bool { return members[i].name < members[j].name })
	e.sb.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			e.sb.WriteByte(',')
		}
		e.sb.WriteString(quote(m.name))
		e.sb.WriteByte(':')
		e.write(m.val)
	}
	e.sb.WriteByte('}')
}

// writeMarshaled routes custom JSON encodings (time.Time, json.RawMessage, ...)
// back through the canonicalizer so their object keys get sorted too.
func (e *encoder) writeMarshaled(v reflect.Value) {
	m, ok := v.Interface().(json.Marshaler)
	if !ok {
		e.sb.WriteString(null)
		return
	}
	raw, err := m.MarshalJSON()
	if err != nil {
		e.sb.WriteString(null)
		return
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		e.sb.WriteString(null)
		return
	}
	e.writeGeneric(generic)
}

func (e *encoder) writeGeneric(v any) {
	switch x := v.(type) {
	case json.Number:
		e.sb.WriteString(x.String())
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		e.sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				e.sb.WriteByte(',')
			}
			e.sb.WriteString(quote(k))
			e.sb.WriteByte(':')
			e.writeGeneric(x[k])
		}
		e.sb.WriteByte('}')
	case []any:
		e.sb.WriteByte('[')
		for i, el := range x {
			if i > 0 {
				e.sb.WriteByte(',')
			}
			e.writeGeneric(el)
		}
		e.sb.WriteByte(']')
	default:
		e.write(reflect.ValueOf(v))
	}
}

func formatFloat(f float64, bits int) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return null
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, bits)
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}

func quote(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return strconv.Quote(s)
	}
	return string(b)
}

type field struct {
	name      string
	index     []int
	omitEmpty bool
}

var fieldCache sync.Map // reflect.Type -> []field

func structFields(t reflect.Type) []field {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]field)
	}
	var out []field
	collectFields(t, nil, []reflect.Type{t}, &out)
	actual, _ := fieldCache.LoadOrStore(t, out)
	return actual.([]field)
}

// collectFields flattens embedded structs. outer holds the embedding chain so a
// type embedding itself through a pointer stops at the first repeat.
func collectFields(t reflect.Type, parent []int, outer []reflect.Type, out *[]field) {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		index := append(append([]int(nil), parent...), i)

		ft := sf.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if sf.Anonymous && name == "" && ft.Kind() == reflect.Struct {
			if !slices.Contains(outer, ft) {
				collectFields(ft, index, append(outer, ft), out)
			}
			continue
		}
		if !sf.IsExported() {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		*out = append(*out, field{
			name:      name,
			index:     index,
			omitEmpty: strings.Contains(opts, "omitempty"),
		})
	}
}

// fieldByIndex walks embedded pointers without panicking on nil.
func fieldByIndex(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}
