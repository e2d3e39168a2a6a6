package plist

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"time"
)

var (
	valueType  = reflect.TypeOf((*Value)(nil)).Elem()
	timeType   = reflect.TypeOf(time.Time{})
	bigIntType = reflect.TypeOf(big.Int{})
	uidType    = reflect.TypeOf(UID{})

	errAssignTarget = errors.New("plist: Assign requires a non-nil pointer")
)

// nativeFrame is an open container while building a native tree.
type nativeFrame struct {
	slice []interface{}
	dict  map[string]interface{}
	key   string
}

func (f *nativeFrame) value() interface{} {
	if f.dict != nil {
		return f.dict
	}
	return f.slice
}

type nativeBuilder struct {
	stack     []*nativeFrame
	ancestors map[Value]struct{}
	result    interface{}
	err       error
}

// Native converts v into plain Go values: string, int64 (*big.Int for
// integers beyond 64 bits), float64, bool, time.Time, []byte, *UID, nil for
// null, []interface{} for arrays and sets and map[string]interface{} for
// dictionaries. Shared containers are copied at every occurrence.
func Native(v Value) (interface{}, error) {
	b := &nativeBuilder{ancestors: make(map[Value]struct{})}
	Walk(v, &Walker{
		Enter: Visitors{
			Array: b.enterList,
			Set:   b.enterList,
			Dict:  b.enterDict,
		},
		Key: Visitors{
			Dict: func(v Visit) int {
				b.top().key = v.Value.(*String).String()
				return WalkContinue
			},
		},
		Value: Visitors{Default: b.scalar},
		Leave: Visitors{Default: b.leave},
	})
	if b.err != nil {
		return nil, b.err
	}
	return b.result, nil
}

func (b *nativeBuilder) top() *nativeFrame {
	return b.stack[len(b.stack)-1]
}

func (b *nativeBuilder) fail(err error) int {
	b.err = err
	return WalkStop
}

func (b *nativeBuilder) add(v interface{}) {
	if len(b.stack) == 0 {
		b.result = v
		return
	}
	f := b.top()
	if f.dict != nil {
		f.dict[f.key] = v
	} else {
		f.slice = append(f.slice, v)
	}
}

func (b *nativeBuilder) push(v Value, f *nativeFrame) int {
	if _, ok := b.ancestors[v]; ok {
		return b.fail(fmt.Errorf("plist: cannot convert %s: %w", v.Type(), ErrCircularReference))
	}
	b.ancestors[v] = struct{}{}
	b.stack = append(b.stack, f)
	return WalkContinue
}

func (b *nativeBuilder) enterList(v Visit) int {
	n := 0
	switch c := v.Value.(type) {
	case *Array:
		n = c.Len()
	case *Set:
		n = c.Len()
	}
	return b.push(v.Value, &nativeFrame{slice: make([]interface{}, 0, n)})
}

func (b *nativeBuilder) enterDict(v Visit) int {
	d := v.Value.(*Dict)
	for _, k := range d.keys {
		if _, ok := k.(*String); !ok {
			return b.fail(fmt.Errorf("plist: cannot convert %s key: %w", typeOf(k), ErrInvalidKeyType))
		}
	}
	return b.push(v.Value, &nativeFrame{dict: make(map[string]interface{}, d.Len())})
}

func (b *nativeBuilder) leave(v Visit) int {
	f := b.top()
	b.stack = b.stack[:len(b.stack)-1]
	delete(b.ancestors, v.Value)
	b.add(f.value())
	return WalkContinue
}

func (b *nativeBuilder) scalar(v Visit) int {
	switch pval := v.Value.(type) {
	case *Null:
		b.add(nil)
	case *Boolean:
		b.add(pval.Value())
	case *Integer:
		if pval.IsInt64() {
			b.add(pval.Int64())
		} else {
			b.add(pval.BigInt())
		}
	case *Real:
		b.add(pval.Value())
	case *Date:
		t, ok := pval.Time()
		if !ok {
			return b.fail(fmt.Errorf("plist: cannot convert date %v: %w", pval.Seconds(), errDateRange))
		}
		b.add(t)
	case *Data:
		b.add(pval.Bytes())
	case *String:
		b.add(pval.String())
	case *UID:
		b.add(NewUID(pval.Value()))
	default:
		return b.fail(fmt.Errorf("plist: cannot convert %s: %w", typeOf(v.Value), ErrInvalidValueType))
	}
	return WalkContinue
}

// FromNative converts a Go value into a Value. It accepts Values, booleans,
// numbers, *big.Int, strings, time.Time, byte slices and arrays, UID,
// slices, arrays, string-keyed maps (in sorted key order), structs and
// pointers to any of these. Struct fields follow `plist:"name,omitempty"`
// tags. Nil pointers and interfaces become null, except struct fields,
// which are left out.
func FromNative(v interface{}) (Value, error) {
	return fromNative(reflect.ValueOf(v), make(map[uintptr]struct{}))
}

func fromNative(val reflect.Value, ancestors map[uintptr]struct{}) (Value, error) {
	if !val.IsValid() {
		return NewNull(), nil
	}
	typ := val.Type()
	if typ.Implements(valueType) && val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return NewNull(), nil
		}
		return val.Interface().(Value), nil
	}
	switch typ {
	case timeType:
		return DateFromTime(val.Interface().(time.Time)), nil
	case bigIntType:
		n := val.Interface().(big.Int)
		if i, ok := integerFromBig(&n); ok {
			return i, nil
		}
		return nil, fmt.Errorf("plist: integer %s exceeds 128 bits", n.String())
	case uidType:
		u := val.Interface().(UID)
		return NewUID(u.Value()), nil
	}

	switch val.Kind() {
	case reflect.Interface:
		if val.IsNil() {
			return NewNull(), nil
		}
		return fromNative(val.Elem(), ancestors)
	case reflect.Ptr:
		if val.IsNil() {
			return NewNull(), nil
		}
		p := val.Pointer()
		if _, ok := ancestors[p]; ok {
			return nil, fmt.Errorf("plist: cannot convert %v: %w", typ, ErrCircularReference)
		}
		ancestors[p] = struct{}{}
		defer delete(ancestors, p)
		return fromNative(val.Elem(), ancestors)
	case reflect.Bool:
		return NewBoolean(val.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NewInteger(val.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return NewIntegerUint64(val.Uint()), nil
	case reflect.Float32:
		return NewReal32(float32(val.Float())), nil
	case reflect.Float64:
		return NewReal(val.Float()), nil
	case reflect.String:
		return NewString(val.String()), nil
	case reflect.Slice, reflect.Array:
		if typ.Elem().Kind() == reflect.Uint8 {
			b := make([]byte, val.Len())
			reflect.Copy(reflect.ValueOf(b), val)
			return NewData(b), nil
		}
		array := NewArray()
		for i := 0; i < val.Len(); i++ {
			e, err := fromNative(val.Index(i), ancestors)
			if err != nil {
				return nil, err
			}
			array.Append(e)
		}
		return array, nil
	case reflect.Map:
		if typ.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("plist: cannot convert %v: %w", typ, ErrInvalidKeyType)
		}
		if val.IsNil() {
			return NewDict(), nil
		}
		p := val.Pointer()
		if _, ok := ancestors[p]; ok {
			return nil, fmt.Errorf("plist: cannot convert %v: %w", typ, ErrCircularReference)
		}
		ancestors[p] = struct{}{}
		defer delete(ancestors, p)
		keys := val.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		dict := NewDict()
		for _, k := range keys {
			e, err := fromNative(val.MapIndex(k), ancestors)
			if err != nil {
				return nil, err
			}
			dict.Set(NewString(k.String()), e)
		}
		return dict, nil
	case reflect.Struct:
		tinfo, err := GetTypeInfo(typ)
		if err != nil {
			return nil, err
		}
		dict := NewDict()
		for i := range tinfo.Fields {
			finfo := &tinfo.Fields[i]
			fv, ok := finfo.read(val)
			if !ok || (finfo.OmitEmpty && isEmptyValue(fv)) || isNilValue(fv) {
				continue
			}
			e, err := fromNative(fv, ancestors)
			if err != nil {
				return nil, err
			}
			dict.Set(NewString(finfo.Name), e)
		}
		return dict, nil
	}
	return nil, fmt.Errorf("plist: cannot convert %v: %w", typ, ErrInvalidValueType)
}

func isNilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Ptr:
		return v.IsNil()
	case reflect.Struct:
		if v.Type() == timeType {
			return v.Interface().(time.Time).IsZero()
		}
	}
	return false
}

// Assign stores v into the Go value out points to, converting through
// Native. Structs are filled by `plist` tag name; fields absent from the
// dictionary are left untouched.
func Assign(v Value, out interface{}) error {
	val := reflect.ValueOf(out)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return errAssignTarget
	}
	native, err := Native(v)
	if err != nil {
		return err
	}
	return assignNative(native, val)
}

func assignNative(v interface{}, val reflect.Value) error {
	for val.Kind() == reflect.Ptr {
		if v == nil {
			return nil
		}
		if val.IsNil() {
			val.Set(reflect.New(val.Type().Elem()))
		}
		val = val.Elem()
	}
	if val.Kind() == reflect.Interface {
		if v == nil {
			return nil
		}
		switch {
		case val.NumMethod() == 0:
			val.Set(reflect.ValueOf(v))
		case val.Type() == valueType:
			pval, err := FromNative(v)
			if err != nil {
				return err
			}
			val.Set(reflect.ValueOf(pval))
		default:
			return assignError(v, val)
		}
		return nil
	}
	switch pval := v.(type) {
	case string:
		if val.Kind() != reflect.String {
			return assignError(v, val)
		}
		val.SetString(pval)
	case int64:
		return assignInt(pval, v, val)
	case *big.Int:
		if val.Type() == bigIntType {
			val.Set(reflect.ValueOf(pval).Elem())
			return nil
		}
		switch {
		case pval.IsInt64():
			return assignInt(pval.Int64(), v, val)
		case pval.IsUint64():
			switch val.Kind() {
			case reflect.Uint, reflect.Uint64, reflect.Uintptr:
				val.SetUint(pval.Uint64())
				return nil
			}
		}
		return assignError(v, val)
	case float64:
		switch val.Kind() {
		case reflect.Float32, reflect.Float64:
			val.SetFloat(pval)
		default:
			return assignError(v, val)
		}
	case bool:
		if val.Kind() != reflect.Bool {
			return assignError(v, val)
		}
		val.SetBool(pval)
	case time.Time:
		if val.Type() != timeType {
			return assignError(v, val)
		}
		val.Set(reflect.ValueOf(pval))
	case []byte:
		switch {
		case val.Kind() == reflect.Slice && val.Type().Elem().Kind() == reflect.Uint8:
			val.SetBytes(pval)
		case val.Kind() == reflect.Array && val.Type().Elem().Kind() == reflect.Uint8 && val.Len() == len(pval):
			reflect.Copy(val, reflect.ValueOf(pval))
		default:
			return assignError(v, val)
		}
	case *UID:
		if val.Type() == uidType {
			val.Set(reflect.ValueOf(pval).Elem())
			return nil
		}
		return assignInt(int64(pval.Value()), v, val)
	case []interface{}:
		return assignSlice(pval, val)
	case map[string]interface{}:
		switch val.Kind() {
		case reflect.Map:
			return assignMap(pval, val)
		case reflect.Struct:
			return assignStruct(pval, val)
		}
		return assignError(v, val)
	case nil:
	default:
		return fmt.Errorf("plist: not a native value: %T", v)
	}
	return nil
}

func assignError(v interface{}, val reflect.Value) error {
	return fmt.Errorf("plist: cannot assign %T to %v", v, val.Type())
}

func assignInt(n int64, v interface{}, val reflect.Value) error {
	switch val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if val.OverflowInt(n) {
			return fmt.Errorf("plist: %d overflows %v", n, val.Type())
		}
		val.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if n < 0 || val.OverflowUint(uint64(n)) {
			return fmt.Errorf("plist: %d overflows %v", n, val.Type())
		}
		val.SetUint(uint64(n))
	default:
		if val.Type() != bigIntType {
			return assignError(v, val)
		}
		val.Set(reflect.ValueOf(big.NewInt(n)).Elem())
	}
	return nil
}

func assignSlice(array []interface{}, val reflect.Value) error {
	switch val.Kind() {
	case reflect.Slice:
		val.Set(reflect.MakeSlice(val.Type(), len(array), len(array)))
	case reflect.Array:
		if val.Len() != len(array) {
			return fmt.Errorf("plist: cannot assign %d elements to %v", len(array), val.Type())
		}
	default:
		return assignError(array, val)
	}
	for i, v := range array {
		if err := assignNative(v, val.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func assignMap(dict map[string]interface{}, val reflect.Value) error {
	typ := val.Type()
	if typ.Key().Kind() != reflect.String {
		return assignError(dict, val)
	}
	if val.IsNil() {
		val.Set(reflect.MakeMapWithSize(typ, len(dict)))
	}
	for k, v := range dict {
		elem := reflect.New(typ.Elem()).Elem()
		if err := assignNative(v, elem); err != nil {
			return err
		}
		val.SetMapIndex(reflect.ValueOf(k).Convert(typ.Key()), elem)
	}
	return nil
}

func assignStruct(dict map[string]interface{}, val reflect.Value) error {
	tinfo, err := GetTypeInfo(val.Type())
	if err != nil {
		return err
	}
	for i := range tinfo.Fields {
		finfo := &tinfo.Fields[i]
		if dval, ok := dict[finfo.Name]; ok {
			if err := assignNative(dval, finfo.Value(val)); err != nil {
				return fmt.Errorf("plist: field %s: %w", finfo.Name, err)
			}
		}
	}
	return nil
}

// ConvertToJSON decodes a property list of any format and returns it as
// JSON.
func ConvertToJSON(data []byte) ([]byte, error) {
	var pval Value
	if _, err := Unmarshal(data, &pval); err != nil {
		return nil, err
	}
	native, err := Native(pval)
	if err != nil {
		return nil, err
	}
	return json.Marshal(native)
}
