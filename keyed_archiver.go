package plist

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
	uuid "github.com/satori/go.uuid"
	"go.uber.org/zap"
)

const (
	archiverVersion = 100000
	archiverName    = "NSKeyedArchiver"
	archiverNull    = "$null"
)

type archiverDate struct {
	Time  float64 `plist:"NS.time"`
	Class *UID    `plist:"$class"`
}
type archiverData struct {
	Data  []byte `plist:"NS.data"`
	Class *UID   `plist:"$class"`
}
type archiverUUID struct {
	Bytes []byte `plist:"NS.uuidbytes"`
	Class *UID   `plist:"$class"`
}
type archiverArray struct {
	Objects []*UID `plist:"NS.objects"`
	Class   *UID   `plist:"$class"`
}
type archiverTable struct {
	Keys    []*UID `plist:"NS.keys"`
	Objects []*UID `plist:"NS.objects"`
	Class   *UID   `plist:"$class"`
}

var (
	archiverMutableDictionaryClass = &archiverClass{ClassName: "NSMutableDictionary", Classes: []string{"NSMutableDictionary", "NSDictionary", "NSObject"}}
	archiverMutableArrayClass      = &archiverClass{ClassName: "NSMutableArray", Classes: []string{"NSMutableArray", "NSArray", "NSObject"}}
	archiverMutableDataClass       = &archiverClass{ClassName: "NSMutableData", Classes: []string{"NSMutableData", "NSData", "NSObject"}}
	archiverDateClass              = &archiverClass{ClassName: "NSDate", Classes: []string{"NSDate", "NSObject"}}

	archiverUUIDType  = reflect.TypeOf(uuid.UUID{})
	archiverUUIDClass = &archiverClass{ClassName: "NSUUID", Classes: []string{"NSUUID", "NSObject"}}

	archiverClasses = make(map[reflect.Type]*archiverClass)

	// UIDs are compared by reference number
	archiverCompare = cmp.Comparer(func(x, y *UID) bool {
		if x == nil || y == nil {
			return x == y
		}
		return x.value == y.value
	})

	errArchiverNilElem = errors.New("nil item")
)

// ArchiverAddFoundation registers a struct type archived as its own class
// rather than as a dictionary. Its fields are written as object keys.
func ArchiverAddFoundation(typ reflect.Type, name string, classes ...string) {
	archiverClasses[typ] = &archiverClass{ClassName: name, Classes: classes}
}

type archiverClass struct {
	ClassName string   `plist:"$classname"`
	Classes   []string `plist:"$classes"`
}

func (mcac *archiverClass) isDictionary() bool {
	return mcac.ClassName == "NSMutableDictionary" || mcac.ClassName == "NSDictionary"
}
func (mcac *archiverClass) isArray() bool {
	return mcac.ClassName == "NSMutableArray" || mcac.ClassName == "NSArray"
}
func (mcac *archiverClass) isData() bool {
	return mcac.ClassName == "NSMutableData" || mcac.ClassName == "NSData"
}
func (mcac *archiverClass) isUUID() bool {
	return mcac.ClassName == "NSUUID"
}
func (mcac *archiverClass) isDate() bool {
	return mcac.ClassName == "NSDate"
}

type archiverTop struct {
	Root *UID `plist:"root"`
}

// Archiver reads and writes NSKeyedArchiver documents.
type Archiver struct {
	Version  int           `plist:"$version"`
	Objects  []interface{} `plist:"$objects"`
	Archiver string        `plist:"$archiver"`
	Top      *archiverTop  `plist:"$top"`

	// object indexes being decoded, for cycle detection
	visiting map[uint32]struct{}
}

// ReadFromZipData reads a gzip compressed archive.
func (a *Archiver) ReadFromZipData(data []byte) error {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer reader.Close()
	return a.ReadFromReader(reader)
}

// ReadFromData reads an archive of any property list format.
func (a *Archiver) ReadFromData(data []byte) error {
	return a.ReadFromReader(bytes.NewReader(data))
}

// ReadFromReader reads an archive of any property list format.
func (a *Archiver) ReadFromReader(reader io.Reader) error {
	*a = Archiver{}
	decoder := NewDecoder(reader)
	if err := decoder.DecodeInto(a); err != nil {
		return err
	}
	if a.Archiver != archiverName {
		return fmt.Errorf("plist: not a keyed archive: %q", a.Archiver)
	}
	if a.Top == nil || a.Top.Root == nil {
		return errors.New("plist: keyed archive has no root")
	}
	Logger().Debug("archive read",
		zap.Stringer("format", decoder.Format),
		zap.Int("objects", len(a.Objects)))
	return nil
}

// object resolves a reference. The $null object resolves to nil.
func (a *Archiver) object(u *UID) (interface{}, error) {
	i := u.Value()
	if int64(i) >= int64(len(a.Objects)) {
		return nil, fmt.Errorf("plist: archive reference %d out of range", i)
	}
	if s, ok := a.Objects[i].(string); ok && s == archiverNull {
		return nil, nil
	}
	return a.Objects[i], nil
}

// follow resolves u and calls fn with the object, failing on a reference
// back into an object being decoded.
func (a *Archiver) follow(u *UID, fn func(interface{}) error) error {
	obj, err := a.object(u)
	if err != nil {
		return err
	}
	if a.visiting == nil {
		a.visiting = make(map[uint32]struct{})
	}
	if _, ok := a.visiting[u.Value()]; ok {
		return fmt.Errorf("plist: archive object %d refers to itself", u.Value())
	}
	a.visiting[u.Value()] = struct{}{}
	defer delete(a.visiting, u.Value())
	return fn(obj)
}

func (a *Archiver) getClass(dict map[string]interface{}) (*archiverClass, error) {
	ref, ok := dict["$class"].(*UID)
	if !ok {
		return nil, errors.New("plist: archive object has no $class")
	}
	obj, err := a.object(ref)
	if err != nil {
		return nil, err
	}
	class := &archiverClass{}
	if err := assignNative(obj, reflect.ValueOf(class)); err != nil {
		return nil, err
	}
	return class, nil
}

func (a *Archiver) addObject(obj interface{}) *UID {
	for i, o := range a.Objects {
		if cmp.Equal(o, obj, archiverCompare) {
			return NewUID(uint32(i))
		}
	}
	a.Objects = append(a.Objects, obj)
	return NewUID(uint32(len(a.Objects) - 1))
}

// Unmarshal decodes the root object of an archive read by one of the
// Read methods into v.
func (a *Archiver) Unmarshal(v interface{}) error {
	if a.Top == nil || a.Top.Root == nil {
		return errors.New("plist: keyed archive has no root")
	}
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return errAssignTarget
	}
	return a.unmarshal(a.Top.Root, val)
}

func (a *Archiver) unmarshal(v interface{}, val reflect.Value) error {
	if v == nil {
		return nil
	}
	if ref, ok := v.(*UID); ok {
		return a.follow(ref, func(obj interface{}) error {
			return a.unmarshal(obj, val)
		})
	}
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			val.Set(reflect.New(val.Type().Elem()))
		}
		val = val.Elem()
	}
	if val.Kind() == reflect.Interface && val.NumMethod() == 0 {
		obj, err := a.decodeAny(v)
		if err != nil {
			return err
		}
		if obj != nil {
			val.Set(reflect.ValueOf(obj))
		}
		return nil
	}
	switch pval := v.(type) {
	case []interface{}:
		if val.Kind() != reflect.Slice {
			return errors.New("not slice field")
		}
		return a.unmarshalSlice(pval, val)
	case map[string]interface{}:
		class, err := a.getClass(pval)
		if err != nil {
			return err
		}
		switch {
		case class.isDate() && val.Type() == timeType:
			return a.unmarshalDate(pval, val)
		case class.isUUID() && val.Type() == archiverUUIDType:
			return a.unmarshalUUID(pval, val)
		case class.isData() && val.Kind() == reflect.Slice && val.Type().Elem().Kind() == reflect.Uint8:
			return a.unmarshalData(pval, val)
		case class.isArray() && val.Kind() == reflect.Slice:
			return a.unmarshalArray(pval, val)
		case class.isDictionary() && val.Kind() == reflect.Map:
			return a.unmarshalMap(pval, val)
		case class.isDictionary() && val.Kind() == reflect.Struct:
			return a.unmarshalStruct(pval, val)
		case val.Kind() == reflect.Struct:
			return a.unmarshalNSType(pval, val)
		}
		return fmt.Errorf("plist: cannot decode %s into %v", class.ClassName, val.Type())
	}
	return assignNative(v, val)
}

// decodeAny decodes an object into plain Go values by its class.
func (a *Archiver) decodeAny(v interface{}) (interface{}, error) {
	switch pval := v.(type) {
	case *UID:
		var out interface{}
		err := a.follow(pval, func(obj interface{}) (err error) {
			out, err = a.decodeAny(obj)
			return err
		})
		return out, err
	case []interface{}:
		out := make([]interface{}, len(pval))
		for i, e := range pval {
			d, err := a.decodeAny(e)
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil
	case map[string]interface{}:
		class, err := a.getClass(pval)
		if err != nil {
			return nil, err
		}
		var out reflect.Value
		switch {
		case class.isDate():
			out = reflect.New(timeType)
		case class.isUUID():
			out = reflect.New(archiverUUIDType)
		case class.isData():
			out = reflect.New(reflect.TypeOf([]byte(nil)))
		case class.isArray():
			out = reflect.New(reflect.TypeOf([]interface{}(nil)))
		case class.isDictionary():
			out = reflect.New(reflect.TypeOf(map[string]interface{}(nil)))
		default:
			fields := make(map[string]interface{}, len(pval))
			for k, e := range pval {
				if k == "$class" {
					continue
				}
				d, err := a.decodeAny(e)
				if err != nil {
					return nil, err
				}
				fields[k] = d
			}
			return fields, nil
		}
		if err := a.unmarshal(pval, out); err != nil {
			return nil, err
		}
		return out.Elem().Interface(), nil
	}
	return v, nil
}

func (a *Archiver) unmarshalDate(pval map[string]interface{}, val reflect.Value) error {
	date := &archiverDate{}
	if err := assignNative(pval, reflect.ValueOf(date)); err != nil {
		return err
	}
	t, ok := NewDate(date.Time).Time()
	if !ok {
		return fmt.Errorf("plist: archived date %v: %w", date.Time, errDateRange)
	}
	val.Set(reflect.ValueOf(t))
	return nil
}
func (a *Archiver) unmarshalData(pval map[string]interface{}, val reflect.Value) error {
	data := &archiverData{}
	if err := assignNative(pval, reflect.ValueOf(data)); err != nil {
		return err
	}
	val.SetBytes(data.Data)
	return nil
}
func (a *Archiver) unmarshalUUID(pval map[string]interface{}, val reflect.Value) error {
	uid := &archiverUUID{}
	if err := assignNative(pval, reflect.ValueOf(uid)); err != nil {
		return err
	}
	u, err := uuid.FromBytes(uid.Bytes)
	if err != nil {
		return err
	}
	val.Set(reflect.ValueOf(u))
	return nil
}
func (a *Archiver) unmarshalSlice(array []interface{}, val reflect.Value) error {
	val.Set(reflect.MakeSlice(val.Type(), len(array), len(array)))
	for i, v := range array {
		if err := a.unmarshal(v, val.Index(i)); err != nil {
			return err
		}
	}
	return nil
}
func (a *Archiver) unmarshalArray(dict map[string]interface{}, val reflect.Value) error {
	arr := &archiverArray{}
	if err := assignNative(dict, reflect.ValueOf(arr)); err != nil {
		return err
	}
	val.Set(reflect.MakeSlice(val.Type(), 0, len(arr.Objects)))
	for _, ref := range arr.Objects {
		item := reflect.New(val.Type().Elem())
		if err := a.unmarshal(ref, item); err != nil {
			return err
		}
		val.Set(reflect.Append(val, item.Elem()))
	}
	return nil
}
func (a *Archiver) unmarshalMap(dict map[string]interface{}, val reflect.Value) error {
	typ := val.Type()
	kvs, err := a.table(dict)
	if err != nil {
		return err
	}
	if val.IsNil() {
		val.Set(reflect.MakeMapWithSize(typ, len(kvs)))
	}
	for k, ref := range kvs {
		item := reflect.New(typ.Elem())
		if err := a.unmarshal(ref, item); err != nil {
			return err
		}
		val.SetMapIndex(reflect.ValueOf(k).Convert(typ.Key()), item.Elem())
	}
	return nil
}
func (a *Archiver) unmarshalNSType(pval map[string]interface{}, val reflect.Value) error {
	tinfo, err := GetTypeInfo(val.Type())
	if err != nil {
		return err
	}
	for i := range tinfo.Fields {
		finfo := &tinfo.Fields[i]
		if err = a.unmarshal(pval[finfo.Name], finfo.Value(val)); err != nil {
			return err
		}
	}
	return nil
}

// table resolves the keys of an archived dictionary.
func (a *Archiver) table(dict map[string]interface{}) (map[string]*UID, error) {
	tab := &archiverTable{}
	if err := assignNative(dict, reflect.ValueOf(tab)); err != nil {
		return nil, err
	}
	if len(tab.Keys) != len(tab.Objects) {
		return nil, errors.New("plist: archived dictionary keys and objects differ in length")
	}
	kvs := make(map[string]*UID, len(tab.Keys))
	for i, ref := range tab.Keys {
		key, err := a.object(ref)
		if err != nil {
			return nil, err
		}
		s, ok := key.(string)
		if !ok {
			return nil, fmt.Errorf("plist: archived dictionary key %d is not a string", ref.Value())
		}
		kvs[s] = tab.Objects[i]
	}
	return kvs, nil
}
func (a *Archiver) unmarshalStruct(dict map[string]interface{}, val reflect.Value) error {
	tinfo, err := GetTypeInfo(val.Type())
	if err != nil {
		return err
	}
	kvs, err := a.table(dict)
	if err != nil {
		return err
	}
	for i := range tinfo.Fields {
		finfo := &tinfo.Fields[i]
		if ref, ok := kvs[finfo.Name]; ok {
			if err := a.unmarshal(ref, finfo.Value(val)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Marshal archives v and returns it as a binary property list.
func (a *Archiver) Marshal(v interface{}) ([]byte, error) {
	a.Version = archiverVersion
	a.Archiver = archiverName
	a.Objects = make([]interface{}, 0)
	a.addObject(archiverNull)
	index, err := a.marshal(reflect.ValueOf(v))
	if err != nil {
		return nil, err
	}
	a.Top = &archiverTop{Root: index}
	data, err := Marshal(a, BinaryFormat)
	if err != nil {
		return nil, err
	}
	Logger().Debug("archive written", zap.Int("objects", len(a.Objects)), zap.Int("bytes", len(data)))
	return data, nil
}
func (a *Archiver) marshal(val reflect.Value) (*UID, error) {
	if !val.IsValid() {
		return NewUID(0), nil
	}
	if val.Kind() == reflect.Interface {
		if val.IsNil() {
			return NewUID(0), nil
		}
		val = val.Elem()
	}
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, errArchiverNilElem
		}
		val = val.Elem()
	}
	switch val.Type() {
	case archiverUUIDType:
		uid := &archiverUUID{}
		uid.Bytes = val.Interface().(uuid.UUID).Bytes()
		uid.Class = a.addObject(archiverUUIDClass)
		return a.addObject(uid), nil
	case timeType:
		date := &archiverDate{}
		date.Time = DateFromTime(val.Interface().(time.Time)).Seconds()
		date.Class = a.addObject(archiverDateClass)
		return a.addObject(date), nil
	}
	switch val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.addObject(val.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return a.addObject(val.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return a.addObject(val.Float()), nil
	case reflect.Bool:
		return a.addObject(val.Bool()), nil
	case reflect.String:
		str := val.String()
		if str == archiverNull {
			return NewUID(0), nil
		}
		return a.addObject(str), nil
	case reflect.Slice:
		return a.marshalSlice(val)
	case reflect.Map:
		return a.marshalMap(val)
	case reflect.Struct:
		return a.marshalStruct(val)
	}
	return nil, fmt.Errorf("plist: cannot archive %v", val.Type())
}
func (a *Archiver) marshalSlice(val reflect.Value) (*UID, error) {
	if val.Type().Elem().Kind() == reflect.Uint8 {
		data := &archiverData{}
		data.Data = val.Bytes()
		data.Class = a.addObject(archiverMutableDataClass)
		return a.addObject(data), nil
	}
	arr := &archiverArray{Objects: make([]*UID, 0, val.Len())}
	for i := 0; i < val.Len(); i++ {
		valueIndex, err := a.marshal(val.Index(i))
		if err != nil {
			return nil, err
		}
		arr.Objects = append(arr.Objects, valueIndex)
	}
	arr.Class = a.addObject(archiverMutableArrayClass)
	return a.addObject(arr), nil
}
func (a *Archiver) marshalMap(val reflect.Value) (*UID, error) {
	if val.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("plist: cannot archive %v", val.Type())
	}
	keys := val.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	table := &archiverTable{Keys: make([]*UID, 0, len(keys)), Objects: make([]*UID, 0, len(keys))}
	for _, k := range keys {
		valueIndex, err := a.marshal(val.MapIndex(k))
		if err != nil {
			return nil, err
		}
		table.Keys = append(table.Keys, a.addObject(k.String()))
		table.Objects = append(table.Objects, valueIndex)
	}
	table.Class = a.addObject(archiverMutableDictionaryClass)
	return a.addObject(table), nil
}
func (a *Archiver) marshalStruct(val reflect.Value) (*UID, error) {
	typ := val.Type()
	tinfo, err := GetTypeInfo(typ)
	if err != nil {
		return nil, err
	}
	if class, ok := archiverClasses[typ]; ok {
		nsobj := make(map[string]interface{})
		for i := range tinfo.Fields {
			ti := &tinfo.Fields[i]
			fv, ok := ti.read(val)
			if !ok {
				continue
			}
			valueIndex, err := a.marshal(fv)
			if err != nil {
				if err == errArchiverNilElem && ti.OmitEmpty {
					continue
				}
				return nil, err
			}
			nsobj[ti.Name] = valueIndex
		}
		nsobj["$class"] = a.addObject(class)
		return a.addObject(nsobj), nil
	}
	table := &archiverTable{}
	for i := range tinfo.Fields {
		ti := &tinfo.Fields[i]
		fv, ok := ti.read(val)
		if !ok {
			continue
		}
		valueIndex, err := a.marshal(fv)
		if err != nil {
			if err == errArchiverNilElem && ti.OmitEmpty {
				continue
			}
			return nil, err
		}
		table.Keys = append(table.Keys, a.addObject(ti.Name))
		table.Objects = append(table.Objects, valueIndex)
	}
	table.Class = a.addObject(archiverMutableDictionaryClass)
	return a.addObject(table), nil
}

// Print returns a readable dump of the root object.
func (a *Archiver) Print() string {
	if a.Top == nil || a.Top.Root == nil {
		return "<empty>"
	}
	return a.printObject(a.Top.Root)
}

func (a *Archiver) printObject(v interface{}) string {
	switch pval := v.(type) {
	case nil:
		return "nil"
	case string:
		return fmt.Sprintf("string(%v)", pval)
	case int64:
		return fmt.Sprintf("int64(%v)", pval)
	case float64:
		return fmt.Sprintf("float64(%v)", pval)
	case bool:
		return fmt.Sprintf("bool(%v)", pval)
	case []byte:
		return fmt.Sprintf("[]byte(%x)", pval)
	case *UID:
		var s string
		err := a.follow(pval, func(obj interface{}) error {
			s = a.printObject(obj)
			return nil
		})
		if err != nil {
			return fmt.Sprintf("ref(%d)", pval.Value())
		}
		return s
	case []interface{}:
		return a.printSlice("[]interface{", pval)
	case map[string]interface{}:
		class, err := a.getClass(pval)
		if err != nil {
			return fmt.Sprintf("error(%v)", err)
		}
		switch {
		case class.isDate():
			return a.printDate(pval)
		case class.isData():
			return a.printData(pval)
		case class.isArray():
			return a.printArray(pval)
		case class.isUUID():
			return a.printUUID(pval)
		case class.isDictionary():
			return a.printStruct(pval)
		}
		return a.printNSType(pval)
	}
	return fmt.Sprintf("%T(%v)", v, v)
}
func (a *Archiver) printDate(pval map[string]interface{}) string {
	date := &archiverDate{}
	if err := assignNative(pval, reflect.ValueOf(date)); err != nil {
		return fmt.Sprintf("error(%v)", err)
	}
	if t, ok := NewDate(date.Time).Time(); ok {
		return fmt.Sprintf("time(%v)", t)
	}
	return fmt.Sprintf("time(%v)", date.Time)
}
func (a *Archiver) printData(pval map[string]interface{}) string {
	data := &archiverData{}
	if err := assignNative(pval, reflect.ValueOf(data)); err != nil {
		return fmt.Sprintf("error(%v)", err)
	}
	return fmt.Sprintf("[]byte(%x)", data.Data)
}
func (a *Archiver) printUUID(pval map[string]interface{}) string {
	uid := &archiverUUID{}
	if err := assignNative(pval, reflect.ValueOf(uid)); err != nil {
		return fmt.Sprintf("error(%v)", err)
	}
	if u, err := uuid.FromBytes(uid.Bytes); err == nil {
		return fmt.Sprintf("UUID(%s)", u)
	}
	return fmt.Sprintf("UUID(%x)", uid.Bytes)
}
func (a *Archiver) printSlice(head string, array []interface{}) string {
	builder := &strings.Builder{}
	builder.WriteString(head + "\n")
	for i, v := range array {
		builder.WriteString(fmt.Sprintf("\t[%d]: %s\n", i, indentLines(a.printObject(v))))
	}
	builder.WriteString("}")
	return builder.String()
}
func (a *Archiver) printArray(dict map[string]interface{}) string {
	arr := &archiverArray{}
	if err := assignNative(dict, reflect.ValueOf(arr)); err != nil {
		return fmt.Sprintf("error(%v)", err)
	}
	refs := make([]interface{}, len(arr.Objects))
	for i, ref := range arr.Objects {
		refs[i] = ref
	}
	return a.printSlice("[]array{", refs)
}
func (a *Archiver) printNSType(pval map[string]interface{}) string {
	keys := make([]string, 0, len(pval))
	for k := range pval {
		if k != "$class" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	builder := &strings.Builder{}
	builder.WriteString("NS{\n")
	for _, k := range keys {
		builder.WriteString(fmt.Sprintf("\t[%s]: %s\n", k, indentLines(a.printObject(pval[k]))))
	}
	builder.WriteString("}")
	return builder.String()
}
func (a *Archiver) printStruct(dict map[string]interface{}) string {
	kvs, err := a.table(dict)
	if err != nil {
		return fmt.Sprintf("error(%v)", err)
	}
	keys := make([]string, 0, len(kvs))
	for k := range kvs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	builder := &strings.Builder{}
	builder.WriteString("struct{\n")
	for _, k := range keys {
		builder.WriteString(fmt.Sprintf("\t[%s]: %s\n", k, indentLines(a.printObject(kvs[k]))))
	}
	builder.WriteString("}")
	return builder.String()
}

func indentLines(s string) string {
	return strings.ReplaceAll(s, "\n", "\n\t")
}
