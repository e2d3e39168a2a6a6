package plist

import (
	"reflect"
	"strings"
	"sync"
)

// TypeInfo holds details for the plist representation of a type.
type TypeInfo struct {
	Fields []FieldInfo
}

// FieldInfo holds details for the plist representation of a single field.
type FieldInfo struct {
	idx       []int
	Name      string
	OmitEmpty bool
}

var tinfoMap sync.Map // map[reflect.Type]*TypeInfo

// GetTypeInfo returns the TypeInfo structure with details necessary
// for converting typ to and from a dictionary.
func GetTypeInfo(typ reflect.Type) (*TypeInfo, error) {
	if ltinfo, ok := tinfoMap.Load(typ); ok {
		return ltinfo.(*TypeInfo), nil
	}
	tinfo := &TypeInfo{}
	if typ.Kind() == reflect.Struct {
		n := typ.NumField()
		for i := 0; i < n; i++ {
			f := typ.Field(i)
			if f.Tag.Get("plist") == "-" || (!f.Anonymous && f.PkgPath != "") {
				continue // Private field
			}

			// For embedded structs, embed its fields.
			if f.Anonymous && f.Tag.Get("plist") == "" {
				t := f.Type
				if t.Kind() == reflect.Ptr {
					t = t.Elem()
				}
				if t.Kind() == reflect.Struct {
					inner, err := GetTypeInfo(t)
					if err != nil {
						return nil, err
					}
					for _, finfo := range inner.Fields {
						finfo.idx = append([]int{i}, finfo.idx...)
						addFieldInfo(tinfo, &finfo)
					}
					continue
				}
				if f.PkgPath != "" {
					continue
				}
			}

			addFieldInfo(tinfo, structFieldInfo(&f))
		}
	}
	ltinfo, _ := tinfoMap.LoadOrStore(typ, tinfo)
	return ltinfo.(*TypeInfo), nil
}

// structFieldInfo builds the FieldInfo of f from its `plist` tag.
func structFieldInfo(f *reflect.StructField) *FieldInfo {
	finfo := &FieldInfo{idx: f.Index, Name: f.Name}
	name, flags, _ := strings.Cut(f.Tag.Get("plist"), ",")
	if name != "" {
		finfo.Name = name
	}
	for _, flag := range strings.Split(flags, ",") {
		if flag == "omitempty" {
			finfo.OmitEmpty = true
		}
	}
	return finfo
}

// addFieldInfo adds newf to tinfo.Fields unless a shallower field has the
// same name. Deeper fields of the same name are dropped, matching Go's
// field resolution on embedding.
func addFieldInfo(tinfo *TypeInfo, newf *FieldInfo) {
	var conflicts []int
	for i := range tinfo.Fields {
		if tinfo.Fields[i].Name == newf.Name {
			conflicts = append(conflicts, i)
		}
	}
	for _, i := range conflicts {
		if len(tinfo.Fields[i].idx) <= len(newf.idx) {
			return
		}
	}
	for c := len(conflicts) - 1; c >= 0; c-- {
		i := conflicts[c]
		tinfo.Fields = append(tinfo.Fields[:i], tinfo.Fields[i+1:]...)
	}
	tinfo.Fields = append(tinfo.Fields, *newf)
}

// Value returns v's field value corresponding to finfo.
// It's equivalent to v.FieldByIndex(finfo.idx), but initializes
// and dereferences pointers as necessary.
func (finfo *FieldInfo) Value(v reflect.Value) reflect.Value {
	for i, x := range finfo.idx {
		if i > 0 && v.Kind() == reflect.Ptr && v.Type().Elem().Kind() == reflect.Struct {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v
}

// read is Value without allocation. ok is false when a nil embedded
// pointer lies on the path.
func (finfo *FieldInfo) read(v reflect.Value) (field reflect.Value, ok bool) {
	for i, x := range finfo.idx {
		if i > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}
