package plist

// Array is an ordered list of values.
type Array struct {
	values []Value
}

// NewArray returns an array holding values.
func NewArray(values ...Value) *Array {
	return &Array{values: values}
}

func (*Array) Type() Type { return TypeArray }

// Len returns the number of elements.
func (a *Array) Len() int { return len(a.values) }

// At returns the element at i.
func (a *Array) At(i int) Value { return a.values[i] }

// Put replaces the element at i.
func (a *Array) Put(i int, v Value) { a.values[i] = v }

// Append adds values to the end of the array.
func (a *Array) Append(values ...Value) { a.values = append(a.values, values...) }

// Values returns the elements. The slice is shared with the array.
func (a *Array) Values() []Value { return a.values }

// Dict is an ordered mapping. Keys are matched by identity, so two
// distinct *String keys with the same text are two entries.
type Dict struct {
	keys   []Value
	values []Value
	index  map[Value]int
}

// NewDict returns an empty dictionary.
func NewDict() *Dict {
	return &Dict{index: make(map[Value]int)}
}

func (*Dict) Type() Type { return TypeDict }

func (d *Dict) lookup(k Value) (int, bool) {
	if d.index == nil {
		d.index = make(map[Value]int, len(d.keys))
		for i, key := range d.keys {
			d.index[key] = i
		}
	}
	i, ok := d.index[k]
	return i, ok
}

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.keys) }

// Set stores v under k, replacing the value of an identical key.
func (d *Dict) Set(k, v Value) {
	if i, ok := d.lookup(k); ok {
		d.values[i] = v
		return
	}
	d.index[k] = len(d.keys)
	d.keys = append(d.keys, k)
	d.values = append(d.values, v)
}

// Get returns the value stored under the identical key k.
func (d *Dict) Get(k Value) (Value, bool) {
	if i, ok := d.lookup(k); ok {
		return d.values[i], true
	}
	return nil, false
}

// Lookup returns the value of the first *String key whose text is key.
func (d *Dict) Lookup(key string) (Value, bool) {
	for i, k := range d.keys {
		if s, ok := k.(*String); ok && s.equalString(key) {
			return d.values[i], true
		}
	}
	return nil, false
}

// SetString stores v under the first *String key whose text is key,
// adding a new key when there is none.
func (d *Dict) SetString(key string, v Value) {
	for i, k := range d.keys {
		if s, ok := k.(*String); ok && s.equalString(key) {
			d.values[i] = v
			return
		}
	}
	d.Set(NewString(key), v)
}

// Delete removes the entry of the identical key k.
func (d *Dict) Delete(k Value) bool {
	i, ok := d.lookup(k)
	if !ok {
		return false
	}
	d.keys = append(d.keys[:i], d.keys[i+1:]...)
	d.values = append(d.values[:i], d.values[i+1:]...)
	d.index = nil
	return true
}

// KeyAt returns the key of entry i.
func (d *Dict) KeyAt(i int) Value { return d.keys[i] }

// ValueAt returns the value of entry i.
func (d *Dict) ValueAt(i int) Value { return d.values[i] }

// Keys returns the keys in order. The slice is shared with the dictionary.
func (d *Dict) Keys() []Value { return d.keys }

// Values returns the values in key order. The slice is shared with the
// dictionary.
func (d *Dict) Values() []Value { return d.values }

// Set is an ordered collection of distinct values, compared by identity.
type Set struct {
	values []Value
	index  map[Value]int
}

// NewSet returns a set holding values, dropping repeated ones.
func NewSet(values ...Value) *Set {
	s := &Set{index: make(map[Value]int, len(values))}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

func (*Set) Type() Type { return TypeSet }

func (s *Set) lookup(v Value) (int, bool) {
	if s.index == nil {
		s.index = make(map[Value]int, len(s.values))
		for i, e := range s.values {
			s.index[e] = i
		}
	}
	i, ok := s.index[v]
	return i, ok
}

// Add inserts v and reports whether it was not already present.
func (s *Set) Add(v Value) bool {
	if _, ok := s.lookup(v); ok {
		return false
	}
	s.index[v] = len(s.values)
	s.values = append(s.values, v)
	return true
}

// Has reports whether v is in the set.
func (s *Set) Has(v Value) bool {
	_, ok := s.lookup(v)
	return ok
}

// Delete removes v and reports whether it was present.
func (s *Set) Delete(v Value) bool {
	i, ok := s.lookup(v)
	if !ok {
		return false
	}
	s.values = append(s.values[:i], s.values[i+1:]...)
	s.index = nil
	return true
}

// Len returns the number of elements.
func (s *Set) Len() int { return len(s.values) }

// At returns the element at i.
func (s *Set) At(i int) Value { return s.values[i] }

// Values returns the elements in insertion order. The slice is shared
// with the set.
func (s *Set) Values() []Value { return s.values }
