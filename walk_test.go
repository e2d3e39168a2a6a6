package plist

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// namer labels values so visit orders can be compared with cmp.Diff.
type namer map[Value]string

func (n namer) names(values []Value) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if name, ok := n[v]; ok {
			out[i] = name
		} else {
			out[i] = fmt.Sprintf("?%s", typeOf(v))
		}
	}
	return out
}

// parentsDepths records the parent and depth of every node reached.
func parentsDepths(root Value) (map[Value]Value, map[Value]int) {
	parents := make(map[Value]Value)
	depths := make(map[Value]int)
	record := Visitors{Default: func(v Visit) int {
		parents[v.Value] = v.Parent
		depths[v.Value] = v.Depth
		return WalkContinue
	}}
	Walk(root, &Walker{Enter: record, Value: record, Leave: record})
	return parents, depths
}

func TestWalkKeys(t *testing.T) {
	dictABC := NewDict()
	dictXYZ := NewDict()
	for _, k := range []string{"A", "B", "C"} {
		dictABC.Set(NewString(k), NewString(k))
	}
	for _, k := range []string{"X", "Y", "Z"} {
		dictXYZ.Set(NewString(k), NewString(k))
	}
	root := NewArray(dictABC, dictXYZ)

	var keys []string
	Walk(root, &Walker{
		Key: Visitors{Default: func(v Visit) int {
			switch v.Parent {
			case root:
				if v.Value != nil || v.Depth != 1 {
					t.Errorf("array key %d: value %v depth %d", v.Index, v.Value, v.Depth)
				}
				keys = append(keys, fmt.Sprint(v.Index))
			case dictABC, dictXYZ:
				if v.Depth != 2 {
					t.Errorf("dict key %d: depth %d", v.Index, v.Depth)
				}
				keys = append(keys, v.Value.(*String).String())
			default:
				t.Errorf("unexpected parent %v", v.Parent)
			}
			return WalkContinue
		}},
	})
	want := []string{"0", "A", "B", "C", "1", "X", "Y", "Z"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("keys (-want +got):\n%s", diff)
	}
}

func TestWalkKeysDispatchOnParent(t *testing.T) {
	inner := NewDict()
	inner.Set(NewString("k"), NewInteger(1))
	root := NewArray(inner, NewSet(NewInteger(2)))

	var arrayKeys, dictKeys, setKeys int
	Walk(root, &Walker{
		Key: Visitors{
			Array: func(Visit) int { arrayKeys++; return WalkContinue },
			Dict:  func(Visit) int { dictKeys++; return WalkContinue },
			Set:   func(Visit) int { setKeys++; return WalkContinue },
		},
	})
	if arrayKeys != 2 || dictKeys != 1 || setKeys != 0 {
		t.Errorf("keys: array %d dict %d set %d, want 2 1 0", arrayKeys, dictKeys, setKeys)
	}
}

func TestWalkAll(t *testing.T) {
	root := NewDict()
	int0, int1, int2 := NewInteger(1), NewInteger(2), NewInteger(3)
	kArray, array := NewString("Array"), NewArray(int0, int1, int2)
	root.Set(kArray, array)
	kData, data := NewString("Data"), NewData(make([]byte, 8))
	root.Set(kData, data)
	kDict, dict := NewString("Dict"), NewDict()
	kTrue, boolTrue := NewString("TRUE"), NewBoolean(true)
	dict.Set(kTrue, boolTrue)
	root.Set(kDict, dict)
	kUID, uid := NewString("UID"), NewUID(42)
	root.Set(kUID, uid)

	n := namer{
		root: "root", int0: "int0", int1: "int1", int2: "int2",
		kArray: "kArray", array: "array", kData: "kData", data: "data",
		kDict: "kDict", dict: "dict", kTrue: "kTrue", boolTrue: "true",
		kUID: "kUID", uid: "uid",
	}

	var got []string
	record := func(phase string) VisitFunc {
		return func(v Visit) int {
			name := n[v.Value]
			if v.Value == nil {
				name = fmt.Sprint(v.Index)
			}
			got = append(got, fmt.Sprintf("%s %s %d %s", phase, name, v.Depth, n[v.Parent]))
			return WalkContinue
		}
	}
	Walk(root, &Walker{
		Enter: Visitors{Default: record("enter")},
		Key:   Visitors{Array: record("key.array"), Dict: record("key.dict")},
		Value: Visitors{Integer: record("value.integer"), Default: record("value")},
		Leave: Visitors{Default: record("leave")},
	})
	want := []string{
		"enter root 0 ",
		"key.dict kArray 1 root",
		"enter array 1 root",
		"key.array 0 2 array",
		"value.integer int0 2 array",
		"key.array 1 2 array",
		"value.integer int1 2 array",
		"key.array 2 2 array",
		"value.integer int2 2 array",
		"leave array 1 root",
		"key.dict kData 1 root",
		"value data 1 root",
		"key.dict kDict 1 root",
		"enter dict 1 root",
		"key.dict kTrue 2 dict",
		"value true 2 dict",
		"leave dict 1 root",
		"key.dict kUID 1 root",
		"value uid 1 root",
		"leave root 0 ",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("visits (-want +got):\n%s", diff)
	}
}

func TestWalkScalarRoot(t *testing.T) {
	s := NewString("x")
	var values, others int
	count := Visitors{Default: func(Visit) int { others++; return WalkContinue }}
	Walk(s, &Walker{
		Enter: count,
		Key:   count,
		Leave: count,
		Value: Visitors{String: func(v Visit) int {
			if v.Value != s || v.Depth != 0 || v.Parent != nil || v.Index != -1 {
				t.Errorf("root visit %+v", v)
			}
			values++
			return WalkContinue
		}},
	})
	if values != 1 || others != 0 {
		t.Errorf("got %d value and %d other visits", values, others)
	}
}

func TestWalkStop(t *testing.T) {
	i1, i2, i3, i4, i5, i6 := NewInteger(1), NewInteger(2), NewInteger(3), NewInteger(4), NewInteger(5), NewInteger(6)
	a, b, c := NewArray(i1, i2), NewArray(i3, i4), NewArray(i5, i6)
	root := NewArray(a, b, c)
	n := namer{root: "root", a: "a", b: "b", c: "c", i1: "i1", i2: "i2", i3: "i3", i4: "i4", i5: "i5", i6: "i6"}

	t.Run("enter", func(t *testing.T) {
		var visited []Value
		Walk(root, &Walker{
			Enter: Visitors{Array: func(v Visit) int {
				visited = append(visited, v.Value)
				if v.Value == b {
					return WalkStop
				}
				return WalkContinue
			}},
			Value: Visitors{Default: func(v Visit) int {
				visited = append(visited, v.Value)
				return WalkContinue
			}},
		})
		want := []string{"root", "a", "i1", "i2", "b"}
		if diff := cmp.Diff(want, n.names(visited)); diff != "" {
			t.Errorf("visits (-want +got):\n%s", diff)
		}
	})

	t.Run("key", func(t *testing.T) {
		var visited []string
		Walk(c, &Walker{
			Key: Visitors{Default: func(v Visit) int {
				visited = append(visited, fmt.Sprint(v.Index))
				if v.Index == 1 {
					return -5
				}
				return WalkContinue
			}},
			Value: Visitors{Default: func(v Visit) int {
				visited = append(visited, n[v.Value])
				return WalkContinue
			}},
			Leave: Visitors{Default: func(Visit) int {
				t.Error("leave called after stop")
				return WalkContinue
			}},
		})
		if diff := cmp.Diff([]string{"0", "i5", "1"}, visited); diff != "" {
			t.Errorf("visits (-want +got):\n%s", diff)
		}
	})

	t.Run("leave", func(t *testing.T) {
		var visited []Value
		record := Visitors{Default: func(v Visit) int {
			visited = append(visited, v.Value)
			return WalkContinue
		}}
		Walk(root, &Walker{
			Enter: record,
			Value: record,
			Leave: Visitors{Default: func(Visit) int { return WalkStop }},
		})
		want := []string{"root", "a", "i1", "i2"}
		if diff := cmp.Diff(want, n.names(visited)); diff != "" {
			t.Errorf("visits (-want +got):\n%s", diff)
		}
	})
}

// skipWalk walks root recording enter, value and leave visits, returning
// signal from the phase visitor for target.
func skipWalk(t *testing.T, root Value, phase string, match func(Visit) bool, signal int) []Value {
	t.Helper()
	parents, depths := parentsDepths(root)
	var visited []Value
	visitor := func(name string) VisitFunc {
		return func(v Visit) int {
			if name != "key" {
				if parents[v.Value] != v.Parent || depths[v.Value] != v.Depth {
					t.Errorf("%s: parent or depth mismatch at depth %d", name, v.Depth)
				}
				visited = append(visited, v.Value)
			}
			if name == phase && match(v) {
				return signal
			}
			return WalkContinue
		}
	}
	Walk(root, &Walker{
		Enter: Visitors{Default: visitor("enter")},
		Key:   Visitors{Default: visitor("key")},
		Value: Visitors{Default: visitor("value")},
		Leave: Visitors{Default: visitor("leave")},
	})
	return visited
}

func TestWalkSkip(t *testing.T) {
	i1, i2, i3, i4, i5, i6 := NewInteger(1), NewInteger(2), NewInteger(3), NewInteger(4), NewInteger(5), NewInteger(6)
	n := namer{i1: "i1", i2: "i2", i3: "i3", i4: "i4", i5: "i5", i6: "i6"}

	t.Run("enter", func(t *testing.T) {
		c := NewArray(i1, i2, i3)
		b := NewArray(c, i4)
		a := NewArray(b, i5)
		n[a], n[b], n[c] = "a", "b", "c"
		for _, tc := range []struct {
			signal int
			want   []string
		}{
			{0, []string{"a", "b", "c", "i1", "i2", "i3", "c", "i4", "b", "i5", "a"}},
			{1, []string{"a", "b", "c", "i4", "b", "i5", "a"}},
			{2, []string{"a", "b", "c", "b", "i5", "a"}},
			{3, []string{"a", "b", "c", "b", "a"}},
			{4, []string{"a", "b", "c", "b", "a"}},
			{WalkSkipAll, []string{"a", "b", "c", "b", "a"}},
		} {
			got := skipWalk(t, a, "enter", func(v Visit) bool { return v.Value == c }, tc.signal)
			if diff := cmp.Diff(tc.want, n.names(got)); diff != "" {
				t.Errorf("signal %d (-want +got):\n%s", tc.signal, diff)
			}
		}
	})

	t.Run("key", func(t *testing.T) {
		c := NewArray(i1, i2, i3, i4)
		b := NewArray(c, i5)
		a := NewArray(b, i6)
		n[a], n[b], n[c] = "a", "b", "c"
		for _, tc := range []struct {
			signal int
			want   []string
		}{
			{0, []string{"a", "b", "c", "i1", "i2", "i3", "i4", "c", "i5", "b", "i6", "a"}},
			{1, []string{"a", "b", "c", "i1", "i2", "i4", "c", "i5", "b", "i6", "a"}},
			{2, []string{"a", "b", "c", "i1", "i2", "c", "i5", "b", "i6", "a"}},
			{3, []string{"a", "b", "c", "i1", "i2", "c", "b", "i6", "a"}},
			{4, []string{"a", "b", "c", "i1", "i2", "c", "b", "a"}},
			{5, []string{"a", "b", "c", "i1", "i2", "c", "b", "a"}},
			{WalkSkipAll, []string{"a", "b", "c", "i1", "i2", "c", "b", "a"}},
		} {
			got := skipWalk(t, a, "key", func(v Visit) bool { return v.Index == 2 }, tc.signal)
			if diff := cmp.Diff(tc.want, n.names(got)); diff != "" {
				t.Errorf("signal %d (-want +got):\n%s", tc.signal, diff)
			}
		}
	})

	t.Run("value", func(t *testing.T) {
		c := NewArray(i1, i2, i3)
		b := NewArray(c, i4)
		a := NewArray(b, i5)
		n[a], n[b], n[c] = "a", "b", "c"
		for _, tc := range []struct {
			signal int
			want   []string
		}{
			{0, []string{"a", "b", "c", "i1", "i2", "i3", "c", "i4", "b", "i5", "a"}},
			{1, []string{"a", "b", "c", "i1", "i2", "i3", "c", "i4", "b", "i5", "a"}},
			{2, []string{"a", "b", "c", "i1", "i2", "c", "i4", "b", "i5", "a"}},
			{3, []string{"a", "b", "c", "i1", "i2", "c", "b", "i5", "a"}},
			{4, []string{"a", "b", "c", "i1", "i2", "c", "b", "a"}},
			{5, []string{"a", "b", "c", "i1", "i2", "c", "b", "a"}},
		} {
			got := skipWalk(t, a, "value", func(v Visit) bool { return v.Value == i2 }, tc.signal)
			if diff := cmp.Diff(tc.want, n.names(got)); diff != "" {
				t.Errorf("signal %d (-want +got):\n%s", tc.signal, diff)
			}
		}
	})

	t.Run("leave", func(t *testing.T) {
		g, f, e, d := NewArray(), NewArray(), NewArray(), NewArray()
		c := NewArray(f, g)
		b := NewArray(d, e)
		a := NewArray(b, c)
		n[a], n[b], n[c], n[d], n[e], n[f], n[g] = "a", "b", "c", "d", "e", "f", "g"
		for _, tc := range []struct {
			signal int
			want   []string
		}{
			{0, []string{"a", "b", "d", "d", "e", "e", "b", "c", "f", "f", "g", "g", "c", "a"}},
			{1, []string{"a", "b", "d", "d", "e", "e", "b", "c", "f", "f", "g", "g", "c", "a"}},
			{2, []string{"a", "b", "d", "d", "b", "c", "f", "f", "g", "g", "c", "a"}},
			{3, []string{"a", "b", "d", "d", "b", "a"}},
			{4, []string{"a", "b", "d", "d", "b", "a"}},
			{WalkSkipAll, []string{"a", "b", "d", "d", "b", "a"}},
		} {
			got := skipWalk(t, a, "leave", func(v Visit) bool { return v.Value == d }, tc.signal)
			if diff := cmp.Diff(tc.want, n.names(got)); diff != "" {
				t.Errorf("signal %d (-want +got):\n%s", tc.signal, diff)
			}
		}
	})
}

func TestWalkSkipCascadeExtendedByLeave(t *testing.T) {
	x, y, z := NewInteger(1), NewInteger(2), NewInteger(3)
	c := NewArray(z)
	b := NewArray(c, y)
	a := NewArray(b, x)
	n := namer{a: "a", b: "b", c: "c", x: "x", y: "y", z: "z"}

	for _, tc := range []struct {
		name  string
		leave int
		want  []string
	}{
		{"continue", WalkContinue, []string{"a", "b", "c", "z", "c", "b", "x", "a"}},
		{"extend", 2, []string{"a", "b", "c", "z", "c", "b", "a"}},
		{"stop", WalkStop, []string{"a", "b", "c", "z", "c", "b"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var visited []Value
			record := func(v Visit) int {
				visited = append(visited, v.Value)
				return WalkContinue
			}
			Walk(a, &Walker{
				Enter: Visitors{Default: record},
				Value: Visitors{Default: func(v Visit) int {
					record(v)
					if v.Value == z {
						return 3
					}
					return WalkContinue
				}},
				Leave: Visitors{Default: func(v Visit) int {
					record(v)
					if v.Value == b {
						return tc.leave
					}
					return WalkContinue
				}},
			})
			if diff := cmp.Diff(tc.want, n.names(visited)); diff != "" {
				t.Errorf("visits (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWalkCycle(t *testing.T) {
	b := NewDict()
	a := NewArray(b, b, b, b, b)
	a.Append(a)

	ancestors := make(map[Value]bool)
	var recursion Value
	Walk(a, &Walker{
		Enter: Visitors{Default: func(v Visit) int {
			if ancestors[v.Value] {
				recursion = v.Value
				return WalkStop
			}
			ancestors[v.Value] = true
			return WalkContinue
		}},
		Leave: Visitors{Default: func(v Visit) int {
			delete(ancestors, v.Value)
			return WalkContinue
		}},
	})
	if recursion != a {
		t.Errorf("recursion found at %v, want the root array", recursion)
	}

	count := make(map[Value]int)
	recursion = nil
	Walk(a, &Walker{
		Enter: Visitors{Default: func(v Visit) int {
			count[v.Value]++
			if count[v.Value] == 5 {
				recursion = v.Value
				return WalkStop
			}
			return WalkContinue
		}},
		Leave: Visitors{Default: func(v Visit) int {
			count[v.Value]--
			return WalkContinue
		}},
	})
	if recursion != a || count[a] != 5 {
		t.Errorf("recursion %v count %d, want root array and 5", recursion, count[a])
	}
}
