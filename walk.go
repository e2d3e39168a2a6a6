package plist

import "math"

// Walk signals returned by a VisitFunc. Any negative number stops the walk
// and any positive number N skips: the visited node is finished early and
// N-1 enclosing containers are abandoned.
const (
	WalkContinue = 0
	WalkStop     = -1
	WalkSkip     = 1

	// WalkSkipAll abandons every open container.
	WalkSkipAll = math.MaxInt
)

// Visit describes the node passed to a VisitFunc.
type Visit struct {
	// Value is the visited node. During the key phase it is the dict key,
	// or nil for an array index.
	Value Value
	// Index is the position within Parent, -1 for the root.
	Index int
	// Depth is the nesting depth, 0 for the root. Keys report the depth of
	// the child they belong to.
	Depth int
	// Parent is the enclosing container, nil for the root.
	Parent Value
}

// VisitFunc is called for one node and returns a walk signal.
type VisitFunc func(v Visit) int

// Visitors maps value types to callbacks. A type without a callback falls
// back to Default; when both are nil the visit is a no-op.
type Visitors struct {
	Null    VisitFunc
	Boolean VisitFunc
	Integer VisitFunc
	Real    VisitFunc
	Date    VisitFunc
	Data    VisitFunc
	String  VisitFunc
	UID     VisitFunc
	Array   VisitFunc
	Dict    VisitFunc
	Set     VisitFunc
	Default VisitFunc
}

func (vs *Visitors) lookup(t Type) VisitFunc {
	var fn VisitFunc
	switch t {
	case TypeNull:
		fn = vs.Null
	case TypeBoolean:
		fn = vs.Boolean
	case TypeInteger:
		fn = vs.Integer
	case TypeReal:
		fn = vs.Real
	case TypeDate:
		fn = vs.Date
	case TypeData:
		fn = vs.Data
	case TypeString:
		fn = vs.String
	case TypeUID:
		fn = vs.UID
	case TypeArray:
		fn = vs.Array
	case TypeDict:
		fn = vs.Dict
	case TypeSet:
		fn = vs.Set
	}
	if fn == nil {
		fn = vs.Default
	}
	return fn
}

func (vs *Visitors) call(t Type, v Visit) int {
	if fn := vs.lookup(t); fn != nil {
		return fn(v)
	}
	return WalkContinue
}

// Walker holds the callbacks of a walk.
//
// Enter is called when a container is reached, before its children. Key is
// called before each child of an array (with the index) or dict (with the
// key) and dispatches on the parent's type; set elements have no key.
// Value is called for every non-container node. Leave is called after the
// last child of a container that was entered.
type Walker struct {
	Enter Visitors
	Key   Visitors
	Value Visitors
	Leave Visitors
}

type walkFrame struct {
	container Value
	kind      Type
	index     int
	depth     int
	parent    Value
	next      int
}

func (f *walkFrame) len() int {
	switch c := f.container.(type) {
	case *Array:
		return len(c.values)
	case *Dict:
		return len(c.keys)
	case *Set:
		return len(c.values)
	}
	return 0
}

func (f *walkFrame) child(i int) (key, value Value) {
	switch c := f.container.(type) {
	case *Array:
		return nil, c.values[i]
	case *Dict:
		return c.keys[i], c.values[i]
	case *Set:
		return nil, c.values[i]
	}
	return nil, nil
}

type walkState struct {
	w     *Walker
	stack []walkFrame
}

// Walk traverses root depth first. The walk is iterative and does not
// detect cycles; a visitor that needs to must track its own ancestors.
func Walk(root Value, w *Walker) {
	if w == nil {
		return
	}
	s := &walkState{w: w}
	if !s.descend(root, -1, 0, nil) {
		return
	}
	for len(s.stack) > 0 {
		f := &s.stack[len(s.stack)-1]
		if f.next >= f.len() {
			if !s.leave() {
				return
			}
			continue
		}
		i := f.next
		f.next++
		key, child := f.child(i)
		depth, parent := f.depth+1, f.container
		if f.kind != TypeSet {
			r := w.Key.call(f.kind, Visit{Value: key, Index: i, Depth: depth, Parent: parent})
			if r < 0 {
				return
			}
			if r > 0 {
				if !s.abandon(r - 1) {
					return
				}
				continue
			}
		}
		if !s.descend(child, i, depth, parent) {
			return
		}
	}
}

// descend visits v and, for an entered container, pushes its frame. It
// returns false when the walk must stop.
func (s *walkState) descend(v Value, index, depth int, parent Value) bool {
	t := typeOf(v)
	visit := Visit{Value: v, Index: index, Depth: depth, Parent: parent}
	if v != nil && isContainer(v) {
		r := s.w.Enter.call(t, visit)
		if r < 0 {
			return false
		}
		if r > 0 {
			return s.abandon(r - 1)
		}
		s.stack = append(s.stack, walkFrame{
			container: v,
			kind:      t,
			index:     index,
			depth:     depth,
			parent:    parent,
		})
		return true
	}
	r := s.w.Value.call(t, visit)
	if r < 0 {
		return false
	}
	if r > 0 {
		return s.abandon(r - 1)
	}
	return true
}

// leave pops the top frame and calls its Leave visitor.
func (s *walkState) leave() bool {
	f := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	r := s.w.Leave.call(f.kind, Visit{Value: f.container, Index: f.index, Depth: f.depth, Parent: f.parent})
	if r < 0 {
		return false
	}
	if r > 0 {
		return s.abandon(r - 1)
	}
	return true
}

// abandon drops the remaining children of n open containers, innermost
// first, calling Leave on each.
func (s *walkState) abandon(n int) bool {
	for n > 0 && len(s.stack) > 0 {
		n--
		f := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]
		r := s.w.Leave.call(f.kind, Visit{Value: f.container, Index: f.index, Depth: f.depth, Parent: f.parent})
		if r < 0 {
			return false
		}
		if r-1 > n {
			n = r - 1
		}
	}
	return true
}
