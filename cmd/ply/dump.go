package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	plist "github.com/hqtsm/plist-sub000"
)

// longest data prefix shown by dump
const dumpDataBytes = 32

// dump prints the value tree of root, one node per line.
func dump(w io.Writer, root plist.Value) {
	label := ""
	line := func(v plist.Visit, text string) {
		fmt.Fprintf(w, "%s%s%s\n", strings.Repeat("  ", v.Depth), label, text)
		label = ""
	}
	plist.Walk(root, &plist.Walker{
		Enter: plist.Visitors{
			Array: func(v plist.Visit) int {
				line(v, fmt.Sprintf("array (%d) [", v.Value.(*plist.Array).Len()))
				return plist.WalkContinue
			},
			Dict: func(v plist.Visit) int {
				line(v, fmt.Sprintf("dict (%d) {", v.Value.(*plist.Dict).Len()))
				return plist.WalkContinue
			},
			Set: func(v plist.Visit) int {
				line(v, fmt.Sprintf("set (%d) (", v.Value.(*plist.Set).Len()))
				return plist.WalkContinue
			},
		},
		Key: plist.Visitors{
			Array: func(v plist.Visit) int {
				label = fmt.Sprintf("[%d] ", v.Index)
				return plist.WalkContinue
			},
			Dict: func(v plist.Visit) int {
				label = describe(v.Value) + " => "
				return plist.WalkContinue
			},
		},
		Value: plist.Visitors{
			Default: func(v plist.Visit) int {
				line(v, describe(v.Value))
				return plist.WalkContinue
			},
		},
		Leave: plist.Visitors{
			Array: func(v plist.Visit) int {
				line(v, "]")
				return plist.WalkContinue
			},
			Dict: func(v plist.Visit) int {
				line(v, "}")
				return plist.WalkContinue
			},
			Set: func(v plist.Visit) int {
				line(v, ")")
				return plist.WalkContinue
			},
		},
	})
}

func describe(v plist.Value) string {
	switch v := v.(type) {
	case *plist.Null:
		return "null"
	case *plist.Boolean:
		return strconv.FormatBool(v.Value())
	case *plist.Integer:
		return fmt.Sprintf("integer(%d) %s", v.Bits(), v)
	case *plist.Real:
		return fmt.Sprintf("real(%d) %s", v.Bits(), strconv.FormatFloat(v.Value(), 'g', -1, int(v.Bits())))
	case *plist.Date:
		if t, ok := v.Time(); ok {
			return "date " + t.Format(time.RFC3339Nano)
		}
		return fmt.Sprintf("date %v", v.Seconds())
	case *plist.Data:
		b := v.Bytes()
		if len(b) > dumpDataBytes {
			return fmt.Sprintf("data (%d) <%x...>", len(b), b[:dumpDataBytes])
		}
		return fmt.Sprintf("data (%d) <%x>", len(b), b)
	case *plist.String:
		return strconv.Quote(v.String())
	case *plist.UID:
		return fmt.Sprintf("uid %d", v.Value())
	case nil:
		return "<nil>"
	}
	return v.Type().String()
}
