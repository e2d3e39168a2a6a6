package plist

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	xmlHEADER     string = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"
	xmlDOCTYPE           = `<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">` + "\n"
	xmlArrayTag          = "array"
	xmlDataTag           = "data"
	xmlDateTag           = "date"
	xmlDictTag           = "dict"
	xmlFalseTag          = "false"
	xmlIntegerTag        = "integer"
	xmlKeyTag            = "key"
	xmlPlistTag          = "plist"
	xmlRealTag           = "real"
	xmlStringTag         = "string"
	xmlTrueTag           = "true"

	xmlUIDKey = "CF$UID"

	// base64 characters per line of a long data element
	xmlDataLineWidth = 68
)

var errDateRange = errors.New("date out of range")

func formatXMLFloat(f float64, bits RealBits) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	return strconv.FormatFloat(f, 'g', -1, int(bits))
}

type xmlPlistGenerator struct {
	*bufio.Writer

	indent    string
	ancestors map[Value]struct{}
	err       error
}

// EncodeXML encodes v as an XML property list indented with indent.
func EncodeXML(v Value, indent string) ([]byte, error) {
	buf := &bytes.Buffer{}
	g := newXMLPlistGenerator(buf)
	g.Indent(indent)
	if err := g.generateDocument(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *xmlPlistGenerator) Indent(i string) {
	p.indent = i
}

func (p *xmlPlistGenerator) writeIndent(depth int) {
	for i := 0; i < depth; i++ {
		p.WriteString(p.indent)
	}
}

func (p *xmlPlistGenerator) generateDocument(root Value) error {
	p.WriteString(xmlHEADER)
	p.WriteString(xmlDOCTYPE)
	p.WriteString(fmt.Sprintf("<%s version=\"1.0\">\n", xmlPlistTag))

	Walk(root, &Walker{
		Enter: Visitors{
			Array:   p.enterArray,
			Dict:    p.enterDict,
			Default: p.invalid,
		},
		Key: Visitors{
			Dict: p.writeKey,
		},
		Value: Visitors{
			Boolean: p.writeBoolean,
			Integer: p.writeInteger,
			Real:    p.writeReal,
			Date:    p.writeDate,
			Data:    p.writeData,
			String:  p.writeString,
			UID:     p.writeUID,
			Default: p.invalid,
		},
		Leave: Visitors{
			Array: p.leaveArray,
			Dict:  p.leaveDict,
		},
	})
	if p.err != nil {
		Logger().Debug("xml encode failed", zap.Error(p.err))
		return p.err
	}

	p.WriteString(fmt.Sprintf("</%s>\n", xmlPlistTag))
	Logger().Debug("xml encode", zap.Stringer("root", typeOf(root)))
	return p.Flush()
}

func (p *xmlPlistGenerator) fail(reason error, t Type) int {
	p.err = &TypeError{Format: XMLFormat, Type: t, Err: reason}
	return WalkStop
}

func (p *xmlPlistGenerator) invalid(v Visit) int {
	return p.fail(ErrInvalidValueType, typeOf(v.Value))
}

func (p *xmlPlistGenerator) element(depth int, key string, value string) {
	p.writeIndent(depth)
	if len(value) == 0 {
		p.WriteString(fmt.Sprintf("<%s/>\n", key))
	} else {
		p.WriteString(fmt.Sprintf("<%s>", key))
		// bufio.Writer errors are sticky and surface from Flush
		_ = xml.EscapeText(p.Writer, []byte(value))
		p.WriteString(fmt.Sprintf("</%s>\n", key))
	}
}

// open writes the start tag of a container, or an empty element with no
// children to visit.
func (p *xmlPlistGenerator) open(v Visit, tag string, n int) int {
	if _, ok := p.ancestors[v.Value]; ok {
		return p.fail(ErrCircularReference, typeOf(v.Value))
	}
	p.writeIndent(v.Depth)
	if n == 0 {
		p.WriteString(fmt.Sprintf("<%s/>\n", tag))
		return WalkSkip
	}
	p.WriteString(fmt.Sprintf("<%s>\n", tag))
	p.ancestors[v.Value] = struct{}{}
	return WalkContinue
}

func (p *xmlPlistGenerator) close(v Visit, tag string) int {
	delete(p.ancestors, v.Value)
	p.writeIndent(v.Depth)
	p.WriteString(fmt.Sprintf("</%s>\n", tag))
	return WalkContinue
}

func (p *xmlPlistGenerator) enterArray(v Visit) int {
	return p.open(v, xmlArrayTag, v.Value.(*Array).Len())
}

func (p *xmlPlistGenerator) leaveArray(v Visit) int {
	return p.close(v, xmlArrayTag)
}

func (p *xmlPlistGenerator) enterDict(v Visit) int {
	d := v.Value.(*Dict)
	for _, k := range d.keys {
		if _, ok := k.(*String); !ok {
			return p.fail(ErrInvalidKeyType, typeOf(k))
		}
	}
	return p.open(v, xmlDictTag, d.Len())
}

func (p *xmlPlistGenerator) leaveDict(v Visit) int {
	return p.close(v, xmlDictTag)
}

func (p *xmlPlistGenerator) writeKey(v Visit) int {
	p.element(v.Depth, xmlKeyTag, v.Value.(*String).String())
	return WalkContinue
}

func (p *xmlPlistGenerator) writeBoolean(v Visit) int {
	if v.Value.(*Boolean).Value() {
		p.element(v.Depth, xmlTrueTag, "")
	} else {
		p.element(v.Depth, xmlFalseTag, "")
	}
	return WalkContinue
}

func (p *xmlPlistGenerator) writeInteger(v Visit) int {
	p.element(v.Depth, xmlIntegerTag, v.Value.(*Integer).String())
	return WalkContinue
}

func (p *xmlPlistGenerator) writeReal(v Visit) int {
	r := v.Value.(*Real)
	p.element(v.Depth, xmlRealTag, formatXMLFloat(r.Value(), r.Bits()))
	return WalkContinue
}

func (p *xmlPlistGenerator) writeDate(v Visit) int {
	t, ok := v.Value.(*Date).Time()
	if !ok || t.Year() < 0 || t.Year() > 9999 {
		return p.fail(errDateRange, TypeDate)
	}
	p.element(v.Depth, xmlDateTag, t.Format(time.RFC3339))
	return WalkContinue
}

func (p *xmlPlistGenerator) writeData(v Visit) int {
	dataBase64 := base64.StdEncoding.EncodeToString(v.Value.(*Data).Bytes())
	if len(dataBase64) <= xmlDataLineWidth {
		p.element(v.Depth, xmlDataTag, dataBase64)
		return WalkContinue
	}
	p.writeIndent(v.Depth)
	p.WriteString(fmt.Sprintf("<%s>\n", xmlDataTag))
	for i := 0; i < len(dataBase64); i += xmlDataLineWidth {
		end := i + xmlDataLineWidth
		if end > len(dataBase64) {
			end = len(dataBase64)
		}
		p.writeIndent(v.Depth)
		p.WriteString(dataBase64[i:end])
		p.WriteString("\n")
	}
	p.writeIndent(v.Depth)
	p.WriteString(fmt.Sprintf("</%s>\n", xmlDataTag))
	return WalkContinue
}

func (p *xmlPlistGenerator) writeString(v Visit) int {
	p.element(v.Depth, xmlStringTag, v.Value.(*String).String())
	return WalkContinue
}

func (p *xmlPlistGenerator) writeUID(v Visit) int {
	p.writeIndent(v.Depth)
	p.WriteString(fmt.Sprintf("<%s>\n", xmlDictTag))
	p.element(v.Depth+1, xmlKeyTag, xmlUIDKey)
	p.element(v.Depth+1, xmlIntegerTag, strconv.FormatUint(uint64(v.Value.(*UID).Value()), 10))
	p.writeIndent(v.Depth)
	p.WriteString(fmt.Sprintf("</%s>\n", xmlDictTag))
	return WalkContinue
}

func newXMLPlistGenerator(w io.Writer) *xmlPlistGenerator {
	return &xmlPlistGenerator{
		Writer:    bufio.NewWriter(w),
		indent:    "\t",
		ancestors: make(map[Value]struct{}),
	}
}
