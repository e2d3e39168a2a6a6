package plist

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"math/big"
	"runtime"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

type xmlPlistParser struct {
	xmlDecoder         *xml.Decoder
	whitespaceReplacer *strings.Replacer
	ntags              int
	idrefs             map[string]Value
}

// DecodeXML decodes an XML property list.
func DecodeXML(data []byte) (Value, error) {
	p := newXMLPlistParser(data)
	v, err := p.parseDocument()
	if err != nil {
		Logger().Debug("xml decode failed", zap.Int("bytes", len(data)), zap.Error(err))
		return nil, err
	}
	Logger().Debug("xml decode", zap.Int("bytes", len(data)), zap.Int("elements", p.ntags))
	return v, nil
}

func (p *xmlPlistParser) parseDocument() (pval Value, parseError error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(runtime.Error); ok {
				panic(r)
			}
			if se, ok := r.(*SyntaxError); ok {
				parseError = se
			} else {
				parseError = p.syntaxError(r.(error))
			}
		}
	}()
	for {
		token, err := p.xmlDecoder.Token()
		if err != nil {
			panic(err)
		}
		if element, ok := token.(xml.StartElement); ok {
			return p.parseXMLElement(element), nil
		}
	}
}

func (p *xmlPlistParser) syntaxError(err error) *SyntaxError {
	return &SyntaxError{Format: XMLFormat, Offset: p.xmlDecoder.InputOffset(), Err: err}
}

func (p *xmlPlistParser) storeOrFindXMLElementValue(element xml.StartElement, value Value) Value {
	for _, attr := range element.Attr {
		switch attr.Name.Local {
		case "ID":
			p.idrefs[attr.Value] = value
		case "IDREF":
			ref, ok := p.idrefs[attr.Value]
			if !ok {
				panic(fmt.Errorf("unknown IDREF %q", attr.Value))
			}
			return ref
		}
	}
	return value
}

func (p *xmlPlistParser) charData(element *xml.StartElement) string {
	var charData xml.CharData
	if err := p.xmlDecoder.DecodeElement(&charData, element); err != nil {
		panic(err)
	}
	return string(charData)
}

func (p *xmlPlistParser) parseXMLElement(element xml.StartElement) Value {
	switch element.Name.Local {
	case xmlPlistTag:
		p.ntags++
		for {
			token, err := p.xmlDecoder.Token()
			if err != nil {
				panic(err)
			}
			if el, ok := token.(xml.EndElement); ok && el.Name.Local == xmlPlistTag {
				panic(errors.New("no elements encountered"))
			}
			if el, ok := token.(xml.StartElement); ok {
				return p.parseXMLElement(el)
			}
		}
	case xmlStringTag:
		p.ntags++
		return p.storeOrFindXMLElementValue(element, NewString(p.charData(&element)))
	case xmlIntegerTag:
		p.ntags++
		s := strings.TrimSpace(p.charData(&element))
		if len(s) == 0 {
			return p.storeOrFindXMLElementValue(element, NewInteger(0))
		}
		n, ok := parseXMLInteger(s)
		if !ok {
			panic(fmt.Errorf("invalid integer %q", s))
		}
		return p.storeOrFindXMLElementValue(element, n)
	case xmlRealTag:
		p.ntags++
		s := strings.TrimSpace(p.charData(&element))
		if len(s) == 0 {
			return p.storeOrFindXMLElementValue(element, NewReal(0))
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			panic(fmt.Errorf("invalid real %q", s))
		}
		return p.storeOrFindXMLElementValue(element, NewReal(n))
	case xmlTrueTag, xmlFalseTag:
		p.ntags++
		if err := p.xmlDecoder.Skip(); err != nil {
			panic(err)
		}
		b := element.Name.Local == xmlTrueTag
		return p.storeOrFindXMLElementValue(element, NewBoolean(b))
	case xmlDateTag:
		p.ntags++
		s := strings.TrimSpace(p.charData(&element))
		t, err := time.ParseInLocation(time.RFC3339, s, time.UTC)
		if err != nil {
			panic(fmt.Errorf("invalid date %q", s))
		}
		return p.storeOrFindXMLElementValue(element, DateFromTime(t))
	case xmlDataTag:
		p.ntags++
		str := p.whitespaceReplacer.Replace(p.charData(&element))
		buf := make([]byte, base64.StdEncoding.DecodedLen(len(str)))
		l, err := base64.StdEncoding.Decode(buf, []byte(str))
		if err != nil {
			panic(fmt.Errorf("invalid data: %w", err))
		}
		return p.storeOrFindXMLElementValue(element, NewData(buf[:l]))
	case xmlDictTag:
		p.ntags++
		dict := NewDict()
		seen := make(map[string]*String)
		var key *string
		for {
			token, err := p.xmlDecoder.Token()
			if err != nil {
				panic(err)
			}
			if el, ok := token.(xml.EndElement); ok && el.Name.Local == xmlDictTag {
				if key != nil {
					panic(errors.New("missing value in dictionary"))
				}
				break
			}
			el, ok := token.(xml.StartElement)
			if !ok {
				continue
			}
			if el.Name.Local == xmlKeyTag {
				if key != nil {
					panic(errors.New("missing value in dictionary"))
				}
				k := p.charData(&el)
				key = &k
				continue
			}
			if key == nil {
				panic(errors.New("missing key in dictionary"))
			}
			value := p.parseXMLElement(el)
			// a repeated key replaces the earlier value
			k, ok := seen[*key]
			if !ok {
				k = NewString(*key)
				seen[*key] = k
			}
			dict.Set(k, value)
			key = nil
		}
		return p.storeOrFindXMLElementValue(element, maybeUID(dict))
	case xmlArrayTag:
		p.ntags++
		array := NewArray()
		for {
			token, err := p.xmlDecoder.Token()
			if err != nil {
				panic(err)
			}
			if el, ok := token.(xml.EndElement); ok && el.Name.Local == xmlArrayTag {
				break
			}
			if el, ok := token.(xml.StartElement); ok {
				array.Append(p.parseXMLElement(el))
			}
		}
		return p.storeOrFindXMLElementValue(element, array)
	}
	panic(fmt.Errorf("encountered unknown element %s", element.Name.Local))
}

// maybeUID turns a dictionary holding only a CF$UID integer into a UID.
func maybeUID(d *Dict) Value {
	if d.Len() != 1 {
		return d
	}
	k, ok := d.KeyAt(0).(*String)
	if !ok || !k.equalString(xmlUIDKey) {
		return d
	}
	n, ok := d.ValueAt(0).(*Integer)
	if !ok || n.Negative() || !n.IsInt64() || n.Int64() > math.MaxUint32 {
		return d
	}
	return NewUID(uint32(n.Int64()))
}

// parseXMLInteger parses a decimal or 0x prefixed hexadecimal integer of
// up to 128 bits.
func parseXMLInteger(s string) (*Integer, bool) {
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		s = s[2:]
	}
	if s == "" || s[0] == '-' || s[0] == '+' {
		return nil, false
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, false
	}
	if neg {
		n.Neg(n)
	}
	return integerFromBig(n)
}

func newXMLPlistParser(data []byte) *xmlPlistParser {
	return &xmlPlistParser{
		xmlDecoder:         xml.NewDecoder(bytes.NewReader(data)),
		whitespaceReplacer: strings.NewReplacer("\t", "", "\n", "", " ", "", "\r", ""),
		idrefs:             make(map[string]Value),
	}
}
