package jsonvalue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxDepth is the deepest nesting of arrays and objects Parse accepts.
const MaxDepth = 10000

// ErrTooDeep is returned for documents nested deeper than MaxDepth.
var ErrTooDeep = errors.New("jsonvalue: document nested too deeply")

type parser struct {
	dec   *json.Decoder
	depth int
}

// Parse decodes a single JSON document. Trailing data after the document is an error.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	p := &parser{dec: dec}
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("jsonvalue: trailing data after document")
	}
	return v, nil
}

// FromAny converts a value produced by encoding/json (or built by hand) into a Value.
// Map keys have no defined order, so objects built this way are sorted by key.
func FromAny(v any) (Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func (p *parser) value() (Value, error) {
	tok, err := p.dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	switch t := tok.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case string:
		return String(t), nil
	case json.Delim:
		if t != '{' && t != '[' {
			break
		}
		if p.depth >= MaxDepth {
			return nil, ErrTooDeep
		}
		p.depth++
		defer func() { p.depth-- }()
		if t == '{' {
			return p.object()
		}
		return p.array()
	}
	return nil, fmt.Errorf("jsonvalue: unexpected token %v", tok)
}

func (p *parser) object() (Value, error) {
	obj := Object{}
	for p.dec.More() {
		tok, err := p.dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("jsonvalue: object key is %T", tok)
		}
		val, err := p.value()
		if err != nil {
			return nil, err
		}
		obj = append(obj, Member{Key: key, Value: val})
	}
	// closing '}'
	if _, err := p.dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func (p *parser) array() (Value, error) {
	arr := Array{}
	for p.dec.More() {
		val, err := p.value()
		if err != nil {
			return nil, err
		}
		arr = append(arr, val)
	}
	if _, err := p.dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}
