package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/cockroachdb/apd/v3"
	"gopkg.in/yaml.v3"
)

// ValueKind enumerates the closed set of content value shapes.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindMap
	KindList
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	}
	return fmt.Sprintf("ValueKind(%d)", uint8(k))
}

// Value is a single content value. The zero Value is null.
//
// Numbers keep their literal text in str and compare as exact decimals, so
// integers beyond 2^53 neither collide nor change form on output.
type Value struct {
	kind ValueKind
	str  string
	num  *apd.Decimal // nil for a non-finite number
	b    bool
	m    Content
	list []Value
}

func Null() Value               { return Value{} }
func String(s string) Value     { return Value{kind: KindString, str: s} }
func Int(i int64) Value         { return mustNumber(strconv.FormatInt(i, 10)) }
func Bool(b bool) Value         { return Value{kind: KindBool, b: b} }
func Map(c Content) Value       { return Value{kind: KindMap, m: c} }
func List(items ...Value) Value { return Value{kind: KindList, list: items} }
func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }

// Number converts f into a number value. NaN and infinities are kept but
// cannot be encoded as JSON.
func Number(f float64) Value {
	lit := strconv.FormatFloat(f, 'g', -1, 64)
	v, err := NumberLiteral(lit)
	if err != nil {
		return Value{kind: KindNumber, str: lit}
	}
	return v
}

// NumberLiteral parses a decimal literal such as "9007199254740993" or
// "1.5e-3" without rounding.
func NumberLiteral(lit string) (Value, error) {
	d, _, err := apd.NewFromString(lit)
	if err != nil {
		return Value{}, fmt.Errorf("invalid number %q: %w", lit, err)
	}
	if d.Form != apd.Finite {
		return Value{}, fmt.Errorf("unsupported number %q", lit)
	}
	return Value{kind: KindNumber, str: lit, num: d}, nil
}

func mustNumber(lit string) Value {
	v, err := NumberLiteral(lit)
	if err != nil {
		panic(err)
	}
	return v
}

// Str returns the string payload and whether v is a string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Num returns the number as the nearest float64 and whether v is a number.
func (v Value) Num() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, _ := strconv.ParseFloat(v.str, 64)
	return f, true
}

// NumLiteral returns the number's literal text and whether v is a number.
func (v Value) NumLiteral() (string, bool) { return v.str, v.kind == KindNumber }

// Boolean returns the bool payload and whether v is a bool.
func (v Value) Boolean() (bool, bool) { return v.b, v.kind == KindBool }

// Content returns the nested mapping and whether v is a map.
func (v Value) Content() (Content, bool) { return v.m, v.kind == KindMap }

// Items returns the list payload and whether v is a list.
func (v Value) Items() ([]Value, bool) { return v.list, v.kind == KindList }

// Equal reports deep equality. Map comparison ignores key order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindNumber:
		if v.num == nil || o.num == nil {
			return v.num == nil && o.num == nil && v.str == o.str
		}
		return v.num.Cmp(o.num) == 0
	case KindBool:
		return v.b == o.b
	case KindMap:
		return v.m.Equal(o.m)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Any converts v into plain Go values (map[string]any, []any, string,
// json.Number, bool, nil).
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return json.Number(v.str)
	case KindBool:
		return v.b
	case KindMap:
		return v.m.Any()
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Any()
		}
		return out
	}
	return nil
}

// ValueOf converts plain Go values into a Value. Maps are keyed in sorted
// order since Go maps carry none.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint64:
		return NumberLiteral(strconv.FormatUint(t, 10))
	case float64:
		return NumberLiteral(strconv.FormatFloat(t, 'g', -1, 64))
	case json.Number:
		return NumberLiteral(t.String())
	case Content:
		return Map(t), nil
	case map[string]any:
		c, err := ContentOf(t)
		if err != nil {
			return Value{}, err
		}
		return Map(c), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := ValueOf(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return List(items...), nil
	}
	return Value{}, fmt.Errorf("unsupported content value of type %T", x)
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindString:
		b, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindNumber:
		if v.num == nil {
			return fmt.Errorf("unsupported number %s", v.str)
		}
		buf.WriteString(v.str)
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindMap:
		return v.m.writeJSON(buf)
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	out, err := decodeValue(dec)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			var c Content
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("unexpected object key %v", keyTok)
				}
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				c.Set(key, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Map(c), nil
		case '[':
			items := []Value{}
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return List(items...), nil
		}
		return Value{}, fmt.Errorf("unexpected delimiter %v", t)
	default:
		return ValueOf(t)
	}
}

// UnmarshalYAML implements yaml.Unmarshaler, keeping mapping key order.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	out, err := valueFromNode(node)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func valueFromNode(node *yaml.Node) (Value, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return Null(), nil
		}
		return valueFromNode(node.Content[0])
	case yaml.AliasNode:
		return valueFromNode(node.Alias)
	case yaml.MappingNode:
		var c Content
		for i := 0; i+1 < len(node.Content); i += 2 {
			item, err := valueFromNode(node.Content[i+1])
			if err != nil {
				return Value{}, err
			}
			c.Set(node.Content[i].Value, item)
		}
		return Map(c), nil
	case yaml.SequenceNode:
		items := make([]Value, 0, len(node.Content))
		for _, n := range node.Content {
			item, err := valueFromNode(n)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return List(items...), nil
	case yaml.ScalarNode:
		if tag := node.ShortTag(); tag == "!!int" || tag == "!!float" {
			if d, _, err := apd.NewFromString(node.Value); err == nil && d.Form == apd.Finite {
				// Re-rendered so forms like "+1" or ".5" come out as JSON.
				return NumberLiteral(d.String())
			}
		}
		var x any
		if err := node.Decode(&x); err != nil {
			return Value{}, err
		}
		if v, err := ValueOf(x); err == nil {
			return v, nil
		}
		return String(node.Value), nil
	}
	return Value{}, fmt.Errorf("line %d: unsupported yaml node", node.Line)
}

// Content is an ordered mapping from property name to Value.
// The zero Content is empty and ready to use.
type Content struct {
	keys   []string
	values map[string]Value
}

// ContentOf builds a Content from a plain map, keys sorted.
func ContentOf(m map[string]any) (Content, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var c Content
	for _, k := range keys {
		v, err := ValueOf(m[k])
		if err != nil {
			return Content{}, fmt.Errorf("%s: %w", k, err)
		}
		c.Set(k, v)
	}
	return c, nil
}

// MustContent is ContentOf for literals known to be valid.
func MustContent(m map[string]any) Content {
	c, err := ContentOf(m)
	if err != nil {
		panic(err)
	}
	return c
}

// Len returns the number of properties.
func (c Content) Len() int { return len(c.keys) }

// Keys returns property names in insertion order.
func (c Content) Keys() []string {
	return append([]string(nil), c.keys...)
}

// Get returns the value stored under key.
func (c Content) Get(key string) (Value, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Set stores v under key, keeping the original position of an existing key.
func (c *Content) Set(key string, v Value) {
	if c.values == nil {
		c.values = make(map[string]Value)
	}
	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[key] = v
}

// Delete removes key.
func (c *Content) Delete(key string) {
	if _, ok := c.values[key]; !ok {
		return
	}
	delete(c.values, key)
	for i, k := range c.keys {
		if k == key {
			c.keys = append(c.keys[:i:i], c.keys[i+1:]...)
			break
		}
	}
}

// Equal reports whether both contents hold the same keys with deep-equal values.
func (c Content) Equal(o Content) bool {
	if len(c.keys) != len(o.keys) {
		return false
	}
	for k, v := range c.values {
		ov, ok := o.values[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Any converts the content into a plain map.
func (c Content) Any() map[string]any {
	out := make(map[string]any, len(c.keys))
	for _, k := range c.keys {
		out[k] = c.values[k].Any()
	}
	return out
}

// MarshalJSON implements json.Marshaler, writing keys in insertion order.
func (c Content) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c Content) writeJSON(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for i, k := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		if err := c.values[k].writeJSON(buf); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// UnmarshalJSON implements json.Unmarshaler. JSON null yields empty content.
func (c *Content) UnmarshalJSON(data []byte) error {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	return c.assign(v)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Content) UnmarshalYAML(node *yaml.Node) error {
	v, err := valueFromNode(node)
	if err != nil {
		return err
	}
	return c.assign(v)
}

func (c *Content) assign(v Value) error {
	switch v.kind {
	case KindNull:
		*c = Content{}
		return nil
	case KindMap:
		*c = v.m
		return nil
	}
	return fmt.Errorf("content must be an object, got %s", v.kind)
}

// ParseContentYAML decodes a YAML (or JSON) document into Content.
func ParseContentYAML(r io.Reader) (Content, error) {
	var c Content
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		if err == io.EOF {
			return Content{}, nil
		}
		return Content{}, fmt.Errorf("parse content: %w", err)
	}
	return c, nil
}
