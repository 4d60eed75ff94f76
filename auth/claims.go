package auth

import (
	"encoding/json"
	"maps"
	"slices"
	"strconv"
)

// Claim is a single (type, value) pair of a validated token.
type Claim struct {
	Type  string
	Value string
}

// Claims is the set of claims produced by successful token validation.
// Multi-valued JSON claims (arrays) appear as one Claim per element, in
// order. A nil *Claims behaves as an empty set.
type Claims struct {
	list []Claim
	raw  map[string]any
}

// NewClaims flattens a decoded JWT payload. Claim types are visited in
// lexical order so the resulting list is deterministic.
func NewClaims(payload map[string]any) *Claims {
	c := &Claims{raw: maps.Clone(payload)}
	for _, typ := range slices.Sorted(maps.Keys(payload)) {
		c.list = appendFlattened(c.list, typ, payload[typ])
	}
	return c
}

// ClaimsFromList builds Claims from explicit pairs. It is intended for
// principals produced outside JWT validation and for tests.
func ClaimsFromList(list ...Claim) *Claims {
	c := &Claims{list: append([]Claim(nil), list...), raw: map[string]any{}}
	for _, cl := range list {
		switch prev := c.raw[cl.Type].(type) {
		case nil:
			c.raw[cl.Type] = cl.Value
		case string:
			c.raw[cl.Type] = []any{prev, cl.Value}
		case []any:
			c.raw[cl.Type] = append(prev, cl.Value)
		}
	}
	return c
}

func appendFlattened(list []Claim, typ string, v any) []Claim {
	switch val := v.(type) {
	case nil:
		return list
	case string:
		return append(list, Claim{Type: typ, Value: val})
	case bool:
		return append(list, Claim{Type: typ, Value: strconv.FormatBool(val)})
	case float64:
		return append(list, Claim{Type: typ, Value: strconv.FormatFloat(val, 'f', -1, 64)})
	case json.Number:
		return append(list, Claim{Type: typ, Value: val.String()})
	case []string:
		for _, s := range val {
			list = append(list, Claim{Type: typ, Value: s})
		}
		return list
	case []any:
		for _, e := range val {
			if _, nested := e.([]any); nested {
				continue
			}
			list = appendFlattened(list, typ, e)
		}
		return list
	default:
		// Objects keep their JSON form.
		b, err := json.Marshal(val)
		if err != nil {
			return list
		}
		return append(list, Claim{Type: typ, Value: string(b)})
	}
}

// Len returns the number of claim pairs.
func (c *Claims) Len() int {
	if c == nil {
		return 0
	}
	return len(c.list)
}

// All returns a copy of every claim pair.
func (c *Claims) All() []Claim {
	if c == nil {
		return nil
	}
	return append([]Claim(nil), c.list...)
}

// Get returns the first value of claim typ.
func (c *Claims) Get(typ string) (string, bool) {
	if c == nil {
		return "", false
	}
	for _, cl := range c.list {
		if cl.Type == typ {
			return cl.Value, true
		}
	}
	return "", false
}

// Values returns every value of claim typ in order.
func (c *Claims) Values(typ string) []string {
	if c == nil {
		return nil
	}
	var out []string
	for _, cl := range c.list {
		if cl.Type == typ {
			out = append(out, cl.Value)
		}
	}
	return out
}

// Has reports whether claim typ carries value.
func (c *Claims) Has(typ, value string) bool {
	return slices.Contains(c.Values(typ), value)
}

// Subject returns the "sub" claim.
func (c *Claims) Subject() string {
	s, _ := c.Get("sub")
	return s
}

// Unmarshal decodes the original payload into ref, which should be a
// pointer to a struct or map.
func (c *Claims) Unmarshal(ref any) error {
	var raw map[string]any
	if c != nil {
		raw = c.raw
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, ref)
}
