package products

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Spec is one attribute pair, e.g. {"Вага", "25 кг"}.
type Spec struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Specs is an ordered key→value mapping. It is written to clients as a JSON
// object in insertion order and stored as an array of pairs so the order
// survives JSONB normalisation.
type Specs []Spec

func (s Specs) Get(key string) (string, bool) {
	for _, sp := range s {
		if sp.Key == key {
			return sp.Value, true
		}
	}
	return "", false
}

// Set overwrites an existing key in place or appends a new one.
func (s *Specs) Set(key, value string) {
	for i := range *s {
		if (*s)[i].Key == key {
			(*s)[i].Value = value
			return
		}
	}
	*s = append(*s, Spec{Key: key, Value: value})
}

func (s Specs) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, sp := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(sp.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(sp.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts an object (order preserved), an array of
// {key, value} pairs, or a string in the "Key: Value;" text form.
func (s *Specs) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*s = Specs{}
		return nil
	}

	switch data[0] {
	case '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*s = ParseSpecsText(text)
		return nil
	case '[':
		var pairs []Spec
		if err := json.Unmarshal(data, &pairs); err != nil {
			return fmt.Errorf("specs: %w", err)
		}
		out := Specs{}
		for _, p := range pairs {
			if k := strings.TrimSpace(p.Key); k != "" {
				out.Set(k, p.Value)
			}
		}
		*s = out
		return nil
	case '{':
		out, err := decodeSpecsObject(data)
		if err != nil {
			return err
		}
		*s = out
		return nil
	default:
		return fmt.Errorf("specs: expected object or string, got %s", string(data[:1]))
	}
}

func decodeSpecsObject(data []byte) (Specs, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if _, err := dec.Token(); err != nil { // {
		return nil, fmt.Errorf("specs: %w", err)
	}
	out := Specs{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("specs: %w", err)
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("specs %q: %w", key, err)
		}
		if key = strings.TrimSpace(key); key == "" {
			continue
		}
		out.Set(key, specValue(raw))
	}
	return out, nil
}

// specValue flattens a JSON scalar into its display string.
func specValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// ParseSpecsText reads the admin free-text form:
//
//	Вага: 25 кг;
//	Колір: білий
//
// Entries are separated by ';' or newlines. The first ':' splits key from
// value, so keys cannot contain a colon while values can. Entries without a
// colon or with a blank key are ignored; a repeated key keeps its first
// position and takes the last value.
func ParseSpecsText(text string) Specs {
	out := Specs{}
	entries := strings.FieldsFunc(text, func(r rune) bool {
		return r == ';' || r == '\n' || r == '\r'
	})
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out.Set(key, strings.TrimSpace(value))
	}
	return out
}

// Text renders specs back into the free-text form, one entry per line.
func (s Specs) Text() string {
	var b strings.Builder
	for i, sp := range s {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(sp.Key)
		b.WriteString(": ")
		b.WriteString(sp.Value)
		b.WriteByte(';')
	}
	return b.String()
}
