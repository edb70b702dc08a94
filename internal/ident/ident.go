// Package ident holds the identifier type shared by every stored entity.
//
// Identifiers are BIGINT keys in PostgreSQL but travel as strings in JSON
// ("_id": "42") so the storefront client can treat them as opaque. The zero
// value means "no reference" and is written as JSON null / SQL NULL.
package ident

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type ID int64

func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return ID(n), nil
}

func (id ID) IsZero() bool { return id == 0 }

func (id ID) String() string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(int64(id), 10)
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(id.String())
}

// UnmarshalJSON accepts "42", 42, "" and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*id = 0
		return nil
	}
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Scan implements sql.Scanner so nullable reference columns land in an ID.
func (id *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*id = 0
	case int64:
		*id = ID(v)
	case int32:
		*id = ID(v)
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*id = parsed
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*id = parsed
	default:
		return fmt.Errorf("ident: cannot scan %T", src)
	}
	return nil
}

// Value implements driver.Valuer; the zero ID is stored as NULL.
func (id ID) Value() (driver.Value, error) {
	if id == 0 {
		return nil, nil
	}
	return int64(id), nil
}

// Optional distinguishes an absent JSON field from an explicit clear.
// Absent leaves Set false; "" or null sets it with a zero ID.
type Optional struct {
	Set bool
	ID  ID
}

func (o *Optional) UnmarshalJSON(data []byte) error {
	o.Set = true
	return o.ID.UnmarshalJSON(data)
}

func (o Optional) MarshalJSON() ([]byte, error) {
	return o.ID.MarshalJSON()
}

// Some returns an Optional that sets id.
func Some(id ID) Optional { return Optional{Set: true, ID: id} }
