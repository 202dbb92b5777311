package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Field is one column label and its display value
type Field struct {
	Label string
	Value string
}

// Fields is an ordered label → value mapping, serialized as a JSON object in insertion order
type Fields []Field

// Get returns the value for label and whether it was present
func (f Fields) Get(label string) (string, bool) {
	for _, field := range f {
		if field.Label == label {
			return field.Value, true
		}
	}
	return "", false
}

// Set replaces the value for label, or appends it when absent
func (f *Fields) Set(label, value string) {
	for i := range *f {
		if (*f)[i].Label == label {
			(*f)[i].Value = value
			return
		}
	}
	*f = append(*f, Field{Label: label, Value: value})
}

// MarshalJSON writes the fields as an object, keeping their order
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONString(&buf, field.Label); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSONString(&buf, field.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object into ordered fields. Non-string values keep their raw JSON text.
func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("fields: expected object, got %v", tok)
	}

	out := Fields{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			s = string(raw)
		}
		out = append(out, Field{Label: key, Value: s})
	}
	*f = out
	return nil
}

// ListItem is one row of a portal list view
type ListItem struct {
	ID         string   `json:"id"`
	Fields     Fields   `json:"fields"`
	DetailURLs []string `json:"detail_urls"`

	// Occurrence is the 1-based count of this identifier so far in enumeration order.
	Occurrence int `json:"-"`
}

// Actionable reports whether the item carries an identifier
func (i ListItem) Actionable() bool {
	return i.ID != ""
}

// Table is an ordered sequence of rows, each an ordered sequence of cell strings
type Table struct {
	Title string     `json:"title"`
	Rows  [][]string `json:"data"`
}

// Section groups the tables found under one label
type Section struct {
	Label  string  `json:"label"`
	Tables []Table `json:"tables"`
}

// Sections is an ordered label → tables mapping, serialized as a JSON object in order
type Sections []Section

// Get returns the section with the given label
func (s Sections) Get(label string) (Section, bool) {
	for _, section := range s {
		if section.Label == label {
			return section, true
		}
	}
	return Section{}, false
}

// TableCount returns the number of tables across all sections
func (s Sections) TableCount() int {
	n := 0
	for _, section := range s {
		n += len(section.Tables)
	}
	return n
}

// MarshalJSON writes sections as {"label": [tables...]} keeping their order
func (s Sections) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, section := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONString(&buf, section.Label); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		tables := section.Tables
		if tables == nil {
			tables = []Table{}
		}
		data, err := marshalNoEscape(tables)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads {"label": [tables...]} preserving key order
func (s *Sections) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("sections: expected object, got %v", tok)
	}

	out := Sections{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		label, _ := keyTok.(string)

		var tables []Table
		if err := dec.Decode(&tables); err != nil {
			return fmt.Errorf("sections: decode %q: %w", label, err)
		}
		out = append(out, Section{Label: label, Tables: tables})
	}
	*s = out
	return nil
}

// DetailRecord is the extracted content of one item's detail page
type DetailRecord struct {
	ID        string    `json:"case_number"`
	URL       string    `json:"url"`
	Sections  Sections  `json:"sections"`
	BasicInfo Fields    `json:"basic_info"`
	FetchedAt time.Time `json:"fetched_at"`
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	data, err := marshalNoEscape(s)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}

// marshalNoEscape encodes v without HTML escaping so labels stay readable
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
