package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON-backed column types. SQLite has no native array type, so list
// columns round-trip through a text column as JSON.

// StringList is a JSON-encoded []string column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	return string(data), err
}

func (l *StringList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// UintList is a JSON-encoded []uint column.
type UintList []uint

func (l UintList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	return string(data), err
}

func (l *UintList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// Citation is a URL cited by a provider's answer, with the category
// assigned during URL processing.
type Citation struct {
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Category string `json:"category,omitempty"`
}

// CitationList is a JSON-encoded []Citation column.
type CitationList []Citation

func (l CitationList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	return string(data), err
}

func (l *CitationList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// CompetitorMention records one competitor found in an answer.
type CompetitorMention struct {
	Name          string `json:"name"`
	Count         int    `json:"count"`
	Position      int    `json:"position"`
	PortrayalType string `json:"portrayal_type"`
}

// CompetitorMentionList is a JSON-encoded []CompetitorMention column.
type CompetitorMentionList []CompetitorMention

func (l CompetitorMentionList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	return string(data), err
}

func (l *CompetitorMentionList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

func scanJSON(value interface{}, dest interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported column type %T", value)
	}
}
