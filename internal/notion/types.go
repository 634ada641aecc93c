package notion

import (
	"bytes"
	"encoding/json"
)

// RichText is one fragment of a title or rich_text value.
type RichText struct {
	PlainText string `json:"plain_text"`
}

// Database is the subset of a Notion database object the calendar uses.
type Database struct {
	ID         string     `json:"id"`
	Title      []RichText `json:"title"`
	Properties Properties `json:"properties"`
}

// Name joins the title fragments.
func (d Database) Name() string {
	var b bytes.Buffer
	for _, t := range d.Title {
		b.WriteString(t.PlainText)
	}
	return b.String()
}

// Page is one database row.
type Page struct {
	ID             string     `json:"id"`
	Properties     Properties `json:"properties"`
	CreatedTime    string     `json:"created_time"`
	LastEditedTime string     `json:"last_edited_time"`
	Archived       bool       `json:"archived"`
}

// QueryResult is a single page of query results. HasMore and NextCursor are
// decoded but never followed.
type QueryResult struct {
	Results    []Page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

type listResponse[T any] struct {
	Results    []T     `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

// Properties is the open-ended property map of a page or database. Values
// stay raw until a typed accessor reads them.
type Properties map[string]json.RawMessage

// Property is one present entry of a Properties map.
type Property struct {
	raw json.RawMessage
}

// Lookup returns the named property. The boolean is false when the page has
// no property by that name, which is different from a property that exists
// but holds an empty or malformed value.
func (p Properties) Lookup(name string) (Property, bool) {
	raw, ok := p[name]
	if !ok || len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return Property{}, false
	}
	return Property{raw: raw}, true
}

// Type returns the declared property type ("title", "date", ...), or "".
func (p Property) Type() string {
	var v struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(p.raw, &v); err != nil {
		return ""
	}
	return v.Type
}

// Text returns the plain text of the first fragment of a title or rich_text
// property. ok is false when the value is malformed or has no fragments.
func (p Property) Text() (string, bool) {
	var v struct {
		Title    []RichText `json:"title"`
		RichText []RichText `json:"rich_text"`
	}
	if err := json.Unmarshal(p.raw, &v); err != nil {
		return "", false
	}
	frags := v.Title
	if len(frags) == 0 {
		frags = v.RichText
	}
	if len(frags) == 0 {
		return "", false
	}
	return frags[0].PlainText, true
}

// DateRange is the value of a date property. End is nil for single dates.
type DateRange struct {
	Start string
	End   *string
}

// Date returns the date object of a date property. ok is false when the
// nested date object or its start value is missing.
func (p Property) Date() (DateRange, bool) {
	var v struct {
		Date *struct {
			Start *string `json:"start"`
			End   *string `json:"end"`
		} `json:"date"`
	}
	if err := json.Unmarshal(p.raw, &v); err != nil {
		return DateRange{}, false
	}
	if v.Date == nil || v.Date.Start == nil {
		return DateRange{}, false
	}
	return DateRange{Start: *v.Date.Start, End: v.Date.End}, true
}

// TitleValue builds a title property value holding one text fragment.
func TitleValue(content string) map[string]any {
	return map[string]any{
		"title": []any{
			map[string]any{"text": map[string]any{"content": content}},
		},
	}
}

// DateValue builds a date property value with only a start.
func DateValue(start string) map[string]any {
	return map[string]any{
		"date": map[string]any{"start": start},
	}
}
