// Package element models the per-version document element stream produced
// by the external extraction collaborator.
//
// Elements are opaque beyond the fields named here: the stream is consumed
// read-only by table extraction and rewritten by the correction applier,
// but never enriched or re-ordered.
package element

import (
	"encoding/json"
	"fmt"
	"os"
)

// Type identifies the structural role of an element.
type Type string

const (
	TypeParagraph Type = "paragraph"
	TypeHeading   Type = "heading"
	TypeTableCell Type = "table_cell"
)

// Element is one entry of a version's ordered element stream.
type Element struct {
	Type Type   `json:"type"`
	Text string `json:"text"`
	Page int    `json:"page"`

	// Table-group fields, set only for TypeTableCell. TableID groups the
	// cells of one candidate table; Row/Col index the cell within it.
	TableID string `json:"table_id,omitempty"`
	Row     int    `json:"row,omitempty"`
	Col     int    `json:"col,omitempty"`
}

// IsTableCell reports whether the element belongs to a table group.
func (e Element) IsTableCell() bool {
	return e.Type == TypeTableCell && e.TableID != ""
}

// Paragraph builds a paragraph element, used when the applier flattens a
// rejected table back into running text.
func Paragraph(text string, page int) Element {
	return Element{Type: TypeParagraph, Text: text, Page: page}
}

// LoadStream reads a JSON element stream from path.
func LoadStream(path string) ([]Element, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("element: read stream %s: %w", path, err)
	}
	return ParseStream(data)
}

// ParseStream decodes a JSON array of elements.
func ParseStream(data []byte) ([]Element, error) {
	var elems []Element
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("element: parse stream: %w", err)
	}
	return elems, nil
}
