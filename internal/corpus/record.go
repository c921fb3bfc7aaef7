package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"ragqa/internal/domain"
)

// record is the ingestion shape of a knowledge unit. part and page arrive as either
// strings or numbers depending on the book's extraction tool.
type record struct {
	Content flexString `json:"content"`
	Author  flexString `json:"author"`
	Book    flexString `json:"book"`
	Part    flexString `json:"part"`
	Page    flexString `json:"page"`
	PagePDF flexString `json:"page_pdf"`
	UnitID  flexString `json:"unit_id"`
}

func (r record) unit() domain.KnowledgeUnit {
	page := r.Page
	if page == "" {
		page = r.PagePDF
	}
	return domain.KnowledgeUnit{
		Content: string(r.Content),
		Author:  strings.TrimSpace(string(r.Author)),
		Book:    strings.TrimSpace(string(r.Book)),
		Part:    strings.TrimSpace(string(r.Part)),
		Page:    strings.TrimSpace(string(page)),
		UnitID:  strings.TrimSpace(string(r.UnitID)),
	}
}

// flexString accepts a JSON string, number, or null.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*f = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", data)
		}
		if i, err := n.Int64(); err == nil {
			*f = flexString(strconv.FormatInt(i, 10))
			return nil
		}
		*f = flexString(n.String())
	}
	return nil
}

// decodeUnits parses a JSON array of unit records.
func decodeUnits(data []byte) ([]domain.KnowledgeUnit, error) {
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	units := make([]domain.KnowledgeUnit, len(records))
	for i, r := range records {
		units[i] = r.unit()
	}
	return units, nil
}
