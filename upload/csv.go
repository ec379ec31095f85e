package upload

import (
	"encoding/csv"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"

	"github.com/telemat/jiraload/errors"
)

// The fixed columns of the change-log format. Any other header names a
// custom field.
var fixedColumns = map[string]func(*Entry, string){
	"issue":          func(e *Entry, v string) { e.Issue = v },
	"status":         func(e *Entry, v string) { e.Status = v },
	"summary":        func(e *Entry, v string) { e.Summary = v },
	"description":    func(e *Entry, v string) { e.Description = v },
	"resolution":     func(e *Entry, v string) { e.Resolution = v },
	"resolutionDate": func(e *Entry, v string) { e.ResolutionDate = v },
	"dueDate":        func(e *Entry, v string) { e.DueDate = v },
	"type":           func(e *Entry, v string) { e.Type = v },
	"priority":       func(e *Entry, v string) { e.Priority = v },
	"labels":         func(e *Entry, v string) { e.Labels = v },
	"components":     func(e *Entry, v string) { e.Components = v },
	"fixedVersion":   func(e *Entry, v string) { e.FixedVersion = v },
	"version":        func(e *Entry, v string) { e.Version = v },
	"date":           func(e *Entry, v string) { e.Date = v },
	"assignee":       func(e *Entry, v string) { e.Assignee = v },
	"reporter":       func(e *Entry, v string) { e.Reporter = v },
	"author":         func(e *Entry, v string) { e.Author = v },
}

// decodeReader wraps the input with a charset decoder resolved from the
// IANA name. UTF-8 passes through untouched.
func decodeReader(r io.Reader, charset string) (io.Reader, error) {
	if charset == "" || strings.EqualFold(charset, "UTF-8") {
		return r, nil
	}
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil || enc == nil {
		return nil, errors.Newf("unsupported charset %q", charset)
	}
	if enc == encoding.Nop {
		return r, nil
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// readEntries parses the change log. The header row binds columns: known
// names fill the fixed fields, every other name declares a custom field
// column. Cell text is trimmed, empty cells mean "absent".
func readEntries(r io.Reader, charset string) ([]*Entry, error) {
	decoded, err := decodeReader(r, charset)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(decoded)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	type column struct {
		fixed       func(*Entry, string)
		customField string
	}
	columns := make([]column, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))
		if set, ok := fixedColumns[name]; ok {
			columns[i] = column{fixed: set}
		} else {
			columns[i] = column{customField: name}
		}
	}

	var entries []*Entry
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read row")
		}
		line, _ := reader.FieldPos(0)
		entry := &Entry{Line: line, CustomFields: make(map[string]string)}
		for i, cell := range record {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			if columns[i].fixed != nil {
				columns[i].fixed(entry, cell)
			} else {
				entry.CustomFields[columns[i].customField] = cell
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
