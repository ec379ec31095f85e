package dao

import (
	"strconv"
	"strings"
	"time"

	"github.com/telemat/jiraload/errors"
	"github.com/telemat/jiraload/jira"
)

// customfieldvalue storage columns.
const (
	ColumnString = "STRINGVALUE"
	ColumnText   = "TEXTVALUE"
	ColumnDate   = "DATEVALUE"
	ColumnNumber = "NUMBERVALUE"
)

const customFieldTypePrefix = "com.atlassian.jira.plugin.system.customfieldtypes:"

// CustomField is a custom field definition with its declared options.
type CustomField struct {
	ID      int
	Name    string
	TypeKey string

	// Options maps option labels to option identifiers, for list types.
	Options map[string]int

	converter converter
}

// Column returns the customfieldvalue column this field's values land in.
func (f *CustomField) Column() string {
	return f.converter.column
}

// ConvertValue turns a raw cell into persistable values. List types split
// on commas and produce one value per selected option.
func (f *CustomField) ConvertValue(value string) ([]CustomFieldValue, error) {
	raw, err := f.converter.convert(f, value)
	if err != nil {
		return nil, err
	}
	out := make([]CustomFieldValue, len(raw))
	for i, v := range raw {
		out[i] = CustomFieldValue{FieldID: f.ID, Column: f.converter.column, Value: v}
	}
	return out, nil
}

type converter struct {
	column  string
	convert func(f *CustomField, value string) ([]any, error)
}

func single(fn func(f *CustomField, value string) (any, error)) func(*CustomField, string) ([]any, error) {
	return func(f *CustomField, value string) ([]any, error) {
		v, err := fn(f, value)
		if err != nil {
			return nil, err
		}
		return []any{v}, nil
	}
}

func identity(_ *CustomField, value string) (any, error) {
	return value, nil
}

func convertURL(f *CustomField, value string) (any, error) {
	if !strings.Contains(value, "://") {
		return nil, errors.Newf("invalid value %q for custom field %q, expected an URL", value, f.Name)
	}
	return value, nil
}

func convertDate(f *CustomField, value string) (any, error) {
	t, err := jira.ParseDate(value)
	if err != nil {
		return nil, errors.Newf("invalid value %q for custom field %q, expected a date", value, f.Name)
	}
	return t, nil
}

func convertDay(f *CustomField, value string) (any, error) {
	v, err := convertDate(f, value)
	if err != nil {
		return nil, err
	}
	t := v.(time.Time)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()), nil
}

func convertFloat(f *CustomField, value string) (any, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", "."), 64)
	if err != nil {
		return nil, errors.Newf("invalid value %q for custom field %q, expected a number", value, f.Name)
	}
	return v, nil
}

func convertOption(f *CustomField, value string) (any, error) {
	id, ok := f.Options[strings.TrimSpace(value)]
	if !ok {
		return nil, errors.Newf("invalid value %q for custom field %q, expected one of its options", value, f.Name)
	}
	return id, nil
}

func convertOptions(f *CustomField, value string) ([]any, error) {
	parts := strings.Split(value, ",")
	out := make([]any, 0, len(parts))
	for _, part := range parts {
		id, err := convertOption(f, part)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// managedTypes binds a custom field type key suffix to its column and
// conversion. Types outside this table cannot be imported.
var managedTypes = map[string]converter{
	"textarea":        {ColumnText, single(identity)},
	"textfield":       {ColumnString, single(identity)},
	"url":             {ColumnString, single(convertURL)},
	"datepicker":      {ColumnDate, single(convertDay)},
	"datetime":        {ColumnDate, single(convertDate)},
	"float":           {ColumnNumber, single(convertFloat)},
	"select":          {ColumnString, single(convertOption)},
	"radiobuttons":    {ColumnString, single(convertOption)},
	"multiselect":     {ColumnString, convertOptions},
	"multicheckboxes": {ColumnString, convertOptions},
}

func converterFor(typeKey string) converter {
	suffix := strings.TrimPrefix(typeKey, customFieldTypePrefix)
	if c, ok := managedTypes[suffix]; ok {
		return c
	}
	return converter{"", func(f *CustomField, _ string) ([]any, error) {
		return nil, errors.Newf("custom field type %q of field %q is not supported", f.TypeKey, f.Name)
	}}
}
