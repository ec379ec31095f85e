package dao

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newField(suffix string, options map[string]int) *CustomField {
	typeKey := customFieldTypePrefix + suffix
	return &CustomField{
		ID:        10000,
		Name:      "Billing",
		TypeKey:   typeKey,
		Options:   options,
		converter: converterFor(typeKey),
	}
}

func TestConvertText(t *testing.T) {
	f := newField("textarea", nil)
	values, err := f.ConvertValue("some long text")
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, ColumnText, values[0].Column)
	assert.Equal(t, "some long text", values[0].Value)

	f = newField("textfield", nil)
	values, err = f.ConvertValue("short")
	require.NoError(t, err)
	assert.Equal(t, ColumnString, values[0].Column)
}

func TestConvertURL(t *testing.T) {
	f := newField("url", nil)
	values, err := f.ConvertValue("https://example.org/x")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/x", values[0].Value)

	_, err = f.ConvertValue("example.org")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "URL")
}

func TestConvertDates(t *testing.T) {
	f := newField("datetime", nil)
	values, err := f.ConvertValue("14/03/2014 10:20")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2014, 3, 14, 10, 20, 0, 0, time.Local), values[0].Value)

	// The date picker keeps only the day.
	f = newField("datepicker", nil)
	values, err = f.ConvertValue("14/03/2014 10:20")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2014, 3, 14, 0, 0, 0, 0, time.Local), values[0].Value)
}

func TestConvertFloat(t *testing.T) {
	f := newField("float", nil)
	values, err := f.ConvertValue("12,5")
	require.NoError(t, err)
	assert.Equal(t, 12.5, values[0].Value)

	_, err = f.ConvertValue("dozen")
	assert.Error(t, err)
}

func TestConvertSelect(t *testing.T) {
	options := map[string]int{"Internal": 20000, "External": 20001}
	f := newField("select", options)

	values, err := f.ConvertValue("External")
	require.NoError(t, err)
	assert.Equal(t, 20001, values[0].Value)

	_, err = f.ConvertValue("Sideways")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "options")
}

func TestConvertMultiSelect(t *testing.T) {
	options := map[string]int{"Internal": 20000, "External": 20001}
	f := newField("multiselect", options)

	values, err := f.ConvertValue("Internal, External")
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, 20000, values[0].Value)
	assert.Equal(t, 20001, values[1].Value)

	_, err = f.ConvertValue("Internal,Nope")
	assert.Error(t, err)
}

func TestConvertUnsupportedType(t *testing.T) {
	f := newField("cascadingselect", nil)
	_, err := f.ConvertValue("anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}
