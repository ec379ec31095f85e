package jira

import (
	"strconv"
	"strings"
	"time"

	"github.com/telemat/jiraload/errors"
)

// Accepted textual date layouts, tried in order. Each bare date form is also
// accepted with a time-of-day suffix, with or without seconds.
var dateLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"2.1.2006 15:04:05",
	"2.1.2006 15:04",
	"2.1.2006",
}

// serialEpoch anchors spreadsheet serial dates. Day 1 is 1900-01-01, with
// the usual off-by-two quirk inherited from Lotus 1-2-3.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.Local)

// ParseDate parses a date cell. Textual forms are tried against the known
// layouts, then a plain decimal value is interpreted as a spreadsheet serial
// date, days since 1899-12-30 with the fraction carrying the time of day.
func ParseDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, time.Local); err == nil {
			return t, nil
		}
	}
	if serial, err := strconv.ParseFloat(strings.ReplaceAll(trimmed, ",", "."), 64); err == nil && serial > 0 {
		seconds := serial * 24 * 3600
		return serialEpoch.Add(time.Duration(seconds * float64(time.Second))), nil
	}
	return time.Time{}, errors.Newf("invalid date %q", value)
}
