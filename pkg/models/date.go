package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	// ListingDateLayout is the date format used by the seller portal
	ListingDateLayout = "01/02/2006"
	// ISODateLayout is the date format written to order_date
	ISODateLayout = "2006-01-02"
)

// ParseDate accepts MM/DD/YYYY or YYYY-MM-DD and returns the civil date at UTC midnight
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{ListingDateLayout, ISODateLayout} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (want MM/DD/YYYY or YYYY-MM-DD)", s)
}

// CivilDate truncates t to midnight UTC of its calendar day
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
