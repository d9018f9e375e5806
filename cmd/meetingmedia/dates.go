package main

import (
	"fmt"
	"strings"
	"time"
)

const dateFlagLayout = "2006-01-02"

// parseDay reads a YYYY-MM-DD flag value, or "today", in local time.
func parseDay(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "today") {
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local), nil
	}
	day, err := time.ParseInLocation(dateFlagLayout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", value)
	}
	return day, nil
}

// parseRange resolves --from/--to. An empty to spans weeks whole weeks from
// the start.
func parseRange(fromValue, toValue string, weeks int, now time.Time) (time.Time, time.Time, error) {
	from, err := parseDay(fromValue, now)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if strings.TrimSpace(toValue) == "" {
		if weeks < 1 {
			weeks = 1
		}
		return from, from.AddDate(0, 0, weeks*7-1), nil
	}
	to, err := parseDay(toValue, now)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", to.Format(dateFlagLayout), from.Format(dateFlagLayout))
	}
	return from, to, nil
}
