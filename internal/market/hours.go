package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Hours is an exchange-local trading window. Outside it the position monitor
// is a no-op for the cycle.
type Hours struct {
	loc      *time.Location
	openMin  int // minutes from midnight, exchange-local
	closeMin int
	weekdays map[time.Weekday]bool
}

// NewHours builds the predicate from "HH:MM" bounds and ISO-ish weekday
// numbers (Mon=1..Sun=7; 0 also accepted as Sunday).
func NewHours(location, open, close string, weekdays []int) (*Hours, error) {
	loc, err := time.LoadLocation(location)
	if err != nil {
		return nil, fmt.Errorf("load market location: %w", err)
	}
	openMin, err := parseClock(open)
	if err != nil {
		return nil, fmt.Errorf("parse open time: %w", err)
	}
	closeMin, err := parseClock(close)
	if err != nil {
		return nil, fmt.Errorf("parse close time: %w", err)
	}
	if closeMin <= openMin {
		return nil, fmt.Errorf("close %q not after open %q", close, open)
	}

	days := make(map[time.Weekday]bool, len(weekdays))
	for _, d := range weekdays {
		days[time.Weekday(d%7)] = true
	}

	return &Hours{loc: loc, openMin: openMin, closeMin: closeMin, weekdays: days}, nil
}

// IsOpen reports whether now falls inside the trading window.
func (h *Hours) IsOpen(now time.Time) bool {
	local := now.In(h.loc)
	if !h.weekdays[local.Weekday()] {
		return false
	}
	minutes := local.Hour()*60 + local.Minute()
	return minutes >= h.openMin && minutes < h.closeMin
}

func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	hh, err := strconv.Atoi(parts[0])
	if err != nil || hh < 0 || hh > 23 {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	mm, err := strconv.Atoi(parts[1])
	if err != nil || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("bad minute in %q", s)
	}
	return hh*60 + mm, nil
}
