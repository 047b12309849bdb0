// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrNegativeTimestamp is returned by ParseUnix for times before the epoch.
var ErrNegativeTimestamp = errors.New("timestamp must not be negative")

// ParseUnix parses an integer count of seconds since the Unix epoch into a
// UTC time. An empty string yields the zero time and no error, so callers
// can treat the parameter as optional.
//
// Example:
//
//	t, _ := utils.ParseUnix("1650000000") // 2022-04-15 05:20:00 UTC
//	t, _ = utils.ParseUnix("")            // time.Time{}
func ParseUnix(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	if n < 0 {
		return time.Time{}, ErrNegativeTimestamp
	}
	return time.Unix(n, 0).UTC(), nil
}
