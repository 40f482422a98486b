package utils

import (
	"strconv"
	"strings"
	"time"
)

// DefaultExpiresIn is used when a lifetime string has an unknown unit.
const DefaultExpiresIn int64 = 3600

// ExpiresInSeconds converts "<n><unit>" (units d, h, m, s) into seconds.
// An unknown or missing unit, or a garbled number, yields DefaultExpiresIn
// rather than an error.
func ExpiresInSeconds(s string) int64 {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return DefaultExpiresIn
	}
	unit := s[len(s)-1]
	n, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil || n < 0 {
		return DefaultExpiresIn
	}
	switch unit {
	case 'd':
		return n * 24 * 60 * 60
	case 'h':
		return n * 60 * 60
	case 'm':
		return n * 60
	case 's':
		return n
	default:
		return DefaultExpiresIn
	}
}

// ExpiresIn is ExpiresInSeconds as a time.Duration.
func ExpiresIn(s string) time.Duration {
	return time.Duration(ExpiresInSeconds(s)) * time.Second
}
