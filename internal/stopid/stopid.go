// Package stopid extracts canonical stop identifiers and coordinates from the
// heterogeneous stop records of the upstream services.
package stopid

import (
	"strings"

	"campuspulse/internal/domain"
)

// NormalizeID returns the numeric stop id of c, or "" when none exists.
// Order: ibnr, id, station.id. International stop numbers are the most stable
// key across services; nested station ids only cover platform-level records.
func NormalizeID(c domain.StopCandidate) string {
	for _, raw := range []string{c.IBNR, c.ID, c.StationID} {
		if id := numericSuffix(raw); id != "" {
			return id
		}
	}
	return ""
}

// ExtractCoords prefers coordinates on the record itself over a nested location.
func ExtractCoords(c domain.StopCandidate) *domain.Coord {
	if c.Direct != nil {
		coord := *c.Direct
		return &coord
	}
	if c.Nested != nil {
		coord := *c.Nested
		return &coord
	}
	return nil
}

// numericSuffix takes the token after the last ':' or '/' of a compound key
// and accepts it only if it is purely numeric.
func numericSuffix(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.LastIndexAny(raw, ":/"); i >= 0 {
		raw = raw[i+1:]
	}
	if !isDigits(raw) {
		return ""
	}
	return raw
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
