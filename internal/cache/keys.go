package cache

import (
	"fmt"
	"strings"
)

func KeyGeocode(query string) string {
	return fmt.Sprintf("geocode:%s", strings.ToLower(strings.TrimSpace(query)))
}

func KeySession(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func KeySessionOverlay(sessionID string) string {
	return fmt.Sprintf("overlay:%s", sessionID)
}
