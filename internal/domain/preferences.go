package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// TimingPref selects how the target time is sent to the journey planner.
type TimingPref string

const (
	TimingNow     TimingPref = "now"
	TimingEarlier TimingPref = "earlier"
	TimingLater   TimingPref = "later"
)

func (t TimingPref) Valid() bool {
	switch t {
	case TimingNow, TimingEarlier, TimingLater:
		return true
	default:
		return false
	}
}

// Preferences are the per-user planner settings.
type Preferences struct {
	UserID        string     `json:"userId"`
	AllowSubway   bool       `json:"allowSubway"`
	AllowSuburban bool       `json:"allowSuburban"`
	AllowRegional bool       `json:"allowRegional"`
	AllowTram     bool       `json:"allowTram"`
	AllowBus      bool       `json:"allowBus"`
	TimingPref    TimingPref `json:"timingPref"`
	ArrivalTime   string     `json:"arrivalTime"`
	HomeLocation  string     `json:"homeLocation"`
}

// DefaultPreferences returns the settings of a user who never saved any.
func DefaultPreferences(userID string) Preferences {
	return Preferences{
		UserID:        userID,
		AllowSubway:   true,
		AllowSuburban: true,
		AllowRegional: true,
		AllowTram:     true,
		AllowBus:      true,
		TimingPref:    TimingEarlier,
	}
}

// Validate checks the timing preference and the HH:MM arrival time.
func (p Preferences) Validate() error {
	if !p.TimingPref.Valid() {
		return fmt.Errorf("invalid timing preference %q", p.TimingPref)
	}
	if p.ArrivalTime != "" {
		if _, _, err := ParseClock(p.ArrivalTime); err != nil {
			return err
		}
	}
	return nil
}

// ParseClock parses a wall-clock "HH:MM" string.
func ParseClock(s string) (hour, minute int, err error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	hour, err = strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}
