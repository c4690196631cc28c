package domain

import "time"

// RouteMode decides which endpoint is typed by the user.
type RouteMode string

const (
	ModeToDestination RouteMode = "toDestination"
	ModeReturnHome    RouteMode = "returnHome"
)

// Toggled returns the other mode.
func (m RouteMode) Toggled() RouteMode {
	if m == ModeReturnHome {
		return ModeToDestination
	}
	return ModeReturnHome
}

// Session is the planner state of one widget instance.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Mode       RouteMode `json:"mode"`
	OriginText string    `json:"originText"`
	// Layers are the map overlay ids currently drawn for this session.
	Layers     []string  `json:"layers,omitempty"`
	Generation uint64    `json:"generation"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Field is one endpoint input as shown to the user.
type Field struct {
	Value    string `json:"value"`
	Editable bool   `json:"editable"`
}

// SessionView is the session as presented to the widget.
type SessionView struct {
	ID          string    `json:"id"`
	Mode        RouteMode `json:"mode"`
	Origin      Field     `json:"origin"`
	Destination Field     `json:"destination"`
}
