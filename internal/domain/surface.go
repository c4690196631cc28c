package domain

// CommandType names a map surface operation.
type CommandType string

const (
	CommandClearLayers  CommandType = "clear_layers"
	CommandRemoveLayer  CommandType = "remove_layer"
	CommandAddPolyline  CommandType = "add_polyline"
	CommandAddMarker    CommandType = "add_marker"
	CommandFitBounds    CommandType = "fit_bounds"
	CommandShowMessage  CommandType = "show_message"
	CommandSessionEnded CommandType = "session_ended"
)

// Polyline is a declarative map line.
type Polyline struct {
	Coords []Coord `json:"coords"`
	Color  string  `json:"color"`
	Width  int     `json:"width"`
}

// Marker is a declarative map point.
type Marker struct {
	Coord Coord  `json:"coord"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// SurfaceCommand is one instruction for the widget's map.
type SurfaceCommand struct {
	Type     CommandType  `json:"type"`
	LayerID  string       `json:"layerId,omitempty"`
	Polyline *Polyline    `json:"polyline,omitempty"`
	Marker   *Marker      `json:"marker,omitempty"`
	Bounds   *BoundingBox `json:"bounds,omitempty"`
	Message  string       `json:"message,omitempty"`
}

// SessionCommands is a batch of commands addressed to one session.
type SessionCommands struct {
	SessionID string           `json:"sessionId"`
	Commands  []SurfaceCommand `json:"commands"`
}
