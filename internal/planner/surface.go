package planner

import (
	"fmt"

	"campuspulse/internal/domain"
	"campuspulse/internal/journey"
)

const (
	transitWidth = 5
	walkWidth    = 3
)

// SurfaceCommands redraws the map for overlay: the previous layers are
// removed, then one polyline per segment and one marker per transfer are
// added and the viewport is fitted. It also returns the new layer ids.
func SurfaceCommands(previous []string, overlay *journey.Overlay) ([]domain.SurfaceCommand, []string) {
	commands := make([]domain.SurfaceCommand, 0, len(previous)+len(overlay.Segments)+len(overlay.Transfers)+1)
	for _, id := range previous {
		commands = append(commands, domain.SurfaceCommand{Type: domain.CommandRemoveLayer, LayerID: id})
	}

	layers := make([]string, 0, len(overlay.Segments)+len(overlay.Transfers))

	for _, seg := range overlay.Segments {
		id := fmt.Sprintf("leg-%d", seg.LegIndex)
		width := transitWidth
		if seg.Product == domain.ProductWalk {
			width = walkWidth
		}
		commands = append(commands, domain.SurfaceCommand{
			Type:    domain.CommandAddPolyline,
			LayerID: id,
			Polyline: &domain.Polyline{
				Coords: seg.Coords,
				Color:  seg.Color,
				Width:  width,
			},
		})
		layers = append(layers, id)
	}

	for i, tp := range overlay.Transfers {
		id := fmt.Sprintf("transfer-%d", i)
		style := journey.Style(tp.To)
		label := style.Label
		if tp.Name != "" {
			label = fmt.Sprintf("%s: change to %s", tp.Name, style.Label)
		}
		commands = append(commands, domain.SurfaceCommand{
			Type:    domain.CommandAddMarker,
			LayerID: id,
			Marker: &domain.Marker{
				Coord: tp.Coord,
				Label: label,
				Color: style.Color,
			},
		})
		layers = append(layers, id)
	}

	if overlay.Bounds != nil {
		bounds := *overlay.Bounds
		commands = append(commands, domain.SurfaceCommand{Type: domain.CommandFitBounds, Bounds: &bounds})
	}

	return commands, layers
}

func clearWithMessage(message string) []domain.SurfaceCommand {
	return []domain.SurfaceCommand{
		{Type: domain.CommandClearLayers},
		{Type: domain.CommandShowMessage, Message: message},
	}
}
