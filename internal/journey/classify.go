// Package journey turns itinerary legs into renderable map segments,
// transfer markers and leg cards.
package journey

import "campuspulse/internal/domain"

// Classify returns the product of a leg: the line product, then walk for
// legs flagged as walking, then the leg mode, then walk.
func Classify(leg domain.Leg) domain.Product {
	if leg.Line != nil && leg.Line.Product != "" {
		return leg.Line.Product
	}
	if leg.Walking {
		return domain.ProductWalk
	}
	if leg.Mode != "" {
		return domain.Product(leg.Mode)
	}
	return domain.ProductWalk
}

// LegStyle is the visual identity of a product.
type LegStyle struct {
	Color string
	Label string
	Icon  string
}

// AccentColor marks products missing from the style table.
const AccentColor = "#F59E0B"

var styles = map[domain.Product]LegStyle{
	domain.ProductSubway:   {Color: "#115D91", Label: "U-Bahn", Icon: "/static/icons/ubahn.svg"},
	domain.ProductSuburban: {Color: "#008D4F", Label: "S-Bahn", Icon: "/static/icons/sbahn.svg"},
	domain.ProductRegional: {Color: "#E2001A", Label: "Regional", Icon: "/static/icons/regional.svg"},
	domain.ProductTram:     {Color: "#0E7C86", Label: "Tram", Icon: "/static/icons/tram.svg"},
	domain.ProductBus:      {Color: "#7B2D8E", Label: "Bus", Icon: "/static/icons/bus.svg"},
	domain.ProductWalk:     {Color: "#64748B", Label: "Walk", Icon: "/static/icons/walk.svg"},
}

// Style looks up the fixed style of product.
func Style(product domain.Product) LegStyle {
	if s, ok := styles[product]; ok {
		return s
	}
	label := string(product)
	if label == "" {
		label = "Travel"
	}
	return LegStyle{Color: AccentColor, Label: label, Icon: "/static/icons/travel.svg"}
}

// DetectTransfers emits a marker at the arrival stop of every leg followed by
// a leg of a different product. Legs without an arrival location are skipped.
func DetectTransfers(legs []domain.Leg) []domain.TransferPoint {
	var transfers []domain.TransferPoint
	for i := 0; i+1 < len(legs); i++ {
		from, to := Classify(legs[i]), Classify(legs[i+1])
		if from == to {
			continue
		}
		dest := legs[i].Destination
		if dest.Location == nil {
			continue
		}
		transfers = append(transfers, domain.TransferPoint{
			Coord: *dest.Location,
			Name:  dest.Name,
			From:  from,
			To:    to,
		})
	}
	return transfers
}
