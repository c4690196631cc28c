// Package polyline implements the encoded polyline algorithm format:
// zig-zag signed deltas split into 5-bit chunks, offset by 63, with 0x20 as
// the continuation bit.
package polyline

import (
	"fmt"

	"campuspulse/internal/domain"
)

// DefaultPrecision is the 1e5 factor used by Google and transport.rest.
const DefaultPrecision = 1e5

// Decode converts an encoded polyline into coordinates at the default precision.
func Decode(encoded string) ([]domain.Coord, error) {
	return DecodeWithPrecision(encoded, DefaultPrecision)
}

// DecodeWithPrecision decodes with a custom factor (1e6 for GraphHopper-style input).
func DecodeWithPrecision(encoded string, precision float64) ([]domain.Coord, error) {
	var coords []domain.Coord
	var lat, lon int64
	index := 0

	for index < len(encoded) {
		dLat, next, err := readValue(encoded, index)
		if err != nil {
			return nil, err
		}
		if next >= len(encoded) {
			return nil, fmt.Errorf("%w: missing longitude at offset %d", domain.ErrMalformedGeometry, next)
		}
		dLon, next, err := readValue(encoded, next)
		if err != nil {
			return nil, err
		}
		index = next

		lat += dLat
		lon += dLon
		coords = append(coords, domain.Coord{
			Lat: float64(lat) / precision,
			Lon: float64(lon) / precision,
		})
	}

	return coords, nil
}

func readValue(encoded string, index int) (int64, int, error) {
	var result int64
	var shift uint
	for {
		if index >= len(encoded) {
			return 0, index, fmt.Errorf("%w: truncated value at offset %d", domain.ErrMalformedGeometry, index)
		}
		b := int64(encoded[index]) - 63
		if b < 0 || b > 0x3f {
			return 0, index, fmt.Errorf("%w: invalid byte %q at offset %d", domain.ErrMalformedGeometry, encoded[index], index)
		}
		index++
		if shift > 60 {
			return 0, index, fmt.Errorf("%w: value overflow at offset %d", domain.ErrMalformedGeometry, index)
		}
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), index, nil
	}
	return result >> 1, index, nil
}
