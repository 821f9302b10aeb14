// Package polyline implements Google's encoded polyline algorithm at
// precision 5, the format the routing engine uses for path geometries.
// See https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"math"

	"github.com/urbanroute/urbanroute/pkg/geo"
)

// Decode converts an encoded polyline into an ordered list of points.
func Decode(encoded string) []geo.Point {
	if encoded == "" {
		return nil
	}

	var points []geo.Point
	index := 0
	lat := 0
	lon := 0

	for index < len(encoded) {
		latDelta, next := decodeChunk(encoded, index)
		index = next
		lat += latDelta

		lonDelta, next := decodeChunk(encoded, index)
		index = next
		lon += lonDelta

		points = append(points, geo.Point{
			Lat: float64(lat) / 1e5,
			Lon: float64(lon) / 1e5,
		})
	}

	return points
}

// decodeChunk reads one varint-encoded delta starting at index and returns
// the delta plus the position of the next chunk.
func decodeChunk(encoded string, index int) (int, int) {
	shift := 0
	result := 0

	for index < len(encoded) {
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), index
	}
	return result >> 1, index
}

// Encode converts an ordered list of points into an encoded polyline.
func Encode(points []geo.Point) string {
	if len(points) == 0 {
		return ""
	}

	out := make([]byte, 0, len(points)*4)
	prevLat := 0
	prevLon := 0

	for _, p := range points {
		lat := int(math.Round(p.Lat * 1e5))
		lon := int(math.Round(p.Lon * 1e5))

		out = encodeChunk(out, lat-prevLat)
		out = encodeChunk(out, lon-prevLon)

		prevLat = lat
		prevLon = lon
	}

	return string(out)
}

func encodeChunk(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	return append(buf, byte(value)+63)
}
