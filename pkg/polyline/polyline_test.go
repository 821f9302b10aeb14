package polyline

import (
	"math"
	"testing"

	"github.com/urbanroute/urbanroute/pkg/geo"
)

func TestDecode_KnownValue(t *testing.T) {
	// Reference example from the polyline algorithm documentation.
	points := Decode("_p~iF~ps|U_ulLnnqC_mqNvxq`@")

	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}

	want := []geo.Point{
		{Lat: 38.5, Lon: -120.2},
		{Lat: 40.7, Lon: -120.95},
		{Lat: 43.252, Lon: -126.453},
	}
	for i, w := range want {
		if math.Abs(points[i].Lat-w.Lat) > 1e-5 || math.Abs(points[i].Lon-w.Lon) > 1e-5 {
			t.Errorf("point %d: got (%f, %f), want (%f, %f)",
				i, points[i].Lat, points[i].Lon, w.Lat, w.Lon)
		}
	}
}

func TestDecode_Empty(t *testing.T) {
	if points := Decode(""); points != nil {
		t.Errorf("expected nil for empty input, got %v", points)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	original := []geo.Point{
		{Lat: -33.4378, Lon: -70.6505},
		{Lat: -33.4412, Lon: -70.6543},
		{Lat: -33.4520, Lon: -70.6601},
	}

	decoded := Decode(Encode(original))
	if len(decoded) != len(original) {
		t.Fatalf("expected %d points, got %d", len(original), len(decoded))
	}
	for i := range original {
		if math.Abs(decoded[i].Lat-original[i].Lat) > 1e-5 ||
			math.Abs(decoded[i].Lon-original[i].Lon) > 1e-5 {
			t.Errorf("point %d changed after round trip: %v -> %v", i, original[i], decoded[i])
		}
	}
}

func TestEncode_Empty(t *testing.T) {
	if s := Encode(nil); s != "" {
		t.Errorf("expected empty string for no points, got %q", s)
	}
}
