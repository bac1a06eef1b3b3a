package geo

import (
	"math"
	"testing"
)

func TestDistanceZeroForSamePoint(t *testing.T) {
	if d := Distance(10.7726, 106.6579, 10.7726, 106.6579); d != 0 {
		t.Fatalf("expected 0 distance for identical coordinates, got %f", d)
	}
}

func TestDistanceKnownValues(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		want                   float64 // meters
		tolerance              float64
	}{
		{
			// One degree of latitude is ~111.2 km everywhere.
			name: "one degree latitude",
			lat1: 0, lng1: 0, lat2: 1, lng2: 0,
			want: 111195, tolerance: 100,
		},
		{
			// Two lecture buildings on the same campus.
			name: "short hop",
			lat1: 10.772600, lng1: 106.657900,
			lat2: 10.773500, lng2: 106.658800,
			want: 140, tolerance: 10,
		},
		{
			name: "antipodal-ish long haul",
			lat1: 52.5200, lng1: 13.4050, // Berlin
			lat2: -33.8688, lng2: 151.2093, // Sydney
			want: 16_093_000, tolerance: 20_000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Fatalf("Distance() = %.0f m, want %.0f ± %.0f m", got, tt.want, tt.tolerance)
			}
		})
	}
}

func TestDistanceSymmetric(t *testing.T) {
	a := Distance(10.7726, 106.6579, 21.0285, 105.8542)
	b := Distance(21.0285, 105.8542, 10.7726, 106.6579)
	if math.Abs(a-b) > 1e-6 {
		t.Fatalf("distance not symmetric: %f vs %f", a, b)
	}
}

func TestWithinRadius(t *testing.T) {
	// ~140 m apart (see short hop above).
	lat1, lng1 := 10.772600, 106.657900
	lat2, lng2 := 10.773500, 106.658800

	if !WithinRadius(lat1, lng1, lat2, lng2, 200) {
		t.Fatal("expected points to be within 200 m")
	}
	if WithinRadius(lat1, lng1, lat2, lng2, 100) {
		t.Fatal("expected points to be outside 100 m")
	}
}
