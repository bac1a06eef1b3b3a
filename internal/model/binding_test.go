package model

import (
	"fmt"
	"testing"

	"github.com/gin-gonic/gin/binding"
)

// Coordinates on the equator or the Greenwich meridian are zero-valued but
// perfectly legal; binding must accept them and still reject out-of-range
// values.
func TestCheckInRequestBindsZeroCoordinates(t *testing.T) {
	sessionID := "6fa459ea-ee8a-3ca4-894e-db77e160355e"

	cases := []struct {
		name    string
		lat     float64
		lng     float64
		wantErr bool
	}{
		{"equator", 0, 106.657707, false},
		{"greenwich", 10.772211, 0, false},
		{"null island", 0, 0, false},
		{"lat too far north", 90.5, 0, true},
		{"lng wrapped", 0, -180.5, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := fmt.Sprintf(`{"session_id":%q,"token":"tok","lat":%v,"lng":%v}`, sessionID, tc.lat, tc.lng)
			var req CheckInRequest
			err := binding.JSON.BindBody([]byte(body), &req)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected binding failure for lat=%v lng=%v", tc.lat, tc.lng)
				}
				return
			}
			if err != nil {
				t.Fatalf("binding failed: %v", err)
			}
			if req.Lat != tc.lat || req.Lng != tc.lng {
				t.Fatalf("coordinates mangled: got (%v, %v)", req.Lat, req.Lng)
			}
		})
	}
}

func TestSetLocationRequestBindsZeroCoordinates(t *testing.T) {
	var req SetLocationRequest
	if err := binding.JSON.BindBody([]byte(`{"lat":0,"lng":0,"radius":150}`), &req); err != nil {
		t.Fatalf("binding failed: %v", err)
	}
	if req.Radius != 150 {
		t.Fatalf("radius = %v", req.Radius)
	}

	if err := binding.JSON.BindBody([]byte(`{"lat":95,"lng":0}`), &req); err == nil {
		t.Fatal("expected binding failure for lat=95")
	}
}
