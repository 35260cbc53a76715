package geo

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

var kitchen = Coordinates{Lat: 29.3968656, Lng: 71.7067116}

func TestHaversine(t *testing.T) {
	tests := []struct {
		name      string
		from      Coordinates
		to        Coordinates
		expected  float64
		tolerance float64
	}{
		{
			name:      "Same location",
			from:      kitchen,
			to:        kitchen,
			expected:  0,
			tolerance: 0.001,
		},
		{
			name:      "Bahawalpur to Multan",
			from:      kitchen,
			to:        Coordinates{Lat: 30.1575, Lng: 71.5249},
			expected:  86, // approximately 86 km
			tolerance: 3,
		},
		{
			name:      "NYC to LA",
			from:      Coordinates{Lat: 40.7128, Lng: -74.0060},
			to:        Coordinates{Lat: 34.0522, Lng: -118.2437},
			expected:  3940, // approximately 3940 km
			tolerance: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Haversine(tt.from, tt.to)
			if math.Abs(result-tt.expected) > tt.tolerance {
				t.Errorf("Haversine() = %v, expected %v (+/- %v)", result, tt.expected, tt.tolerance)
			}
		})
	}
}

func TestEstimator_SamePointIsZero(t *testing.T) {
	e := NewEstimator(kitchen)

	d := e.Estimate("29.3968656, 71.7067116")
	if !d.Available {
		t.Fatal("Expected distance to be available")
	}
	if d.Km != 0 {
		t.Errorf("Expected 0 km, got %v", d.Km)
	}
	if d.String() != "0.0" {
		t.Errorf("Expected \"0.0\", got %q", d.String())
	}
}

func TestEstimator_Malformed(t *testing.T) {
	e := NewEstimator(kitchen)

	for _, input := range []string{"abc", "", "29.39", "29.39,71.70,5", "lat,lng", "NaN,71.7", "29.39,Inf"} {
		d := e.Estimate(input)
		if d.Available {
			t.Errorf("Estimate(%q) expected unavailable, got %v km", input, d.Km)
		}
		if d.String() != "N/A" {
			t.Errorf("Estimate(%q).String() = %q, expected N/A", input, d.String())
		}
	}
}

func TestEstimator_WhitespaceVariants(t *testing.T) {
	e := NewEstimator(kitchen)

	base := e.Estimate("29.40,71.70")
	for _, variant := range []string{"29.40, 71.70", " 29.40 ,71.70 ", "\t29.40 ,\n71.70"} {
		d := e.Estimate(variant)
		if !d.Available || d.Km != base.Km {
			t.Errorf("Estimate(%q) = %+v, expected %+v", variant, d, base)
		}
	}
}

func TestDistance_MarshalJSON(t *testing.T) {
	b, _ := json.Marshal(Unavailable)
	if string(b) != "null" {
		t.Errorf("Expected null, got %s", b)
	}

	b, _ = json.Marshal(Distance{Km: 3.14159, Available: true})
	if string(b) != "3.1" {
		t.Errorf("Expected 3.1, got %s", b)
	}
}

func TestParseCoordinates(t *testing.T) {
	c, err := ParseCoordinates(" 31.5204 , 74.3587 ")
	if err != nil {
		t.Fatalf("ParseCoordinates failed: %v", err)
	}
	if c.Lat != 31.5204 || c.Lng != 74.3587 {
		t.Errorf("Unexpected coordinates %+v", c)
	}
}

func TestFormatCoordinates(t *testing.T) {
	got := FormatCoordinates(29.3968656, 71.7067116)
	if got != "29.396866, 71.706712" {
		t.Errorf("FormatCoordinates() = %q", got)
	}
	if _, err := ParseCoordinates(got); err != nil {
		t.Errorf("Formatted coordinates should parse back: %v", err)
	}
}

func TestMapsURL(t *testing.T) {
	got := MapsURL(" 29.39, 71.70 ")
	if !strings.HasPrefix(got, "https://www.google.com/maps/search/?api=1&query=") {
		t.Fatalf("Unexpected maps url %q", got)
	}
	if !strings.HasSuffix(got, "29.39%2C71.70") {
		t.Errorf("Expected whitespace stripped and comma escaped, got %q", got)
	}
}
