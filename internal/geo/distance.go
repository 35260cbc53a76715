package geo

import (
	"encoding/json"
	"fmt"
	"math"
)

const EarthRadiusKm = 6371.0

// Haversine returns the great-circle distance between a and b in kilometers.
func Haversine(a, b Coordinates) float64 {
	lat1Rad := a.Lat * math.Pi / 180
	lat2Rad := b.Lat * math.Pi / 180
	deltaLat := (b.Lat - a.Lat) * math.Pi / 180
	deltaLon := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// Distance is the result of an estimate. When Available is false the
// destination text could not be parsed and Km is meaningless.
type Distance struct {
	Km        float64
	Available bool
}

// Unavailable is the estimate for malformed destinations.
var Unavailable = Distance{}

// String renders one decimal place, or "N/A".
func (d Distance) String() string {
	if !d.Available {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", d.Km)
}

// MarshalJSON encodes the distance as a number, or null when unavailable.
func (d Distance) MarshalJSON() ([]byte, error) {
	if !d.Available {
		return []byte("null"), nil
	}
	return json.Marshal(math.Round(d.Km*10) / 10)
}

// Estimator measures distances from a fixed origin, normally the kitchen.
type Estimator struct {
	Origin Coordinates
}

func NewEstimator(origin Coordinates) *Estimator {
	return &Estimator{Origin: origin}
}

// Estimate parses destination and returns its distance from the origin.
// It is pure: the same input always yields the same Distance.
func (e *Estimator) Estimate(destination string) Distance {
	to, err := ParseCoordinates(destination)
	if err != nil {
		return Unavailable
	}
	return Distance{Km: Haversine(e.Origin, to), Available: true}
}
