// Package geo estimates delivery distances from the kitchen and builds the
// small location helpers riders and the admin need: map links and the
// "lat, lng" text the order form expects.
//
// Coordinates arrive as free text typed by the admin ("29.39, 71.70"), so
// everything here starts by parsing that text and degrades to "unavailable"
// instead of failing when it is malformed.
package geo

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

var ErrMalformedCoordinates = errors.New("coordinates must be \"lat,lng\"")

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ParseCoordinates reads "lat,lng". Whitespace around either field is
// ignored; anything other than exactly two finite numbers is rejected.
func ParseCoordinates(text string) (Coordinates, error) {
	parts := strings.Split(text, ",")
	if len(parts) != 2 {
		return Coordinates{}, ErrMalformedCoordinates
	}

	var values [2]float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Coordinates{}, ErrMalformedCoordinates
		}
		values[i] = v
	}

	return Coordinates{Lat: values[0], Lng: values[1]}, nil
}

// FormatCoordinates renders a device position the way the order form
// expects it, with six decimals (about 10 cm).
func FormatCoordinates(lat, lng float64) string {
	return fmt.Sprintf("%.6f, %.6f", lat, lng)
}

// MapsURL returns a Google Maps search link for free-text coordinates. All
// whitespace is stripped first so "29.39, 71.70" and "29.39,71.70" link to
// the same place.
func MapsURL(text string) string {
	clean := strings.Join(strings.Fields(text), "")
	return "https://www.google.com/maps/search/?api=1&query=" + url.QueryEscape(clean)
}
