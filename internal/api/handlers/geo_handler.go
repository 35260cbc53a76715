package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dispatch/internal/geo"
)

type GeoHandler struct {
	estimator *geo.Estimator
}

func NewGeoHandler(estimator *geo.Estimator) *GeoHandler {
	return &GeoHandler{estimator: estimator}
}

type DistanceResponse struct {
	DistanceKm geo.Distance `json:"distance_km"`
	Distance   string       `json:"distance"`
	Available  bool         `json:"available"`
	MapsURL    string       `json:"maps_url"`
}

func (h *GeoHandler) describe(coordinates string) DistanceResponse {
	d := h.estimator.Estimate(coordinates)
	return DistanceResponse{
		DistanceKm: d,
		Distance:   d.String(),
		Available:  d.Available,
		MapsURL:    geo.MapsURL(coordinates),
	}
}

// Distance handles GET /geo/distance?coordinates=lat,lng
//
// Malformed coordinates are not an error: the response says the distance
// is unavailable.
func (h *GeoHandler) Distance(c *gin.Context) {
	coordinates, ok := c.GetQuery("coordinates")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coordinates query parameter is required"})
		return
	}
	c.JSON(http.StatusOK, h.describe(coordinates))
}

// Coordinates handles GET /geo/coordinates?lat=&lng= and turns a device
// position into the text an order form expects.
func (h *GeoHandler) Coordinates(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng must be numbers"})
		return
	}

	text := geo.FormatCoordinates(lat, lng)
	c.JSON(http.StatusOK, gin.H{"coordinates": text, "maps_url": geo.MapsURL(text)})
}
