// Package middleware provides HTTP middleware for the Gin router.
//
// Go Learning Note — Middleware Pattern (Gin):
// In Gin, middleware is any function with the signature `gin.HandlerFunc`.
// Each one runs, optionally calls c.Next() to pass control on, and can call
// c.Abort() to stop the chain. Route groups apply middleware with .Use().
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dispatch/internal/auth"
	"dispatch/internal/session"
)

// Context keys for request-scoped values set here and read by handlers.
const (
	DeviceIDKey = "device_id"
	SessionKey  = "session"
	RiderIDKey  = "rider_id"

	// DeviceHeader identifies the phone or browser a rider request comes
	// from. Each device keeps its own sign-in.
	DeviceHeader = "X-Device-ID"
)

// RequireAdmin accepts only requests carrying a valid admin token as
// "Authorization: Bearer <token>".
func RequireAdmin(gate *auth.AdminGate) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		// strings.SplitN splits into at most 2 parts, handling tokens with spaces.
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		if err := gate.Verify(parts[1]); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Next()
	}
}

// RequireDevice resolves the caller's device to its session state, starting
// one on first sight, and hands it back to the manager once the request is
// done.
func RequireDevice(manager *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		deviceID := strings.TrimSpace(c.GetHeader(DeviceHeader))

		state, err := manager.Get(c.Request.Context(), deviceID)
		if errors.Is(err, session.ErrDeviceRequired) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing " + DeviceHeader + " header"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session unavailable"})
			return
		}

		defer manager.Release(deviceID)

		c.Set(DeviceIDKey, deviceID)
		c.Set(SessionKey, state)
		c.Next()
	}
}

// RequireRider ensures a rider is signed in on this device. Must be used
// after RequireDevice.
func RequireRider() gin.HandlerFunc {
	return func(c *gin.Context) {
		rider, ok := GetSession(c).CurrentRider()
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "rider sign-in required"})
			return
		}
		c.Set(RiderIDKey, rider.ID)
		c.Next()
	}
}

// GetSession returns the state set by RequireDevice.
//
// Go Learning Note — Type Assertion:
// c.MustGet panics when the key is missing, which only happens if a route
// forgot RequireDevice. That is a wiring bug, so failing loudly is right.
func GetSession(c *gin.Context) *session.State {
	return c.MustGet(SessionKey).(*session.State)
}

func GetDeviceID(c *gin.Context) string {
	return c.GetString(DeviceIDKey)
}

func GetRiderID(c *gin.Context) string {
	return c.GetString(RiderIDKey)
}
