// Package entities defines the core domain models of the delivery desk:
// riders and the orders they carry. These structs live in the innermost
// layer and have no dependencies on storage, HTTP, or messaging.
//
// Go Learning Note: struct tags.
// The `json:"phoneNumber"` annotations pin the stored field names. Orders and
// riders are persisted as JSON documents that older browser clients also read,
// so the names here are part of the storage format and must not drift.
package entities

import "time"

// Rider is a delivery rider. The ID is assigned by the admin and doubles as
// the badge printed on the rider's card (e.g. "RIDER-01"); the phone number is
// the login credential.
type Rider struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	CreatedAt   int64  `json:"createdAt"`
}

func NewRider(id, name, phoneNumber string, createdAt time.Time) Rider {
	return Rider{
		ID:          id,
		Name:        name,
		PhoneNumber: phoneNumber,
		CreatedAt:   createdAt.UnixMilli(),
	}
}
