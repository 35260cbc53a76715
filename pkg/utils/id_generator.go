// Package utils holds small helpers shared by the services and the API.
package utils

import (
	"math/rand"
	"strconv"

	"github.com/google/uuid"
)

// GenerateID creates a UUID v4 string for order identifiers. Orders are
// created from any admin session without coordination, so a random id is the
// only scheme that stays unique without a central counter.
func GenerateID() string {
	return uuid.New().String()
}

// GenerateShortID returns a random 4-digit display code in [1000, 9999].
// It is for humans reading "Order #4821" over the phone; it is not unique.
func GenerateShortID() string {
	return strconv.Itoa(1000 + rand.Intn(9000))
}

// UniqueShortID draws short ids until one is not in taken, giving up after
// attempts draws and returning the last one. With 9000 codes a collision is
// a cosmetic defect, never a correctness problem.
func UniqueShortID(taken map[string]bool, attempts int) string {
	id := GenerateShortID()
	for i := 1; i < attempts && taken[id]; i++ {
		id = GenerateShortID()
	}
	return id
}
