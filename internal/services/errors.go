package services

import "errors"

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrNotAuthorized        = errors.New("not authorized to perform this action")
	ErrActiveDeliveryExists = errors.New("rider already has an active delivery")
	ErrRequiredField        = errors.New("required field missing")
	ErrDuplicateRiderID     = errors.New("rider id already registered")
	ErrDuplicatePhone       = errors.New("phone number already registered")
)
