package entities

import (
	"errors"
	"fmt"
	"time"
)

// OrderStatus represents the lifecycle state of a delivery order.
//
// The lifecycle is short:
//
//	Pending → Accepted → Delivered
//
// Declined is kept as a recognized value so records written by older clients
// still decode, but no transition ever produces it and it is terminal.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusAccepted  OrderStatus = "accepted"
	OrderStatusDeclined  OrderStatus = "declined"
	OrderStatusDelivered OrderStatus = "delivered"
)

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusAccepted, OrderStatusDeclined, OrderStatusDelivered:
		return true
	}
	return false
}

// Terminal reports whether no event can move an order out of s.
func (s OrderStatus) Terminal() bool {
	return len(validTransitions[s]) == 0
}

// OrderEvent is something a rider does to an order.
type OrderEvent string

const (
	OrderEventAccept  OrderEvent = "accept"
	OrderEventDeliver OrderEvent = "deliver"
)

var (
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrRiderRequired     = errors.New("rider id is required")
	ErrNotAssigned       = errors.New("order has no assigned rider")
)

// validTransitions is the state machine: for each status, the events it
// accepts and where they lead. Statuses with no entry are terminal.
var validTransitions = map[OrderStatus]map[OrderEvent]OrderStatus{
	OrderStatusPending:   {OrderEventAccept: OrderStatusAccepted},
	OrderStatusAccepted:  {OrderEventDeliver: OrderStatusDelivered},
	OrderStatusDeclined:  {},
	OrderStatusDelivered: {},
}

// Order is a delivery request posted by the admin and fulfilled by a rider.
//
// Timestamps are Unix milliseconds so the stored layout matches what the
// browser client has always written. Optional fields are pointers: a nil
// AssignedRiderID means nobody has accepted the order yet.
type Order struct {
	ID              string      `json:"id"`
	ShortID         string      `json:"shortId"`
	CustomerName    string      `json:"customerName"`
	CustomerNumber  string      `json:"customerNumber"`
	Coordinates     string      `json:"coordinates"`
	DeliveryCharges float64     `json:"deliveryCharges"`
	ItemsValue      float64     `json:"itemsValue"`
	ItemsQuantity   int         `json:"itemsQuantity"`
	Status          OrderStatus `json:"status"`
	CreatedAt       int64       `json:"createdAt"`
	AssignedRiderID *string     `json:"assignedRiderId,omitempty"`
	AcceptedAt      *int64      `json:"acceptedAt,omitempty"`
	CompletedAt     *int64      `json:"completedAt,omitempty"`
}

// NewOrder creates a pending order with no rider assigned.
func NewOrder(id, shortID, customerName, customerNumber, coordinates string,
	deliveryCharges, itemsValue float64, itemsQuantity int, createdAt time.Time) Order {
	return Order{
		ID:              id,
		ShortID:         shortID,
		CustomerName:    customerName,
		CustomerNumber:  customerNumber,
		Coordinates:     coordinates,
		DeliveryCharges: deliveryCharges,
		ItemsValue:      itemsValue,
		ItemsQuantity:   itemsQuantity,
		Status:          OrderStatusPending,
		CreatedAt:       createdAt.UnixMilli(),
	}
}

// Total is what the customer pays: items plus delivery.
func (o Order) Total() float64 {
	return o.DeliveryCharges + o.ItemsValue
}

// AssignedTo reports whether riderID holds this order.
func (o Order) AssignedTo(riderID string) bool {
	return o.AssignedRiderID != nil && *o.AssignedRiderID == riderID
}

// RiderID returns the assigned rider, or "" when unassigned.
func (o Order) RiderID() string {
	if o.AssignedRiderID == nil {
		return ""
	}
	return *o.AssignedRiderID
}

// OrderPatch is a shallow partial update. A nil field leaves the stored
// value untouched; a set field overwrites it.
type OrderPatch struct {
	Status          *OrderStatus `json:"status,omitempty"`
	AssignedRiderID *string      `json:"assignedRiderId,omitempty"`
	AcceptedAt      *int64       `json:"acceptedAt,omitempty"`
	CompletedAt     *int64       `json:"completedAt,omitempty"`
}

// Apply merges p into o field by field.
func (p OrderPatch) Apply(o *Order) {
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.AssignedRiderID != nil {
		id := *p.AssignedRiderID
		o.AssignedRiderID = &id
	}
	if p.AcceptedAt != nil {
		at := *p.AcceptedAt
		o.AcceptedAt = &at
	}
	if p.CompletedAt != nil {
		at := *p.CompletedAt
		o.CompletedAt = &at
	}
}

// CanTransition reports whether ev is legal for an order in status from.
func CanTransition(from OrderStatus, ev OrderEvent) bool {
	_, ok := validTransitions[from][ev]
	return ok
}

// Transition computes the patch that applies ev to o. It never mutates o;
// callers persist the patch. Illegal moves return ErrInvalidTransition, so
// accepted→pending or delivered→accepted can never be produced here.
//
// Stamped times are clamped so CompletedAt >= AcceptedAt >= CreatedAt even
// when the caller's clock is behind the clock that created the order.
func Transition(o Order, ev OrderEvent, riderID string, at time.Time) (OrderPatch, error) {
	to, ok := validTransitions[o.Status][ev]
	if !ok {
		return OrderPatch{}, fmt.Errorf("%w: %s on %s order", ErrInvalidTransition, ev, o.Status)
	}

	now := at.UnixMilli()
	patch := OrderPatch{Status: &to}

	switch ev {
	case OrderEventAccept:
		if riderID == "" {
			return OrderPatch{}, ErrRiderRequired
		}
		acceptedAt := max(now, o.CreatedAt)
		patch.AssignedRiderID = &riderID
		patch.AcceptedAt = &acceptedAt
	case OrderEventDeliver:
		if o.AssignedRiderID == nil || *o.AssignedRiderID == "" {
			return OrderPatch{}, ErrNotAssigned
		}
		floor := o.CreatedAt
		if o.AcceptedAt != nil {
			floor = max(floor, *o.AcceptedAt)
		}
		completedAt := max(now, floor)
		patch.CompletedAt = &completedAt
	}

	return patch, nil
}
