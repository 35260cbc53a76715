// Package view derives what a rider or the admin should be looking at from
// the full order set. Everything here is a pure function of its arguments.
package view

import (
	"dispatch/internal/domain/entities"
)

// Kind is which of the three rider screens applies.
type Kind string

const (
	KindActive Kind = "active"
	KindOffer  Kind = "offer"
	KindIdle   Kind = "idle"
)

// RiderView is exactly one of: an active delivery, an incoming offer, or
// nothing to do. Order is nil when Kind is KindIdle.
type RiderView struct {
	Kind  Kind            `json:"kind"`
	Order *entities.Order `json:"order,omitempty"`
}

// ForRider picks the rider's screen. An accepted order assigned to riderID
// always wins; otherwise the first pending order the rider has not
// dismissed is offered. Pending orders are not ranked, first match is it.
func ForRider(orders []entities.Order, riderID string, dismissed map[string]bool) RiderView {
	for i := range orders {
		if orders[i].Status == entities.OrderStatusAccepted && orders[i].AssignedTo(riderID) {
			o := orders[i]
			return RiderView{Kind: KindActive, Order: &o}
		}
	}
	for i := range orders {
		if orders[i].Status == entities.OrderStatusPending && !dismissed[orders[i].ID] {
			o := orders[i]
			return RiderView{Kind: KindOffer, Order: &o}
		}
	}
	return RiderView{Kind: KindIdle}
}

// Labels shown next to an order in a rider's history.
const (
	LabelInProgressYou    = "In Progress (You)"
	LabelAcceptedByOther  = "Accepted by other"
	LabelDeliveredByYou   = "Delivered by You"
	LabelDeliveredByOther = "Delivered by other"
)

type HistoryEntry struct {
	Order entities.Order `json:"order"`
	Label string         `json:"label"`
	Mine  bool           `json:"mine"`
}

// RiderHistory lists every order that has left pending, newest first, each
// labelled from the viewing rider's point of view.
func RiderHistory(orders []entities.Order, riderID string) []HistoryEntry {
	entries := []HistoryEntry{}
	for i := len(orders) - 1; i >= 0; i-- {
		o := orders[i]
		if o.Status == entities.OrderStatusPending {
			continue
		}
		mine := o.AssignedTo(riderID)
		entries = append(entries, HistoryEntry{Order: o, Label: label(o.Status, mine), Mine: mine})
	}
	return entries
}

func label(status entities.OrderStatus, mine bool) string {
	switch {
	case status == entities.OrderStatusAccepted && mine:
		return LabelInProgressYou
	case status == entities.OrderStatusAccepted:
		return LabelAcceptedByOther
	case status == entities.OrderStatusDelivered && mine:
		return LabelDeliveredByYou
	case status == entities.OrderStatusDelivered:
		return LabelDeliveredByOther
	}
	return string(status)
}

// AdminEntry is one row of the dispatch desk's order history.
type AdminEntry struct {
	Order      entities.Order `json:"order"`
	RiderName  string         `json:"riderName,omitempty"`
	RiderPhone string         `json:"riderPhone,omitempty"`
	Total      float64        `json:"total"`
}

// AdminHistory lists all orders newest first with the assigned rider
// resolved. An assigned id that matches no rider leaves the name empty.
func AdminHistory(orders []entities.Order, riders []entities.Rider) []AdminEntry {
	byID := make(map[string]entities.Rider, len(riders))
	for _, r := range riders {
		if _, seen := byID[r.ID]; !seen {
			byID[r.ID] = r
		}
	}

	entries := make([]AdminEntry, 0, len(orders))
	for i := len(orders) - 1; i >= 0; i-- {
		o := orders[i]
		entry := AdminEntry{Order: o, Total: o.Total()}
		if r, ok := byID[o.RiderID()]; ok && o.AssignedRiderID != nil {
			entry.RiderName = r.Name
			entry.RiderPhone = r.PhoneNumber
		}
		entries = append(entries, entry)
	}
	return entries
}
