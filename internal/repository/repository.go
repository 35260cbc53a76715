// Package repository is the typed layer over the key-value Store. It is the
// only code that knows the raw keys and how the riders and orders
// collections are laid out.
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"dispatch/internal/broadcast"
	"dispatch/internal/domain/entities"
)

const DefaultKeyPrefix = "irsa"

// Repository reads and writes riders, orders and the session pointer.
//
// Every write to a collection is one Store.Update of the whole JSON
// document, so concurrent writers, in this process or another one sharing
// the store, never drop each other's records. Decisions that depend on the
// stored order, like a status transition, are made inside that update.
type Repository struct {
	store    Store
	notifier broadcast.Notifier
	logger   *zap.Logger

	ridersKey   string
	ordersKey   string
	sessionBase string
	sessionKey  string
}

func New(store Store, notifier broadcast.Notifier, prefix string, logger *zap.Logger) *Repository {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Repository{
		store:       store,
		notifier:    notifier,
		logger:      logger.With(zap.String("component", "repository")),
		ridersKey:   prefix + "_riders",
		ordersKey:   prefix + "_orders",
		sessionBase: prefix + "_rider_session",
		sessionKey:  prefix + "_rider_session",
	}
}

// ForDevice returns a repository over the same store and collections whose
// session pointer belongs to deviceID alone.
func (r *Repository) ForDevice(deviceID string) *Repository {
	scoped := *r
	scoped.sessionKey = r.sessionBase + ":" + deviceID
	return &scoped
}

// SessionKey is the raw key holding this repository's session pointer.
func (r *Repository) SessionKey() string {
	return r.sessionKey
}

// Notifier is the change signal this repository raises after writes.
func (r *Repository) Notifier() broadcast.Notifier {
	return r.notifier
}

func (r *Repository) ListRiders(ctx context.Context) ([]entities.Rider, error) {
	riders := []entities.Rider{}
	if err := r.load(ctx, r.ridersKey, &riders); err != nil {
		return nil, err
	}
	return riders, nil
}

func (r *Repository) ListOrders(ctx context.Context) ([]entities.Order, error) {
	orders := []entities.Order{}
	if err := r.load(ctx, r.ordersKey, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// FindOrder returns the stored order with id, or false if there is none.
func (r *Repository) FindOrder(ctx context.Context, id string) (entities.Order, bool, error) {
	orders, err := r.ListOrders(ctx)
	if err != nil {
		return entities.Order{}, false, err
	}
	for _, o := range orders {
		if o.ID == id {
			return o, true, nil
		}
	}
	return entities.Order{}, false, nil
}

// SaveRider appends rider. Uniqueness of id and phone is the caller's job.
func (r *Repository) SaveRider(ctx context.Context, rider entities.Rider) error {
	err := r.update(ctx, r.ridersKey, func(raw string) (string, error) {
		riders := []entities.Rider{}
		if err := decode(r.ridersKey, raw, &riders); err != nil {
			return "", err
		}
		return encode(append(riders, rider))
	})
	if err != nil {
		return fmt.Errorf("save rider %s: %w", rider.ID, err)
	}
	r.changed(ctx)
	return nil
}

// CreateOrder appends a fully formed order; the caller assigns ids and the
// initial pending status.
func (r *Repository) CreateOrder(ctx context.Context, order entities.Order) error {
	_, err := r.updateOrders(ctx, func(orders *[]entities.Order) (bool, error) {
		*orders = append(*orders, order)
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("create order %s: %w", order.ID, err)
	}
	r.changed(ctx)
	return nil
}

// PatchOrder merges patch into the order with orderID. A missing order is
// silently ignored; callers that care must look the order up first.
func (r *Repository) PatchOrder(ctx context.Context, orderID string, patch entities.OrderPatch) error {
	found, err := r.updateOrders(ctx, func(orders *[]entities.Order) (bool, error) {
		for i := range *orders {
			if (*orders)[i].ID == orderID {
				patch.Apply(&(*orders)[i])
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		return fmt.Errorf("patch order %s: %w", orderID, err)
	}
	if found {
		r.changed(ctx)
	}
	return nil
}

// UpdateOrder asks decide for a patch against the order as it is stored
// right now and writes it in the same step, so the decision can never rest
// on a stale read. decide also sees the whole collection. An error from
// decide writes nothing and comes back wrapped; a missing order is
// ErrNotFound.
func (r *Repository) UpdateOrder(ctx context.Context, orderID string, decide func(current entities.Order, all []entities.Order) (entities.OrderPatch, error)) (entities.Order, error) {
	var updated entities.Order
	_, err := r.updateOrders(ctx, func(orders *[]entities.Order) (bool, error) {
		for i := range *orders {
			if (*orders)[i].ID != orderID {
				continue
			}
			patch, err := decide((*orders)[i], *orders)
			if err != nil {
				return false, err
			}
			patch.Apply(&(*orders)[i])
			updated = (*orders)[i]
			return true, nil
		}
		return false, ErrNotFound
	})
	if err != nil {
		return entities.Order{}, fmt.Errorf("update order %s: %w", orderID, err)
	}
	r.changed(ctx)
	return updated, nil
}

func (r *Repository) SetSession(ctx context.Context, riderID string) error {
	return r.store.Set(ctx, r.sessionKey, riderID)
}

// GetSession returns the persisted rider id, or false when nobody is
// signed in on this device.
func (r *Repository) GetSession(ctx context.Context) (string, bool, error) {
	id, ok, err := r.store.Get(ctx, r.sessionKey)
	if err != nil || !ok || id == "" {
		return "", false, err
	}
	return id, true, nil
}

func (r *Repository) ClearSession(ctx context.Context) error {
	return r.store.Delete(ctx, r.sessionKey)
}

func (r *Repository) load(ctx context.Context, key string, dst any) error {
	raw, _, err := r.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	return decode(key, raw, dst)
}

// update rewrites the document at key. A document that fails to decode is
// reported, never replaced.
func (r *Repository) update(ctx context.Context, key string, fn func(raw string) (string, error)) error {
	return r.store.Update(ctx, key, func(current string, _ bool) (string, error) {
		return fn(current)
	})
}

// updateOrders runs modify on the stored orders. When modify reports no
// change the document is left as it was.
func (r *Repository) updateOrders(ctx context.Context, modify func(orders *[]entities.Order) (bool, error)) (bool, error) {
	changed := false
	err := r.update(ctx, r.ordersKey, func(raw string) (string, error) {
		orders := []entities.Order{}
		if err := decode(r.ordersKey, raw, &orders); err != nil {
			return "", err
		}
		var err error
		changed, err = modify(&orders)
		if err != nil || !changed {
			return raw, err
		}
		return encode(orders)
	})
	return changed, err
}

func decode(key, raw string, dst any) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptRecord, key, err)
	}
	return nil
}

func encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// changed raises the change signal. The write is already durable, so a
// failed cross-process publish is logged rather than returned: other
// processes catch up on the next signal they do receive.
func (r *Repository) changed(ctx context.Context) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(ctx); err != nil {
		r.logger.Warn("change signal not delivered", zap.Error(err))
	}
}
