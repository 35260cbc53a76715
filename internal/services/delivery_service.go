package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"dispatch/internal/domain/entities"
	"dispatch/internal/repository"
)

// DeliveryService applies rider actions to stored orders. Every status
// change goes through entities.Transition; nothing here patches status
// fields by hand.
//
// Checks and the transition run against the order as stored at the moment
// of the write. Two riders accepting the same order at once cannot both
// win: the second sees an accepted order and is refused.
type DeliveryService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewDeliveryService(repo *repository.Repository, logger *zap.Logger) *DeliveryService {
	return &DeliveryService{
		repo:   repo,
		logger: logger.With(zap.String("component", "delivery")),
		now:    time.Now,
	}
}

// Accept assigns a pending order to riderID.
func (s *DeliveryService) Accept(ctx context.Context, riderID, orderID string) (entities.Order, error) {
	return s.apply(ctx, orderID, entities.OrderEventAccept, riderID, func(order entities.Order, all []entities.Order) error {
		for _, o := range all {
			if o.ID != order.ID && o.Status == entities.OrderStatusAccepted && o.AssignedTo(riderID) {
				return ErrActiveDeliveryExists
			}
		}
		return nil
	})
}

// MarkDelivered completes an order the rider is carrying.
func (s *DeliveryService) MarkDelivered(ctx context.Context, riderID, orderID string) (entities.Order, error) {
	return s.apply(ctx, orderID, entities.OrderEventDeliver, riderID, func(order entities.Order, _ []entities.Order) error {
		if !entities.CanTransition(order.Status, entities.OrderEventDeliver) {
			return ErrInvalidTransition
		}
		if !order.AssignedTo(riderID) {
			return ErrNotAuthorized
		}
		return nil
	})
}

func (s *DeliveryService) apply(ctx context.Context, orderID string, ev entities.OrderEvent, riderID string, check func(order entities.Order, all []entities.Order) error) (entities.Order, error) {
	order, err := s.repo.UpdateOrder(ctx, orderID, func(current entities.Order, all []entities.Order) (entities.OrderPatch, error) {
		if err := check(current, all); err != nil {
			return entities.OrderPatch{}, err
		}
		return entities.Transition(current, ev, riderID, s.now())
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return entities.Order{}, ErrOrderNotFound
	case errors.Is(err, entities.ErrInvalidTransition):
		return entities.Order{}, ErrInvalidTransition
	case err != nil:
		return entities.Order{}, err
	}

	s.logger.Info("order updated",
		zap.String("order_id", order.ID),
		zap.String("event", string(ev)),
		zap.String("rider_id", riderID),
		zap.String("status", string(order.Status)),
	)
	return order, nil
}
