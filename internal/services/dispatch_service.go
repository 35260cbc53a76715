package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"dispatch/internal/domain/entities"
	"dispatch/internal/repository"
	"dispatch/internal/view"
	"dispatch/pkg/utils"
)

// shortIDAttempts bounds how hard CreateOrder tries to avoid reusing a
// display code already on the board.
const shortIDAttempts = 16

// DispatchService is what the admin desk does: register riders and post
// orders for them to pick up.
type DispatchService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewDispatchService(repo *repository.Repository, logger *zap.Logger) *DispatchService {
	return &DispatchService{
		repo:   repo,
		logger: logger.With(zap.String("component", "dispatch")),
		now:    time.Now,
	}
}

type NewRiderInput struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
}

// AddRider registers a rider under the badge id the admin assigned. Both the
// id and the phone number must be unused, since the phone is how a rider
// signs in.
func (s *DispatchService) AddRider(ctx context.Context, in NewRiderInput) (entities.Rider, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)

	switch {
	case in.ID == "":
		return entities.Rider{}, fmt.Errorf("%w: id", ErrRequiredField)
	case in.Name == "":
		return entities.Rider{}, fmt.Errorf("%w: name", ErrRequiredField)
	case in.PhoneNumber == "":
		return entities.Rider{}, fmt.Errorf("%w: phoneNumber", ErrRequiredField)
	}

	riders, err := s.repo.ListRiders(ctx)
	if err != nil {
		return entities.Rider{}, err
	}
	for _, r := range riders {
		if r.ID == in.ID {
			return entities.Rider{}, ErrDuplicateRiderID
		}
		if r.PhoneNumber == in.PhoneNumber {
			return entities.Rider{}, ErrDuplicatePhone
		}
	}

	rider := entities.NewRider(in.ID, in.Name, in.PhoneNumber, s.now())
	if err := s.repo.SaveRider(ctx, rider); err != nil {
		return entities.Rider{}, err
	}

	s.logger.Info("rider added", zap.String("rider_id", rider.ID))
	return rider, nil
}

func (s *DispatchService) Riders(ctx context.Context) ([]entities.Rider, error) {
	return s.repo.ListRiders(ctx)
}

type NewOrderInput struct {
	CustomerName    string  `json:"customerName"`
	CustomerNumber  string  `json:"customerNumber"`
	Coordinates     string  `json:"coordinates"`
	DeliveryCharges float64 `json:"deliveryCharges"`
	ItemsValue      float64 `json:"itemsValue"`
	ItemsQuantity   int     `json:"itemsQuantity"`
}

// CreateOrder posts a pending order. Coordinates are stored as typed; a
// value that does not parse only makes the distance unavailable later.
func (s *DispatchService) CreateOrder(ctx context.Context, in NewOrderInput) (entities.Order, error) {
	if strings.TrimSpace(in.CustomerName) == "" {
		return entities.Order{}, fmt.Errorf("%w: customerName", ErrRequiredField)
	}
	if strings.TrimSpace(in.Coordinates) == "" {
		return entities.Order{}, fmt.Errorf("%w: coordinates", ErrRequiredField)
	}

	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return entities.Order{}, err
	}
	taken := make(map[string]bool, len(orders))
	for _, o := range orders {
		taken[o.ShortID] = true
	}

	order := entities.NewOrder(
		utils.GenerateID(),
		utils.UniqueShortID(taken, shortIDAttempts),
		in.CustomerName,
		in.CustomerNumber,
		in.Coordinates,
		in.DeliveryCharges,
		in.ItemsValue,
		in.ItemsQuantity,
		s.now(),
	)
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return entities.Order{}, err
	}

	s.logger.Info("order broadcast",
		zap.String("order_id", order.ID),
		zap.String("short_id", order.ShortID),
	)
	return order, nil
}

// History is every order, newest first, with its rider resolved.
func (s *DispatchService) History(ctx context.Context) ([]view.AdminEntry, error) {
	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	riders, err := s.repo.ListRiders(ctx)
	if err != nil {
		return nil, err
	}
	return view.AdminHistory(orders, riders), nil
}
