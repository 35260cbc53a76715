package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dispatch/internal/api/middleware"
	"dispatch/internal/domain/entities"
	"dispatch/internal/geo"
	"dispatch/internal/services"
	"dispatch/internal/session"
	"dispatch/internal/view"
)

type RiderHandler struct {
	delivery      *services.DeliveryService
	notifications *services.NotificationService
	geo           *GeoHandler
	logger        *zap.Logger
}

func NewRiderHandler(
	delivery *services.DeliveryService,
	notifications *services.NotificationService,
	estimator *geo.Estimator,
	logger *zap.Logger,
) *RiderHandler {
	return &RiderHandler{
		delivery:      delivery,
		notifications: notifications,
		geo:           NewGeoHandler(estimator),
		logger:        logger,
	}
}

type RiderLoginRequest struct {
	PhoneNumber string `json:"phoneNumber" binding:"required"`
}

// Login handles POST /rider/login
func (h *RiderHandler) Login(c *gin.Context) {
	var req RiderLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rider, err := middleware.GetSession(c).Login(c.Request.Context(), req.PhoneNumber)
	if errors.Is(err, session.ErrUnknownPhone) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Number not found. Contact Admin."})
		return
	}
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rider)
}

// Logout handles POST /rider/logout
func (h *RiderHandler) Logout(c *gin.Context) {
	h.notifications.StopRing(middleware.GetDeviceID(c))
	if err := middleware.GetSession(c).Logout(c.Request.Context()); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me handles GET /rider/me. A device that is already signed in can skip
// the login screen.
func (h *RiderHandler) Me(c *gin.Context) {
	rider, _ := middleware.GetSession(c).CurrentRider()
	c.JSON(http.StatusOK, rider)
}

type RiderViewResponse struct {
	Kind     view.Kind         `json:"kind"`
	Order    *entities.Order   `json:"order,omitempty"`
	Location *DistanceResponse `json:"location,omitempty"`
	Ringing  bool              `json:"ringing"`
}

func (h *RiderHandler) viewResponse(c *gin.Context) (RiderViewResponse, error) {
	v, err := middleware.GetSession(c).View()
	if err != nil {
		return RiderViewResponse{}, err
	}

	resp := RiderViewResponse{
		Kind:    v.Kind,
		Order:   v.Order,
		Ringing: h.notifications.Ringing(middleware.GetDeviceID(c)),
	}
	if v.Order != nil {
		loc := h.geo.describe(v.Order.Coordinates)
		resp.Location = &loc
	}
	return resp, nil
}

// View handles GET /rider/view
func (h *RiderHandler) View(c *gin.Context) {
	resp, err := h.viewResponse(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// History handles GET /rider/history
func (h *RiderHandler) History(c *gin.Context) {
	history, err := middleware.GetSession(c).History()
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// Accept handles POST /rider/orders/:id/accept
func (h *RiderHandler) Accept(c *gin.Context) {
	h.notifications.StopRing(middleware.GetDeviceID(c))

	order, err := h.delivery.Accept(c.Request.Context(), middleware.GetRiderID(c), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// Decline handles POST /rider/orders/:id/decline. The order stays pending
// for every other rider; only this device stops being offered it.
func (h *RiderHandler) Decline(c *gin.Context) {
	orderID := c.Param("id")
	state := middleware.GetSession(c)

	found := false
	for _, o := range state.Snapshot().Orders {
		if o.ID == orderID {
			found = true
			break
		}
	}
	if !found {
		writeError(c, h.logger, services.ErrOrderNotFound)
		return
	}

	h.notifications.StopRing(middleware.GetDeviceID(c))
	state.Dismiss(orderID)

	resp, err := h.viewResponse(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Deliver handles POST /rider/orders/:id/deliver
func (h *RiderHandler) Deliver(c *gin.Context) {
	order, err := h.delivery.MarkDelivered(c.Request.Context(), middleware.GetRiderID(c), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
