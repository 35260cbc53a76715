package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dispatch/internal/auth"
	"dispatch/internal/services"
)

type AdminHandler struct {
	gate     *auth.AdminGate
	dispatch *services.DispatchService
	logger   *zap.Logger
}

func NewAdminHandler(gate *auth.AdminGate, dispatch *services.DispatchService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		gate:     gate,
		dispatch: dispatch,
		logger:   logger,
	}
}

type AdminLoginRequest struct {
	Passphrase string `json:"passphrase"`
}

// Login handles POST /admin/login
func (h *AdminHandler) Login(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.gate.Login(req.Passphrase)
	if errors.Is(err, auth.ErrInvalidPassphrase) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid Access Key"})
		return
	}
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// ListRiders handles GET /admin/riders
func (h *AdminHandler) ListRiders(c *gin.Context) {
	riders, err := h.dispatch.Riders(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, riders)
}

// AddRider handles POST /admin/riders
func (h *AdminHandler) AddRider(c *gin.Context) {
	var req services.NewRiderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rider, err := h.dispatch.AddRider(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, rider)
}

// ListOrders handles GET /admin/orders
func (h *AdminHandler) ListOrders(c *gin.Context) {
	history, err := h.dispatch.History(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// CreateOrder handles POST /admin/orders
func (h *AdminHandler) CreateOrder(c *gin.Context) {
	var req services.NewOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.dispatch.CreateOrder(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}
