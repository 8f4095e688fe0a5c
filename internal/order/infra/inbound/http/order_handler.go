package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davicafu/deliverylab/internal/order/application"
	orderDomain "github.com/davicafu/deliverylab/internal/order/domain"
	"github.com/davicafu/deliverylab/pkg/utils"
	sharedQuery "github.com/davicafu/deliverylab/shared/platform/query"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// OrderService es el caso de uso que exponen los endpoints.
type OrderService interface {
	CreateOrder(ctx context.Context, in application.CreateOrderInput) (*orderDomain.Order, error)
	GetOrder(ctx context.Context, id string) (*orderDomain.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, raw string) (*orderDomain.Order, orderDomain.OrderStatus, error)
	ArchiveCompleted(ctx context.Context, restaurantID string) (int64, error)
	ListCustomerOrders(ctx context.Context, customerID string, pagination sharedQuery.Pagination) ([]*orderDomain.Order, error)
	ListRestaurantOrders(ctx context.Context, restaurantID string, status string, pagination sharedQuery.Pagination) ([]application.RestaurantOrder, error)
}

// errorTable traduce los errores de dominio a códigos HTTP.
var errorTable = []utils.ErrorStatus{
	{Err: orderDomain.ErrInvalidStatus, Status: http.StatusBadRequest},
	{Err: orderDomain.ErrInvalidOrder, Status: http.StatusBadRequest},
	{Err: orderDomain.ErrOrderNotFound, Status: http.StatusNotFound},
	{Err: orderDomain.ErrCustomerNotFound, Status: http.StatusNotFound},
	{Err: orderDomain.ErrRestaurantNotFound, Status: http.StatusNotFound},
	{Err: orderDomain.ErrDishNotFound, Status: http.StatusNotFound},
	{Err: orderDomain.ErrInvalidTransition, Status: http.StatusConflict},
	{Err: orderDomain.ErrStatusConflict, Status: http.StatusConflict},
}

// OrderHandler encapsula los endpoints HTTP del ciclo de vida del pedido.
type OrderHandler struct {
	service OrderService
	log     *zap.Logger
}

func NewOrderHandler(service OrderService, log *zap.Logger) *OrderHandler {
	return &OrderHandler{service: service, log: log}
}

// ---------------- Requests ----------------

type itemRequest struct {
	DishID   string `json:"dish_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

type addressRequest struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	ZipCode string `json:"zip_code"`
}

type createOrderRequest struct {
	CustomerID      string          `json:"customer_id" binding:"required"`
	RestaurantID    string          `json:"restaurant_id" binding:"required"`
	Items           []itemRequest   `json:"items" binding:"required,min=1,dive"`
	DeliveryAddress *addressRequest `json:"delivery_address"`
	PaymentMethod   string          `json:"payment_method" binding:"omitempty,oneof=card cash"`
	Notes           string          `json:"order_notes"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required,order_status"`
}

type clearCompletedRequest struct {
	RestaurantID string `json:"restaurant_id" binding:"required"`
}

// ---------------- Handlers ----------------

// CreateOrder endpoint POST /orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	in := application.CreateOrderInput{
		CustomerID:    req.CustomerID,
		RestaurantID:  req.RestaurantID,
		PaymentMethod: orderDomain.PaymentMethod(req.PaymentMethod),
		Notes:         req.Notes,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, application.ItemInput{DishID: it.DishID, Quantity: it.Quantity})
	}
	if a := req.DeliveryAddress; a != nil {
		in.DeliveryAddress = &orderDomain.Address{Street: a.Street, City: a.City, State: a.State, Country: a.Country, ZipCode: a.ZipCode}
	}

	order, err := h.service.CreateOrder(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SendMessage(c, http.StatusCreated, "Order created successfully", "order", order)
}

// GetOrder endpoint GET /orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.service.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// UpdateOrderStatus endpoint PUT /orders/:id/status
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	order, _, err := h.service.UpdateOrderStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SendMessage(c, http.StatusOK, "Order status updated successfully", "order", order)
}

// ClearCompleted endpoint POST /orders/clear-completed
func (h *OrderHandler) ClearCompleted(c *gin.Context) {
	var req clearCompletedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	n, err := h.service.ArchiveCompleted(c.Request.Context(), req.RestaurantID)
	if err != nil {
		h.fail(c, err)
		return
	}
	msg := "No completed orders to archive"
	if n > 0 {
		msg = fmt.Sprintf("Successfully archived %d completed orders", n)
	}
	utils.SendMessage(c, http.StatusOK, msg, "count", n)
}

// ListCustomerOrders endpoint GET /customers/:id/orders
func (h *OrderHandler) ListCustomerOrders(c *gin.Context) {
	orders, err := h.service.ListCustomerOrders(c.Request.Context(), c.Param("id"), pagination(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// ListRestaurantOrders endpoint GET /restaurants/:id/orders?status=
func (h *OrderHandler) ListRestaurantOrders(c *gin.Context) {
	orders, err := h.service.ListRestaurantOrders(c.Request.Context(), c.Param("id"), c.Query("status"), pagination(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) fail(c *gin.Context, err error) {
	h.log.Debug("Request failed",
		zap.String("path", c.FullPath()),
		zap.Error(err))
	utils.SendMappedError(c, err, errorTable)
}

// pagination lee limit y offset; los valores no válidos se ignoran.
func pagination(c *gin.Context) sharedQuery.OffsetPagination {
	p := sharedQuery.OffsetPagination{Limit: defaultListLimit}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		p.Limit = min(v, maxListLimit)
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v >= 0 {
		p.Offset = v
	}
	return p
}
