// internal/handlers/order/order_handler.go
package order

import (
	"net/http"
	"strconv"

	"cargolink-service/internal/middleware"
	"cargolink-service/internal/pkg/response"
	service "cargolink-service/internal/service/revenue"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	revenueService *service.Service
}

func NewOrderHandler(revenueService *service.Service) *OrderHandler {
	return &OrderHandler{
		revenueService: revenueService,
	}
}

// CompleteDelivery marks an order delivered and distributes its revenue
func (h *OrderHandler) CompleteDelivery(c *gin.Context) {
	driverID := middleware.MustGetIdentityID(c)

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid order ID", err)
		return
	}

	result, err := h.revenueService.CompleteDelivery(c.Request.Context(), driverID, orderID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "delivery completed", result)
}
