package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evently/ticketing/internal/service"
)

type TicketHandler struct {
	ticketService service.TicketService
}

func NewTicketHandler(ticketService service.TicketService) *TicketHandler {
	return &TicketHandler{ticketService: ticketService}
}

func (h *TicketHandler) GetBuyerTickets(c *gin.Context) {
	buyerID, err := resolveBuyerID(c, c.Query("buyer_user_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	if buyerID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "buyer_user_id is required"})
		return
	}

	tickets, err := h.ticketService.GetBuyerTickets(c.Request.Context(), buyerID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: tickets})
}

func (h *TicketHandler) VerifyTicket(c *gin.Context) {
	var req service.VerifyTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: err.Error()})
		return
	}

	ticket, err := h.ticketService.VerifyTicket(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "ticket checked in", Data: ticket})
}
