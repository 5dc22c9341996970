package transport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evently/ticketing/internal/entity"
	"github.com/evently/ticketing/internal/service"
)

type PaymentHandler struct {
	paymentService service.PaymentService
}

func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// WebhookRequest is the provider's callback shape. Only the session id is
// consumed; everything else is re-fetched from the provider.
type WebhookRequest struct {
	EventType string `json:"event_type"`
	SessionID string `json:"session_id" binding:"required"`
}

func (h *PaymentHandler) CreateCheckoutSession(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: err.Error()})
		return
	}

	buyerID, err := resolveBuyerID(c, req.BuyerUserID)
	if err != nil {
		handleError(c, err)
		return
	}
	if buyerID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "buyer_user_id is required"})
		return
	}
	req.BuyerUserID = buyerID

	resp, err := h.paymentService.CreateCheckoutSession(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{Success: true, Data: resp})
}

// Webhook handles payment confirmation callbacks. Duplicate deliveries and
// domain-level fulfillment failures return 200: the outcome is recorded and
// retrying the delivery cannot change it. Infrastructure failures return 500
// so the provider redelivers; the claim was released for those.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var req WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: err.Error()})
		return
	}

	result, err := h.paymentService.HandlePaymentConfirmed(c.Request.Context(), req.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, entity.ErrSessionProcessed):
			c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "already processed"})
		case errors.Is(err, entity.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Success: false, Error: err.Error()})
		case entity.IsDomainError(err) || errors.Is(err, entity.ErrInvalidIntent):
			c.JSON(http.StatusOK, SuccessResponse{Success: false, Message: "fulfillment failed, session marked for review"})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{Success: false, Error: "temporary failure, retry delivery"})
		}
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: result})
}
