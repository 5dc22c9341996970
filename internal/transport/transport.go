package transport

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evently/ticketing/internal/entity"
	"github.com/evently/ticketing/internal/transport/middleware"
)

// SuccessResponse represents a successful reply
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse represents a failed reply
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func InitRoutes(
	eventHandler *EventHandler,
	paymentHandler *PaymentHandler,
	ticketHandler *TicketHandler,
	userHandler *UserHandler,
	mediaDir string,
) *gin.Engine {
	router := gin.New()

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-User-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.Identity())

	// QR artifacts are served straight from the media store
	if mediaDir != "" {
		router.Static("/media", mediaDir)
	}

	api := router.Group("/api/v1")
	{
		events := api.Group("/events")
		{
			events.POST("", eventHandler.CreateEvent)
			events.GET("/:id", eventHandler.GetEvent)
			events.PUT("/:id", eventHandler.UpdateEvent)
			events.GET("/:id/attendees", eventHandler.GetAttendees)
		}

		checkout := api.Group("/checkout")
		{
			checkout.POST("/session", paymentHandler.CreateCheckoutSession)
		}

		payment := api.Group("/payment")
		{
			payment.POST("/webhook", paymentHandler.Webhook)
		}

		tickets := api.Group("/tickets")
		{
			tickets.GET("", ticketHandler.GetBuyerTickets)
			tickets.POST("/verify", ticketHandler.VerifyTicket)
		}

		users := api.Group("/users")
		{
			users.POST("/register", userHandler.RegisterUser)
			users.GET("/:id", userHandler.GetUser)
		}
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

// resolveBuyerID reconciles the authenticated identity with a buyer id the
// client put in the request. The authenticated id always wins; a conflicting
// claimed id is rejected, never silently honored.
func resolveBuyerID(c *gin.Context, claimed string) (string, error) {
	authID := middleware.UserID(c)
	if authID == "" {
		return claimed, nil
	}
	if claimed != "" && claimed != authID {
		return "", fmt.Errorf("%w: buyer_user_id does not match authenticated user", entity.ErrForbidden)
	}
	return authID, nil
}

// handleError maps domain errors onto HTTP statuses. Anything outside the
// domain taxonomy is treated as an internal failure and not leaked verbatim.
func handleError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, entity.ErrEventNotFound),
		errors.Is(err, entity.ErrTicketNotFound),
		errors.Is(err, entity.ErrTicketTypeNotFound),
		errors.Is(err, entity.ErrUserNotFound),
		errors.Is(err, entity.ErrBuyerNotFound),
		errors.Is(err, entity.ErrAttendeeNotFound),
		errors.Is(err, entity.ErrSessionNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, entity.ErrTicketTypeSoldOut),
		errors.Is(err, entity.ErrPerBuyerLimitExceeded),
		errors.Is(err, entity.ErrTicketAlreadyRedeemed),
		errors.Is(err, entity.ErrTicketCancelled),
		errors.Is(err, entity.ErrTicketTypeHasAttendees),
		errors.Is(err, entity.ErrDuplicateTicketTypeLabel),
		errors.Is(err, entity.ErrSessionProcessed):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, entity.ErrUnauthorized):
		status = http.StatusUnauthorized
		message = err.Error()
	case errors.Is(err, entity.ErrForbidden):
		status = http.StatusForbidden
		message = err.Error()
	case entity.IsDomainError(err):
		status = http.StatusBadRequest
		message = err.Error()
	}

	c.JSON(status, ErrorResponse{Success: false, Error: message})
}
