package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"scheduling-service/internal/service"
	"scheduling-service/internal/store"
	"scheduling-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	gateway *service.SchedulingGateway
}

// NewHandler creates a new HTTP handler
func NewHandler(gateway *service.SchedulingGateway) *Handler {
	return &Handler{gateway: gateway}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/bookings", h.createBooking)
		v1.GET("/bookings", h.listBookings)
		v1.GET("/bookings/:id", h.getBooking)
		v1.POST("/bookings/:id/confirm", h.confirmBooking)
		v1.POST("/bookings/:id/complete", h.completeBooking)
		v1.POST("/bookings/:id/cancel", h.cancelBooking)

		v1.POST("/payments", h.submitPayment)
		v1.POST("/payments/:id/verify", h.verifyPayment)

		v1.POST("/availability", h.createAvailability)
		v1.POST("/availability/recurring", h.createRecurringAvailability)
		v1.GET("/availability", h.listAvailability)
		v1.GET("/availability/conflicts", h.findConflictingAvailability)
		v1.DELETE("/availability/:id", h.deleteAvailability)
		v1.POST("/availability/bulk-delete", h.bulkDeleteAvailability)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) createBooking(c *gin.Context) {
	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	booking, err := h.gateway.CreateBooking(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

func (h *Handler) getBooking(c *gin.Context) {
	id, providerID, ok := h.idAndProvider(c)
	if !ok {
		return
	}

	booking, payments, err := h.gateway.GetBooking(c.Request.Context(), id, providerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking, "payments": payments})
}

func (h *Handler) listBookings(c *gin.Context) {
	providerID, ok := providerFromHeader(c)
	if !ok {
		return
	}

	filter := store.BookingFilter{Status: c.Query("status")}
	var err error
	if filter.From, filter.To, err = dateRange(c); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date range", "details": err.Error()})
		return
	}

	bookings, err := h.gateway.ListBookings(c.Request.Context(), providerID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

func (h *Handler) confirmBooking(c *gin.Context) {
	id, providerID, ok := h.idAndProvider(c)
	if !ok {
		return
	}

	booking, err := h.gateway.ConfirmBooking(c.Request.Context(), id, providerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

func (h *Handler) completeBooking(c *gin.Context) {
	id, providerID, ok := h.idAndProvider(c)
	if !ok {
		return
	}

	booking, err := h.gateway.CompleteBooking(c.Request.Context(), id, providerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

func (h *Handler) cancelBooking(c *gin.Context) {
	id, providerID, ok := h.idAndProvider(c)
	if !ok {
		return
	}

	var body struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cancellation reason is required", "details": err.Error()})
		return
	}

	booking, err := h.gateway.CancelBooking(c.Request.Context(), id, providerID, body.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

func (h *Handler) submitPayment(c *gin.Context) {
	var req service.SubmitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	payment, err := h.gateway.SubmitPayment(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func (h *Handler) verifyPayment(c *gin.Context) {
	id, providerID, ok := h.idAndProvider(c)
	if !ok {
		return
	}

	var req service.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	payment, err := h.gateway.VerifyPayment(c.Request.Context(), id, providerID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *Handler) createAvailability(c *gin.Context) {
	providerID, ok := providerFromHeader(c)
	if !ok {
		return
	}

	var req service.CreateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	req.ProviderID = providerID

	slot, err := h.gateway.CreateAvailability(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, slot)
}

func (h *Handler) createRecurringAvailability(c *gin.Context) {
	providerID, ok := providerFromHeader(c)
	if !ok {
		return
	}

	var req service.CreateRecurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	req.Template.ProviderID = providerID

	created, skipped, err := h.gateway.CreateRecurringAvailability(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"created": created, "skipped": skipped})
}

func (h *Handler) listAvailability(c *gin.Context) {
	providerID, ok := providerFromHeader(c)
	if !ok {
		return
	}

	from, to, err := dateRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date range", "details": err.Error()})
		return
	}

	var serviceID *int64
	if raw := c.Query("service_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid service ID"})
			return
		}
		serviceID = &id
	}

	slots, err := h.gateway.ListAvailability(c.Request.Context(), providerID, from, to, c.Query("slot_type"), serviceID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

func (h *Handler) findConflictingAvailability(c *gin.Context) {
	providerID, ok := providerFromHeader(c)
	if !ok {
		return
	}

	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start time", "details": err.Error()})
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end time", "details": err.Error()})
		return
	}

	slots, err := h.gateway.FindConflictingAvailability(c.Request.Context(), providerID, start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conflicts": slots})
}

func (h *Handler) deleteAvailability(c *gin.Context) {
	id, providerID, ok := h.idAndProvider(c)
	if !ok {
		return
	}

	if err := h.gateway.DeleteAvailability(c.Request.Context(), id, providerID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) bulkDeleteAvailability(c *gin.Context) {
	providerID, ok := providerFromHeader(c)
	if !ok {
		return
	}

	var body struct {
		IDs []int64 `json:"ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	deleted, err := h.gateway.BulkDeleteAvailability(c.Request.Context(), body.IDs, providerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (h *Handler) idAndProvider(c *gin.Context) (int64, int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, 0, false
	}
	providerID, ok := providerFromHeader(c)
	if !ok {
		return 0, 0, false
	}
	return id, providerID, true
}

// providerFromHeader reads the provider identity resolved by the auth layer
// upstream of this service.
func providerFromHeader(c *gin.Context) (int64, bool) {
	providerID, err := strconv.ParseInt(c.GetHeader("X-Provider-ID"), 10, 64)
	if err != nil || providerID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid X-Provider-ID header"})
		return 0, false
	}
	return providerID, true
}

func dateRange(c *gin.Context) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if raw := c.Query("from"); raw != "" {
		if from, err = time.Parse("2006-01-02", raw); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err = time.Parse("2006-01-02", raw); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return from, to, nil
}

// respondError maps the service error taxonomy onto HTTP statuses
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, service.ErrState), errors.Is(err, service.ErrInvalidTransition):
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
