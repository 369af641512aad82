package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"checkout-service/internal/catalog"
	"checkout-service/internal/service"
	"checkout-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const tenantHeader = "X-Tenant-ID"

// Handler contains HTTP handlers
type Handler struct {
	checkoutService *service.CheckoutService
	paymentService  *service.PaymentService
	defaultTenantID int64
}

// NewHandler creates a new HTTP handler
func NewHandler(checkoutService *service.CheckoutService, paymentService *service.PaymentService, defaultTenantID int64) *Handler {
	return &Handler{
		checkoutService: checkoutService,
		paymentService:  paymentService,
		defaultTenantID: defaultTenantID,
	}
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
		v1.GET("/checkout/validate", h.validate)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/checkout/lead", h.lead)
		v1.POST("/checkout/address", h.address)
		v1.POST("/checkout/payment", h.payment)
		v1.POST("/checkout/retry", h.retry)
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

// tenantID resolves the tenant from the request header, falling back to the
// configured single-tenant default. Row-level isolation is enforced by the
// data layer.
func (h *Handler) tenantID(c *gin.Context) int64 {
	if raw := c.GetHeader(tenantHeader); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			return id
		}
	}
	return h.defaultTenantID
}

// validate handles checkout validation: campaign/offer descriptors and
// baseline pricing for rendering the checkout page.
func (h *Handler) validate(c *gin.Context) {
	campaignID, err1 := strconv.Atoi(c.Query("c"))
	offerID, err2 := strconv.Atoi(c.Query("o"))
	if err1 != nil || err2 != nil || campaignID < 1 || offerID < 1 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid campaign or offer id",
		})
		return
	}

	resp, err := h.checkoutService.Validate(c.Request.Context(), h.tenantID(c), campaignID, offerID, c.Query("coupon"))
	if err != nil {
		if isCatalogError(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.internalError(c, "validate", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// getOrder handles order confirmation lookups
func (h *Handler) getOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || orderID < 1 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid order id",
		})
		return
	}

	resp, err := h.checkoutService.GetOrder(c.Request.Context(), h.tenantID(c), orderID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.internalError(c, "order", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// lead handles the lead capture step
func (h *Handler) lead(c *gin.Context) {
	var req service.LeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	client := &service.ClientInfo{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
	}

	resp, err := h.checkoutService.Lead(c.Request.Context(), h.tenantID(c), &req, client)
	if err != nil {
		// The lead step reports catalog misses as client errors: the ids
		// came from the submitted form.
		if isCatalogError(err) || errors.Is(err, service.ErrAlreadyConverted) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.internalError(c, "lead", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// address handles the address + pricing step
func (h *Handler) address(c *gin.Context) {
	var req service.AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.checkoutService.AddressStep(c.Request.Context(), h.tenantID(c), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCustomerNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrAlreadyConverted),
			errors.Is(err, service.ErrLeadStepRequired),
			errors.Is(err, service.ErrTermsNotAgreed),
			errors.Is(err, service.ErrBillingIncomplete),
			errors.Is(err, service.ErrShippingOptionNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.internalError(c, "address", err)
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// payment handles the payment step
func (h *Handler) payment(c *gin.Context) {
	h.charge(c, h.paymentService.Payment)
}

// retry handles payment retry after a decline
func (h *Handler) retry(c *gin.Context) {
	h.charge(c, h.paymentService.Retry)
}

type chargeFunc func(ctx context.Context, tenantID int64, req *service.PaymentRequest) (*service.PaymentResponse, error)

func (h *Handler) charge(c *gin.Context, run chargeFunc) {
	var req service.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := run(c.Request.Context(), h.tenantID(c), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCustomerNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrAlreadyConverted),
			errors.Is(err, service.ErrSnapshotMissing),
			errors.Is(err, service.ErrPaymentNotReady),
			errors.Is(err, service.ErrNothingToRetry):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.internalError(c, "payment", err)
		}
		return
	}

	// A decline is a successful request with a structured failure body.
	c.JSON(http.StatusOK, resp)
}

func isCatalogError(err error) bool {
	return errors.Is(err, catalog.ErrCampaignNotFound) ||
		errors.Is(err, catalog.ErrCampaignInactive) ||
		errors.Is(err, catalog.ErrOfferNotFound) ||
		errors.Is(err, catalog.ErrOfferInactive)
}

// internalError logs the cause server-side and returns a generic 500
// without leaking internal detail.
func (h *Handler) internalError(c *gin.Context, step string, err error) {
	util.GetLogger().Error("Checkout step failed",
		zap.String("step", step),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Internal server error",
	})
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
