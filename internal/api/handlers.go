package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/supplierportal/services/deliverynote/internal/metrics"
	"example.com/supplierportal/services/deliverynote/internal/service"
)

// handler bundles the HTTP handlers around the delivery note service.
type handler struct {
	svc service.DeliveryNoteService
}

// getSnapshot handles GET /dn/detail/:no_dn
func (h *handler) getSnapshot(c *gin.Context) {
	snap, err := h.svc.GetSnapshot(c.Request.Context(), c.Param("no_dn"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// listBySupplier handles GET /dn/list/:supplier_code
func (h *handler) listBySupplier(c *gin.Context) {
	notes, err := h.svc.ListBySupplier(c.Request.Context(), c.Param("supplier_code"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": notes})
}

// submitQuantities handles PUT /dn/update
func (h *handler) submitQuantities(c *gin.Context) {
	var cmd service.SubmitCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "invalid request body: " + err.Error(),
		})
		return
	}
	if cmd.NoDN == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "no_dn is required",
			Field:   "no_dn",
			Reason:  "required",
		})
		return
	}

	snap, err := h.svc.SubmitQuantities(c.Request.Context(), cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// updateDriverInfo handles PUT /dn/update/driver-info
func (h *handler) updateDriverInfo(c *gin.Context) {
	var cmd service.DriverInfoCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "invalid request body: " + err.Error(),
		})
		return
	}
	if cmd.NoDN == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "no_dn is required",
			Field:   "no_dn",
			Reason:  "required",
		})
		return
	}

	if err := h.svc.UpdateDriverInfo(c.Request.Context(), cmd); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// history handles GET /dn/history/:no_dn
func (h *handler) history(c *gin.Context) {
	events, err := h.svc.History(c.Request.Context(), c.Param("no_dn"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events})
}

// health handles GET /health
func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, metrics.GetCollector().GetHealthStatus())
}

// getMetrics handles GET /metrics
func (h *handler) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, metrics.GetCollector().GetMetrics())
}
