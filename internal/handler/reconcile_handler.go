package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hcmut-dev/rollcall-backend/internal/response"
	"github.com/hcmut-dev/rollcall-backend/internal/service"
)

// ReconcileHandler exposes the roster reconciliation job for on-demand runs.
type ReconcileHandler struct {
	reconcileService *service.ReconcileService
}

// NewReconcileHandler creates a new ReconcileHandler.
func NewReconcileHandler(reconcileService *service.ReconcileService) *ReconcileHandler {
	return &ReconcileHandler{reconcileService: reconcileService}
}

// Run godoc
// POST /api/v1/admin/reconcile
// Triggers one reconciliation pass and returns its report. Returns 409
// when a scheduled or concurrent pass already holds the lock.
func (h *ReconcileHandler) Run(c *gin.Context) {
	report, err := h.reconcileService.Run(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrReconcileRunning) {
			response.Fail(c, http.StatusConflict, response.ErrReconcileRunning)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"report": report})
}
