package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crossmesh/datashare/internal/events"
	"github.com/crossmesh/datashare/internal/logger"
	"github.com/crossmesh/datashare/internal/machine"
	"github.com/crossmesh/datashare/internal/registry"
)

// Handler serves the admin API: execution monitoring, registry inspection,
// and an operator entry point for publishing trigger events.
type Handler struct {
	domainID   string
	executions *machine.ExecutionStore
	registry   registry.Store
	publisher  *events.Publisher
	log        logger.Logger
}

// NewHandler creates an admin API handler. publisher may be nil; the
// trigger endpoint then responds 503.
func NewHandler(domainID string, executions *machine.ExecutionStore, reg registry.Store, pub *events.Publisher, log logger.Logger) *Handler {
	return &Handler{
		domainID:   domainID,
		executions: executions,
		registry:   reg,
		publisher:  pub,
		log:        log,
	}
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"domain": h.domainID,
	})
}

// ListExecutions handles GET /api/v1/executions.
func (h *Handler) ListExecutions(c *gin.Context) {
	execs := h.executions.List()
	c.JSON(http.StatusOK, gin.H{
		"executions": execs,
		"count":      len(execs),
	})
}

// GetExecution handles GET /api/v1/executions/:execution_id.
func (h *Handler) GetExecution(c *gin.Context) {
	id := c.Param("execution_id")
	exec, ok := h.executions.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "execution not found"})
		return
	}
	c.JSON(http.StatusOK, exec)
}

// ListDomains handles GET /api/v1/domains.
func (h *Handler) ListDomains(c *gin.Context) {
	domains, err := h.registry.ListDomains(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to list domains", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"domains": domains,
		"count":   len(domains),
	})
}

// GetDomain handles GET /api/v1/domains/:domain_id.
func (h *Handler) GetDomain(c *gin.Context) {
	id := c.Param("domain_id")
	reg, err := h.registry.GetDomain(c.Request.Context(), id)
	if err != nil {
		if err == registry.ErrDomainNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
			return
		}
		h.log.Error("Failed to get domain", logger.String("domain_id", id), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, reg)
}

// PublishDataProduct handles POST /api/v1/data-products. It wraps the
// request body in a createDataProduct envelope and publishes it to this
// domain's own channel, where the governance runner picks it up. The body
// is forwarded opaquely; validation happens in the workflow.
func (h *Handler) PublishDataProduct(c *gin.Context) {
	if h.publisher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event channel not configured"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body required"})
		return
	}

	env, err := events.NewEnvelope(h.domainID, events.DetailTypeCreateDataProduct, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	env.Detail = body

	if err := h.publisher.PublishTo(c.Request.Context(), h.domainID, env); err != nil {
		h.log.Error("Failed to publish trigger event", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"event_id": env.ID})
}
