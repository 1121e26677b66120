package handler

import (
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/porast/jigman/internal/jig/entity"
	"github.com/porast/jigman/internal/jig/service"
)

// JigHandler serves the inventory endpoints.
type JigHandler struct {
	inventory *service.InventoryService
}

// NewJigHandler creates a new jig handler.
func NewJigHandler(inventory *service.InventoryService) *JigHandler {
	return &JigHandler{inventory: inventory}
}

// List GET /jigs?search=&customer=&status=
// Applies the three filter inputs and returns the filtered view, order
// inherited from the cache (receipt date descending).
func (h *JigHandler) List(c *gin.Context) {
	h.inventory.SetSearchFilter(c.Query("search"))
	h.inventory.SetCustomerFilter(c.Query("customer"))
	h.inventory.SetStatusFilter(entity.Status(c.Query("status")))

	Success(c, gin.H{
		"items":     h.inventory.FilteredJigs(),
		"customers": h.inventory.UniqueCustomers(),
	})
}

// Customers GET /customers
func (h *JigHandler) Customers(c *gin.Context) {
	Success(c, h.inventory.UniqueCustomers())
}

// Get GET /jigs/:id
func (h *JigHandler) Get(c *gin.Context) {
	jig, err := h.inventory.FindByStoreID(c.Param("id"))
	if err != nil {
		NotFound(c, "JIG not found")
		return
	}
	Success(c, jig)
}

// Create POST /jigs
func (h *JigHandler) Create(c *gin.Context) {
	var input service.CreateJigInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	jig, err := h.inventory.AddJig(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			BadRequest(c, err.Error())
		case errors.Is(err, service.ErrDuplicateCode):
			Conflict(c, "This JIG number already exists")
		default:
			InternalError(c, err.Error())
		}
		return
	}

	Created(c, jig)
}

// UpdateStatus PUT /jigs/:id/status
func (h *JigHandler) UpdateStatus(c *gin.Context) {
	var input struct {
		Status entity.Status `json:"status"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	actor := c.GetString("user_name")
	jig, err := h.inventory.ChangeStatus(c.Request.Context(), c.Param("id"), input.Status, actor)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			BadRequest(c, err.Error())
		case errors.Is(err, service.ErrNotFound):
			NotFound(c, "JIG not found")
		default:
			InternalError(c, err.Error())
		}
		return
	}

	Success(c, jig)
}

// AddMaintenance POST /jigs/:id/maintenance
func (h *JigHandler) AddMaintenance(c *gin.Context) {
	var record entity.MaintenanceRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	jig, err := h.inventory.AddMaintenance(c.Request.Context(), c.Param("id"), record)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			BadRequest(c, err.Error())
		case errors.Is(err, service.ErrNotFound):
			NotFound(c, "JIG not found")
		default:
			InternalError(c, err.Error())
		}
		return
	}

	Success(c, jig)
}

// Delete DELETE /jigs/:id
// Deleting an id that is already gone succeeds.
func (h *JigHandler) Delete(c *gin.Context) {
	if err := h.inventory.DeleteJig(c.Request.Context(), c.Param("id")); err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, nil)
}

// Import POST /jigs/import
// Accepts a JSON array of records and replaces the whole inventory. The
// shape check matches the UI's: an array, and if non-empty the first
// element must carry a code and a customer.
func (h *JigHandler) Import(c *gin.Context) {
	var raw []json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		BadRequest(c, "Invalid file format: expected a JSON array of JIG records")
		return
	}

	if len(raw) > 0 {
		var probe struct {
			Code     string `json:"id"`
			Customer string `json:"customer"`
		}
		if err := json.Unmarshal(raw[0], &probe); err != nil || probe.Code == "" || probe.Customer == "" {
			BadRequest(c, "Invalid file format: records must carry id and customer")
			return
		}
	}

	jigs := make([]entity.Jig, 0, len(raw))
	for _, doc := range raw {
		var jig entity.Jig
		if err := json.Unmarshal(doc, &jig); err != nil {
			BadRequest(c, "Invalid file format: "+err.Error())
			return
		}
		jigs = append(jigs, jig)
	}

	if err := h.inventory.ImportJigs(c.Request.Context(), jigs); err != nil {
		InternalError(c, err.Error())
		return
	}

	Success(c, gin.H{"imported": len(jigs)})
}
