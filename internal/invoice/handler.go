package invoice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/torqueshop/torqueshop/internal/auth"
	"github.com/torqueshop/torqueshop/internal/platform/cache"
	"github.com/torqueshop/torqueshop/internal/platform/httpx"
	"github.com/torqueshop/torqueshop/internal/shared"
)

// SweepEnqueuer submits a reconciliation sweep to the background queue.
type SweepEnqueuer interface {
	EnqueueInvoiceReconcile(ctx context.Context) error
}

// Handler wires HTTP endpoints for invoices and their line items.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     auth.Guard
	cache     *cache.ResponseCache
	sweeps    SweepEnqueuer
	validator *validator.Validate
}

// NewHandler constructs a Handler instance. sweeps may be nil when no queue
// is configured; the reconcile endpoint then reports unavailability.
func NewHandler(logger *slog.Logger, service *Service, guard auth.Guard, respCache *cache.ResponseCache, sweeps SweepEnqueuer) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		guard:     guard,
		cache:     respCache,
		sweeps:    sweeps,
		validator: validator.New(),
	}
}

// MountRoutes registers invoice routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRoles(auth.RoleAdmin, auth.RoleMechanic, auth.RoleCustomer))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/items", h.lines)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRoles(auth.RoleAdmin))
		r.Post("/", h.create)
		r.Post("/reconcile", h.reconcile)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Post("/{id}/items", h.addItem)
		r.Put("/{id}/items/{itemID}", h.replaceItem)
		r.Delete("/{id}/items/{itemID}", h.removeItem)
	})
}

type createInvoiceRequest struct {
	CustomerID      int64   `json:"customer_id" validate:"required,gt=0"`
	ServiceTicketID int64   `json:"service_ticket_id" validate:"required,gt=0"`
	Total           float64 `json:"total" validate:"gte=0"`
	Submitted       bool    `json:"submitted"`
}

type updateInvoiceRequest struct {
	CustomerID      *int64   `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	ServiceTicketID *int64   `json:"service_ticket_id,omitempty" validate:"omitempty,gt=0"`
	Total           *float64 `json:"total,omitempty" validate:"omitempty,gte=0"`
	Submitted       *bool    `json:"submitted,omitempty"`
}

type addItemRequest struct {
	InventoryItemID int64  `json:"inventory_item_id" validate:"required,gt=0"`
	Quantity        *int32 `json:"quantity,omitempty"`
}

type replaceItemRequest struct {
	InventoryItemID int64 `json:"inventory_item_id" validate:"required,gt=0"`
}

type listResponse struct {
	Invoices   []Invoice         `json:"invoices"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	page, perPage := shared.PageParams(r)

	filter := ListFilter{Limit: perPage, Offset: (page - 1) * perPage}
	if id.Role == auth.RoleCustomer {
		filter.CustomerID = id.SubjectID
	}

	key := fmt.Sprintf("invoices:list:%d:%d:%d", filter.CustomerID, page, perPage)
	payload, err := h.cache.GetOrBuild(r.Context(), key, func(ctx context.Context) ([]byte, error) {
		invoices, total, err := h.service.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		return json.Marshal(listResponse{Invoices: invoices, Pagination: shared.NewPagination(page, perPage, total)})
	})
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Get(r.Context(), invoiceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	if id.Role == auth.RoleCustomer && !id.CanAccess(inv.CustomerID) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "You do not have permission to view this invoice.")
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) lines(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Get(r.Context(), invoiceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	if id.Role == auth.RoleCustomer && !id.CanAccess(inv.CustomerID) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "You do not have permission to view this invoice.")
		return
	}
	lines, err := h.service.Lines(r.Context(), invoiceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lines)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	inv, err := h.service.Create(r.Context(), Invoice{
		CustomerID:      req.CustomerID,
		ServiceTicketID: req.ServiceTicketID,
		Total:           req.Total,
		Submitted:       req.Submitted,
	})
	if err != nil {
		h.logger.Error("create invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.cache.Bust(r.Context(), "invoices:")
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	if h.sweeps == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "reconciliation queue is not configured")
		return
	}
	if err := h.sweeps.EnqueueInvoiceReconcile(r.Context()); err != nil {
		h.logger.Error("enqueue invoice reconcile", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Message(w, http.StatusAccepted, "Invoice reconciliation sweep queued")
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	inv, err := h.service.Update(r.Context(), invoiceID, Patch{
		CustomerID:      req.CustomerID,
		ServiceTicketID: req.ServiceTicketID,
		Total:           req.Total,
		Submitted:       req.Submitted,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.cache.Bust(r.Context(), "invoices:")
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	if err := h.service.Delete(r.Context(), id.SubjectID, invoiceID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.cache.Bust(r.Context(), "invoices:")
	httpx.Message(w, http.StatusOK, fmt.Sprintf("Invoice %d deleted", invoiceID))
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req addItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	quantity := int32(1)
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	id, _ := auth.IdentityFromContext(r.Context())
	resulting, err := h.service.AddItem(r.Context(), id.SubjectID, invoiceID, req.InventoryItemID, quantity)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.cache.Bust(r.Context(), "invoices:")
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"message":  fmt.Sprintf("Inventory item %d added to invoice %d", req.InventoryItemID, invoiceID),
		"quantity": resulting,
	})
}

func (h *Handler) replaceItem(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req replaceItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	if err := h.service.ReplaceItem(r.Context(), id.SubjectID, invoiceID, itemID, req.InventoryItemID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.cache.Bust(r.Context(), "invoices:")
	httpx.Message(w, http.StatusOK, fmt.Sprintf("Inventory item %d replaced with %d for invoice %d", itemID, req.InventoryItemID, invoiceID))
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	if err := h.service.RemoveItem(r.Context(), id.SubjectID, invoiceID, itemID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.cache.Bust(r.Context(), "invoices:")
	httpx.Message(w, http.StatusOK, fmt.Sprintf("Inventory item %d removed from invoice %d", itemID, invoiceID))
}

func pathID(r *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", httpx.ErrInvalidArgument, param)
	}
	return id, nil
}
