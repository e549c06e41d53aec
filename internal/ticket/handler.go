package ticket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/torqueshop/torqueshop/internal/auth"
	"github.com/torqueshop/torqueshop/internal/platform/cache"
	"github.com/torqueshop/torqueshop/internal/platform/httpx"
	"github.com/torqueshop/torqueshop/internal/shared"
)

// Handler wires HTTP endpoints for service tickets.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     auth.Guard
	cache     *cache.ResponseCache
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard auth.Guard, respCache *cache.ResponseCache) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		guard:     guard,
		cache:     respCache,
		validator: validator.New(),
	}
}

// MountRoutes registers ticket routes. Customers see their own tickets;
// staff manage the collection; assignment is an admin operation.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRoles(auth.RoleAdmin, auth.RoleMechanic, auth.RoleCustomer))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/mechanics", h.mechanics)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRoles(auth.RoleAdmin, auth.RoleMechanic))
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRoles(auth.RoleAdmin))
		r.Post("/{id}/assign_mechanics", h.assign)
		r.Delete("/{id}/unassign_mechanics", h.unassign)
	})
}

type createTicketRequest struct {
	CustomerID         int64      `json:"customer_id" validate:"required,gt=0"`
	ServiceDescription string     `json:"service_description" validate:"required,min=1,max=500"`
	Price              float64    `json:"price" validate:"gte=0"`
	VIN                string     `json:"vin" validate:"required,min=1,max=20"`
	ServiceDate        *time.Time `json:"service_date,omitempty"`
}

type updateTicketRequest struct {
	CustomerID         *int64     `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	ServiceDescription *string    `json:"service_description,omitempty" validate:"omitempty,min=1,max=500"`
	Price              *float64   `json:"price,omitempty" validate:"omitempty,gte=0"`
	VIN                *string    `json:"vin,omitempty" validate:"omitempty,min=1,max=20"`
	ServiceDate        *time.Time `json:"service_date,omitempty"`
}

type assignRequest struct {
	MechanicIDs []int64 `json:"mechanic_ids" validate:"required,min=1,dive,gt=0"`
}

type listResponse struct {
	Tickets    []Ticket          `json:"tickets"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	page, perPage := shared.PageParams(r)

	filter := ListFilter{Limit: perPage, Offset: (page - 1) * perPage}
	if id.Role == auth.RoleCustomer {
		filter.CustomerID = id.SubjectID
	}

	key := fmt.Sprintf("tickets:list:%d:%d:%d", filter.CustomerID, page, perPage)
	payload, err := h.cache.GetOrBuild(r.Context(), key, func(ctx context.Context) ([]byte, error) {
		tickets, total, err := h.service.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		return json.Marshal(listResponse{Tickets: tickets, Pagination: shared.NewPagination(page, perPage, total)})
	})
	if err != nil {
		h.logger.Error("list tickets", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ticketID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.Get(r.Context(), ticketID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	if id.Role == auth.RoleCustomer && !id.CanAccess(t.CustomerID) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "You do not have permission to view this ticket.")
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) mechanics(w http.ResponseWriter, r *http.Request) {
	ticketID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.Get(r.Context(), ticketID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	if id.Role == auth.RoleCustomer && !id.CanAccess(t.CustomerID) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "You do not have permission to view this ticket.")
		return
	}
	mechanics, err := h.service.Mechanics(r.Context(), ticketID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, mechanics)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	t := Ticket{
		CustomerID:         req.CustomerID,
		ServiceDescription: req.ServiceDescription,
		Price:              req.Price,
		VIN:                req.VIN,
	}
	if req.ServiceDate != nil {
		t.ServiceDate = *req.ServiceDate
	}
	id, _ := auth.IdentityFromContext(r.Context())
	created, err := h.service.Create(r.Context(), id.SubjectID, t)
	if err != nil {
		h.logger.Error("create ticket", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.cache.Bust(r.Context(), "tickets:")
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ticketID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateTicketRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	t, err := h.service.Update(r.Context(), id.SubjectID, ticketID, Patch{
		CustomerID:         req.CustomerID,
		ServiceDescription: req.ServiceDescription,
		Price:              req.Price,
		VIN:                req.VIN,
		ServiceDate:        req.ServiceDate,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.cache.Bust(r.Context(), "tickets:")
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ticketID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	if err := h.service.Delete(r.Context(), id.SubjectID, ticketID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.cache.Bust(r.Context(), "tickets:")
	httpx.Message(w, http.StatusOK, fmt.Sprintf("Service ticket %d deleted", ticketID))
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	ticketID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	if err := h.service.AssignMechanics(r.Context(), id.SubjectID, ticketID, req.MechanicIDs); err != nil {
		httpx.RespondError(w, err)
		return
	}
	mechanics, err := h.service.Mechanics(r.Context(), ticketID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.cache.Bust(r.Context(), "tickets:")
	httpx.JSON(w, http.StatusOK, mechanics)
}

func (h *Handler) unassign(w http.ResponseWriter, r *http.Request) {
	ticketID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	if err := h.service.UnassignMechanics(r.Context(), id.SubjectID, ticketID, req.MechanicIDs); err != nil {
		httpx.RespondError(w, err)
		return
	}
	mechanics, err := h.service.Mechanics(r.Context(), ticketID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.cache.Bust(r.Context(), "tickets:")
	httpx.JSON(w, http.StatusOK, mechanics)
}

func pathID(r *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", httpx.ErrInvalidArgument, param)
	}
	return id, nil
}
