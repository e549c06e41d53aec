package inventory

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

// Handler wires HTTP endpoints for the parts catalog.
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

// MountRoutes registers catalog routes. Reads are open to any authenticated
// role; mutations are limited to staff.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRoles(auth.RoleAdmin, auth.RoleMechanic, auth.RoleCustomer))
		r.Get("/", h.list)
		r.Get("/search", h.search)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRoles(auth.RoleAdmin, auth.RoleMechanic))
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
}

type createItemRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=255"`
	Description string  `json:"description,omitempty" validate:"max=2000"`
	Price       float64 `json:"price" validate:"gte=0"`
}

type updateItemRequest struct {
	Name        *string  `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=2000"`
	Price       *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
}

type listResponse struct {
	Items      []Item            `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)

	key := fmt.Sprintf("inventory:list:%d:%d", page, perPage)
	payload, err := h.cache.GetOrBuild(r.Context(), key, func(ctx context.Context) ([]byte, error) {
		items, total, err := h.service.List(ctx, perPage, (page-1)*perPage)
		if err != nil {
			return nil, err
		}
		return json.Marshal(listResponse{Items: items, Pagination: shared.NewPagination(page, perPage, total)})
	})
	if err != nil {
		h.logger.Error("list inventory", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	filter := SearchFilter{
		Name:        r.URL.Query().Get("name"),
		Description: r.URL.Query().Get("description"),
		Limit:       perPage,
		Offset:      (page - 1) * perPage,
	}
	items, err := h.service.Search(r.Context(), filter)
	if err != nil {
		h.logger.Error("search inventory", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	item, err := h.service.Create(r.Context(), id.SubjectID, Item{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		h.logger.Error("create inventory item", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.cache.Bust(r.Context(), "inventory:")
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	item, err := h.service.Update(r.Context(), id.SubjectID, itemID, Patch{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.cache.Bust(r.Context(), "inventory:")
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	if err := h.service.Delete(r.Context(), id.SubjectID, itemID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.cache.Bust(r.Context(), "inventory:")
	// Stale invoice line views are acceptable, stale totals are not.
	h.cache.Bust(r.Context(), "invoices:")
	httpx.Message(w, http.StatusOK, fmt.Sprintf("Inventory item %d deleted", itemID))
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id must be a positive integer", httpx.ErrInvalidArgument)
	}
	return id, nil
}
