package customer

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

// Handler wires HTTP endpoints for customer accounts.
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

// MountRoutes registers customer routes. Registration and login are open;
// everything else requires a resolved identity.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/", h.register)

	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRoles(auth.RoleAdmin, auth.RoleMechanic, auth.RoleCustomer))
		r.Get("/", h.list)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRoles(auth.RoleAdmin, auth.RoleCustomer))
		r.Get("/profile", h.profile)
		r.Get("/{id}", h.get)
		r.Put("/", h.updateSelf)
		r.Put("/{id}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRoles(auth.RoleAdmin))
		r.Delete("/{id}", h.delete)
	})
}

type registerRequest struct {
	FirstName string `json:"first_name" validate:"required,min=1,max=120"`
	LastName  string `json:"last_name" validate:"required,min=1,max=120"`
	Email     string `json:"email" validate:"required,email,max=360"`
	Phone     string `json:"phone,omitempty" validate:"max=15"`
	Address   string `json:"address,omitempty" validate:"max=500"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type updateRequest struct {
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,min=1,max=120"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,min=1,max=120"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email,max=360"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,max=15"`
	Address   *string `json:"address,omitempty" validate:"omitempty,max=500"`
	Password  *string `json:"password,omitempty" validate:"omitempty,min=8,max=72"`
}

type listResponse struct {
	Customers  []Customer        `json:"customers"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	c, token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Login successful %s %s", c.FirstName, c.LastName),
		"token":   token,
	})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	c, err := h.service.Register(r.Context(), Customer{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
	}, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("customer registered", slog.Int64("customer_id", c.ID))
	h.cache.Bust(r.Context(), "customers:")
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)

	key := fmt.Sprintf("customers:list:%d:%d", page, perPage)
	payload, err := h.cache.GetOrBuild(r.Context(), key, func(ctx context.Context) ([]byte, error) {
		customers, total, err := h.service.List(ctx, perPage, (page-1)*perPage)
		if err != nil {
			return nil, err
		}
		return json.Marshal(listResponse{Customers: customers, Pagination: shared.NewPagination(page, perPage, total)})
	})
	if err != nil {
		h.logger.Error("list customers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	c, err := h.service.Get(r.Context(), id.SubjectID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	if !id.CanAccess(customerID) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "You do not have permission to view this customer.")
		return
	}
	c, err := h.service.Get(r.Context(), customerID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

// updateSelf patches the caller's own record, resolved from the token.
func (h *Handler) updateSelf(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	h.applyUpdate(w, r, id.SubjectID)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	if !id.CanAccess(customerID) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "You do not have permission to update this customer.")
		return
	}
	h.applyUpdate(w, r, customerID)
}

func (h *Handler) applyUpdate(w http.ResponseWriter, r *http.Request, customerID int64) {
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	c, err := h.service.Update(r.Context(), id.SubjectID, customerID, Patch{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
	}, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.cache.Bust(r.Context(), "customers:")
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	if err := h.service.Delete(r.Context(), id.SubjectID, customerID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.cache.Bust(r.Context(), "customers:")
	httpx.Message(w, http.StatusOK, fmt.Sprintf("Customer %d deleted", customerID))
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id must be a positive integer", httpx.ErrInvalidArgument)
	}
	return id, nil
}
