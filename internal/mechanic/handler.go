package mechanic

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

// Handler wires HTTP endpoints for staff accounts.
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

// MountRoutes registers mechanic routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/", h.register)

	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRoles(auth.RoleAdmin))
		r.Get("/", h.list)
		r.Get("/top", h.top)
		r.Delete("/{id}", h.delete)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRoles(auth.RoleAdmin, auth.RoleMechanic))
		r.Get("/profile", h.profile)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
	})
}

type registerRequest struct {
	FirstName string  `json:"first_name" validate:"required,min=1,max=120"`
	LastName  string  `json:"last_name" validate:"required,min=1,max=120"`
	Email     string  `json:"email" validate:"required,email,max=360"`
	Salary    float64 `json:"salary" validate:"gte=0"`
	Address   string  `json:"address,omitempty" validate:"max=500"`
	IsAdmin   bool    `json:"is_admin"`
	Password  string  `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type updateRequest struct {
	FirstName *string  `json:"first_name,omitempty" validate:"omitempty,min=1,max=120"`
	LastName  *string  `json:"last_name,omitempty" validate:"omitempty,min=1,max=120"`
	Email     *string  `json:"email,omitempty" validate:"omitempty,email,max=360"`
	Salary    *float64 `json:"salary,omitempty" validate:"omitempty,gte=0"`
	Address   *string  `json:"address,omitempty" validate:"omitempty,max=500"`
	IsAdmin   *bool    `json:"is_admin,omitempty"`
	Password  *string  `json:"password,omitempty" validate:"omitempty,min=8,max=72"`
}

type listResponse struct {
	Mechanics  []Mechanic        `json:"mechanics"`
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
	m, token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message":  fmt.Sprintf("Login successful %s %s", m.FirstName, m.LastName),
		"token":    token,
		"id":       m.ID,
		"is_admin": m.IsAdmin,
	})
}

// register is open, but the admin flag in the payload only sticks when the
// request carries an admin credential.
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
	actor, _ := h.guard.Resolve(r)
	m, err := h.service.Register(r.Context(), actor, Mechanic{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Salary:    req.Salary,
		Address:   req.Address,
		IsAdmin:   req.IsAdmin,
	}, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("mechanic registered", slog.Int64("mechanic_id", m.ID), slog.Bool("is_admin", m.IsAdmin))
	h.cache.Bust(r.Context(), "mechanics:")
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)

	key := fmt.Sprintf("mechanics:list:%d:%d", page, perPage)
	payload, err := h.cache.GetOrBuild(r.Context(), key, func(ctx context.Context) ([]byte, error) {
		mechanics, total, err := h.service.List(ctx, perPage, (page-1)*perPage)
		if err != nil {
			return nil, err
		}
		return json.Marshal(listResponse{Mechanics: mechanics, Pagination: shared.NewPagination(page, perPage, total)})
	})
	if err != nil {
		h.logger.Error("list mechanics", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

func (h *Handler) top(w http.ResponseWriter, r *http.Request) {
	limit := 3
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 50 {
			limit = parsed
		}
	}
	ranked, err := h.service.TopByTicketCount(r.Context(), limit)
	if err != nil {
		h.logger.Error("top mechanics", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ranked)
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	m, err := h.service.Get(r.Context(), id.SubjectID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	mechanicID, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	if !id.CanAccess(mechanicID) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "You do not have permission to view this mechanic.")
		return
	}
	m, err := h.service.Get(r.Context(), mechanicID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	mechanicID, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	if !id.CanAccess(mechanicID) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "You do not have permission to update this mechanic.")
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	m, err := h.service.Update(r.Context(), id, mechanicID, Patch{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Salary:    req.Salary,
		Address:   req.Address,
		IsAdmin:   req.IsAdmin,
	}, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.cache.Bust(r.Context(), "mechanics:")
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	mechanicID, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	if err := h.service.Delete(r.Context(), id.SubjectID, mechanicID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.cache.Bust(r.Context(), "mechanics:")
	httpx.Message(w, http.StatusOK, fmt.Sprintf("Mechanic %d deleted", mechanicID))
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id must be a positive integer", httpx.ErrInvalidArgument)
	}
	return id, nil
}
