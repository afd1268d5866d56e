package rbac

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/viperh/rolegate/internal/platform/httpx"
)

// RolesHandler manages roles, the role hierarchy and permission grants.
type RolesHandler struct {
	logger    *slog.Logger
	service   *Service
	evaluator *Evaluator
	validator *validator.Validate
	rbac      Middleware
}

// NewRolesHandler builds RolesHandler instance.
func NewRolesHandler(logger *slog.Logger, service *Service, evaluator *Evaluator, rbac Middleware) *RolesHandler {
	return &RolesHandler{
		logger:    logger,
		service:   service,
		evaluator: evaluator,
		validator: validator.New(),
		rbac:      rbac,
	}
}

// MountRoutes registers role routes.
func (h *RolesHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("manage_roles"))
		r.Get("/", h.listRoles)
		r.Post("/", h.createRole)
		r.Get("/{roleID}", h.getRole)
		r.Put("/{roleID}", h.updateRole)
		r.Delete("/{roleID}", h.deleteRole)
		r.Get("/{roleID}/permissions", h.listGrants)
		r.Post("/{roleID}/permissions", h.grantPermission)
		r.Delete("/{roleID}/permissions/{permissionID}", h.revokePermission)
		r.Get("/{roleID}/effective", h.effectivePermissions)
	})
}

type roleResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	ParentRoleID *int64 `json:"parent_role_id,omitempty"`
}

type roleRequest struct {
	Name         string `json:"name" validate:"required,max=128"`
	Description  string `json:"description" validate:"max=512"`
	ParentRoleID *int64 `json:"parent_role_id"`
}

type grantRequest struct {
	PermissionID int64 `json:"permission_id" validate:"required"`
}

func toRoleResponse(role Role) roleResponse {
	return roleResponse{
		ID:           role.ID,
		Name:         role.Name,
		Description:  role.Description,
		ParentRoleID: role.ParentRoleID,
	}
}

func (h *RolesHandler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, "list roles", err)
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *RolesHandler) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := h.service.CreateRole(r.Context(), req.Name, req.Description, req.ParentRoleID)
	if err != nil {
		respondServiceError(w, h.logger, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

func (h *RolesHandler) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, "get role", err)
		return
	}
	perms, err := h.service.ListRolePermissions(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, "get role permissions", err)
		return
	}
	permsOut := make([]permissionResponse, 0, len(perms))
	for _, p := range perms {
		permsOut = append(permsOut, permissionResponse{ID: p.ID, Code: p.Code, Description: p.Description})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"role":        toRoleResponse(role),
		"permissions": permsOut,
	})
}

func (h *RolesHandler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, req.Name, req.Description, req.ParentRoleID)
	if err != nil {
		respondServiceError(w, h.logger, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *RolesHandler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, "delete role", err)
		return
	}
	httpx.NoContent(w)
}

func (h *RolesHandler) listGrants(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	perms, err := h.service.ListRolePermissions(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, "list grants", err)
		return
	}
	out := make([]permissionResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, permissionResponse{ID: p.ID, Code: p.Code, Description: p.Description})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *RolesHandler) grantPermission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var req grantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.GrantPermission(r.Context(), id, req.PermissionID); err != nil {
		respondServiceError(w, h.logger, "grant permission", err)
		return
	}
	httpx.NoContent(w)
}

func (h *RolesHandler) revokePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	permID, err := strconv.ParseInt(chi.URLParam(r, "permissionID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "permission id must be an integer")
		return
	}
	if err := h.service.RevokePermission(r.Context(), id, permID); err != nil {
		respondServiceError(w, h.logger, "revoke permission", err)
		return
	}
	httpx.NoContent(w)
}

// effectivePermissions reports the codes a role grants including inherited
// ones, useful when reviewing the hierarchy.
func (h *RolesHandler) effectivePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	codes, err := h.evaluator.Resolver().ResolvePermissions(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, "resolve role permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": codes.Codes()})
}

func (h *RolesHandler) roleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "role id must be an integer")
		return 0, false
	}
	return id, true
}
