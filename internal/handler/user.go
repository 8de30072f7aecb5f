package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sakif/usuarios-api/internal/apperror"
	"github.com/sakif/usuarios-api/internal/auth"
	"github.com/sakif/usuarios-api/internal/model"
	"github.com/sakif/usuarios-api/internal/router"
	"github.com/sakif/usuarios-api/internal/service"
)

// Users is the service the handler drives. *service.UserService
// satisfies it.
type Users interface {
	Create(ctx context.Context, in service.CreateUserInput) (*model.User, error)
	Get(ctx context.Context, uuid string) (*model.User, error)
	List(ctx context.Context, p service.ListParams) (*service.UserPage, error)
	Update(ctx context.Context, uuid string, in service.UpdateUserInput) (*model.User, error)
	Delete(ctx context.Context, uuid string) error
	Activate(ctx context.Context, uuid string) error
	Deactivate(ctx context.Context, uuid string) error
}

// UserHandler serves the /api/usuario* endpoints.
//
// AUTHORIZATION:
// Every route runs behind the bearer middleware. The super admin (master
// key) may act on any {uuid}. Anyone else may only act on their own UUID,
// and may never set nivel_acesso.
type UserHandler struct {
	users  Users
	resp   *Responder
	logger *slog.Logger
}

func NewUserHandler(users Users, resp *Responder, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, resp: resp, logger: logger}
}

// createUserRequest is the body of POST /api/criar/usuario.
type createUserRequest struct {
	FullName    string  `json:"nome_completo" validate:"required"`
	Username    string  `json:"username"      validate:"required"`
	Email       string  `json:"email"         validate:"required"`
	Password    string  `json:"senha"         validate:"required"`
	AvatarURL   *string `json:"url_avatar"`
	CoverURL    *string `json:"url_capa"`
	Bio         *string `json:"biografia"`
	AccessLevel *string `json:"nivel_acesso"`
}

// updateUserRequest is the body of PUT /api/usuario/{uuid}. Absent fields
// are left unchanged.
type updateUserRequest struct {
	FullName    *string `json:"nome_completo"`
	Username    *string `json:"username"`
	Email       *string `json:"email"`
	Password    *string `json:"senha"`
	AvatarURL   *string `json:"url_avatar"`
	CoverURL    *string `json:"url_capa"`
	Bio         *string `json:"biografia"`
	AccessLevel *string `json:"nivel_acesso"`
}

// UserSummary is one element of the list response.
type UserSummary struct {
	UUID     string `json:"uuid"`
	Name     string `json:"nome"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Active   bool   `json:"ativo"`
}

// UserDetail is the body of GET /api/usuario/{uuid}.
type UserDetail struct {
	UUID        string     `json:"uuid"`
	FullName    string     `json:"nome_completo"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Active      bool       `json:"ativo"`
	AccessLevel string     `json:"nivel_acesso"`
	AvatarURL   *string    `json:"url_avatar,omitempty"`
	CoverURL    *string    `json:"url_capa,omitempty"`
	Bio         *string    `json:"biografia,omitempty"`
	CreatedAt   time.Time  `json:"criado_em"`
	UpdatedAt   *time.Time `json:"atualizado_em,omitempty"`
}

func summarize(u *model.User) UserSummary {
	return UserSummary{
		UUID:     u.UUID(),
		Name:     u.FullName(),
		Username: u.Username(),
		Email:    u.Email(),
		Active:   u.Active(),
	}
}

func detail(u *model.User) UserDetail {
	return UserDetail{
		UUID:        u.UUID(),
		FullName:    u.FullName(),
		Username:    u.Username(),
		Email:       u.Email(),
		Active:      u.Active(),
		AccessLevel: string(u.AccessLevel()),
		AvatarURL:   u.AvatarURL(),
		CoverURL:    u.CoverURL(),
		Bio:         u.Bio(),
		CreatedAt:   u.CreatedAt(),
		UpdatedAt:   u.UpdatedAt(),
	}
}

// identity returns the caller. Routes without the bearer middleware have
// none, which is treated as unauthenticated.
func identity(r *http.Request) (auth.Identity, error) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok || (!id.SuperAdmin && id.User == nil) {
		return auth.Identity{}, apperror.Unauthorized("not authenticated")
	}
	return id, nil
}

// target resolves the {uuid} the caller may act on.
func target(r *http.Request) (string, error) {
	id, err := identity(r)
	if err != nil {
		return "", err
	}
	uuid := router.Param(r, "uuid")
	if id.SuperAdmin {
		if uuid == "" {
			return "", apperror.ValidationFailed("uuid", "uuid not provided")
		}
		return uuid, nil
	}
	if uuid != "" && uuid != id.User.UUID() {
		return "", apperror.Forbidden("you may only act on your own account")
	}
	return id.User.UUID(), nil
}

// List handles GET /api/usuarios.
//
// The super admin gets a page of all users (?pagina=1&por_pagina=10&nome=);
// X-Total-Count carries the unpaged total. Anyone else gets a one-element
// list containing themselves.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	if !id.SuperAdmin {
		h.resp.JSON(w, http.StatusOK, []UserSummary{summarize(id.User)})
		return
	}

	q := r.URL.Query()
	page, err := queryInt(q.Get("pagina"), "pagina")
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	perPage, err := queryInt(q.Get("por_pagina"), "por_pagina")
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	result, err := h.users.List(r.Context(), service.ListParams{
		Page:    page,
		PerPage: perPage,
		Name:    q.Get("nome"),
	})
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	items := make([]UserSummary, 0, len(result.Users))
	for _, u := range result.Users {
		items = append(items, summarize(u))
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(result.Total))
	h.resp.JSON(w, http.StatusOK, items)
}

// Get handles GET /api/usuario/{uuid}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	uuid, err := target(r)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	u, err := h.users.Get(r.Context(), uuid)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, detail(u))
}

// Create handles POST /api/criar/usuario.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	var req createUserRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	if err := validateRequest(req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	if req.AccessLevel != nil && !id.SuperAdmin {
		h.resp.Error(w, r, apperror.Forbidden("only the super admin may set nivel_acesso"))
		return
	}

	in := service.CreateUserInput{
		FullName:  req.FullName,
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		AvatarURL: req.AvatarURL,
		CoverURL:  req.CoverURL,
		Bio:       req.Bio,
	}
	if req.AccessLevel != nil {
		in.AccessLevel = model.AccessLevel(*req.AccessLevel)
	}

	u, err := h.users.Create(r.Context(), in)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	h.resp.JSON(w, http.StatusCreated, StatusResponse{
		Status:  "success",
		UUID:    u.UUID(),
		Message: "user created",
	})
}

// Update handles PUT /api/usuario/{uuid}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	uuid, err := target(r)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	var req updateUserRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}

	in := service.UpdateUserInput{
		FullName:  req.FullName,
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		AvatarURL: req.AvatarURL,
		CoverURL:  req.CoverURL,
		Bio:       req.Bio,
	}
	if req.AccessLevel != nil {
		if id, _ := identity(r); !id.SuperAdmin {
			h.resp.Error(w, r, apperror.Forbidden("only the super admin may set nivel_acesso"))
			return
		}
		level := model.AccessLevel(*req.AccessLevel)
		in.AccessLevel = &level
	}

	if _, err := h.users.Update(r.Context(), uuid, in); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, StatusResponse{Status: "success", Message: "user updated"})
}

// Delete handles DELETE /api/usuario/{uuid}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.users.Delete, "user deleted")
}

// Deactivate handles PATCH /api/usuario/{uuid}/desativar.
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.users.Deactivate, "user deactivated")
}

// Activate handles PATCH /api/usuario/{uuid}/ativar.
func (h *UserHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.users.Activate, "user activated")
}

func (h *UserHandler) act(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) error, done string) {
	uuid, err := target(r)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	if err := fn(r.Context(), uuid); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, StatusResponse{Status: "success", Message: done})
}

// queryInt parses an optional positive integer query parameter. Empty means
// zero, which the service replaces with its default.
func queryInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperror.ValidationFailed(name, name+" must be a positive integer")
	}
	return n, nil
}
