package handler

import (
	"github.com/sakif/usuarios-api/internal/router"
)

// AuthMiddleware is the name the bearer middleware must be registered under.
const AuthMiddleware = "auth"

// Register adds the API's routes to rt. The caller registers the
// AuthMiddleware before calling rt.Validate.
func Register(rt *router.Router, index *IndexHandler, users *UserHandler) {
	rt.Get("/", index.Health)

	rt.Get("/api/usuarios", users.List, AuthMiddleware)
	rt.Get("/api/usuario/{uuid}", users.Get, AuthMiddleware)
	rt.Post("/api/criar/usuario", users.Create, AuthMiddleware)
	rt.Put("/api/usuario/{uuid}", users.Update, AuthMiddleware)
	rt.Delete("/api/usuario/{uuid}", users.Delete, AuthMiddleware)
	rt.Patch("/api/usuario/{uuid}/desativar", users.Deactivate, AuthMiddleware)
	rt.Patch("/api/usuario/{uuid}/ativar", users.Activate, AuthMiddleware)
}
