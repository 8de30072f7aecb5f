package router

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/usuarios-api/internal/apperror"
)

// statusWriter is a minimal ErrorWriter: kind → status, message as body.
func statusWriter(w http.ResponseWriter, _ *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperror.ErrMethodNotAllowed):
		status = http.StatusMethodNotAllowed
	}
	http.Error(w, err.Error(), status)
}

func newTestRouter() *Router {
	return New(statusWriter, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func text(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, body)
	}
}

func serve(rt http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

// =========================================================================
// MATCHING
// =========================================================================

func TestMatch_Params(t *testing.T) {
	rt := newTestRouter()
	rt.Get("/users/{id}", text("one"))
	rt.Patch("/api/usuario/{uuid}/ativar", text("on"))
	rt.Get("/files/{dir}/{name}.txt", text("file"))

	tests := []struct {
		method string
		path   string
		want   map[string]string
	}{
		{"GET", "/users/42", map[string]string{"id": "42"}},
		{"GET", "users/42/", map[string]string{"id": "42"}},
		{"PATCH", "/api/usuario/abc-123/ativar", map[string]string{"uuid": "abc-123"}},
		{"GET", "/files/docs/readme.txt", map[string]string{"dir": "docs", "name": "readme"}},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			m, err := rt.Match(tt.method, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Params)
		})
	}
}

func TestMatch_ParamDoesNotCrossSlash(t *testing.T) {
	rt := newTestRouter()
	rt.Get("/users/{id}", text("one"))

	_, err := rt.Match("GET", "/users/42/extra")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestMatch_LiteralsAreQuoted(t *testing.T) {
	rt := newTestRouter()
	rt.Get("/v1.0/items", text("x"))

	_, err := rt.Match("GET", "/v1.0/items")
	assert.NoError(t, err)

	// "." must not behave as a regexp wildcard.
	_, err = rt.Match("GET", "/v1x0/items")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestMatch_Root(t *testing.T) {
	rt := newTestRouter()
	rt.Get("/", text("root"))

	m, err := rt.Match("GET", "/")
	require.NoError(t, err)
	assert.Empty(t, m.Params)

	_, err = rt.Match("GET", "/anything")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestMatch_UnknownMethodIs405(t *testing.T) {
	rt := newTestRouter()
	rt.Get("/users", text("list"))

	_, err := rt.Match("DELETE", "/users")
	assert.ErrorIs(t, err, apperror.ErrMethodNotAllowed)
}

func TestMatch_KnownMethodNoRouteIs404(t *testing.T) {
	rt := newTestRouter()
	rt.Get("/users", text("list"))

	_, err := rt.Match("GET", "/nope")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestMatch_FirstRegisteredWins(t *testing.T) {
	rt := newTestRouter()
	rt.Get("/users/{id}", text("param"))
	rt.Get("/users/me", text("literal"))

	rec := serve(rt, "GET", "/users/me")
	assert.Equal(t, "param", rec.Body.String())
}

func TestMatch_MethodIsCaseInsensitive(t *testing.T) {
	rt := newTestRouter()
	rt.Handle("get", "/x", text("x"))

	_, err := rt.Match("GET", "/x")
	assert.NoError(t, err)
}

// =========================================================================
// SERVING
// =========================================================================

func TestServeHTTP_ParamsReachHandler(t *testing.T) {
	rt := newTestRouter()
	rt.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, Param(r, "id")+"|"+Param(r, "missing"))
	})

	rec := serve(rt, "GET", "/users/7")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7|", rec.Body.String())
}

func TestServeHTTP_ErrorStatuses(t *testing.T) {
	rt := newTestRouter()
	rt.Get("/users", text("list"))
	rt.Post("/users", text("create"))

	rec := serve(rt, "GET", "/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(rt, "PUT", "/users")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))
}

func TestServeHTTP_MiddlewareOrder(t *testing.T) {
	rt := newTestRouter()
	var trace []string

	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				trace = append(trace, name+">")
				next.ServeHTTP(w, r)
				trace = append(trace, "<"+name)
			})
		}
	}
	rt.RegisterMiddleware("a", tag("a"))
	rt.RegisterMiddleware("b", tag("b"))
	rt.Get("/x", func(w http.ResponseWriter, r *http.Request) {
		trace = append(trace, "handler")
	}, "a", "b")

	serve(rt, "GET", "/x")

	assert.Equal(t, []string{"a>", "b>", "handler", "<b", "<a"}, trace)
}

func TestServeHTTP_ShortCircuit(t *testing.T) {
	rt := newTestRouter()
	called := false

	rt.RegisterMiddleware("deny", func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	})
	rt.Get("/secret", func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, "deny")

	rec := serve(rt, "GET", "/secret")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestServeHTTP_UnregisteredMiddlewareIs500(t *testing.T) {
	rt := newTestRouter()
	called := false
	rt.Get("/x", func(w http.ResponseWriter, r *http.Request) { called = true }, "ghost")

	rec := serve(rt, "GET", "/x")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, called)
}

func TestServeHTTP_PanicBecomes500(t *testing.T) {
	rt := newTestRouter()
	rt.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})

	rec := serve(rt, "GET", "/boom")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "kaboom"))
}

// =========================================================================
// VALIDATE / CHAIN
// =========================================================================

func TestValidate(t *testing.T) {
	rt := newTestRouter()
	rt.RegisterMiddleware("auth", func(next http.Handler) http.Handler { return next })
	rt.Get("/ok", text("ok"), "auth")
	assert.NoError(t, rt.Validate())

	rt.Delete("/bad", text("bad"), "auth", "typo")
	err := rt.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrConfiguration)
	assert.Contains(t, err.Error(), `DELETE /bad: "typo"`)
}

func TestChain_Empty(t *testing.T) {
	h := text("bare")
	rec := serve(Chain(nil, h), "GET", "/")
	assert.Equal(t, "bare", rec.Body.String())
}
