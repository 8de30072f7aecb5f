// Package router dispatches requests to handlers by method and path pattern.
//
// Patterns are slash-separated paths where {name} captures one segment:
//
//	/api/usuario/{uuid}/ativar
//
// Routes live in one bucket per method and are tried in registration order;
// the first match wins. Overlapping patterns are not reordered, so register
// literal routes before parameterised ones that could shadow them.
//
// Each route names the middlewares it runs through. Names are resolved
// against the registry when the request is dispatched, and a name that was
// never registered is a configuration error, not a silent skip. Validate
// reports such routes at startup.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/sakif/usuarios-api/internal/apperror"
)

// ErrorWriter renders an error as an HTTP response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// placeholder matches {name} in a pattern.
var placeholder = regexp.MustCompile(`\{(\w+)\}`)

type route struct {
	method      string
	pattern     string
	re          *regexp.Regexp
	params      []string
	handler     http.Handler
	middlewares []string
}

// Router is built at startup and read-only afterwards. Registering routes
// or middlewares while serving is not safe.
type Router struct {
	routes      map[string][]*route
	middlewares map[string]Middleware
	writeError  ErrorWriter
	logger      *slog.Logger
}

// New returns an empty router. writeError renders match failures,
// configuration errors and recovered panics.
func New(writeError ErrorWriter, logger *slog.Logger) *Router {
	return &Router{
		routes:      make(map[string][]*route),
		middlewares: make(map[string]Middleware),
		writeError:  writeError,
		logger:      logger,
	}
}

// RegisterMiddleware makes mw available to routes under name. Registering
// the same name twice replaces the earlier middleware.
func (rt *Router) RegisterMiddleware(name string, mw Middleware) {
	rt.middlewares[name] = mw
}

// Handle appends a route to the method's bucket. Duplicates are not
// detected; the earlier registration wins at match time.
func (rt *Router) Handle(method, pattern string, h http.Handler, middlewares ...string) {
	re, params := compile(pattern)
	method = strings.ToUpper(method)
	rt.routes[method] = append(rt.routes[method], &route{
		method:      method,
		pattern:     pattern,
		re:          re,
		params:      params,
		handler:     h,
		middlewares: middlewares,
	})
}

func (rt *Router) Get(pattern string, h http.HandlerFunc, middlewares ...string) {
	rt.Handle(http.MethodGet, pattern, h, middlewares...)
}

func (rt *Router) Post(pattern string, h http.HandlerFunc, middlewares ...string) {
	rt.Handle(http.MethodPost, pattern, h, middlewares...)
}

func (rt *Router) Put(pattern string, h http.HandlerFunc, middlewares ...string) {
	rt.Handle(http.MethodPut, pattern, h, middlewares...)
}

func (rt *Router) Patch(pattern string, h http.HandlerFunc, middlewares ...string) {
	rt.Handle(http.MethodPatch, pattern, h, middlewares...)
}

func (rt *Router) Delete(pattern string, h http.HandlerFunc, middlewares ...string) {
	rt.Handle(http.MethodDelete, pattern, h, middlewares...)
}

// compile turns a pattern into an anchored regexp. Literal text is quoted,
// each {name} becomes ([^/]+), and leading and trailing slashes are dropped
// so "/a/" and "a" are the same pattern.
func compile(pattern string) (*regexp.Regexp, []string) {
	p := strings.Trim(pattern, "/")

	var (
		b      strings.Builder
		params []string
		last   int
	)
	b.WriteString("^")
	for _, loc := range placeholder.FindAllStringSubmatchIndex(p, -1) {
		b.WriteString(regexp.QuoteMeta(p[last:loc[0]]))
		b.WriteString("([^/]+)")
		params = append(params, p[loc[2]:loc[3]])
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(p[last:]))
	b.WriteString("$")

	return regexp.MustCompile(b.String()), params
}

// Match is a resolved route.
type Match struct {
	Pattern     string
	Handler     http.Handler
	Middlewares []string
	Params      map[string]string
}

// Match finds the first route in the method's bucket whose pattern matches
// path. It fails with apperror.ErrMethodNotAllowed when no route was ever
// registered for the method and apperror.ErrNotFound when none matches.
func (rt *Router) Match(method, path string) (*Match, error) {
	bucket, ok := rt.routes[strings.ToUpper(method)]
	if !ok {
		return nil, apperror.MethodNotAllowed(method)
	}

	p := strings.Trim(path, "/")
	for _, r := range bucket {
		m := r.re.FindStringSubmatch(p)
		if m == nil {
			continue
		}
		params := make(map[string]string, len(r.params))
		for i, name := range r.params {
			params[name] = m[i+1]
		}
		return &Match{
			Pattern:     r.pattern,
			Handler:     r.handler,
			Middlewares: r.middlewares,
			Params:      params,
		}, nil
	}
	return nil, apperror.RouteNotFound(method, path)
}

// Validate checks that every middleware named by a route is registered.
func (rt *Router) Validate() error {
	var missing []string
	for _, bucket := range rt.routes {
		for _, r := range bucket {
			for _, name := range r.middlewares {
				if _, ok := rt.middlewares[name]; !ok {
					missing = append(missing, fmt.Sprintf("%s %s: %q", r.method, r.pattern, name))
				}
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return apperror.Configuration("unregistered middleware: " + strings.Join(missing, ", "))
	}
	return nil
}

// Methods lists the methods that have at least one route, sorted.
func (rt *Router) Methods() []string {
	methods := make([]string, 0, len(rt.routes))
	for m := range rt.routes {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// ServeHTTP matches the request, builds the route's middleware pipeline and
// runs it. Nothing escapes: failures and panics become error responses.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			rt.logger.Error("panic while handling request",
				"method", r.Method,
				"path", r.URL.Path,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			rt.writeError(w, r, fmt.Errorf("panic: %v", rec))
		}
	}()

	m, err := rt.Match(r.Method, r.URL.Path)
	if err != nil {
		if _, ok := rt.routes[strings.ToUpper(r.Method)]; !ok {
			w.Header().Set("Allow", strings.Join(rt.Methods(), ", "))
		}
		rt.writeError(w, r, err)
		return
	}

	mws := make([]Middleware, 0, len(m.Middlewares))
	for _, name := range m.Middlewares {
		mw, ok := rt.middlewares[name]
		if !ok {
			rt.logger.Error("route names an unregistered middleware", "pattern", m.Pattern, "middleware", name)
			rt.writeError(w, r, apperror.Configuration(fmt.Sprintf("middleware %q is not registered", name)))
			return
		}
		mws = append(mws, mw)
	}

	ctx := context.WithValue(r.Context(), paramsKey, m.Params)
	Chain(mws, m.Handler).ServeHTTP(w, r.WithContext(ctx))
}

type contextKey string

const paramsKey contextKey = "params"

// Params returns the path parameters captured for r, or nil outside a
// routed request.
func Params(r *http.Request) map[string]string {
	p, _ := r.Context().Value(paramsKey).(map[string]string)
	return p
}

// Param returns one path parameter, or "" when absent.
func Param(r *http.Request, name string) string {
	return Params(r)[name]
}
