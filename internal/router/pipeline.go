package router

import "net/http"

// Middleware wraps a handler. It may act before and after calling next, or
// write a response itself and not call next at all.
type Middleware func(next http.Handler) http.Handler

// Chain wraps h so that mws[0] runs first:
//
//	Chain([]Middleware{A, B, C}, h)  ==  A(B(C(h)))
//
// WHY FOLD FROM THE RIGHT?
// Each middleware receives the handler it should call next. To make A the
// outermost layer, C has to wrap h first, then B wraps that, then A wraps
// the result. Walking the slice backwards builds exactly that nesting, so
// a request flows A → B → C → h and the response unwinds h → C → B → A:
//
//	A before ─┐
//	  B before ─┐
//	    C before ─┐
//	              h
//	    C after  ─┘
//	  B after  ─┘
//	A after  ─┘
//
// SHORT-CIRCUITING:
// A middleware that writes a response and returns without calling next
// stops the chain there. The bearer middleware does this for a missing
// or invalid token, so h never runs for unauthenticated requests.
//
// An empty chain returns h unchanged.
func Chain(mws []Middleware, h http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
