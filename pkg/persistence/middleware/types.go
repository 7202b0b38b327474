// Package middleware provides cross-cutting wrappers for the Persister
// port: metrics and structured logging. Middlewares compose with Chain
// and stay invisible to the engine core, which only sees the port.
package middleware

import "github.com/aretw0/espalier/pkg/ports"

// Middleware allows wrapping a Persister to add behavior.
type Middleware func(ports.Persister) ports.Persister

// Chain applies middlewares to p in order: the first middleware becomes
// the outermost wrapper.
func Chain(p ports.Persister, middlewares ...Middleware) ports.Persister {
	for i := len(middlewares) - 1; i >= 0; i-- {
		p = middlewares[i](p)
	}
	return p
}
