// Package server hosts the Fiber HTTP front of the offline shell: the request
// ID middleware, the adapter that turns every non-diagnostics request into an
// exchange.Request for the worker, and the writer that maps the resulting
// descriptor (plus its source) back onto the Fiber response. Diagnostics
// endpoints under /-/ live in the routes subpackage and are registered by main.
package server
