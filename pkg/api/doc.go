// Package api hosts the gin engine, the shared middleware stack and the
// lifecycle of the HTTP server. Domain routes are contributed by
// APIController implementations such as catfacts.Controller.
package api
