// Package server implements the core of the Mensageria chat relay: session
// registry, membership directory, message store, routing/broadcast engine,
// and the in-band command interpreter.
//
// The implementation is organized into specialized files per component, with
// one mutex-guarded store per kind of shared state and one goroutine per
// connection direction.
package server
