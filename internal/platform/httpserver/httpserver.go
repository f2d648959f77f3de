// Package httpserver builds the process's HTTP server for the batch trigger
// API.
package httpserver

import (
	"net/http"
	"time"
)

// New returns the trigger API server. Job routes run a whole batch
// synchronously and respond only when it finishes, so no write timeout is
// set; a stuck batch is surfaced by the drivers' own context handling.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
