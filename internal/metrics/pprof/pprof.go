// Package pprof is kept apart from metrics so that only binaries pull in the
// side effects of net/http/pprof.
package pprof

import (
	"net/http"
	"net/http/pprof" // adds default pprof endpoint at /debug/pprof
)

// WithProfile returns a mux serving the pprof endpoints. Mount it at /debug/pprof/.
func WithProfile() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", pprof.Index)
	// sub-paths need the whole path for the matching to work
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return mux
}
