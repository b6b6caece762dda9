package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router returns the routes served on the metrics address.
func (m *Metrics) Router(version string) *mux.Router {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/ping", handlePing()).Methods(http.MethodGet)
	router.HandleFunc("/version", handleVersion(version)).Methods(http.MethodGet)
	return router
}

func handlePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("pong"))
	}
}

func handleVersion(version string) http.HandlerFunc {
	type response struct {
		Version string `json:"version"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response{Version: version})
	}
}
