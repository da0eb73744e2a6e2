package handlers

import "net/http"

// Healthz answers container liveness probes for all three services.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("healthy"))
}
