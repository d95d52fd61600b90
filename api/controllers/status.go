package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/davidnajera/mentiondesk-backend/internal/social"
	"github.com/davidnajera/mentiondesk-backend/pkg/logger"
)

// StatusLive answers liveness probes.
func StatusLive() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeBareJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// StatusHealth aggregates circuit health. Any circuit that is not CLOSED
// (OPEN or HALF_OPEN) degrades the endpoint to 503.
func StatusHealth(gw *social.Gateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := gw.HealthSnapshot(r.Context())
		if err != nil {
			if logg != nil {
				logg.Error(r.Context(), "health snapshot failed", err)
			}
			writeBareJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unknown"})
			return
		}

		status := http.StatusOK
		if !snapshot.Healthy() {
			status = http.StatusServiceUnavailable
		}
		writeBareJSON(w, status, snapshot)
	}
}

func writeBareJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
