package handlers

import (
	"net/http"
)

// Health reports liveness and where generation runs.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	mode := "external"
	if a.Queue != nil {
		mode = "inprocess"
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok", "worker_mode": mode})
}
