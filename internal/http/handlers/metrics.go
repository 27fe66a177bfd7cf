package handlers

import (
	"net/http"
)

// Metrics reports pipeline counters plus admission and queue gauges.
func (a *App) Metrics(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"counters": a.Jobs.Metrics().GetSnapshot()}
	if a.Admission != nil {
		out["admission"] = map[string]int{
			"limit":  a.Admission.Limit(),
			"in_use": a.Admission.InUse(),
		}
	}
	if a.Queue != nil {
		out["queue"] = map[string]int{
			"pending": a.Queue.Pending(),
			"active":  a.Queue.Active(),
		}
	}
	a.json(w, http.StatusOK, out)
}
