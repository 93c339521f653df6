package api

import "net/http"

type schedulerStatus struct {
	Resource  string `json:"resource"`
	Suspended bool   `json:"suspended"`
	Skipped   int64  `json:"skipped"`
}

// agentStatus backs the dashboard's warning banner: which session this agent
// serves and whether any reconciliation loop is suspended.
func (s *service) agentStatus(w http.ResponseWriter, r *http.Request) {
	statuses := make([]schedulerStatus, 0, len(s.deps.Schedulers))
	suspended := false
	for _, sch := range s.deps.Schedulers {
		st := schedulerStatus{
			Resource:  sch.Name(),
			Suspended: sch.Suspended(),
			Skipped:   sch.Skipped(),
		}
		suspended = suspended || st.Suspended
		statuses = append(statuses, st)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":    s.deps.Session,
		"storePath":  s.deps.StorePath,
		"suspended":  suspended,
		"schedulers": statuses,
	})
}

// pokeSync forces an immediate reconciliation pass and lifts any suspension.
// The dashboard's retry banner calls this.
func (s *service) pokeSync(w http.ResponseWriter, r *http.Request) {
	for _, sch := range s.deps.Schedulers {
		sch.Poke()
	}
	writeJSON(w, http.StatusAccepted, nil)
}
