package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/r2k/internal/logging"
	"github.com/muurk/r2k/internal/reader"
)

// Status is the body of /status.
type Status struct {
	Reader    string        `json:"reader,omitempty"`
	Clients   int           `json:"clients"`
	Published uint64        `json:"published"`
	Dropped   uint64        `json:"dropped"`
	Uptime    string        `json:"uptime"`
	Link      *reader.Stats `json:"link,omitempty"`
}

// Status returns the current counters.
func (s *Server) Status() Status {
	st := Status{
		Reader:    s.config.Reader,
		Clients:   s.Clients(),
		Published: s.published.Load(),
		Dropped:   s.dropped.Load(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	}
	if s.config.Stats != nil {
		link := s.config.Stats()
		st.Link = &link
	}
	return st
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.Status())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write JSON response", zap.Error(err))
	}
}
